// Package limiter enforces per-account resource consumption limits shared
// across many independent processes.
//
// # Overview
//
// The limiter package implements two resource models on top of a remote
// conditional-write store (see the store subpackage):
//
//   - Fungible: interchangeable capacity replenished over time, a token
//     bucket with lazy refill computed at access time
//   - Non-Fungible: unique capacity units reserved explicitly, bound to a
//     real resource instance, and held until released
//
// All state lives in the store; processes share nothing in memory, so any
// number of limiter instances across any number of hosts enforce the same
// limits.
//
// # Fungible Limits
//
// A fungible limiter grants tokens from a per-(resource, account) bucket:
//
//	f, _ := limiter.NewFungible(limiter.FungibleConfig{
//	    Store:         backend,
//	    Resource:      "gpu-large",
//	    DefaultLimit:  100,
//	    DefaultWindow: time.Hour,
//	})
//	if err := f.Acquire(ctx, "acct-1"); err != nil {
//	    // errors.Is(err, limiter.ErrRateLimited) etc.
//	}
//
// # Non-Fungible Reservations
//
// A non-fungible limiter admits at most N live reservations per
// (resource, account); each reservation is later bound to the identifier of
// the real resource it paid for, or released:
//
//	n, _ := limiter.NewNonFungible(limiter.NonFungibleConfig{
//	    Store:        backend,
//	    Resource:     "gpu-instances",
//	    DefaultLimit: 10,
//	})
//	res, err := n.Reserve(ctx, "acct-1")
//	if err != nil {
//	    return err
//	}
//	id, err := launchInstance(ctx)
//	if err != nil {
//	    res.Release(ctx)
//	    return err
//	}
//	res.Bind(ctx, id)
//
// # Consistency
//
// Every mutation is a single-row conditional write. Writers read, compute,
// and write conditioned on what they read; a concurrent writer voids the
// condition and the loser retries with backoff. Retries are bounded:
// sustained contention surfaces as ErrUnavailable rather than an incorrect
// grant, so the limiter under-admits and never over-admits.
//
// # Thread Safety
//
// Fungible, NonFungible, and Reservation values are safe for concurrent use.
package limiter
