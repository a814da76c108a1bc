package limiter

import (
	"context"
)

// Do acquires a token and, when granted, runs fn. The token is spent either
// way; fungible capacity is not refunded when fn fails.
func (f *Fungible) Do(ctx context.Context, accountID string, fn func(ctx context.Context) error) error {
	if err := f.Acquire(ctx, accountID); err != nil {
		return err
	}
	return fn(ctx)
}

// WithReservation reserves capacity, runs fn with the reservation, and
// releases it on every exit path unless fn bound it. A bound reservation
// outlives the scope: it now backs a real resource and is cleaned up by
// events, an explicit Release, or its TTL.
func (n *NonFungible) WithReservation(ctx context.Context, accountID string, fn func(ctx context.Context, r *Reservation) error) error {
	res, err := n.Reserve(ctx, accountID)
	if err != nil {
		return err
	}
	defer func() {
		if res.Bound() {
			return
		}
		// Best effort; a failed release leaves the row to its TTL, which
		// only under-admits.
		if rerr := res.Release(ctx); rerr != nil {
			n.logger.Warn("failed to release scoped reservation",
				"account", accountID,
				"reservation_id", res.ID(),
				"error", rerr,
			)
		}
	}()
	return fn(ctx, res)
}
