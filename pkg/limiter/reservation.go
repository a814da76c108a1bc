package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tollgate-hq/tollgate/pkg/limiter/store"
)

const (
	stateReserved = iota
	stateBound
	stateReleased
)

// Reservation is a claimed unit of non-fungible capacity. It is born
// unbound; the caller either binds it to the identifier of the real
// resource it paid for, or releases it to return the capacity.
//
// Bind succeeds exactly once. Release is idempotent and also frees bound
// tokens, which is the manual counterpart to event-driven cleanup.
type Reservation struct {
	limiter    *NonFungible
	id         string
	coordinate string
	account    string

	mu    sync.Mutex
	state int
}

// ID returns the reservation id, the row's range key.
func (r *Reservation) ID() string {
	return r.id
}

// Account returns the account the reservation belongs to.
func (r *Reservation) Account() string {
	return r.account
}

// Bound reports whether Bind has succeeded.
func (r *Reservation) Bound() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == stateBound
}

// Bind attaches the real resource's identifier to the reservation,
// converting it into a bound token and extending its TTL to the bound-token
// TTL.
//
// Binding is a conditional write on the stored resourceId still being
// empty, so it succeeds exactly once even when racing another process
// holding the same reservation id. Later calls return ErrAlreadyBound; a
// released or expired reservation returns ErrReservationReleased.
func (r *Reservation) Bind(ctx context.Context, resourceID string) error {
	if resourceID == "" {
		return fmt.Errorf("resource id cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case stateBound:
		return ErrAlreadyBound
	case stateReleased:
		return ErrReservationReleased
	}

	n := r.limiter
	row := store.Row{
		Key: store.Key{Hash: r.coordinate, Range: r.id},
		Attrs: store.Attributes{
			AttrResourceID:   resourceID,
			AttrResourceName: n.resource,
			AttrAccountID:    r.account,
		},
		ExpiresAt: n.clock.Now().Add(n.boundTTL),
	}
	err := n.store.PutIf(ctx, n.reservationTable, row, store.IfMatch(store.Attributes{
		AttrResourceID: "",
	}))
	if err == nil {
		r.state = stateBound
		n.metrics.RecordBind(n.resource, "bound")
		n.logger.Debug("reservation bound",
			"account", r.account,
			"reservation_id", r.id,
			"resource_id", resourceID,
		)
		return nil
	}
	if !errors.Is(err, store.ErrConditionFailed) {
		return fmt.Errorf("failed to bind reservation: %w", err)
	}

	// The condition failed: either the row is gone (released or expired)
	// or another holder bound first.
	_, getErr := n.store.Get(ctx, n.reservationTable, row.Key)
	if errors.Is(getErr, store.ErrNotFound) {
		r.state = stateReleased
		n.metrics.RecordBind(n.resource, "released")
		return ErrReservationReleased
	}
	if getErr != nil {
		return fmt.Errorf("failed to bind reservation: %w", getErr)
	}
	r.state = stateBound
	n.metrics.RecordBind(n.resource, "already_bound")
	return ErrAlreadyBound
}

// Release returns the reservation's capacity by deleting its row. It is
// idempotent and works on bound tokens as well, freeing their capacity
// without waiting for event cleanup.
func (r *Reservation) Release(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == stateReleased {
		return nil
	}

	n := r.limiter
	key := store.Key{Hash: r.coordinate, Range: r.id}
	if err := n.store.Delete(ctx, n.reservationTable, key); err != nil {
		return fmt.Errorf("failed to release reservation: %w", err)
	}
	r.state = stateReleased
	n.metrics.RecordRelease(n.resource)
	n.logger.Debug("reservation released",
		"account", r.account,
		"reservation_id", r.id,
	)
	return nil
}
