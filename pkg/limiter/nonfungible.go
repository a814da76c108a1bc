package limiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tollgate-hq/tollgate/pkg/limiter/store"
)

// Reservation TTL defaults. A fresh reservation is a short-lived claim that
// must be bound or released promptly; a bound token backs a real resource
// and lives until released or until event cleanup removes it, with the
// longer TTL as the safety net for lost events.
const (
	DefaultReservationTTL = 5 * time.Minute
	DefaultBoundTokenTTL  = 24 * time.Hour
)

// NonFungible enforces a cap on live reservations for one resource. Unlike
// fungible tokens, reservations do not replenish with time: capacity frees
// up only when a reservation is released, its bound resource is cleaned up
// by an event, or its TTL lapses.
//
// Each reservation is one row keyed by (resourceCoordinate, reservationId);
// the invariant is that live rows per coordinate never exceed the effective
// limit, under any interleaving of concurrent Reserve calls in any number
// of processes.
type NonFungible struct {
	store            store.Store
	resource         string
	reservationTable string
	limits           limitReader
	retry            RetryPolicy
	reservationTTL   time.Duration
	boundTTL         time.Duration
	clock            Clock
	logger           *slog.Logger
	metrics          *Metrics
}

// NonFungibleConfig configures a non-fungible limiter.
type NonFungibleConfig struct {
	// Store is the backing store. Required.
	Store store.Store

	// Resource names the limited resource. Required.
	Resource string

	// ReservationTable is the reservation table.
	// Default: DefaultNonFungibleTable.
	ReservationTable string

	// LimitTable is the limit configuration table.
	// Default: DefaultLimitTable.
	LimitTable string

	// DefaultLimit applies to accounts without a limit row. Zero means no
	// default: unconfigured accounts fail with ErrConfigMissing.
	DefaultLimit int64

	// ReservationTTL bounds the life of an unbound reservation.
	// Default: DefaultReservationTTL.
	ReservationTTL time.Duration

	// BoundTokenTTL bounds the life of a bound token.
	// Default: DefaultBoundTokenTTL.
	BoundTokenTTL time.Duration

	// Retry bounds the insert-rank-rollback retry loop.
	Retry RetryPolicy

	// Clock supplies the current time. Default: SystemClock.
	Clock Clock

	// Logger receives decision logs. Default: slog.Default.
	Logger *slog.Logger

	// Metrics records decision outcomes. Optional.
	Metrics *Metrics
}

// NewNonFungible creates a non-fungible limiter.
func NewNonFungible(cfg NonFungibleConfig) (*NonFungible, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Resource == "" {
		return nil, fmt.Errorf("resource cannot be empty")
	}
	if cfg.ReservationTable == "" {
		cfg.ReservationTable = DefaultNonFungibleTable
	}
	if cfg.LimitTable == "" {
		cfg.LimitTable = DefaultLimitTable
	}
	if cfg.ReservationTTL <= 0 {
		cfg.ReservationTTL = DefaultReservationTTL
	}
	if cfg.BoundTokenTTL <= 0 {
		cfg.BoundTokenTTL = DefaultBoundTokenTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &NonFungible{
		store:            cfg.Store,
		resource:         cfg.Resource,
		reservationTable: cfg.ReservationTable,
		limits: limitReader{
			store:       cfg.Store,
			table:       cfg.LimitTable,
			resource:    cfg.Resource,
			fallback:    Limit{Limit: cfg.DefaultLimit},
			hasFallback: cfg.DefaultLimit > 0,
		},
		retry:          cfg.Retry.withDefaults(),
		reservationTTL: cfg.ReservationTTL,
		boundTTL:       cfg.BoundTokenTTL,
		clock:          cfg.Clock,
		logger:         cfg.Logger.With("component", "limiter.nonfungible", "resource", cfg.Resource),
		metrics:        cfg.Metrics,
	}, nil
}

// Resource returns the resource name this limiter enforces.
func (n *NonFungible) Resource() string {
	return n.resource
}

// coordinate is the partition key grouping all of an account's reservations
// for this resource.
func (n *NonFungible) coordinate(accountID string) string {
	return n.resource + ":" + accountID
}

// Reserve claims one unit of capacity for the account.
//
// The claim is admitted only while the account's live reservation count is
// below the effective limit. Admission is a query-then-insert with rank
// verification: the caller inserts its row, re-reads the partition, and
// keeps the reservation only if its row sorts within the first `limit`
// rows. Losers remove their own row and retry, so concurrent racers agree
// on the same winner set and the cap holds under any interleaving, at the
// cost of occasionally turning away a racer who would have fit
// (under-admission).
//
// It returns an error wrapping ErrRateLimited when the account is at its
// cap, and an error wrapping ErrUnavailable when racing exhausted the
// retry budget.
func (n *NonFungible) Reserve(ctx context.Context, accountID string) (*Reservation, error) {
	start := time.Now()

	lim, err := n.limits.resolve(ctx, accountID)
	if err != nil {
		n.metrics.RecordReserve(n.resource, OutcomeError, time.Since(start))
		return nil, err
	}
	if lim.Limit <= 0 {
		n.metrics.RecordReserve(n.resource, OutcomeLimited, time.Since(start))
		return nil, &LimitExceededError{Resource: n.resource, Account: accountID, Limit: lim.Limit}
	}

	coordinate := n.coordinate(accountID)

	for attempt := 0; ; attempt++ {
		reservation, admitted, err := n.tryReserve(ctx, accountID, coordinate, lim)
		if err == nil {
			if admitted {
				n.metrics.RecordReserve(n.resource, OutcomeGranted, time.Since(start))
				n.logger.Debug("reservation admitted",
					"account", accountID,
					"reservation_id", reservation.id,
					"attempts", attempt+1,
				)
				return reservation, nil
			}
			n.metrics.RecordReserve(n.resource, OutcomeLimited, time.Since(start))
			n.logger.Debug("reservation limited", "account", accountID, "limit", lim.Limit)
			return nil, &LimitExceededError{Resource: n.resource, Account: accountID, Limit: lim.Limit}
		}
		if !errors.Is(err, errLostRace) {
			n.metrics.RecordReserve(n.resource, OutcomeError, time.Since(start))
			return nil, err
		}

		n.metrics.RecordRetry(n.resource, "reserve")
		if attempt+1 >= n.retry.MaxAttempts {
			n.metrics.RecordReserve(n.resource, OutcomeUnavailable, time.Since(start))
			n.logger.Warn("reserve retry budget exhausted",
				"account", accountID,
				"attempts", attempt+1,
			)
			return nil, &UnavailableError{
				Resource: n.resource,
				Account:  accountID,
				Attempts: attempt + 1,
				Err:      err,
			}
		}
		if err := sleep(ctx, n.retry.backoff(attempt)); err != nil {
			return nil, err
		}
	}
}

// errLostRace marks an admission round lost to concurrent racers; the
// Reserve loop retries it like a voided conditional write.
var errLostRace = errors.New("lost reservation race")

// tryReserve runs one admission round. admitted=false with a nil error
// means the account is at its cap.
func (n *NonFungible) tryReserve(ctx context.Context, accountID, coordinate string, lim Limit) (*Reservation, bool, error) {
	rows, err := n.store.Query(ctx, n.reservationTable, coordinate)
	if err != nil {
		return nil, false, fmt.Errorf("failed to count reservations: %w", err)
	}
	if int64(len(rows)) >= lim.Limit {
		return nil, false, nil
	}

	id := uuid.NewString()
	row := store.Row{
		Key: store.Key{Hash: coordinate, Range: id},
		Attrs: store.Attributes{
			AttrResourceID:   "",
			AttrResourceName: n.resource,
			AttrAccountID:    accountID,
		},
		ExpiresAt: n.clock.Now().Add(n.reservationTTL),
	}
	if err := n.store.PutIf(ctx, n.reservationTable, row, store.IfAbsent()); err != nil {
		if errors.Is(err, store.ErrConditionFailed) {
			// A colliding reservation id; practically unreachable with
			// uuids but harmless to retry.
			return nil, false, errLostRace
		}
		return nil, false, fmt.Errorf("failed to insert reservation: %w", err)
	}

	// Re-read and rank. Rows sort by reservation id, so every racer
	// computes the same winner set no matter whose writes it observed.
	rows, err = n.store.Query(ctx, n.reservationTable, coordinate)
	if err != nil {
		n.rollback(ctx, row.Key)
		return nil, false, fmt.Errorf("failed to rank reservations: %w", err)
	}
	rank := int64(-1)
	for i, r := range rows {
		if r.Key.Range == id {
			rank = int64(i)
			break
		}
	}
	if rank < 0 || rank >= lim.Limit {
		n.rollback(ctx, row.Key)
		return nil, false, errLostRace
	}

	return &Reservation{
		limiter:    n,
		id:         id,
		coordinate: coordinate,
		account:    accountID,
	}, true, nil
}

// rollback removes a losing insert. On failure the row stays behind until
// its TTL lapses; that only under-admits, never over-admits.
func (n *NonFungible) rollback(ctx context.Context, key store.Key) {
	if err := n.store.Delete(ctx, n.reservationTable, key); err != nil {
		n.logger.Warn("failed to roll back losing reservation",
			"reservation_id", key.Range,
			"error", err,
		)
	}
}
