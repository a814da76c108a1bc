package limiter

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by limiter operations. Callers branch with
// errors.Is; the typed wrappers below carry the details.
var (
	// ErrRateLimited is returned when a limit is genuinely exhausted. It is
	// the expected outcome under load and is never retried internally.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrUnavailable is returned when the limiter could not reach a decision
	// within its retry budget, due to contention or store failures. The
	// caller may retry the whole operation later.
	ErrUnavailable = errors.New("limiter unavailable")

	// ErrConfigMissing is returned when no limit row exists for a
	// (resource, account) pair and the limiter has no configured default.
	ErrConfigMissing = errors.New("no limit configured")

	// ErrAlreadyBound is returned by Reservation.Bind when the reservation
	// was already bound, locally or by a concurrent caller.
	ErrAlreadyBound = errors.New("reservation already bound")

	// ErrReservationReleased is returned by Reservation.Bind after Release.
	ErrReservationReleased = errors.New("reservation released")
)

// LimitExceededError reports an exhausted limit. It wraps ErrRateLimited.
type LimitExceededError struct {
	// Resource is the limited resource name.
	Resource string

	// Account is the account that hit the limit.
	Account string

	// Limit is the effective limit that was enforced.
	Limit int64

	// RetryAfter estimates how long until one unit of capacity is
	// available again. Zero when the limiter cannot estimate (non-fungible
	// limits free up only when a reservation is released).
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *LimitExceededError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded for %s:%s (limit %d, retry after %s)",
			e.Resource, e.Account, e.Limit, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded for %s:%s (limit %d)", e.Resource, e.Account, e.Limit)
}

// Unwrap makes errors.Is(err, ErrRateLimited) hold.
func (e *LimitExceededError) Unwrap() error {
	return ErrRateLimited
}

// UnavailableError reports a retry budget exhausted by contention or store
// failures. It wraps ErrUnavailable and the last underlying error.
type UnavailableError struct {
	Resource string
	Account  string

	// Attempts is the number of attempts made before giving up.
	Attempts int

	// Err is the error from the final attempt.
	Err error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	return fmt.Sprintf("limiter unavailable for %s:%s after %d attempts: %v",
		e.Resource, e.Account, e.Attempts, e.Err)
}

// Unwrap makes errors.Is(err, ErrUnavailable) hold and exposes the last
// attempt's error to errors.Is/As.
func (e *UnavailableError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}
