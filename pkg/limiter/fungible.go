package limiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"tollgate-hq/tollgate/pkg/limiter/store"
)

// Fungible enforces a token-bucket limit for one resource. Each
// (resource, account) pair owns a bucket of at most `limit` tokens that
// refills continuously at limit/window tokens per second; Acquire spends one
// token.
//
// Buckets are materialized lazily: an account that has never consumed has no
// row, and its bucket is read as full. Refill is computed at access time
// from the elapsed span since the last refill, so no background process
// tops buckets up.
type Fungible struct {
	store      store.Store
	resource   string
	tokenTable string
	limits     limitReader
	retry      RetryPolicy
	clock      Clock
	logger     *slog.Logger
	metrics    *Metrics
}

// FungibleConfig configures a fungible limiter.
type FungibleConfig struct {
	// Store is the backing store. Required.
	Store store.Store

	// Resource names the limited resource. Required.
	Resource string

	// TokenTable is the bucket table. Default: DefaultFungibleTable.
	TokenTable string

	// LimitTable is the limit configuration table.
	// Default: DefaultLimitTable.
	LimitTable string

	// DefaultLimit applies to accounts without a limit row. Zero means no
	// default: unconfigured accounts fail with ErrConfigMissing.
	DefaultLimit int64

	// DefaultWindow is the refill window used with DefaultLimit, and the
	// fallback for limit rows that carry no window of their own.
	DefaultWindow time.Duration

	// Retry bounds the conditional-write retry loop.
	Retry RetryPolicy

	// Clock supplies the current time. Default: SystemClock.
	Clock Clock

	// Logger receives decision logs. Default: slog.Default.
	Logger *slog.Logger

	// Metrics records decision outcomes. Optional.
	Metrics *Metrics
}

// NewFungible creates a fungible limiter.
func NewFungible(cfg FungibleConfig) (*Fungible, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Resource == "" {
		return nil, fmt.Errorf("resource cannot be empty")
	}
	if cfg.DefaultLimit > 0 && cfg.DefaultWindow <= 0 {
		return nil, fmt.Errorf("default limit %d requires a default window", cfg.DefaultLimit)
	}
	if cfg.TokenTable == "" {
		cfg.TokenTable = DefaultFungibleTable
	}
	if cfg.LimitTable == "" {
		cfg.LimitTable = DefaultLimitTable
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Fungible{
		store:      cfg.Store,
		resource:   cfg.Resource,
		tokenTable: cfg.TokenTable,
		limits: limitReader{
			store:       cfg.Store,
			table:       cfg.LimitTable,
			resource:    cfg.Resource,
			fallback:    Limit{Limit: cfg.DefaultLimit, Window: cfg.DefaultWindow},
			hasFallback: cfg.DefaultLimit > 0,
		},
		retry:   cfg.Retry.withDefaults(),
		clock:   cfg.Clock,
		logger:  cfg.Logger.With("component", "limiter.fungible", "resource", cfg.Resource),
		metrics: cfg.Metrics,
	}, nil
}

// Resource returns the resource name this limiter enforces.
func (f *Fungible) Resource() string {
	return f.resource
}

// Acquire spends one token from the account's bucket.
//
// It returns nil when a token was granted, an error wrapping ErrRateLimited
// when the bucket is empty (with a RetryAfter estimate), and an error
// wrapping ErrUnavailable when contention exhausted the retry budget
// without a decision. Rate-limited outcomes are never retried internally.
func (f *Fungible) Acquire(ctx context.Context, accountID string) error {
	start := time.Now()

	lim, err := f.limits.resolve(ctx, accountID)
	if err != nil {
		f.metrics.RecordAcquire(f.resource, OutcomeError, time.Since(start))
		return err
	}
	if lim.Limit <= 0 {
		f.metrics.RecordAcquire(f.resource, OutcomeLimited, time.Since(start))
		return &LimitExceededError{Resource: f.resource, Account: accountID, Limit: lim.Limit}
	}
	if lim.Window <= 0 {
		f.metrics.RecordAcquire(f.resource, OutcomeError, time.Since(start))
		return fmt.Errorf("limit for %s:%s has no refill window", f.resource, accountID)
	}

	for attempt := 0; ; attempt++ {
		granted, retryAfter, err := f.tryAcquire(ctx, accountID, lim)
		if err == nil {
			if granted {
				f.metrics.RecordAcquire(f.resource, OutcomeGranted, time.Since(start))
				f.logger.Debug("token granted", "account", accountID, "attempts", attempt+1)
				return nil
			}
			f.metrics.RecordAcquire(f.resource, OutcomeLimited, time.Since(start))
			f.logger.Debug("rate limited",
				"account", accountID,
				"limit", lim.Limit,
				"retry_after", retryAfter,
			)
			return &LimitExceededError{
				Resource:   f.resource,
				Account:    accountID,
				Limit:      lim.Limit,
				RetryAfter: retryAfter,
			}
		}
		if !errors.Is(err, store.ErrConditionFailed) {
			f.metrics.RecordAcquire(f.resource, OutcomeError, time.Since(start))
			return err
		}

		f.metrics.RecordRetry(f.resource, "acquire")
		if attempt+1 >= f.retry.MaxAttempts {
			f.metrics.RecordAcquire(f.resource, OutcomeUnavailable, time.Since(start))
			f.logger.Warn("acquire retry budget exhausted",
				"account", accountID,
				"attempts", attempt+1,
			)
			return &UnavailableError{
				Resource: f.resource,
				Account:  accountID,
				Attempts: attempt + 1,
				Err:      err,
			}
		}
		if err := sleep(ctx, f.retry.backoff(attempt)); err != nil {
			return err
		}
	}
}

// tryAcquire runs one read-compute-write round. granted reports whether a
// token was spent; when the bucket is empty it returns granted=false with a
// refill estimate and no error. A voided condition surfaces as
// store.ErrConditionFailed for the caller's retry loop.
func (f *Fungible) tryAcquire(ctx context.Context, accountID string, lim Limit) (granted bool, retryAfter time.Duration, err error) {
	key := store.Key{Hash: f.resource, Range: accountID}
	now := unixSeconds(f.clock.Now())

	row, err := f.store.Get(ctx, f.tokenTable, key)
	existed := true
	var tokens, lastRefill float64
	switch {
	case errors.Is(err, store.ErrNotFound):
		// Never-written bucket reads as full.
		existed = false
		tokens = float64(lim.Limit)
		lastRefill = now
	case err != nil:
		return false, 0, fmt.Errorf("failed to read bucket row: %w", err)
	default:
		tokens, _ = row.Attrs.Float64(AttrTokens)
		lastRefill, _ = row.Attrs.Float64(AttrLastRefill)
	}

	elapsed := now - lastRefill
	if elapsed < 0 {
		// Writer clocks can disagree; never refill backwards.
		elapsed = 0
	}
	candidate := math.Min(float64(lim.Limit), tokens+elapsed*lim.rate())

	if candidate < 1 {
		wait := time.Duration((1 - candidate) / lim.rate() * float64(time.Second))
		return false, wait, nil
	}

	next := store.Row{
		Key: key,
		Attrs: store.Attributes{
			AttrTokens:     candidate - 1,
			AttrLastRefill: now,
			AttrLastToken:  now,
		},
	}
	cond := store.IfAbsent()
	if existed {
		cond = store.IfMatch(store.Attributes{
			AttrTokens:     tokens,
			AttrLastRefill: lastRefill,
		})
	}
	if err := f.store.PutIf(ctx, f.tokenTable, next, cond); err != nil {
		return false, 0, err
	}
	return true, 0, nil
}
