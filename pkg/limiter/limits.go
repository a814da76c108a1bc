package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tollgate-hq/tollgate/pkg/limiter/store"
)

// Default table and index names. Deployments with differently named tables
// override them through the limiter configs (see pkg/config for the
// environment fallback chain).
const (
	DefaultFungibleTable    = "fungible"
	DefaultNonFungibleTable = "non-fungible"
	DefaultLimitTable       = "limits"

	// DefaultServiceIndex is the limit-table index over owning service,
	// used by the loader to enumerate a service's rows.
	DefaultServiceIndex = "limits-service-index"

	// DefaultResourceIndex is the reservation-table index over bound
	// resource id, used by event cleanup to find rows to remove.
	DefaultResourceIndex = "resource-id-index"
)

// Wire attribute names. They are shared contract between every process
// reading or writing the tables, so renaming any of them is a breaking
// schema change.
const (
	AttrTokens     = "tokens"
	AttrLastRefill = "lastRefill"
	AttrLastToken  = "lastToken"

	AttrLimit       = "limit"
	AttrWindowSec   = "windowSec"
	AttrServiceName = "serviceName"

	AttrResourceID   = "resourceId"
	AttrResourceName = "resourceName"
	AttrAccountID    = "accountId"
)

// Limit is the effective constraint for one (resource, account) pair.
type Limit struct {
	// Limit is the capacity: bucket size for fungible resources, maximum
	// live reservations for non-fungible ones. Zero denies all requests.
	Limit int64

	// Window is the refill period for fungible resources. Ignored by
	// non-fungible limits.
	Window time.Duration

	// Service is the owning service recorded on the limit row, when one
	// exists.
	Service string
}

// rate returns replenishment in tokens per second.
func (l Limit) rate() float64 {
	return float64(l.Limit) / l.Window.Seconds()
}

// limitReader resolves effective limits for one resource, falling back to
// configured defaults when no row exists.
type limitReader struct {
	store    store.Store
	table    string
	resource string
	fallback Limit
	// hasFallback distinguishes "default to N" from "reject unconfigured
	// accounts".
	hasFallback bool
}

func (r limitReader) resolve(ctx context.Context, account string) (Limit, error) {
	row, err := r.store.Get(ctx, r.table, store.Key{Hash: r.resource, Range: account})
	if errors.Is(err, store.ErrNotFound) {
		if !r.hasFallback {
			return Limit{}, fmt.Errorf("%w for %s:%s", ErrConfigMissing, r.resource, account)
		}
		return r.fallback, nil
	}
	if err != nil {
		return Limit{}, fmt.Errorf("failed to read limit row: %w", err)
	}

	lim, ok := row.Attrs.Int64(AttrLimit)
	if !ok {
		return Limit{}, fmt.Errorf("limit row for %s:%s has no %s attribute", r.resource, account, AttrLimit)
	}
	out := Limit{Limit: lim, Window: r.fallback.Window}
	if winSec, ok := row.Attrs.Float64(AttrWindowSec); ok && winSec > 0 {
		out.Window = time.Duration(winSec * float64(time.Second))
	}
	if svc, ok := row.Attrs.String(AttrServiceName); ok {
		out.Service = svc
	}
	return out, nil
}
