package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrNotFound is returned by Get when no live row exists at the key.
	ErrNotFound = errors.New("row not found")

	// ErrConditionFailed is returned by PutIf when the stored row does not
	// satisfy the supplied condition. It signals contention, not corruption;
	// callers re-read and retry.
	ErrConditionFailed = errors.New("conditional write failed")
)

// Key identifies a single row within a table.
type Key struct {
	// Hash is the partition component of the key.
	Hash string

	// Range is the sort component of the key. Tables with a simple key
	// leave it empty.
	Range string
}

// Attributes is the schemaless column set of a row. Values are restricted
// to strings, booleans, and numbers; numbers are normalized to float64 when
// compared or round-tripped through a backend.
type Attributes map[string]any

// String returns the named attribute as a string.
func (a Attributes) String(name string) (string, bool) {
	v, ok := a[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Float64 returns the named attribute as a float64, converting from any
// numeric representation.
func (a Attributes) Float64(name string) (float64, bool) {
	v, ok := a[name]
	if !ok {
		return 0, false
	}
	return toFloat64(v)
}

// Int64 returns the named attribute as an int64, truncating a float value.
func (a Attributes) Int64(name string) (int64, bool) {
	f, ok := a.Float64(name)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// Clone returns a shallow copy of the attribute set.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Row is a stored record: a key, its attributes, and an optional absolute
// expiry acting as a safety net against leaked rows.
type Row struct {
	Key   Key
	Attrs Attributes

	// ExpiresAt is the instant after which the row is treated as deleted.
	// The zero value means the row never expires.
	ExpiresAt time.Time
}

// Clone returns a copy of the row that shares no attribute storage with the
// original.
func (r Row) Clone() Row {
	r.Attrs = r.Attrs.Clone()
	return r
}

// Expired reports whether the row is past its expiry at the given instant.
func (r Row) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !r.ExpiresAt.After(now)
}

// Condition guards a PutIf. A condition either requires the row to be
// absent, or requires a set of stored attributes to match expected values.
// Construct conditions with IfAbsent or IfMatch.
type Condition struct {
	absent bool
	match  Attributes
}

// IfAbsent requires that no live row exists at the key.
func IfAbsent() Condition {
	return Condition{absent: true}
}

// IfMatch requires the row to exist and each named attribute to equal the
// expected value. Attributes not named are unconstrained.
func IfMatch(expected Attributes) Condition {
	return Condition{match: expected.Clone()}
}

// holds reports whether the condition is satisfied by the current row
// state. exists is false when no live row is stored at the key.
func (c Condition) holds(current Attributes, exists bool) bool {
	if c.absent {
		return !exists
	}
	if !exists {
		return false
	}
	for name, want := range c.match {
		got, ok := current[name]
		if !ok || !attrEqual(got, want) {
			return false
		}
	}
	return true
}

// Index declares a secondary index: rows of Table are addressable by
// equality on Attribute under the index Name.
type Index struct {
	Table     string
	Name      string
	Attribute string
}

// Store is the storage port consumed by the limiters, the event manager,
// and the limit loader.
//
// Implementations must be safe for concurrent use and must apply PutIf
// atomically with respect to all concurrent writers of the same row; this
// is the compare-and-swap every limiting protocol in this module is built
// on.
type Store interface {
	// Get returns the live row at key, or ErrNotFound.
	Get(ctx context.Context, table string, key Key) (Row, error)

	// Put unconditionally upserts the row. Administrative paths only; the
	// limiters never write without a condition.
	Put(ctx context.Context, table string, row Row) error

	// PutIf upserts the row only while cond holds against the stored state,
	// returning ErrConditionFailed otherwise.
	PutIf(ctx context.Context, table string, row Row, cond Condition) error

	// Delete removes the row at key. Deleting an absent row is not an error.
	Delete(ctx context.Context, table string, key Key) error

	// Query returns all live rows sharing the partition key, ordered by
	// range key.
	Query(ctx context.Context, table string, hash string) ([]Row, error)

	// QueryIndex returns all live rows whose indexed attribute equals value.
	// The index must have been declared to the backend.
	QueryIndex(ctx context.Context, table, index, value string) ([]Row, error)

	// Close releases backend resources.
	Close() error
}

// Purger is implemented by backends without native row expiry; the Sweeper
// calls it to physically remove expired rows.
type Purger interface {
	PurgeExpired(ctx context.Context, table string) (int, error)
}

// UnknownIndexError is returned by QueryIndex when the named secondary
// index has not been declared on the table.
type UnknownIndexError struct {
	Table string
	Index string
}

// Error implements the error interface.
func (e *UnknownIndexError) Error() string {
	return fmt.Sprintf("unknown index %q on table %q", e.Index, e.Table)
}

// attrEqual compares two attribute values, normalizing numeric types so a
// value that round-tripped through JSON still matches the value written.
func attrEqual(a, b any) bool {
	if af, ok := toFloat64(a); ok {
		bf, ok := toFloat64(b)
		return ok && af == bf
	}
	return a == b
}

// toFloat64 converts any numeric attribute representation to float64.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
