// Package store defines the storage port shared by every limiter component
// and provides its backends.
//
// # Overview
//
// All limiting decisions are made against a remote table of rows addressed
// by a (hash, range) key. The Store interface is deliberately small: point
// reads, unconditional and conditional writes, idempotent deletes, and two
// query shapes (by partition key and by secondary index). Conditional writes
// are the only synchronization primitive in the system; every backend must
// apply PutIf atomically with respect to concurrent writers of the same row.
//
// Three backends are provided:
//
//   - Memory: mutex-guarded map, the default for tests and single-process use
//   - SQLite: durable single-node storage via modernc.org/sqlite
//   - Redis: shared remote storage, conditional operations via Lua scripts
//
// # Row expiry
//
// Rows may carry an absolute expiry (Row.ExpiresAt). Expired rows are never
// returned by Get, Query, or QueryIndex. The Redis backend expires rows
// natively; Memory and SQLite only filter reads and rely on a Sweeper to
// physically remove expired rows.
//
// # Thread Safety
//
// All backends are safe for concurrent use from multiple goroutines. The
// conditional-write guarantee additionally holds across processes for the
// SQLite (single file) and Redis backends.
package store
