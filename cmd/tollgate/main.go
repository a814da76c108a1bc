// Tollgate is a distributed per-account rate limiter over shared storage.
//
// It enforces two kinds of limits:
//   - Fungible: interchangeable capacity (API calls, job slots) via a
//     token bucket with lazy refill
//   - Non-fungible: named holdings (cluster ids, instance ids) via counted
//     reservations that are bound to a resource id and released by
//     lifecycle events
//
// Usage:
//
//	# Sync a limits file into the limit table
//	tollgate limits load --file limits.yaml
//
//	# Keep the limit table in sync while the file changes
//	tollgate limits load --file limits.yaml --watch
//
//	# List the limit rows owned by a service
//	tollgate limits list --service data-pipeline
//
//	# Purge expired rows once
//	tollgate sweep
//
//	# Replay recorded lifecycle events against the token table
//	tollgate events replay --file events.jsonl
//
//	# Measure admission throughput against the configured store
//	tollgate bench --resource api-calls --requests 5000
//
//	# Show version information
//	tollgate version
package main

func main() {
	Execute()
}
