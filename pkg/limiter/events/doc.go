// Package events matches inbound resource lifecycle events to outstanding
// non-fungible tokens and removes them, returning capacity to the limiter.
//
// # Overview
//
// Non-fungible tokens are bound to real resources (a cluster, a job) whose
// lifetimes are tracked by an external event source. When a resource reaches
// a terminal state the source emits an event; this package extracts the
// resource id from the event and deletes the matching token rows, so the
// next Reserve call sees the freed capacity.
//
// A Processor declares which events it handles: a source tag, a dotted path
// to the resource id, and an optional predicate chain that filters events
// before the store is touched. The Manager fans each event out to every
// processor registered for its source and performs the removal.
//
// # Basic Usage
//
//	manager, err := events.NewManager(events.ManagerConfig{
//	    Store: backend,
//	    Processors: []events.Processor{
//	        events.EMRClusterTerminated(),
//	        events.BatchJobCompleted(),
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	removed, err := manager.Process(ctx, event)
//
// # Delivery Semantics
//
// Processing is idempotent per event: removing an already-removed token is a
// no-op, so at-least-once delivery from the upstream source is safe. Events
// for resources that were never tokenized (out-of-scope or duplicate
// notifications) are likewise no-ops, not errors.
//
// # Thread Safety
//
// The Manager is safe for concurrent use. Processors and Predicates are
// immutable values and can be shared freely.
package events
