// Package loader synchronizes administratively managed limit rows from a
// YAML document into the limit table.
//
// # Overview
//
// Limits are owned by the service operating a resource and declared in a
// versioned YAML file:
//
//	service: fleet
//	limits:
//	  - resource: emr-clusters
//	    account: acct-1
//	    limit: 5
//	    windowSec: 600
//	  - resource: gpu-large
//	    account: acct-2
//	    limit: 20
//
// Sync reconciles the limit table with the document: rows the document no
// longer declares are deleted, new or changed rows are written, unchanged
// rows are left untouched. Reconciliation is scoped to the document's
// service through the service index, so one service's sync never touches
// another's rows.
//
// A Watcher re-syncs whenever the file changes, debouncing editor save
// storms.
//
// # Thread Safety
//
// Loader and Watcher are safe for concurrent use.
package loader
