package loader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"tollgate-hq/tollgate/pkg/limiter"
	"tollgate-hq/tollgate/pkg/limiter/store"
)

// Document is the on-disk limits declaration for one service.
type Document struct {
	// Service owns every limit in the document. Required.
	Service string `yaml:"service"`

	// Limits are the declared rows.
	Limits []Entry `yaml:"limits"`
}

// Entry declares the limit for one (resource, account) pair.
type Entry struct {
	Resource string `yaml:"resource"`
	Account  string `yaml:"account"`

	// Limit is the capacity. Zero is a valid administrative state: it
	// denies the account all requests for the resource.
	Limit int64 `yaml:"limit"`

	// WindowSec is the fungible refill window. Zero omits the attribute,
	// leaving the window to the limiter's configured default.
	WindowSec int64 `yaml:"windowSec"`
}

// Result summarizes one reconciliation pass.
type Result struct {
	Service   string
	Created   int
	Updated   int
	Deleted   int
	Unchanged int
}

// Loader reconciles a YAML limits document into the limit table.
type Loader struct {
	store  store.Store
	path   string
	table  string
	index  string
	logger *slog.Logger

	mu   sync.Mutex
	last *Result
}

// Config configures a Loader.
type Config struct {
	// Store is the backing store. Required. Its service index must be
	// declared on backends that need it.
	Store store.Store

	// Path is the YAML limits file. Required.
	Path string

	// Table is the limit table. Default: limiter.DefaultLimitTable.
	Table string

	// Index enumerates a service's rows.
	// Default: limiter.DefaultServiceIndex.
	Index string

	// Logger receives reconciliation logs. Default: slog.Default.
	Logger *slog.Logger
}

// New creates a limit loader.
func New(cfg Config) (*Loader, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}
	if cfg.Table == "" {
		cfg.Table = limiter.DefaultLimitTable
	}
	if cfg.Index == "" {
		cfg.Index = limiter.DefaultServiceIndex
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Loader{
		store:  cfg.Store,
		path:   cfg.Path,
		table:  cfg.Table,
		index:  cfg.Index,
		logger: cfg.Logger.With("component", "loader", "path", cfg.Path),
	}, nil
}

// Path returns the file the loader reads.
func (l *Loader) Path() string {
	return l.path
}

// Load reads and validates the document without touching the store.
func (l *Loader) Load() (*Document, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("reading limits file: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing limits file %s: %w", l.path, err)
	}

	if err := doc.validate(); err != nil {
		return nil, fmt.Errorf("invalid limits file %s: %w", l.path, err)
	}
	return &doc, nil
}

func (d *Document) validate() error {
	if d.Service == "" {
		return fmt.Errorf("service cannot be empty")
	}

	seen := make(map[store.Key]struct{}, len(d.Limits))
	for i, entry := range d.Limits {
		if entry.Resource == "" {
			return fmt.Errorf("limits[%d]: resource cannot be empty", i)
		}
		if entry.Account == "" {
			return fmt.Errorf("limits[%d]: account cannot be empty", i)
		}
		if entry.Limit < 0 {
			return fmt.Errorf("limits[%d]: limit cannot be negative", i)
		}
		if entry.WindowSec < 0 {
			return fmt.Errorf("limits[%d]: windowSec cannot be negative", i)
		}

		key := store.Key{Hash: entry.Resource, Range: entry.Account}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("limits[%d]: duplicate entry for %s:%s", i, entry.Resource, entry.Account)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Sync reconciles once per Loader: the first call performs the pass, later
// calls return the previous result without re-reading the file. Use Resync
// (or a Watcher) to pick up changes.
func (l *Loader) Sync(ctx context.Context) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.last != nil {
		return l.last, nil
	}
	return l.syncLocked(ctx)
}

// Resync reconciles unconditionally.
func (l *Loader) Resync(ctx context.Context) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.syncLocked(ctx)
}

func (l *Loader) syncLocked(ctx context.Context) (*Result, error) {
	doc, err := l.Load()
	if err != nil {
		return nil, err
	}

	desired := make(map[store.Key]Entry, len(doc.Limits))
	for _, entry := range doc.Limits {
		desired[store.Key{Hash: entry.Resource, Range: entry.Account}] = entry
	}

	current, err := l.store.QueryIndex(ctx, l.table, l.index, doc.Service)
	if err != nil {
		return nil, fmt.Errorf("querying limit rows for service %s: %w", doc.Service, err)
	}

	result := &Result{Service: doc.Service}

	for _, row := range current {
		entry, keep := desired[row.Key]
		if !keep {
			if err := l.store.Delete(ctx, l.table, row.Key); err != nil {
				return nil, fmt.Errorf("deleting stale limit %s:%s: %w", row.Key.Hash, row.Key.Range, err)
			}
			result.Deleted++
			continue
		}

		delete(desired, row.Key)
		if rowMatches(row, entry) {
			result.Unchanged++
			continue
		}

		if err := l.put(ctx, doc.Service, entry); err != nil {
			return nil, err
		}
		result.Updated++
	}

	for _, entry := range desired {
		if err := l.put(ctx, doc.Service, entry); err != nil {
			return nil, err
		}
		result.Created++
	}

	l.logger.Info("limits synced",
		"service", result.Service,
		"created", result.Created,
		"updated", result.Updated,
		"deleted", result.Deleted,
		"unchanged", result.Unchanged,
	)

	l.last = result
	return result, nil
}

func (l *Loader) put(ctx context.Context, service string, entry Entry) error {
	attrs := store.Attributes{
		limiter.AttrLimit:       entry.Limit,
		limiter.AttrServiceName: service,
	}
	if entry.WindowSec > 0 {
		attrs[limiter.AttrWindowSec] = entry.WindowSec
	}

	row := store.Row{
		Key:   store.Key{Hash: entry.Resource, Range: entry.Account},
		Attrs: attrs,
	}
	if err := l.store.Put(ctx, l.table, row); err != nil {
		return fmt.Errorf("writing limit %s:%s: %w", entry.Resource, entry.Account, err)
	}
	return nil
}

// rowMatches reports whether a stored row already carries the entry's
// values.
func rowMatches(row store.Row, entry Entry) bool {
	limit, ok := row.Attrs.Int64(limiter.AttrLimit)
	if !ok || limit != entry.Limit {
		return false
	}

	window, ok := row.Attrs.Int64(limiter.AttrWindowSec)
	if entry.WindowSec > 0 {
		return ok && window == entry.WindowSec
	}
	return !ok
}
