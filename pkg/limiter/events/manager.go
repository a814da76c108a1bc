package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"tollgate-hq/tollgate/pkg/limiter"
	"tollgate-hq/tollgate/pkg/limiter/store"
)

// MalformedEventError indicates an event that cannot be routed at all, such
// as one missing its source discriminator.
type MalformedEventError struct {
	Field string
}

// Error returns the error message.
func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed event: field %q missing or not a string", e.Field)
}

// Manager routes inbound lifecycle events to the processors registered for
// their source and removes the matched tokens from the store.
type Manager struct {
	store store.Store
	table string
	index string

	mu         sync.RWMutex
	processors []Processor

	logger  *slog.Logger
	metrics *Metrics
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Store is the backing store holding non-fungible tokens. Required.
	// Its resource-id index must be declared on backends that need it.
	Store store.Store

	// Table is the token table. Default: limiter.DefaultNonFungibleTable.
	Table string

	// Index maps resource ids to token rows.
	// Default: limiter.DefaultResourceIndex.
	Index string

	// Processors to register at construction. More can be added later with
	// Register.
	Processors []Processor

	// Logger receives per-event logs. Default: slog.Default.
	Logger *slog.Logger

	// Metrics records processing outcomes. Optional.
	Metrics *Metrics
}

// NewManager creates an event processor manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if cfg.Table == "" {
		cfg.Table = limiter.DefaultNonFungibleTable
	}
	if cfg.Index == "" {
		cfg.Index = limiter.DefaultResourceIndex
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Manager{
		store:      cfg.Store,
		table:      cfg.Table,
		index:      cfg.Index,
		processors: append([]Processor(nil), cfg.Processors...),
		logger:     cfg.Logger.With("component", "events.manager"),
		metrics:    cfg.Metrics,
	}, nil
}

// Register adds a processor. Processors sharing a source all run against
// each event from that source.
func (m *Manager) Register(p Processor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processors = append(m.processors, p)
}

// Process routes one event and returns the number of tokens removed.
//
// An event without a string source field fails with MalformedEventError. An
// event whose source has no registered processor, whose predicates reject
// it, or whose resource id matches no stored token is a no-op.
func (m *Manager) Process(ctx context.Context, e Event) (int, error) {
	source, ok := e.Source()
	if !ok {
		m.metrics.RecordMalformed()
		return 0, &MalformedEventError{Field: SourceField}
	}

	removed := 0
	for _, p := range m.matching(source) {
		id, ok := p.Match(e)
		if !ok {
			continue
		}

		n, err := m.removeTokens(ctx, id)
		removed += n
		if err != nil {
			m.metrics.RecordProcessed(source, OutcomeError)
			return removed, err
		}

		if n > 0 {
			m.logger.Info("removed tokens for resource",
				"source", source,
				"resource_id", id,
				"removed", n,
			)
			m.metrics.RecordRemoved(source, n)
		}
	}

	m.metrics.RecordProcessed(source, OutcomeProcessed)
	return removed, nil
}

// ProcessBatch routes a batch of events. Events are isolated: one event's
// failure never aborts the rest. Removed counts are summed and errors are
// joined.
func (m *Manager) ProcessBatch(ctx context.Context, events []Event) (int, error) {
	total := 0
	var errs []error

	for i, e := range events {
		n, err := m.Process(ctx, e)
		total += n
		if err != nil {
			errs = append(errs, fmt.Errorf("event %d: %w", i, err))
		}
	}

	return total, errors.Join(errs...)
}

// matching returns the processors registered for source.
func (m *Manager) matching(source string) []Processor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []Processor
	for _, p := range m.processors {
		if p.Source == source {
			matched = append(matched, p)
		}
	}
	return matched
}

// removeTokens deletes every token row whose resourceId matches id. An id
// with no rows removes nothing, which keeps reprocessing idempotent.
func (m *Manager) removeTokens(ctx context.Context, id string) (int, error) {
	rows, err := m.store.QueryIndex(ctx, m.table, m.index, id)
	if err != nil {
		return 0, fmt.Errorf("querying tokens for resource %s: %w", id, err)
	}

	removed := 0
	for _, row := range rows {
		if err := m.store.Delete(ctx, m.table, row.Key); err != nil {
			return removed, fmt.Errorf("deleting token %s/%s: %w", row.Key.Hash, row.Key.Range, err)
		}
		removed++
	}
	return removed, nil
}
