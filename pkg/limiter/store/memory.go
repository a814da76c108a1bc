package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory implements Store using in-process maps. It is the default backend
// for tests and single-process deployments; all data is lost when the
// process exits.
//
// Memory is thread-safe using a sync.RWMutex. Conditional writes hold the
// write lock across the read-compare-write, so PutIf is atomic with respect
// to all other operations.
type Memory struct {
	// tables maps table name to rows keyed by their composite key.
	tables map[string]map[string]Row

	// indexes maps table name to declared secondary indexes by index name.
	indexes map[string]map[string]Index

	// now returns the current time; injectable for expiry tests.
	now func() time.Time

	mu sync.RWMutex
}

// MemoryConfig configures the memory backend.
type MemoryConfig struct {
	// Indexes declares the secondary indexes the backend serves.
	Indexes []Index

	// NowFunc supplies the current time for expiry filtering.
	// Default: time.Now.
	NowFunc func() time.Time
}

// NewMemory creates a memory backend with no secondary indexes.
func NewMemory() *Memory {
	return NewMemoryWithConfig(MemoryConfig{})
}

// NewMemoryWithConfig creates a memory backend with custom configuration.
func NewMemoryWithConfig(cfg MemoryConfig) *Memory {
	if cfg.NowFunc == nil {
		cfg.NowFunc = time.Now
	}

	m := &Memory{
		tables:  make(map[string]map[string]Row),
		indexes: make(map[string]map[string]Index),
		now:     cfg.NowFunc,
	}
	for _, idx := range cfg.Indexes {
		m.declareIndex(idx)
	}
	return m
}

// DeclareIndex registers a secondary index after construction.
func (m *Memory) DeclareIndex(idx Index) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.declareIndex(idx)
}

func (m *Memory) declareIndex(idx Index) {
	byName, ok := m.indexes[idx.Table]
	if !ok {
		byName = make(map[string]Index)
		m.indexes[idx.Table] = byName
	}
	byName[idx.Name] = idx
}

// Get returns the live row at key.
func (m *Memory) Get(ctx context.Context, table string, key Key) (Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.liveRowLocked(table, key)
	if !ok {
		return Row{}, ErrNotFound
	}
	return row.Clone(), nil
}

// Put unconditionally upserts the row.
func (m *Memory) Put(ctx context.Context, table string, row Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.putLocked(table, row)
	return nil
}

// PutIf upserts the row only while cond holds against the stored state.
func (m *Memory) PutIf(ctx context.Context, table string, row Row, cond Condition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.liveRowLocked(table, row.Key)
	if !cond.holds(current.Attrs, exists) {
		return ErrConditionFailed
	}
	m.putLocked(table, row)
	return nil
}

// Delete removes the row at key. Absent rows are not an error.
func (m *Memory) Delete(ctx context.Context, table string, key Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rows, ok := m.tables[table]; ok {
		delete(rows, compositeKey(key))
	}
	return nil
}

// Query returns all live rows sharing the partition key, ordered by range
// key.
func (m *Memory) Query(ctx context.Context, table string, hash string) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	var out []Row
	for _, row := range m.tables[table] {
		if row.Key.Hash == hash && !row.Expired(now) {
			out = append(out, row.Clone())
		}
	}
	sortRows(out)
	return out, nil
}

// QueryIndex returns all live rows whose indexed attribute equals value.
func (m *Memory) QueryIndex(ctx context.Context, table, index, value string) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx, ok := m.indexes[table][index]
	if !ok {
		return nil, &UnknownIndexError{Table: table, Index: index}
	}

	now := m.now()
	var out []Row
	for _, row := range m.tables[table] {
		if row.Expired(now) {
			continue
		}
		if s, ok := row.Attrs.String(idx.Attribute); ok && s == value {
			out = append(out, row.Clone())
		}
	}
	sortRows(out)
	return out, nil
}

// PurgeExpired physically removes expired rows from the table and returns
// the number removed.
func (m *Memory) PurgeExpired(ctx context.Context, table string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	purged := 0
	for key, row := range m.tables[table] {
		if row.Expired(now) {
			delete(m.tables[table], key)
			purged++
		}
	}
	return purged, nil
}

// Close releases backend resources. The memory backend holds none.
func (m *Memory) Close() error {
	return nil
}

// Size returns the number of live rows in a table. Useful for tests and
// monitoring.
func (m *Memory) Size(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()
	n := 0
	for _, row := range m.tables[table] {
		if !row.Expired(now) {
			n++
		}
	}
	return n
}

// liveRowLocked returns the unexpired row at key. Caller must hold a lock.
func (m *Memory) liveRowLocked(table string, key Key) (Row, bool) {
	row, ok := m.tables[table][compositeKey(key)]
	if !ok || row.Expired(m.now()) {
		return Row{}, false
	}
	return row, true
}

// putLocked clones the row before storing it, so callers cannot mutate
// stored state through a retained map. Caller must hold the write lock.
func (m *Memory) putLocked(table string, row Row) {
	rows, ok := m.tables[table]
	if !ok {
		rows = make(map[string]Row)
		m.tables[table] = rows
	}
	rows[compositeKey(row.Key)] = row.Clone()
}

// compositeKey joins the key parts with an unprintable separator so user
// data containing ":" cannot collide.
func compositeKey(k Key) string {
	return k.Hash + keySeparator + k.Range
}

func sortRows(rows []Row) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Key.Hash != rows[j].Key.Hash {
			return rows[i].Key.Hash < rows[j].Key.Hash
		}
		return rows[i].Key.Range < rows[j].Key.Range
	})
}
