package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLite implements Store using SQLite for persistence. This backend
// provides durable storage and is suitable for single-instance deployments
// where limiter state must survive restarts.
//
// SQLite uses a write-ahead log (WAL) for better concurrent performance and
// automatic checkpointing to balance write performance with durability.
// Conditional writes serialize on an in-process mutex, so the atomicity of
// PutIf holds for a single process per database file.
type SQLite struct {
	db               *sql.DB
	dbPath           string
	snapshotInterval time.Duration
	indexes          map[string]map[string]Index
	now              func() time.Time
	done             chan struct{}
	mu               sync.RWMutex
	closeOnce        sync.Once

	// preparedStatements contains pre-compiled SQL statements for performance
	getStmt        *sql.Stmt
	putStmt        *sql.Stmt
	deleteStmt     *sql.Stmt
	queryStmt      *sql.Stmt
	queryIndexStmt *sql.Stmt
	purgeStmt      *sql.Stmt
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// Indexes declares the secondary indexes the backend serves.
	Indexes []Index

	// SnapshotInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	SnapshotInterval time.Duration

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// NowFunc supplies the current time for expiry filtering.
	// Default: time.Now.
	NowFunc func() time.Time
}

// NewSQLite creates a new SQLite storage backend with default settings.
func NewSQLite(dbPath string) (*SQLite, error) {
	return NewSQLiteWithConfig(SQLiteConfig{
		DBPath:           dbPath,
		SnapshotInterval: 5 * time.Minute,
		BusyTimeout:      5 * time.Second,
	})
}

// NewSQLiteWithConfig creates a new SQLite backend with custom configuration.
func NewSQLiteWithConfig(cfg SQLiteConfig) (*SQLite, error) {
	// Apply defaults
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.SnapshotInterval == 0 {
		cfg.SnapshotInterval = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.NowFunc == nil {
		cfg.NowFunc = time.Now
	}

	// Open database with WAL mode and busy timeout
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite only supports single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	backend := &SQLite{
		db:               db,
		dbPath:           cfg.DBPath,
		snapshotInterval: cfg.SnapshotInterval,
		indexes:          make(map[string]map[string]Index),
		now:              cfg.NowFunc,
		done:             make(chan struct{}),
	}
	for _, idx := range cfg.Indexes {
		byName, ok := backend.indexes[idx.Table]
		if !ok {
			byName = make(map[string]Index)
			backend.indexes[idx.Table] = byName
		}
		byName[idx.Name] = idx
	}

	// Initialize schema
	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// Prepare statements
	if err := backend.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	// Start background checkpoint goroutine
	go backend.checkpointLoop()

	return backend, nil
}

// initSchema creates the database schema if it doesn't exist.
func (s *SQLite) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rows (
		tbl TEXT NOT NULL,
		hk TEXT NOT NULL,
		rk TEXT NOT NULL,
		attrs TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		PRIMARY KEY (tbl, hk, rk)
	);

	CREATE INDEX IF NOT EXISTS idx_rows_expires ON rows(tbl, expires_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLite) prepareStatements() error {
	var err error

	s.getStmt, err = s.db.Prepare(`
		SELECT attrs, expires_at
		FROM rows
		WHERE tbl = ? AND hk = ? AND rk = ? AND (expires_at = 0 OR expires_at > ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare get statement: %w", err)
	}

	s.putStmt, err = s.db.Prepare(`
		INSERT INTO rows (tbl, hk, rk, attrs, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (tbl, hk, rk) DO UPDATE SET
			attrs = excluded.attrs,
			expires_at = excluded.expires_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare put statement: %w", err)
	}

	s.deleteStmt, err = s.db.Prepare(`
		DELETE FROM rows
		WHERE tbl = ? AND hk = ? AND rk = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	s.queryStmt, err = s.db.Prepare(`
		SELECT hk, rk, attrs, expires_at
		FROM rows
		WHERE tbl = ? AND hk = ? AND (expires_at = 0 OR expires_at > ?)
		ORDER BY rk
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare query statement: %w", err)
	}

	s.queryIndexStmt, err = s.db.Prepare(`
		SELECT hk, rk, attrs, expires_at
		FROM rows
		WHERE tbl = ? AND json_extract(attrs, ?) = ? AND (expires_at = 0 OR expires_at > ?)
		ORDER BY hk, rk
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare query index statement: %w", err)
	}

	s.purgeStmt, err = s.db.Prepare(`
		DELETE FROM rows
		WHERE tbl = ? AND expires_at > 0 AND expires_at <= ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare purge statement: %w", err)
	}

	return nil
}

// Get returns the live row at key.
func (s *SQLite) Get(ctx context.Context, table string, key Key) (Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getLocked(ctx, table, key)
}

func (s *SQLite) getLocked(ctx context.Context, table string, key Key) (Row, error) {
	var (
		attrsJSON string
		expiresAt int64
	)

	err := s.getStmt.QueryRowContext(ctx, table, key.Hash, key.Range, s.now().UnixMilli()).Scan(
		&attrsJSON,
		&expiresAt,
	)
	if err == sql.ErrNoRows {
		return Row{}, ErrNotFound
	}
	if err != nil {
		return Row{}, fmt.Errorf("failed to get row: %w", err)
	}

	return decodeRow(key.Hash, key.Range, attrsJSON, expiresAt)
}

// Put unconditionally upserts the row.
func (s *SQLite) Put(ctx context.Context, table string, row Row) error {
	attrsJSON, expiresAt, err := encodeRow(row)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.putStmt.ExecContext(ctx, table, row.Key.Hash, row.Key.Range, attrsJSON, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to put row: %w", err)
	}

	return nil
}

// PutIf upserts the row only while cond holds against the stored state. The
// read-compare-write runs under the write lock, so concurrent conditional
// writes from this process are serialized.
func (s *SQLite) PutIf(ctx context.Context, table string, row Row, cond Condition) error {
	attrsJSON, expiresAt, err := encodeRow(row)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.getLocked(ctx, table, row.Key)
	exists := true
	if err == ErrNotFound {
		exists = false
	} else if err != nil {
		return err
	}

	if !cond.holds(current.Attrs, exists) {
		return ErrConditionFailed
	}

	_, err = s.putStmt.ExecContext(ctx, table, row.Key.Hash, row.Key.Range, attrsJSON, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to put row: %w", err)
	}

	return nil
}

// Delete removes the row at key. Absent rows are not an error.
func (s *SQLite) Delete(ctx context.Context, table string, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.deleteStmt.ExecContext(ctx, table, key.Hash, key.Range)
	if err != nil {
		return fmt.Errorf("failed to delete row: %w", err)
	}

	return nil
}

// Query returns all live rows sharing the partition key, ordered by range
// key.
func (s *SQLite) Query(ctx context.Context, table string, hash string) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.queryStmt.QueryContext(ctx, table, hash, s.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// QueryIndex returns all live rows whose indexed attribute equals value.
func (s *SQLite) QueryIndex(ctx context.Context, table, index, value string) ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.indexes[table][index]
	if !ok {
		return nil, &UnknownIndexError{Table: table, Index: index}
	}

	rows, err := s.queryIndexStmt.QueryContext(ctx, table, "$."+idx.Attribute, value, s.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// PurgeExpired physically removes expired rows from the table and returns
// the number removed.
func (s *SQLite) PurgeExpired(ctx context.Context, table string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.purgeStmt.ExecContext(ctx, table, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired rows: %w", err)
	}

	purged, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(purged), nil
}

// Close releases any resources held by the backend.
// Close is idempotent and safe to call multiple times.
func (s *SQLite) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		// Signal checkpoint goroutine to stop
		close(s.done)

		// Close prepared statements
		for _, stmt := range []*sql.Stmt{
			s.getStmt, s.putStmt, s.deleteStmt, s.queryStmt, s.queryIndexStmt, s.purgeStmt,
		} {
			if stmt != nil {
				stmt.Close()
			}
		}

		// Close database
		if s.db != nil {
			// Run final checkpoint
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}

// checkpointLoop runs periodic WAL checkpoints.
func (s *SQLite) checkpointLoop() {
	ticker := time.NewTicker(s.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Run checkpoint
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}

// encodeRow serializes row attributes to JSON and the expiry to unix
// milliseconds, with zero meaning no expiry.
func encodeRow(row Row) (string, int64, error) {
	attrs := row.Attrs
	if attrs == nil {
		attrs = Attributes{}
	}
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return "", 0, fmt.Errorf("failed to marshal attributes: %w", err)
	}

	var expiresAt int64
	if !row.ExpiresAt.IsZero() {
		expiresAt = row.ExpiresAt.UnixMilli()
	}
	return string(attrsJSON), expiresAt, nil
}

func decodeRow(hash, rng, attrsJSON string, expiresAt int64) (Row, error) {
	row := Row{Key: Key{Hash: hash, Range: rng}}
	if err := json.Unmarshal([]byte(attrsJSON), &row.Attrs); err != nil {
		return Row{}, fmt.Errorf("failed to unmarshal attributes: %w", err)
	}
	if expiresAt != 0 {
		row.ExpiresAt = time.UnixMilli(expiresAt)
	}
	return row, nil
}

func scanRows(rows *sql.Rows) ([]Row, error) {
	var out []Row
	for rows.Next() {
		var (
			hash      string
			rng       string
			attrsJSON string
			expiresAt int64
		)

		if err := rows.Scan(&hash, &rng, &attrsJSON, &expiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row, err := decodeRow(hash, rng, attrsJSON, expiresAt)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return out, nil
}
