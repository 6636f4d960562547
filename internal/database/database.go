package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"music-library/internal/logging"
	"music-library/internal/metrics"
	"music-library/internal/replica"
	"music-library/internal/tokenize"
	"music-library/internal/tree"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// ErrNoParentID is returned when a node is registered before its parent.
var ErrNoParentID = errors.New("parent has no identifier")

// Querier is satisfied by both *sql.DB and *sql.Tx, so read helpers can run
// inside a sync transaction and see its uncommitted rows.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Options controls how the database is opened. A nil *Options uses defaults.
type Options struct {
	// BusyTimeout is how long a connection waits on a locked database.
	BusyTimeout time.Duration
	// MaxOpenConns caps the connection pool.
	MaxOpenConns int
	// SearchTermLimit caps the candidates fetched for a single query term.
	SearchTermLimit int
	// Tokenizer splits filenames into dictionary words.
	Tokenizer *tokenize.Tokenizer
}

func (o *Options) withDefaults() Options {
	out := Options{
		BusyTimeout:     5 * time.Second,
		MaxOpenConns:    25,
		SearchTermLimit: DefaultSearchTermLimit,
		Tokenizer:       tokenize.New(),
	}
	if o == nil {
		return out
	}
	if o.BusyTimeout > 0 {
		out.BusyTimeout = o.BusyTimeout
	}
	if o.MaxOpenConns > 0 {
		out.MaxOpenConns = o.MaxOpenConns
	}
	if o.SearchTermLimit > 0 {
		out.SearchTermLimit = o.SearchTermLimit
	}
	if o.Tokenizer != nil {
		out.Tokenizer = o.Tokenizer
	}
	return out
}

// Database manages the files, dictionary and search tables.
type Database struct {
	db        *sql.DB
	dbPath    string
	tokenizer *tokenize.Tokenizer
	termLimit int

	txMu    sync.Mutex
	txStart map[*sql.Tx]time.Time

	statsMu sync.RWMutex
	stats   Stats
}

// New creates a new Database instance.
// dbPath is the full path to the database file and its parent directory must
// already exist and be writable.
func New(ctx context.Context, dbPath string, opts *Options) (*Database, error) {
	o := opts.withDefaults()
	logging.Info("Database path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout keeps readers from failing while a sync batch holds the lock
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=%d",
		dbPath, o.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(o.MaxOpenConns)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:        db,
		dbPath:    dbPath,
		tokenizer: o.Tokenizer,
		termLimit: o.SearchTermLimit,
		txStart:   make(map[*sql.Tx]time.Time),
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { recordQuery("initialize_schema", start, err) }()

	// AUTOINCREMENT keeps identifiers from being reused after deletes, so ids
	// handed out to clients stay meaningful across restarts.
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		parent INTEGER NOT NULL,
		filename TEXT NOT NULL,
		filetype TEXT NOT NULL DEFAULT '',
		isdir INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_files_parent ON files(parent);
	CREATE INDEX IF NOT EXISTS idx_files_parent_filename ON files(parent, filename);

	CREATE TABLE IF NOT EXISTS dictionary (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		word TEXT NOT NULL UNIQUE,
		occurrences INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS search (
		drowid INTEGER NOT NULL,
		frowid INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_search_drowid ON search(drowid);
	CREATE INDEX IF NOT EXISTS idx_search_frowid ON search(frowid);
	`

	_, err = d.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// DB exposes the connection pool as a Querier for reads outside a sync.
func (d *Database) DB() Querier {
	return d.db
}

// BeginBatch starts a transaction for batch operations.
// The caller is responsible for calling EndBatch when done.
func (d *Database) BeginBatch(ctx context.Context) (*sql.Tx, error) {
	start := time.Now()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	d.txMu.Lock()
	d.txStart[tx] = start
	d.txMu.Unlock()
	return tx, nil
}

// EndBatch commits tx when err is nil and rolls it back otherwise.
func (d *Database) EndBatch(tx *sql.Tx, err error) error {
	d.txMu.Lock()
	start, ok := d.txStart[tx]
	delete(d.txStart, tx)
	d.txMu.Unlock()
	if !ok {
		start = time.Now()
	}
	duration := time.Since(start).Seconds()

	if err != nil {
		metrics.DBTransactionDuration.WithLabelValues("rollback").Observe(duration)
		rbErr := tx.Rollback()
		if rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
		}
		return err
	}

	metrics.DBTransactionDuration.WithLabelValues("commit").Observe(duration)
	return tx.Commit()
}

const fileColumns = `id, parent, filename, filetype, isdir`

func scanFile(parent *tree.File, scanner interface{ Scan(...any) error }) (*tree.File, int64, error) {
	var (
		id, parentID       int64
		filename, filetype string
		isDir              bool
	)
	if err := scanner.Scan(&id, &parentID, &filename, &filetype, &isDir); err != nil {
		return nil, 0, err
	}
	return tree.FromRow(parent, id, filename, filetype, isDir), parentID, nil
}

// Children returns the stored children of parent ordered by basename.
func (d *Database) Children(ctx context.Context, q Querier, parent *tree.File) (children []*tree.File, err error) {
	start := time.Now()
	defer func() { recordQuery("children", start, err) }()

	if !parent.Persisted() && !parent.IsRoot() {
		return nil, nil
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE parent = ? ORDER BY filename || filetype`, parent.ID)
	if err != nil {
		return nil, fmt.Errorf("children query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		f, _, scanErr := scanFile(parent, rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan failed: %w", scanErr)
		}
		children = append(children, f)
	}
	return children, rows.Err()
}

// Lookup finds the stored child of parent with the given basename. It returns
// nil without error when no such row exists.
func (d *Database) Lookup(ctx context.Context, q Querier, parent *tree.File, basename string) (f *tree.File, err error) {
	start := time.Now()
	defer func() { recordQuery("lookup", start, err) }()

	if !parent.Persisted() && !parent.IsRoot() {
		return nil, nil
	}

	// a file and a directory with the same basename split differently
	name, ext := tree.SplitName(basename, false)
	row := q.QueryRowContext(ctx, `
		SELECT `+fileColumns+` FROM files
		WHERE parent = ? AND (
			(filename = ? AND filetype = ? AND isdir = 0) OR
			(filename = ? AND filetype = '' AND isdir = 1)
		)
		LIMIT 1`,
		parent.ID, name, ext, basename)

	f, _, err = scanFile(parent, row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return f, err
}

// FindByPath resolves a relative path one segment at a time. The empty path
// is the root. It returns nil without error when a segment is not stored.
func (d *Database) FindByPath(ctx context.Context, q Querier, relpath string) (f *tree.File, err error) {
	start := time.Now()
	defer func() { recordQuery("find_by_path", start, err) }()

	current := tree.NewRoot()
	cleaned := filepath.Clean("/" + relpath)
	if cleaned == "/" {
		return current, nil
	}

	for _, part := range strings.Split(strings.TrimPrefix(cleaned, "/"), "/") {
		next, lookupErr := d.Lookup(ctx, q, current, part)
		if lookupErr != nil || next == nil {
			return nil, lookupErr
		}
		current = next
	}
	return current, nil
}

// RecountOccurrences recomputes dictionary.occurrences from the postings.
// The counts only bias search ordering and are refreshed once per sync.
func (d *Database) RecountOccurrences(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { recordQuery("recount_occurrences", start, err) }()

	_, err = d.db.ExecContext(ctx, `
		UPDATE dictionary
		SET occurrences = (SELECT COUNT(*) FROM search WHERE search.drowid = dictionary.id)`)
	return err
}

// Stats holds row counts of the library tables.
type Stats struct {
	Files       int       `json:"files"`
	Directories int       `json:"directories"`
	Words       int       `json:"words"`
	Postings    int       `json:"postings"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CalculateStats counts the rows of every table and caches the result.
func (d *Database) CalculateStats(ctx context.Context) (stats Stats, err error) {
	start := time.Now()
	defer func() { recordQuery("stats", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM files WHERE isdir = 0),
			(SELECT COUNT(*) FROM files WHERE isdir = 1),
			(SELECT COUNT(*) FROM dictionary),
			(SELECT COUNT(*) FROM search)`,
	).Scan(&stats.Files, &stats.Directories, &stats.Words, &stats.Postings)
	if err != nil {
		return Stats{}, err
	}
	stats.UpdatedAt = time.Now()

	d.statsMu.Lock()
	d.stats = stats
	d.statsMu.Unlock()
	return stats, nil
}

// GetStats returns the statistics cached by the last CalculateStats.
func (d *Database) GetStats() Stats {
	d.statsMu.RLock()
	defer d.statsMu.RUnlock()
	return d.stats
}

// LibraryStats adapts the cached statistics for the metrics collector and
// refreshes the connection gauge.
func (d *Database) LibraryStats() metrics.Stats {
	d.UpdateDBMetrics()
	s := d.GetStats()
	return metrics.Stats{
		Files:       s.Files,
		Directories: s.Directories,
		Words:       s.Words,
		Postings:    s.Postings,
		UpdatedAt:   s.UpdatedAt,
	}
}

// LoadReplica reads the whole files table into an immutable snapshot.
func (d *Database) LoadReplica(ctx context.Context) (snap *replica.Snapshot, err error) {
	start := time.Now()
	defer func() { recordQuery("load_replica", start, err) }()

	rows, err := d.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM files`)
	if err != nil {
		return nil, fmt.Errorf("replica query failed: %w", err)
	}
	defer rows.Close()

	b := replica.NewBuilder()
	for rows.Next() {
		var n replica.Node
		if err := rows.Scan(&n.ID, &n.Parent, &n.Filename, &n.Filetype, &n.IsDir); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		b.Add(n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	snap = b.Build()
	logging.Debug("Replica loaded: %d files, %d directories in %v", snap.Files(), snap.Dirs(), time.Since(start))
	return snap, nil
}

// Vacuum optimizes the database.
func (d *Database) Vacuum(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { recordQuery("vacuum", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "VACUUM")
	return err
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}
	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", p, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 != 0 {
			continue
		}
		logging.Warn("%s is read-only! Mode: %v - this will cause write failures", p, info.Mode())
		if chmodErr := os.Chmod(p, 0o600); chmodErr != nil {
			logging.Error("Failed to fix permissions of %s: %v", p, chmodErr)
		} else {
			logging.Info("Fixed permissions of %s", p)
		}
	}
	return nil
}
