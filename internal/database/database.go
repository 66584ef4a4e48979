package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"shelter-media/internal/logging"
	"shelter-media/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

var (
	// ErrNotFound is returned when no media record has the requested ID.
	ErrNotFound = errors.New("media record not found")
	// ErrConflict is returned when a versioned update lost a race with
	// another writer. The caller should re-read and retry.
	ErrConflict = errors.New("media record was changed by another writer")
)

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Queries runs media queries against a connection pool or a transaction.
type Queries struct {
	db execer
}

// Database manages the media record store.
type Database struct {
	*Queries
	db     *sql.DB
	dbPath string
}

// New creates a new Database instance.
// IMPORTANT: dbPath should be the full path to the database FILE (e.g., "/database/media.db"),
// and the parent directory must already exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	// Diagnose potential permission issues
	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// WAL for concurrent readers; _txlock=immediate takes the write lock at
	// BEGIN so read-modify-write transactions cannot interleave.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000&_txlock=immediate", dbPath)

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

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		Queries: &Queries{db: db},
		db:      db,
		dbPath:  dbPath,
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

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	-- Media attached to animals, people and the other link types
	CREATE TABLE IF NOT EXISTS media (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		dbfs_id INTEGER NOT NULL DEFAULT 0,
		media_size INTEGER NOT NULL DEFAULT 0,
		media_name TEXT NOT NULL DEFAULT '',
		mime_type TEXT NOT NULL DEFAULT '',
		media_type INTEGER NOT NULL DEFAULT 0,
		media_notes TEXT NOT NULL DEFAULT '',
		link_type_id INTEGER NOT NULL,
		link_id INTEGER NOT NULL,
		website_photo INTEGER NOT NULL DEFAULT 0,
		website_video INTEGER NOT NULL DEFAULT 0,
		doc_photo INTEGER NOT NULL DEFAULT 0,
		exclude_from_publish INTEGER NOT NULL DEFAULT 0,
		date INTEGER NOT NULL,
		retain_until TEXT,
		signature_hash TEXT NOT NULL DEFAULT '',
		record_version INTEGER NOT NULL DEFAULT 1,
		created_by TEXT NOT NULL DEFAULT '',
		created_date INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		last_changed_by TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_media_link ON media(link_type_id, link_id);
	CREATE INDEX IF NOT EXISTS idx_media_mime ON media(mime_type);
	CREATE INDEX IF NOT EXISTS idx_media_retain ON media(retain_until);

	-- Audit trail for signing and other sensitive changes
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL,
		link_type_id INTEGER NOT NULL DEFAULT 0,
		link_id INTEGER NOT NULL DEFAULT 0,
		media_id INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_audit_media ON audit_log(media_id);
	`

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	return d.runMigrations(ctx)
}

// runMigrations applies database schema migrations
func (d *Database) runMigrations(ctx context.Context) error {
	// Migration 1: databases created before versioned updates have no
	// record_version column
	var columnExists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) > 0
		FROM pragma_table_info('media')
		WHERE name='record_version'
	`).Scan(&columnExists)
	if err != nil {
		return fmt.Errorf("failed to check for record_version column: %w", err)
	}

	if !columnExists {
		logging.Info("Migrating database: adding record_version column to media table")

		_, err = d.db.ExecContext(ctx, `
			ALTER TABLE media ADD COLUMN record_version INTEGER NOT NULL DEFAULT 1
		`)
		if err != nil {
			return fmt.Errorf("failed to add record_version column: %w", err)
		}

		logging.Info("Migration complete: record_version column added")
	}

	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// Ping checks that the database still answers.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// WithTx runs fn inside a write transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
func (d *Database) WithTx(ctx context.Context, fn func(q *Queries) error) error {
	start := time.Now()
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	return endTx(tx, start, fn(&Queries{db: tx}))
}

// endTx commits or rolls back a transaction.
func endTx(tx *sql.Tx, start time.Time, err error) error {
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

// GetStats returns aggregate counts over the media table. It implements
// metrics.StatsProvider.
func (d *Database) GetStats() metrics.Stats {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	var s metrics.Stats
	err := d.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(mime_type = 'image/jpeg'), 0),
			COALESCE(SUM(media_type = 0 AND mime_type <> 'image/jpeg'), 0),
			COALESCE(SUM(media_type <> 0), 0),
			COALESCE(SUM(signature_hash <> ''), 0),
			COALESCE(SUM(media_size), 0)
		FROM media
	`).Scan(&s.TotalRecords, &s.TotalImages, &s.TotalDocuments, &s.TotalLinks, &s.TotalSigned, &s.TotalBytes)
	if err != nil {
		logging.Warn("Failed to collect media stats: %v", err)
		return metrics.Stats{}
	}
	return s
}

// Vacuum optimizes the database.
func (d *Database) Vacuum(ctx context.Context) error {
	start := time.Now()
	var err error
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
	if err != nil && !errors.Is(err, ErrNotFound) {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
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
	_ = os.Remove(testFile) // Explicitly ignore cleanup error
	logging.Debug("Database directory is writable")

	if dbInfo, err := os.Stat(dbPath); err == nil {
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", dbPath, dbInfo.Mode(), dbInfo.Size())
		if dbInfo.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file is read-only! Mode: %v", dbInfo.Mode())
		}
	}

	// A read-only WAL or SHM file makes every write fail
	for _, suffix := range []string{"-wal", "-shm"} {
		path := dbPath + suffix
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		logging.Debug("%s file exists: %s (mode: %v, size: %d bytes)", suffix[1:], path, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("%s file is read-only! Mode: %v - this will cause write failures", suffix[1:], info.Mode())
			if chmodErr := os.Chmod(path, 0o600); chmodErr != nil {
				logging.Error("Failed to fix %s file permissions: %v", suffix[1:], chmodErr)
			} else {
				logging.Info("Fixed %s file permissions", suffix[1:])
			}
		}
	}

	return nil
}
