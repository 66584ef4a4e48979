package dbfs

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"github.com/google/uuid"

	"shelter-media/internal/logging"
)

// Default timeout for metadata operations
const defaultTimeout = 5 * time.Second

var log = logging.Component("dbfs")

// ErrNotFound is returned when no blob matches the name, path or reference.
var ErrNotFound = errors.New("blob not found")

// Ref identifies a stored blob.
type Ref int64

// Observer receives timing and outcome of every store operation.
type Observer interface {
	ObserveOperation(operation string, durationSeconds float64, err error)
	// ObserveStaleRetry records the outcome of a read that hit a stale
	// file handle at least once.
	ObserveStaleRetry(operation string, recovered bool)
}

type nopObserver struct{}

func (nopObserver) ObserveOperation(string, float64, error) {}
func (nopObserver) ObserveStaleRetry(string, bool)          {}

// Store keeps blob metadata in SQLite and the content in files named by a
// random key under the content directory.
type Store struct {
	db         *sql.DB
	contentDir string
	observer   Observer
	retry      RetryConfig
}

// Option configures a Store.
type Option func(*Store)

// WithObserver reports operations to o.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		if o != nil {
			s.observer = o
		}
	}
}

// Open creates or opens a store rooted at dir. Metadata lives in
// dir/dbfs.db and content under dir/blobs.
func Open(ctx context.Context, dir string, opts ...Option) (*Store, error) {
	contentDir := filepath.Join(dir, "blobs")
	if err := os.MkdirAll(contentDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create content directory %s: %w", contentDir, err)
	}

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000",
		filepath.Join(dir, "dbfs.db"))
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open dbfs database: %w", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = db.ExecContext(initCtx, `
	CREATE TABLE IF NOT EXISTS dbfs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		path TEXT NOT NULL,
		storage_key TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		checksum TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		UNIQUE(path, name)
	);
	CREATE INDEX IF NOT EXISTS idx_dbfs_name ON dbfs(name);
	`)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize dbfs schema: %w", err)
	}

	s := &Store{db: db, contentDir: contentDir, observer: nopObserver{}, retry: DefaultRetryConfig()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the metadata database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) observe(op string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	s.observer.ObserveOperation(op, time.Since(start).Seconds(), err)
}

// cleanPath normalizes a hierarchical path to "/a/b" form.
func cleanPath(p string) string {
	p = "/" + strings.Trim(strings.TrimSpace(p), "/")
	return strings.ReplaceAll(p, "//", "/")
}

// writeContent writes data to a new content file and returns its key.
// Pattern: temp file, fsync, atomic rename.
func (s *Store) writeContent(data []byte) (key, checksum string, err error) {
	key = uuid.New().String()
	fullPath := filepath.Join(s.contentDir, key)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return "", "", fmt.Errorf("failed to write content: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmpPath)
		return "", "", fmt.Errorf("fsync failed: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return "", "", fmt.Errorf("failed to close content file: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", "", fmt.Errorf("atomic rename failed: %w", err)
	}

	sum := sha256.Sum256(data)
	return key, hex.EncodeToString(sum[:]), nil
}

func (s *Store) removeContent(key string) {
	if key == "" {
		return
	}
	if err := os.Remove(filepath.Join(s.contentDir, key)); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove content file %s: %v", key, err)
	}
}

func (s *Store) readContent(key string) ([]byte, error) {
	data, err := s.readFileWithRetry(filepath.Join(s.contentDir, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: content file %s missing", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to read content %s: %w", key, err)
	}
	return data, nil
}

// Put stores data as name under path, replacing any blob already stored
// there, and returns its reference.
func (s *Store) Put(ctx context.Context, name, path string, data []byte) (ref Ref, err error) {
	start := time.Now()
	defer func() { s.observe("put", start, err) }()

	path = cleanPath(path)
	key, checksum, err := s.writeContent(data)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var oldKey sql.NullString
	err = s.db.QueryRowContext(ctx, `SELECT storage_key FROM dbfs WHERE path = ? AND name = ?`, path, name).Scan(&oldKey)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.removeContent(key)
		return 0, fmt.Errorf("failed to look up %s/%s: %w", path, name, err)
	}

	var id int64
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO dbfs (name, path, storage_key, size, checksum)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path, name) DO UPDATE SET
			storage_key = excluded.storage_key,
			size = excluded.size,
			checksum = excluded.checksum
		RETURNING id
	`, name, path, key, len(data), checksum).Scan(&id)
	if err != nil {
		s.removeContent(key)
		return 0, fmt.Errorf("failed to record %s/%s: %w", path, name, err)
	}

	if oldKey.Valid {
		s.removeContent(oldKey.String)
	}
	log.Debug("put %s/%s (%d bytes) as %d", path, name, len(data), id)
	return Ref(id), nil
}

func (s *Store) getWhere(ctx context.Context, op, where string, args ...interface{}) (data []byte, err error) {
	start := time.Now()
	defer func() { s.observe(op, start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var key string
	err = s.db.QueryRowContext(ctx, `SELECT storage_key FROM dbfs WHERE `+where+` ORDER BY id DESC LIMIT 1`, args...).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.readContent(key)
}

// Get returns the content of the most recent blob called name.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	return s.getWhere(ctx, "get", "name = ?", name)
}

// GetPath returns the content of name stored under path.
func (s *Store) GetPath(ctx context.Context, path, name string) ([]byte, error) {
	return s.getWhere(ctx, "get", "path = ? AND name = ?", cleanPath(path), name)
}

// GetID returns the content of the blob with the given reference.
func (s *Store) GetID(ctx context.Context, ref Ref) ([]byte, error) {
	return s.getWhere(ctx, "get", "id = ?", int64(ref))
}

func (s *Store) replaceWhere(ctx context.Context, data []byte, where string, args ...interface{}) (err error) {
	start := time.Now()
	defer func() { s.observe("replace", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var id int64
	var oldKey string
	err = s.db.QueryRowContext(ctx, `SELECT id, storage_key FROM dbfs WHERE `+where+` ORDER BY id DESC LIMIT 1`, args...).Scan(&id, &oldKey)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	key, checksum, err := s.writeContent(data)
	if err != nil {
		return err
	}
	if _, err = s.db.ExecContext(ctx,
		`UPDATE dbfs SET storage_key = ?, size = ?, checksum = ? WHERE id = ?`,
		key, len(data), checksum, id); err != nil {
		s.removeContent(key)
		return fmt.Errorf("failed to update blob %d: %w", id, err)
	}
	s.removeContent(oldKey)
	return nil
}

// Replace overwrites the content of the most recent blob called name.
func (s *Store) Replace(ctx context.Context, name string, data []byte) error {
	return s.replaceWhere(ctx, data, "name = ?", name)
}

// ReplaceID overwrites the content of the blob with the given reference.
func (s *Store) ReplaceID(ctx context.Context, ref Ref, data []byte) error {
	return s.replaceWhere(ctx, data, "id = ?", int64(ref))
}

func (s *Store) deleteWhere(ctx context.Context, where string, args ...interface{}) (n int, err error) {
	start := time.Now()
	defer func() { s.observe("delete", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `DELETE FROM dbfs WHERE `+where+` RETURNING storage_key`, args...)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err = rows.Scan(&key); err != nil {
			return 0, err
		}
		keys = append(keys, key)
	}
	if err = rows.Err(); err != nil {
		return 0, err
	}

	for _, key := range keys {
		s.removeContent(key)
	}
	return len(keys), nil
}

// Delete removes every blob called name. Deleting a missing name is not an
// error.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.deleteWhere(ctx, "name = ?", name)
	return err
}

// DeleteID removes the blob with the given reference.
func (s *Store) DeleteID(ctx context.Context, ref Ref) error {
	n, err := s.deleteWhere(ctx, "id = ?", int64(ref))
	if err == nil && n == 0 {
		return ErrNotFound
	}
	return err
}

// DeletePath removes every blob stored under path or any path below it and
// returns how many were removed.
func (s *Store) DeletePath(ctx context.Context, path string) (int, error) {
	path = cleanPath(path)
	return s.deleteWhere(ctx, "path = ? OR path LIKE ?", path, path+"/%")
}

// Exists reports whether a blob called name is stored.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dbfs WHERE name = ?`, name).Scan(&n)
	return n > 0, err
}

// Move changes the path of every blob under from to the same position
// under to.
func (s *Store) Move(ctx context.Context, from, to string) error {
	from, to = cleanPath(from), cleanPath(to)
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		UPDATE dbfs SET path = ? || substr(path, ?)
		WHERE path = ? OR path LIKE ?
	`, to, len(from)+1, from, from+"/%")
	if err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", from, to, err)
	}
	return nil
}
