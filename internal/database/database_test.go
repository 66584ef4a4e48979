package database

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"shelter-media/internal/metrics"
)

// setupTestDB creates a database in a temporary directory.
func setupTestDB(t testing.TB) (db *Database, dbPath string) {
	t.Helper()

	dbPath = filepath.Join(t.TempDir(), "test.db")
	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, dbPath
}

func TestNewDatabase(t *testing.T) {
	db, dbPath := setupTestDB(t)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
	if db.Path() != dbPath {
		t.Errorf("Path() = %q, want %q", db.Path(), dbPath)
	}

	for _, table := range []string{"media", "audit_log"} {
		var name string
		err := db.db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestNewDatabaseUnwritableDirectory(t *testing.T) {
	_, err := New(context.Background(), filepath.Join(t.TempDir(), "missing", "sub", "test.db"))
	if err == nil {
		t.Error("New() should fail when the parent directory does not exist")
	}
}

func TestMigrationAddsRecordVersion(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	// A media table from before versioned updates
	legacy, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	_, err = legacy.Exec(`
		CREATE TABLE media (
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
			created_by TEXT NOT NULL DEFAULT '',
			created_date INTEGER NOT NULL DEFAULT 0,
			last_changed_by TEXT NOT NULL DEFAULT ''
		);
		INSERT INTO media (media_name, mime_type, link_type_id, link_id, date) VALUES ('1.jpg', 'image/jpeg', 0, 1, 0);
	`)
	if err != nil {
		t.Fatal(err)
	}
	_ = legacy.Close()

	db, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("New() on legacy database failed: %v", err)
	}
	defer db.Close()

	r, err := db.GetMedia(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetMedia() error = %v", err)
	}
	if r.Version != 1 {
		t.Errorf("migrated Version = %d, want 1", r.Version)
	}
}

func TestWithTxCommit(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	var id int64
	err := db.WithTx(ctx, func(q *Queries) error {
		r := &MediaRecord{Name: "a.jpg", MimeType: "image/jpeg", LinkType: 0, LinkID: 1}
		if err := q.InsertMedia(ctx, r); err != nil {
			return err
		}
		id = r.ID
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}
	if _, err := db.GetMedia(ctx, id); err != nil {
		t.Errorf("committed record missing: %v", err)
	}
}

func TestWithTxRollback(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	boom := errors.New("boom")
	var id int64
	err := db.WithTx(ctx, func(q *Queries) error {
		r := &MediaRecord{Name: "a.jpg", MimeType: "image/jpeg", LinkType: 0, LinkID: 1}
		if err := q.InsertMedia(ctx, r); err != nil {
			return err
		}
		id = r.ID
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v, want boom", err)
	}
	if _, err := db.GetMedia(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("rolled back record still present: %v", err)
	}
}

func TestGetStats(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx := context.Background()

	if s := db.GetStats(); s != (metrics.Stats{}) {
		t.Errorf("empty GetStats() = %+v", s)
	}

	records := []MediaRecord{
		{Name: "1.jpg", MimeType: "image/jpeg", Size: 100, LinkID: 1},
		{Name: "2.jpg", MimeType: "image/jpeg", Size: 200, LinkID: 1},
		{Name: "3.pdf", MimeType: "application/pdf", Size: 50, LinkID: 1},
		{Name: "4.html", MimeType: "text/html", Size: 10, LinkID: 1, SignatureHash: "abc"},
		{Name: "http://example.com", MimeType: "text/url", Kind: 1, LinkID: 1},
	}
	for i := range records {
		if err := db.InsertMedia(ctx, &records[i]); err != nil {
			t.Fatal(err)
		}
	}

	want := metrics.Stats{
		TotalRecords:   5,
		TotalImages:    2,
		TotalDocuments: 2,
		TotalLinks:     1,
		TotalSigned:    1,
		TotalBytes:     360,
	}
	if got := db.GetStats(); got != want {
		t.Errorf("GetStats() = %+v, want %+v", got, want)
	}
}

func TestRecordQuery(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status string
	}{
		{"success", nil, "success"},
		{"not found counts as success", ErrNotFound, "success"},
		{"failure", errors.New("disk I/O error"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := metrics.DBQueryTotal.WithLabelValues("test_record_query", tt.status)
			before := testutil.ToFloat64(c)
			recordQuery("test_record_query", time.Now(), tt.err)
			if got := testutil.ToFloat64(c); got != before+1 {
				t.Errorf("DBQueryTotal{%s} = %v, want %v", tt.status, got, before+1)
			}
		})
	}
}

func TestVacuum(t *testing.T) {
	db, _ := setupTestDB(t)
	if err := db.Vacuum(context.Background()); err != nil {
		t.Errorf("Vacuum() error = %v", err)
	}
}

func TestDiagnoseDatabasePermissions(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "media.db")
	if err := os.WriteFile(dbPath+"-wal", nil, 0o400); err != nil {
		t.Fatal(err)
	}

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		t.Fatalf("diagnoseDatabasePermissions() error = %v", err)
	}

	info, err := os.Stat(dbPath + "-wal")
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o200 == 0 {
		t.Error("read-only WAL file was not made writable")
	}

	if err := diagnoseDatabasePermissions(filepath.Join(dir, "nope", "media.db")); err == nil {
		t.Error("missing directory should be reported")
	}
}
