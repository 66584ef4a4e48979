package dbfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"
)

type recordingObserver struct {
	mu   sync.Mutex
	ops  map[string]int
	errs int
}

func (r *recordingObserver) ObserveOperation(op string, _ float64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ops == nil {
		r.ops = make(map[string]int)
	}
	r.ops[op]++
	if err != nil {
		r.errs++
	}
}

func (r *recordingObserver) ObserveStaleRetry(string, bool) {}

func openTestStore(t *testing.T, opts ...Option) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(context.Background(), dir, opts...)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

func contentFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestPutGet(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	ref, err := s.Put(ctx, "1.jpg", "/animal/12", []byte("jpeg bytes"))
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if ref <= 0 {
		t.Fatalf("Put() ref = %d, want > 0", ref)
	}

	tests := []struct {
		name string
		get  func() ([]byte, error)
	}{
		{"by id", func() ([]byte, error) { return s.GetID(ctx, ref) }},
		{"by name", func() ([]byte, error) { return s.Get(ctx, "1.jpg") }},
		{"by path", func() ([]byte, error) { return s.GetPath(ctx, "animal/12/", "1.jpg") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.get()
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if string(got) != "jpeg bytes" {
				t.Errorf("got %q, want %q", got, "jpeg bytes")
			}
		})
	}
}

func TestPutSamePathReplaces(t *testing.T) {
	s, dir := openTestStore(t)
	ctx := context.Background()

	first, err := s.Put(ctx, "doc.html", "/person/3", []byte("v1"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Put(ctx, "doc.html", "/person/3", []byte("version two"))
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("ref changed on overwrite: %d -> %d", first, second)
	}

	got, err := s.GetID(ctx, second)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "version two" {
		t.Errorf("content = %q", got)
	}
	if files := contentFiles(t, dir); len(files) != 1 {
		t.Errorf("content files = %v, want exactly one", files)
	}
}

func TestReplace(t *testing.T) {
	s, dir := openTestStore(t)
	ctx := context.Background()

	ref, err := s.Put(ctx, "5.jpg", "/animal/1", []byte("original"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.ReplaceID(ctx, ref, []byte("scaled")); err != nil {
		t.Fatalf("ReplaceID() error = %v", err)
	}
	got, _ := s.GetID(ctx, ref)
	if string(got) != "scaled" {
		t.Errorf("after ReplaceID content = %q", got)
	}

	if err := s.Replace(ctx, "5.jpg", []byte("rotated")); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}
	got, _ = s.GetID(ctx, ref)
	if string(got) != "rotated" {
		t.Errorf("after Replace content = %q", got)
	}
	if files := contentFiles(t, dir); len(files) != 1 {
		t.Errorf("content files = %v, want exactly one", files)
	}

	if err := s.ReplaceID(ctx, ref+100, []byte("x")); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReplaceID(missing) error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	s, dir := openTestStore(t)
	ctx := context.Background()

	ref, _ := s.Put(ctx, "7.pdf", "/animal/2", []byte("%PDF"))
	if _, err := s.Put(ctx, "8.jpg", "/animal/2", []byte("jpg")); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteID(ctx, ref); err != nil {
		t.Fatalf("DeleteID() error = %v", err)
	}
	if _, err := s.GetID(ctx, ref); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetID after delete error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteID(ctx, ref); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteID error = %v, want ErrNotFound", err)
	}

	if err := s.Delete(ctx, "8.jpg"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := s.Delete(ctx, "8.jpg"); err != nil {
		t.Errorf("Delete(missing) error = %v, want nil", err)
	}
	if ok, _ := s.Exists(ctx, "8.jpg"); ok {
		t.Error("Exists() = true after delete")
	}
	if files := contentFiles(t, dir); len(files) != 0 {
		t.Errorf("content files left: %v", files)
	}
}

func TestDeletePath(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	for i, p := range []string{"/animal/1", "/animal/1/extra", "/animal/10", "/animal/2"} {
		if _, err := s.Put(ctx, fmt.Sprintf("%d.jpg", i), p, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.DeletePath(ctx, "/animal/1")
	if err != nil {
		t.Fatalf("DeletePath() error = %v", err)
	}
	if n != 2 {
		t.Errorf("DeletePath() removed %d, want 2", n)
	}
	for _, name := range []string{"2.jpg", "3.jpg"} {
		if ok, _ := s.Exists(ctx, name); !ok {
			t.Errorf("%s should survive DeletePath(/animal/1)", name)
		}
	}
}

func TestMove(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"b.jpg", "a.jpg"} {
		if _, err := s.Put(ctx, name, "/animal/4", []byte(name)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Move(ctx, "/animal/4", "/person/9"); err != nil {
		t.Fatalf("Move() error = %v", err)
	}

	for _, name := range []string{"a.jpg", "b.jpg"} {
		if _, err := s.GetPath(ctx, "/animal/4", name); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetPath(old, %s) error = %v, want ErrNotFound", name, err)
		}
		got, err := s.GetPath(ctx, "/person/9", name)
		if err != nil || string(got) != name {
			t.Errorf("GetPath(new, %s) = %q, %v", name, got, err)
		}
	}
}

func TestMissingContentFile(t *testing.T) {
	s, dir := openTestStore(t)
	ctx := context.Background()

	ref, _ := s.Put(ctx, "1.jpg", "/animal/1", []byte("x"))
	for _, f := range contentFiles(t, dir) {
		_ = os.Remove(filepath.Join(dir, "blobs", f))
	}
	if _, err := s.GetID(ctx, ref); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetID() error = %v, want ErrNotFound", err)
	}
}

func TestObserver(t *testing.T) {
	obs := &recordingObserver{}
	s, _ := openTestStore(t, WithObserver(obs))
	ctx := context.Background()

	ref, _ := s.Put(ctx, "1.jpg", "/animal/1", []byte("x"))
	_, _ = s.GetID(ctx, ref)
	_ = s.ReplaceID(ctx, ref, []byte("y"))
	_ = s.DeleteID(ctx, ref)
	_, _ = s.GetID(ctx, ref)

	want := map[string]int{"put": 1, "get": 2, "replace": 1, "delete": 1}
	for op, n := range want {
		if obs.ops[op] != n {
			t.Errorf("observed %s = %d, want %d", op, obs.ops[op], n)
		}
	}
	if obs.errs != 0 {
		t.Errorf("observed %d errors, want 0 (not found is not an error)", obs.errs)
	}
}

func TestConcurrentPut(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data := bytes.Repeat([]byte{byte(i)}, 1024)
			if _, err := s.Put(ctx, fmt.Sprintf("%d.jpg", i), "/animal/1", data); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Put() error = %v", err)
	}

	entries, err := s.List(ctx, "/animal/1")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 20 {
		t.Errorf("List() = %d entries, want 20", len(entries))
	}
}

func TestIsStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"estale", syscall.ESTALE, true},
		{"wrapped estale", &os.PathError{Op: "open", Path: "/x", Err: syscall.ESTALE}, true},
		{"enoent", syscall.ENOENT, false},
		{"other", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isStaleError(tt.err); got != tt.want {
				t.Errorf("isStaleError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestReadFileWithRetryNonStale(t *testing.T) {
	s, _ := openTestStore(t, WithRetry(RetryConfig{MaxRetries: 3, InitialBackoff: time.Second, MaxBackoff: time.Second}))

	start := time.Now()
	_, err := s.readFileWithRetry(filepath.Join(t.TempDir(), "missing"))
	if !os.IsNotExist(err) {
		t.Errorf("error = %v, want not-exist", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("non-stale error should not be retried")
	}
}
