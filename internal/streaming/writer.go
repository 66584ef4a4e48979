package streaming

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"shelter-media/internal/logging"
)

var log = logging.Component("streaming")

var (
	// ErrWriteTimeout is returned when a single chunk is not accepted by the
	// client within the write timeout.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone is returned when the request context ends mid-stream.
	ErrClientGone = errors.New("client disconnected")
)

// Config controls how blob payloads are sent to clients.
type Config struct {
	// WriteTimeout bounds one chunk write.
	WriteTimeout time.Duration
	// ChunkSize is the size of each write; 0 writes the payload at once.
	ChunkSize int
}

// DefaultConfig returns the settings used by the HTTP handlers.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 30 * time.Second,
		ChunkSize:    64 * 1024,
	}
}

// Writer sends data in chunks, failing a chunk that stalls past the write
// timeout.
type Writer struct {
	w       io.Writer
	ctx     context.Context
	config  Config
	flusher http.Flusher

	mu      sync.Mutex
	written int64
	start   time.Time
}

// NewWriter wraps w. Flushing happens after each chunk when w supports it.
func NewWriter(ctx context.Context, w io.Writer, config Config) *Writer {
	sw := &Writer{w: w, ctx: ctx, config: config, start: time.Now()}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}
	return sw
}

func (sw *Writer) Write(p []byte) (int, error) {
	size := sw.config.ChunkSize
	if size <= 0 || size > len(p) {
		size = len(p)
	}

	total := 0
	for len(p) > 0 {
		if sw.ctx.Err() != nil {
			return total, ErrClientGone
		}
		n := size
		if n > len(p) {
			n = len(p)
		}
		written, err := sw.writeChunk(p[:n])
		total += written
		if err != nil {
			return total, err
		}
		p = p[n:]
		if sw.flusher != nil {
			sw.flusher.Flush()
		}
	}
	return total, nil
}

func (sw *Writer) writeChunk(p []byte) (int, error) {
	if sw.config.WriteTimeout <= 0 {
		n, err := sw.w.Write(p)
		sw.record(n)
		return n, err
	}

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := sw.w.Write(p)
		done <- result{n, err}
	}()

	timer := time.NewTimer(sw.config.WriteTimeout)
	defer timer.Stop()

	select {
	case r := <-done:
		sw.record(r.n)
		return r.n, r.err
	case <-timer.C:
		return 0, ErrWriteTimeout
	case <-sw.ctx.Done():
		return 0, ErrClientGone
	}
}

func (sw *Writer) record(n int) {
	sw.mu.Lock()
	sw.written += int64(n)
	sw.mu.Unlock()
}

// Stats returns the bytes written so far and the time since creation.
func (sw *Writer) Stats() (int64, time.Duration) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.written, time.Since(sw.start)
}

// Blob describes one response payload.
type Blob struct {
	ContentType  string
	Modified     time.Time
	CacheControl string
	Data         []byte
}

// ServeBlob writes b with its headers. Errors after the headers are sent are
// only logged since the status line is already gone.
func ServeBlob(ctx context.Context, w http.ResponseWriter, b Blob, config Config) error {
	h := w.Header()
	h.Set("Content-Type", b.ContentType)
	h.Set("Content-Length", strconv.Itoa(len(b.Data)))
	h.Set("X-Content-Type-Options", "nosniff")
	if !b.Modified.IsZero() {
		h.Set("Last-Modified", b.Modified.UTC().Format(http.TimeFormat))
	}
	if b.CacheControl != "" {
		h.Set("Cache-Control", b.CacheControl)
	}
	w.WriteHeader(http.StatusOK)

	sw := NewWriter(ctx, w, config)
	_, err := io.Copy(sw, bytes.NewReader(b.Data))
	written, took := sw.Stats()
	if err != nil {
		log.Warn("stream aborted after %d of %d bytes: %v", written, len(b.Data), err)
		return err
	}
	log.Debug("streamed %d bytes in %v", written, took)
	return nil
}
