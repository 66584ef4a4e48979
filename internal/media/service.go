package media

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"shelter-media/internal/database"
	"shelter-media/internal/dbfs"
	"shelter-media/internal/logging"
	"shelter-media/internal/mediatypes"
	"shelter-media/internal/memory"
	"shelter-media/internal/metrics"
	"shelter-media/internal/workers"
)

var log = logging.Component("media")

// BlobStore is the subset of the dbfs store the service uses.
type BlobStore interface {
	Put(ctx context.Context, name, path string, data []byte) (dbfs.Ref, error)
	Get(ctx context.Context, name string) ([]byte, error)
	GetPath(ctx context.Context, path, name string) ([]byte, error)
	GetID(ctx context.Context, ref dbfs.Ref) ([]byte, error)
	ReplaceID(ctx context.Context, ref dbfs.Ref, data []byte) error
	DeleteID(ctx context.Context, ref dbfs.Ref) error
	DeletePath(ctx context.Context, path string) (int, error)
	Exists(ctx context.Context, name string) (bool, error)
	Move(ctx context.Context, from, to string) error
}

// PDFCompressor shrinks PDF documents. An error means the input should be
// kept as is.
type PDFCompressor interface {
	Compress(ctx context.Context, data []byte) ([]byte, error)
}

// DocumentRenderer turns an HTML document into a PDF.
type DocumentRenderer interface {
	HTMLToPDF(ctx context.Context, html string) ([]byte, error)
}

// EntityComments looks up the free-text comments of an animal, used to
// default the notes of new animal pictures.
type EntityComments interface {
	AnimalComments(ctx context.Context, animalID int64) (string, error)
}

// AuditLog records sensitive media events. Implementations must not block
// or fail the caller.
type AuditLog interface {
	CreateLog(ctx context.Context, s Session, r *Record, code, message string)
}

// Config wires a Service.
type Config struct {
	DB       *database.Database
	Blobs    BlobStore
	Types    *mediatypes.Table
	Policy   Policy
	PDF      PDFCompressor
	Renderer DocumentRenderer
	Comments EntityComments
	Audit    AuditLog

	// Memory, when set, pauses bulk jobs while memory usage is critical.
	Memory *memory.Monitor
	// Workers caps the bulk image rescale pool; 0 means one per CPU.
	Workers int
	// DocumentWorkers caps the PDF and ODT pools, whose items mostly wait on
	// an external tool or the disk; 0 means one and a half per CPU.
	DocumentWorkers int

	ThumbnailCacheSize int
	ThumbnailCacheTTL  time.Duration
}

// Service implements media ingestion, transforms, preferences and lifecycle.
type Service struct {
	db         *database.Database
	blobs      BlobStore
	types      *mediatypes.Table
	policy     Policy
	pdf        PDFCompressor
	renderer   DocumentRenderer
	comments   EntityComments
	audit      AuditLog
	mem        *memory.Monitor
	workers    int
	docWorkers int
	thumbs     *expirable.LRU[string, []byte]
}

// NewService creates a media service.
func NewService(cfg Config) *Service {
	if cfg.Types == nil {
		cfg.Types = mediatypes.NewTable(nil)
	}
	if cfg.Audit == nil {
		cfg.Audit = NewDatabaseAuditLog(cfg.DB)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = workers.ForCPU(8)
	}
	if cfg.DocumentWorkers <= 0 {
		cfg.DocumentWorkers = workers.ForMixed(8)
	}
	if cfg.ThumbnailCacheSize <= 0 {
		cfg.ThumbnailCacheSize = 512
	}
	if cfg.ThumbnailCacheTTL <= 0 {
		cfg.ThumbnailCacheTTL = 10 * time.Minute
	}

	return &Service{
		db:         cfg.DB,
		blobs:      cfg.Blobs,
		types:      cfg.Types,
		policy:     cfg.Policy,
		pdf:        cfg.PDF,
		renderer:   cfg.Renderer,
		comments:   cfg.Comments,
		audit:      cfg.Audit,
		mem:        cfg.Memory,
		workers:    cfg.Workers,
		docWorkers: cfg.DocumentWorkers,
		thumbs:     expirable.NewLRU[string, []byte](cfg.ThumbnailCacheSize, nil, cfg.ThumbnailCacheTTL),
	}
}

// Policy returns the policy the service was created with.
func (s *Service) Policy() Policy {
	return s.policy
}

// transform runs one transform primitive. On error the original bytes are
// returned and the failure is logged and counted; the caller never sees it.
func transform(op string, fn func([]byte) ([]byte, error), data []byte) []byte {
	start := time.Now()
	out, err := fn(data)
	metrics.TransformDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.TransformsTotal.WithLabelValues(op, "fallback").Inc()
		log.Error("%s failed, keeping original bytes: %v", op, err)
		return data
	}
	metrics.TransformsTotal.WithLabelValues(op, "success").Inc()
	return out
}

// thumbnailKey changes whenever the record changes, so stale thumbnails
// age out instead of being served.
func thumbnailKey(r *Record) string {
	return fmt.Sprintf("%d:%d", r.ID, r.Version)
}

func (s *Service) cachedThumbnail(r *Record) ([]byte, bool) {
	data, ok := s.thumbs.Get(thumbnailKey(r))
	if ok {
		metrics.ThumbnailCacheHits.Inc()
		return data, true
	}
	metrics.ThumbnailCacheMisses.Inc()
	return nil, false
}

func (s *Service) storeThumbnail(r *Record, data []byte) {
	s.thumbs.Add(thumbnailKey(r), data)
}

// loadRecord fetches a record and maps a missing row to a wrapped
// ErrNotFound carrying the ID.
func loadRecord(ctx context.Context, q *database.Queries, id int64) (*Record, error) {
	r, err := q.GetMedia(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("media %d: %w", id, err)
	}
	return r, nil
}
