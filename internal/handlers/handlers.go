package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"shelter-media/internal/database"
	"shelter-media/internal/media"
	"shelter-media/internal/streaming"
)

// DefaultMaxUploadBytes caps multipart and data URI uploads.
const DefaultMaxUploadBytes = 64 << 20

type Handlers struct {
	svc            *media.Service
	db             *database.Database
	startTime      time.Time
	maxUploadBytes int64
	stream         streaming.Config
}

func New(svc *media.Service, db *database.Database) *Handlers {
	return &Handlers{
		svc:            svc,
		db:             db,
		startTime:      time.Now(),
		maxUploadBytes: DefaultMaxUploadBytes,
		stream:         streaming.DefaultConfig(),
	}
}

// Routes registers every endpoint on r.
func (h *Handlers) Routes(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.LivenessCheck).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)
	api.HandleFunc("/stats", h.GetStats).Methods(http.MethodGet)

	links := api.PathPrefix("/links/{type}/{id:[0-9]+}").Subrouter()
	links.HandleFunc("/media", h.ListMedia).Methods(http.MethodGet)
	links.HandleFunc("/media", h.AttachFile).Methods(http.MethodPost)
	links.HandleFunc("/media", h.DeleteAllMedia).Methods(http.MethodDelete)
	links.HandleFunc("/links", h.AttachLink).Methods(http.MethodPost)
	links.HandleFunc("/documents", h.CreateDocument).Methods(http.MethodPost)
	links.HandleFunc("/images", h.ListImages).Methods(http.MethodGet)
	links.HandleFunc("/reparent", h.Reparent).Methods(http.MethodPost)

	m := api.PathPrefix("/media/{id:[0-9]+}").Subrouter()
	m.HandleFunc("", h.GetMedia).Methods(http.MethodGet)
	m.HandleFunc("", h.DeleteMedia).Methods(http.MethodDelete)
	m.HandleFunc("/file", h.GetFile).Methods(http.MethodGet)
	m.HandleFunc("/notes", h.UpdateNotes).Methods(http.MethodPut)
	m.HandleFunc("/content", h.UpdateContent).Methods(http.MethodPut)
	m.HandleFunc("/retain", h.SetRetainUntil).Methods(http.MethodPut)
	m.HandleFunc("/rotate", h.Rotate).Methods(http.MethodPost)
	m.HandleFunc("/preferred/{flag:web|doc|video}", h.SetPreferred).Methods(http.MethodPost)
	m.HandleFunc("/exclude", h.SetExcluded).Methods(http.MethodPost)
	m.HandleFunc("/sign", h.Sign).Methods(http.MethodPost)
	m.HandleFunc("/signature", h.GetSignature).Methods(http.MethodGet)
	m.HandleFunc("/signature-request", h.RequestSignature).Methods(http.MethodPost)
	m.HandleFunc("/pdf", h.GetDocumentPDF).Methods(http.MethodGet)
	m.HandleFunc("/audit", h.GetAuditTrail).Methods(http.MethodGet)

	api.HandleFunc("/images/{mode}", h.GetImage).Methods(http.MethodGet)
}
