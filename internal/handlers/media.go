package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"shelter-media/internal/logging"
	"shelter-media/internal/media"
	"shelter-media/internal/streaming"
)

func (h *Handlers) ListMedia(w http.ResponseWriter, r *http.Request) {
	link, err := pathLink(r)
	if err != nil {
		writeError(w, r, "list media", err)
		return
	}

	records, err := h.svc.List(r.Context(), link)
	if err != nil {
		writeError(w, r, "list media", err)
		return
	}
	if records == nil {
		records = []media.Record{}
	}
	writeJSONStatus(w, http.StatusOK, records)
}

// ListImages returns the link's pictures, web preferred first. With
// ?publishable=true only pictures that may be published are listed.
func (h *Handlers) ListImages(w http.ResponseWriter, r *http.Request) {
	link, err := pathLink(r)
	if err != nil {
		writeError(w, r, "list images", err)
		return
	}
	publishable, _ := strconv.ParseBool(r.URL.Query().Get("publishable"))

	images, err := h.svc.ListImages(r.Context(), link, publishable)
	if err != nil {
		writeError(w, r, "list images", err)
		return
	}
	if images == nil {
		images = []media.Record{}
	}
	writeJSONStatus(w, http.StatusOK, images)
}

func (h *Handlers) GetMedia(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, "get media", err)
		return
	}
	rec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, "get media", err)
		return
	}
	writeJSONStatus(w, http.StatusOK, rec)
}

func (h *Handlers) DeleteMedia(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, "delete media", err)
		return
	}
	if err := h.svc.Delete(r.Context(), session(r), id); err != nil {
		writeError(w, r, "delete media", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetFile streams the stored content with its recorded MIME type.
func (h *Handlers) GetFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, "get file", err)
		return
	}
	rec, data, err := h.svc.FileData(r.Context(), id)
	if err != nil {
		writeError(w, r, "get file", err)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", rec.Name))
	if err := streaming.ServeBlob(r.Context(), w, streaming.Blob{
		ContentType: rec.MimeType,
		Modified:    rec.Date,
		Data:        data,
	}, h.stream); err != nil {
		logging.Debug("write file %d: %v", id, err)
	}
}

type notesRequest struct {
	Version int64  `json:"version"`
	Notes   string `json:"notes"`
}

func (h *Handlers) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, "update notes", err)
		return
	}
	var req notesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "update notes", err)
		return
	}

	rec, err := h.svc.UpdateNotes(r.Context(), session(r), id, req.Version, req.Notes)
	if err != nil {
		writeError(w, r, "update notes", err)
		return
	}
	writeJSONStatus(w, http.StatusOK, rec)
}

// UpdateContent replaces the stored bytes with the raw request body.
func (h *Handlers) UpdateContent(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, "update content", err)
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUploadBytes))
	if err != nil {
		writeError(w, r, "update content", &media.ValidationError{Msg: "could not read content", Err: err})
		return
	}
	if err := h.svc.UpdateContent(r.Context(), session(r), id, data); err != nil {
		writeError(w, r, "update content", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type retainRequest struct {
	Version     int64  `json:"version"`
	RetainUntil string `json:"retainUntil"`
}

func (h *Handlers) SetRetainUntil(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, "set retain until", err)
		return
	}
	var req retainRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "set retain until", err)
		return
	}
	sess := session(r)
	until, err := parseDate(req.RetainUntil, sess.Location)
	if err != nil {
		writeError(w, r, "set retain until", err)
		return
	}

	rec, err := h.svc.SetRetainUntil(r.Context(), sess, id, req.Version, until)
	if err != nil {
		writeError(w, r, "set retain until", err)
		return
	}
	writeJSONStatus(w, http.StatusOK, rec)
}

type rotateRequest struct {
	Direction string `json:"direction"`
}

func (h *Handlers) Rotate(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, "rotate", err)
		return
	}
	var req rotateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "rotate", err)
		return
	}

	var clockwise bool
	switch req.Direction {
	case "clockwise", "right":
		clockwise = true
	case "anticlockwise", "counterclockwise", "left":
	default:
		writeError(w, r, "rotate", &media.ValidationError{Msg: fmt.Sprintf("invalid direction %q", req.Direction)})
		return
	}

	if err := h.svc.Rotate(r.Context(), session(r), id, clockwise); err != nil {
		writeError(w, r, "rotate", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) SetPreferred(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, "set preferred", err)
		return
	}

	sess := session(r)
	switch mux.Vars(r)["flag"] {
	case "web":
		err = h.svc.SetWebPreferred(r.Context(), sess, id)
	case "doc":
		err = h.svc.SetDocPreferred(r.Context(), sess, id)
	case "video":
		err = h.svc.SetVideoPreferred(r.Context(), sess, id)
	}
	if err != nil {
		writeError(w, r, "set preferred", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type excludeRequest struct {
	Excluded bool `json:"excluded"`
}

func (h *Handlers) SetExcluded(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, "set excluded", err)
		return
	}
	var req excludeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "set excluded", err)
		return
	}
	if err := h.svc.SetExcluded(r.Context(), session(r), id, req.Excluded); err != nil {
		writeError(w, r, "set excluded", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type reparentRequest struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
}

// Reparent moves all media of the path link to the link in the body.
func (h *Handlers) Reparent(w http.ResponseWriter, r *http.Request) {
	from, err := pathLink(r)
	if err != nil {
		writeError(w, r, "reparent", err)
		return
	}
	var req reparentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "reparent", err)
		return
	}
	toType, err := media.ParseLinkType(req.Type)
	if err != nil {
		writeError(w, r, "reparent", err)
		return
	}
	if req.ID <= 0 {
		writeError(w, r, "reparent", &media.ValidationError{Msg: "target id is required"})
		return
	}

	n, err := h.svc.Reparent(r.Context(), session(r), from, media.Link{Type: toType, ID: req.ID})
	if err != nil {
		writeError(w, r, "reparent", err)
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]int64{"moved": n})
}

// DeleteAllMedia removes every media record of the path link, used when the
// owning entity is deleted.
func (h *Handlers) DeleteAllMedia(w http.ResponseWriter, r *http.Request) {
	link, err := pathLink(r)
	if err != nil {
		writeError(w, r, "delete all media", err)
		return
	}
	n, err := h.svc.DeleteAll(r.Context(), session(r), link)
	if err != nil {
		writeError(w, r, "delete all media", err)
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]int{"deleted": n})
}

// GetStats returns aggregate counts over all media.
func (h *Handlers) GetStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONStatus(w, http.StatusOK, h.db.GetStats())
}
