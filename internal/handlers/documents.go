package handlers

import (
	"net/http"

	"shelter-media/internal/database"
	"shelter-media/internal/media"
	"shelter-media/internal/streaming"
)

type documentRequest struct {
	Template string `json:"template"`
	Content  string `json:"content"`
}

// CreateDocument creates an HTML document. An empty body or template
// creates a blank document.
func (h *Handlers) CreateDocument(w http.ResponseWriter, r *http.Request) {
	link, err := pathLink(r)
	if err != nil {
		writeError(w, r, "create document", err)
		return
	}

	var req documentRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, "create document", err)
			return
		}
	}

	sess := session(r)
	var rec *media.Record
	if req.Template == "" {
		rec, err = h.svc.CreateBlankDocument(r.Context(), sess, link)
	} else {
		rec, err = h.svc.CreateDocument(r.Context(), sess, link, req.Template, req.Content)
	}
	if err != nil {
		writeError(w, r, "create document", err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, rec)
}

type signRequest struct {
	Signature string `json:"signature"`
}

// Sign stamps a signature image into an HTML document.
func (h *Handlers) Sign(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, "sign", err)
		return
	}
	var req signRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "sign", err)
		return
	}
	if req.Signature == "" {
		writeError(w, r, "sign", &media.ValidationError{Msg: "signature is required"})
		return
	}

	rec, err := h.svc.Sign(r.Context(), session(r), id, req.Signature)
	if err != nil {
		writeError(w, r, "sign", err)
		return
	}
	writeJSONStatus(w, http.StatusOK, rec)
}

func (h *Handlers) GetSignature(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, "get signature", err)
		return
	}
	signed, err := h.svc.HasSignature(r.Context(), id)
	if err != nil {
		writeError(w, r, "get signature", err)
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]bool{"signed": signed})
}

type signatureRequestBody struct {
	Message string `json:"message"`
}

func (h *Handlers) RequestSignature(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, "request signature", err)
		return
	}
	var req signatureRequestBody
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "request signature", err)
		return
	}
	if err := h.svc.RequestSignature(r.Context(), session(r), id, req.Message); err != nil {
		writeError(w, r, "request signature", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetDocumentPDF renders an HTML document as PDF.
func (h *Handlers) GetDocumentPDF(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, "document pdf", err)
		return
	}
	pdf, err := h.svc.DocumentPDF(r.Context(), id)
	if err != nil {
		writeError(w, r, "document pdf", err)
		return
	}

	_ = streaming.ServeBlob(r.Context(), w, streaming.Blob{
		ContentType:  "application/pdf",
		CacheControl: "no-cache",
		Data:         pdf,
	}, h.stream)
}

func (h *Handlers) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeError(w, r, "audit trail", err)
		return
	}
	entries, err := h.svc.AuditTrail(r.Context(), id)
	if err != nil {
		writeError(w, r, "audit trail", err)
		return
	}
	if entries == nil {
		entries = []database.AuditEntry{}
	}
	writeJSONStatus(w, http.StatusOK, entries)
}
