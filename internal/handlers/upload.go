package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"shelter-media/internal/media"
)

type dataURIUpload struct {
	Filename    string `json:"filename"`
	Type        string `json:"type"`
	DataURI     string `json:"dataUri"`
	Comments    string `json:"comments"`
	RetainUntil string `json:"retainUntil"`
}

// AttachFile accepts either a multipart form with a "file" part or a JSON
// body carrying a data URI, and hands a typed upload to the service.
func (h *Handlers) AttachFile(w http.ResponseWriter, r *http.Request) {
	link, err := pathLink(r)
	if err != nil {
		writeError(w, r, "attach file", err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	sess := session(r)

	var up media.Upload
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch ct {
	case "multipart/form-data":
		up, err = multipartUpload(r, sess)
	case "application/json":
		up, err = jsonUpload(r, sess)
	default:
		err = &media.ValidationError{Msg: fmt.Sprintf("unsupported content type %q", ct)}
	}
	if err != nil {
		writeError(w, r, "attach file", err)
		return
	}

	rec, err := h.svc.AttachFile(r.Context(), sess, link, up)
	if err != nil {
		writeError(w, r, "attach file", err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, rec)
}

func multipartUpload(r *http.Request, sess media.Session) (media.Upload, error) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return media.Upload{}, &media.ValidationError{Msg: "upload is too large", Err: err}
		}
		return media.Upload{}, &media.ValidationError{Msg: "invalid multipart form", Err: err}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return media.Upload{}, &media.ValidationError{Msg: "missing file part", Err: err}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return media.Upload{}, fmt.Errorf("read upload: %w", err)
	}

	retain, err := parseDate(r.FormValue("retainuntil"), sess.Location)
	if err != nil {
		return media.Upload{}, err
	}

	return media.Upload{
		Filename:     header.Filename,
		DeclaredType: header.Header.Get("Content-Type"),
		Data:         data,
		Comments:     r.FormValue("comments"),
		RetainUntil:  retain,
	}, nil
}

func jsonUpload(r *http.Request, sess media.Session) (media.Upload, error) {
	var req dataURIUpload
	if err := decodeJSON(r, &req); err != nil {
		return media.Upload{}, err
	}
	if strings.TrimSpace(req.DataURI) == "" {
		return media.Upload{}, &media.ValidationError{Msg: "dataUri is required"}
	}
	retain, err := parseDate(req.RetainUntil, sess.Location)
	if err != nil {
		return media.Upload{}, err
	}
	return media.Upload{
		Filename:     req.Filename,
		DeclaredType: req.Type,
		DataURI:      req.DataURI,
		Comments:     req.Comments,
		RetainUntil:  retain,
	}, nil
}

type linkRequest struct {
	URL      string `json:"url"`
	Kind     string `json:"kind"`
	Comments string `json:"comments"`
}

// AttachLink adds a video or document link.
func (h *Handlers) AttachLink(w http.ResponseWriter, r *http.Request) {
	link, err := pathLink(r)
	if err != nil {
		writeError(w, r, "attach link", err)
		return
	}
	var req linkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, "attach link", err)
		return
	}

	var kind media.Kind
	switch strings.ToLower(req.Kind) {
	case "video":
		kind = media.KindVideoLink
	case "document", "doc":
		kind = media.KindDocumentLink
	default:
		writeError(w, r, "attach link", &media.ValidationError{Msg: fmt.Sprintf("invalid link kind %q", req.Kind)})
		return
	}

	rec, err := h.svc.AttachLink(r.Context(), session(r), link, media.LinkUpload{
		URL:      req.URL,
		Kind:     kind,
		Comments: req.Comments,
	})
	if err != nil {
		writeError(w, r, "attach link", err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, rec)
}
