package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"shelter-media/internal/dbfs"
	"shelter-media/internal/logging"
	"shelter-media/internal/media"
	"shelter-media/internal/middleware"
)

// Request headers the upstream application sets for the acting user.
const (
	HeaderUser     = "X-Shelter-User"
	HeaderLocale   = "X-Shelter-Locale"
	HeaderTimezone = "X-Shelter-Timezone"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONStatus writes v with the given status code.
func writeJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	writeJSON(w, v)
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONStatus(w, statusCode, map[string]string{"error": message})
}

// statusFor maps service errors to HTTP status codes. Conflicts are checked
// first because they also match ErrValidation.
func statusFor(err error) int {
	switch {
	case errors.Is(err, media.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, media.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, media.ErrNotFound), errors.Is(err, dbfs.ErrNotFound), errors.Is(err, media.ErrNoImage):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs err and writes it with the mapped status. Internal errors
// are not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	id := middleware.RequestID(r.Context())

	if status == http.StatusInternalServerError {
		logging.Error("%s failed [%s]: %v", op, id, err)
		writeJSONError(w, "internal error", status)
		return
	}

	logging.Debug("%s rejected [%s]: %v", op, id, err)
	msg := err.Error()
	var ve *media.ValidationError
	if errors.As(err, &ve) {
		msg = ve.Msg
	}
	writeJSONError(w, msg, status)
}

// session builds the request-scoped session from the upstream headers.
// An unknown time zone falls back to the server's.
func session(r *http.Request) media.Session {
	s := media.Session{
		User:   strings.TrimSpace(r.Header.Get(HeaderUser)),
		Locale: strings.TrimSpace(r.Header.Get(HeaderLocale)),
	}
	if tz := strings.TrimSpace(r.Header.Get(HeaderTimezone)); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			s.Location = loc
		} else {
			logging.Debug("ignoring unknown time zone %q", tz)
		}
	}
	return s
}

func pathInt(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		return 0, &media.ValidationError{Msg: fmt.Sprintf("invalid %s %q", name, raw)}
	}
	return n, nil
}

func pathLink(r *http.Request) (media.Link, error) {
	t, err := media.ParseLinkType(mux.Vars(r)["type"])
	if err != nil {
		return media.Link{}, err
	}
	id, err := pathInt(r, "id")
	if err != nil {
		return media.Link{}, err
	}
	return media.Link{Type: t, ID: id}, nil
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return &media.ValidationError{Msg: "invalid JSON body", Err: err}
	}
	return nil
}

const maxJSONBody = 32 << 20

// parseDate accepts an ISO date, or nil for an empty string.
func parseDate(s string, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}
	d, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return nil, &media.ValidationError{Msg: fmt.Sprintf("invalid date %q, want YYYY-MM-DD", s)}
	}
	return &d, nil
}
