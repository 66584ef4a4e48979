package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"shelter-media/internal/logging"
	"shelter-media/internal/media"
	"shelter-media/internal/streaming"
)

// GetImage serves /api/images/{mode}?id=...&seq=... . When nothing matches,
// the placeholder picture is served instead.
func (h *Handlers) GetImage(w http.ResponseWriter, r *http.Request) {
	mode := media.ImageMode(mux.Vars(r)["mode"])
	id := r.URL.Query().Get("id")

	seq := 0
	if s := r.URL.Query().Get("seq"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, r, "image", &media.ValidationError{Msg: "invalid seq " + strconv.Quote(s)})
			return
		}
		seq = n
	}

	img, err := h.svc.ImageData(r.Context(), mode, id, seq)
	if errors.Is(err, media.ErrNoImage) && mode != media.ModeNoPic {
		logging.Debug("no %s image for %q, serving placeholder", mode, id)
		img, err = h.svc.ImageData(r.Context(), media.ModeNoPic, "", 0)
	}
	if err != nil {
		writeError(w, r, "image", err)
		return
	}

	_ = streaming.ServeBlob(r.Context(), w, streaming.Blob{
		ContentType:  img.MimeType,
		Modified:     img.Date,
		CacheControl: "public, max-age=3600",
		Data:         img.Data,
	}, h.stream)
}
