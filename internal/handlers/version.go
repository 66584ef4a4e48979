package handlers

import (
	"net/http"

	"shelter-media/internal/imageops"
	"shelter-media/internal/startup"
)

type versionResponse struct {
	startup.BuildInfo
	Vips          bool   `json:"vips"`
	IncomingScale string `json:"incomingScale"`
}

// GetVersion reports the build and the active image pipeline.
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONStatus(w, http.StatusOK, versionResponse{
		BuildInfo:     startup.GetBuildInfo(),
		Vips:          imageops.IsVipsAvailable(),
		IncomingScale: imageops.NormalizeSpec(h.svc.Policy().IncomingScale),
	})
}
