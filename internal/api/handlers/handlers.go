// Package handlers provides HTTP handlers for the tonk dev server.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/tonk-labs/tonk/internal/adapters/hostbridge"
)

// Handlers serves a loaded bundle's manifest and health status, and
// translates file requests through the host bridge's fetch logic
// (§4.6) so `tonk serve` exercises the exact same path-resolution rules
// a browser service worker would.
type Handlers struct {
	bridge    *hostbridge.Bridge
	startTime time.Time
}

// NewHandlers creates a Handlers bound to an already-loaded bridge.
func NewHandlers(bridge *hostbridge.Bridge) *Handlers {
	return &Handlers{bridge: bridge, startTime: time.Now()}
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status: string(h.bridge.Status()),
		Uptime: time.Since(h.startTime).Round(time.Second).String(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Manifest handles GET /api/v1/manifest, returning the manifest of the
// currently loaded bundle.
func (h *Handlers) Manifest(w http.ResponseWriter, r *http.Request) {
	m := h.bridge.ManifestSnapshot()
	if m == nil {
		WriteError(w, http.StatusServiceUnavailable, "NOT_READY", "no bundle loaded yet")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m)
}

// Fetch handles every other GET/HEAD request, serving bundle files
// through the host bridge's fetch-translation logic (§4.6).
func (h *Handlers) Fetch(w http.ResponseWriter, r *http.Request) {
	data, mimeType, err := h.bridge.Fetch(r.Context(), r.URL.Path)
	if err != nil {
		WriteError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	w.Header().Set("Content-Type", mimeType)
	_, _ = w.Write(data)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code})
}
