package handler

import (
	"net/http"
	"time"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
	"github.com/mtaadao/mtaa-realtime/internal/infra/buildinfo"
)

// handleHealth handles GET /health.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, r, http.StatusOK, map[string]any{
		"status":  "healthy",
		"time":    h.deps.Clock.Now().UTC().Format(time.RFC3339),
		"version": buildinfo.Version,
	})
}

// handleReady handles GET /ready.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.deps.Ready != nil {
		if err := h.deps.Ready(r.Context()); err != nil {
			writeErrorEnvelope(w, r, http.StatusServiceUnavailable,
				domain.ErrInternalServer.Code, "not ready", err.Error())
			return
		}
	}
	WriteJSON(w, r, http.StatusOK, map[string]any{
		"status": "ready",
		"time":   h.deps.Clock.Now().UTC().Format(time.RFC3339),
		"build":  buildinfo.Get(),
	})
}
