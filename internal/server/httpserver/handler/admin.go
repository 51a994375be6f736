package handler

import (
	"net/http"

	"github.com/mtaadao/mtaa-realtime/internal/core/domain"
	"github.com/mtaadao/mtaa-realtime/internal/infra/buildinfo"
)

// handleAdminStatus handles GET /admin/v1/status/summary.
func (h *Handler) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	now := h.deps.Clock.Now()
	summary := StatusSummary{
		UptimeSeconds: int64(now.Sub(h.started).Seconds()),
		Sessions:      h.deps.Sessions.Stats(),
		RateLimiter: RateLimiterStats{
			Windows:  h.deps.Limiter.Len(),
			Policies: h.deps.Limiter.Policies(),
		},
	}
	summary.Build = buildinfo.Get()

	if h.deps.Hub != nil {
		summary.Connections = ConnectionStats{
			Total:  h.deps.Hub.Count(),
			Users:  h.deps.Hub.UserCount(),
			Online: h.deps.Hub.OnlineUsers(),
		}
	}

	if h.deps.Inbox != nil {
		stats, err := h.deps.Inbox.Stats(r.Context())
		if err != nil {
			WriteError(w, r, domain.ErrStorageError.WithCause(err))
			return
		}
		summary.Inbox = &InboxStats{
			TotalBytes: stats.TotalSize,
			InMemory:   stats.InMemory,
			LastGC:     stats.LastGCTime,
		}
	}

	WriteJSON(w, r, http.StatusOK, summary)
}

// handleGCTrigger handles POST /admin/v1/gc/trigger. It runs the expired
// session sweep, drops idle rate limit windows and runs inbox value log GC.
func (h *Handler) handleGCTrigger(w http.ResponseWriter, r *http.Request) {
	start := h.deps.Clock.Now()

	resp := GCResponse{
		SessionsReclaimed: h.deps.Sessions.Cleanup(r.Context()),
		WindowsReclaimed:  h.deps.Limiter.SweepIdle(),
	}

	if h.deps.Inbox != nil {
		freed, err := h.deps.Inbox.GC(r.Context())
		if err != nil {
			WriteError(w, r, domain.ErrStorageError.WithCause(err))
			return
		}
		resp.InboxBytesFreed = freed
	}

	resp.DurationMs = h.deps.Clock.Now().Sub(start).Milliseconds()
	h.logger.InfoContext(r.Context(), "manual gc completed",
		"sessions_reclaimed", resp.SessionsReclaimed,
		"windows_reclaimed", resp.WindowsReclaimed,
		"inbox_bytes_freed", resp.InboxBytesFreed)

	WriteJSON(w, r, http.StatusOK, resp)
}
