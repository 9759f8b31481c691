// Package health serves liveness, readiness, and the internal
// diagnostics endpoint.
package health

import (
	"net/http"
	"runtime"
	"time"

	"brokerhub/internal/httputil"
	"brokerhub/internal/store"
)

type Handler struct {
	store   store.Store
	mode    string
	started time.Time
}

func NewHandler(st store.Store, mode string) *Handler {
	return &Handler{store: st, mode: mode, started: time.Now().UTC()}
}

// Live answers as long as the process runs.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready checks the store before admitting traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"store":  err.Error(),
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Full is the internal diagnostics dump, gated by the internal token
// at the router.
func (h *Handler) Full(w http.ResponseWriter, r *http.Request) {
	storeStatus := "ok"
	if err := h.store.Ping(r.Context()); err != nil {
		storeStatus = err.Error()
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"mode":           h.mode,
		"store":          storeStatus,
		"uptime_seconds": int(time.Since(h.started).Seconds()),
		"goroutines":     runtime.NumGoroutine(),
		"heap_bytes":     mem.HeapAlloc,
		"go_version":     runtime.Version(),
	})
}
