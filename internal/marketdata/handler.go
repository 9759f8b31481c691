package marketdata

import (
	"context"
	"net/http"
	"sync"
	"time"

	"brokerhub/internal/httputil"
)

// Handler serves the watchlist with a TTL cache so a burst of clients
// costs at most one provider call per window.
type Handler struct {
	provider Provider
	ttl      time.Duration

	mu      sync.Mutex
	cached  []Quote
	fetched time.Time
}

func NewHandler(provider Provider, ttl time.Duration) *Handler {
	return &Handler{provider: provider, ttl: ttl}
}

func (h *Handler) Watchlist(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.quotes(r.Context())
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadGateway, httputil.ErrorResponse{Error: "quotes unavailable"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"quotes": quotes})
}

func (h *Handler) quotes(ctx context.Context) ([]Quote, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cached != nil && time.Since(h.fetched) < h.ttl {
		return h.cached, nil
	}
	quotes, err := h.provider.Quotes(ctx, WatchlistSymbols)
	if err != nil {
		// Serve stale data over an error when we have any.
		if h.cached != nil {
			return h.cached, nil
		}
		return nil, err
	}
	h.cached = quotes
	h.fetched = time.Now()
	return quotes, nil
}
