// Package notify delivers best-effort user notifications. Delivery
// failures are logged and swallowed; no business operation ever fails
// because a notification could not go out.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"brokerhub/internal/metrics"
	"brokerhub/internal/types"
)

// Event is one user-facing notification.
type Event struct {
	ID     string          `json:"id"`
	UserID string          `json:"user_id"`
	Kind   types.EventKind `json:"kind"`
	Title  string          `json:"title"`
	Body   string          `json:"body"`
	At     time.Time       `json:"at"`
}

// Dispatcher accepts events for asynchronous delivery.
type Dispatcher interface {
	Notify(userID string, kind types.EventKind, title, body string)
}

// Hub fans events out to the websocket bus, the log, and an optional
// webhook.
type Hub struct {
	bus        *Bus
	webhookURL string
	client     *http.Client
	log        zerolog.Logger
}

func NewHub(bus *Bus, webhookURL string, log zerolog.Logger) *Hub {
	return &Hub{
		bus:        bus,
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 8 * time.Second},
		log:        log,
	}
}

// Notify returns immediately; delivery happens in the background.
func (h *Hub) Notify(userID string, kind types.EventKind, title, body string) {
	evt := Event{
		ID:     uuid.NewString(),
		UserID: userID,
		Kind:   kind,
		Title:  title,
		Body:   body,
		At:     time.Now().UTC(),
	}
	h.bus.Publish(evt)
	metrics.NotificationsTotal.WithLabelValues("bus", "ok").Inc()
	h.log.Info().
		Str("user_id", userID).
		Str("kind", string(kind)).
		Str("title", title).
		Msg("notification")

	if h.webhookURL == "" {
		return
	}
	go h.postWebhook(evt)
}

func (h *Hub) postWebhook(evt Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.client.Do(req)
	if err != nil {
		metrics.NotificationsTotal.WithLabelValues("webhook", "error").Inc()
		h.log.Warn().Err(err).Str("event_id", evt.ID).Msg("webhook notify failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		metrics.NotificationsTotal.WithLabelValues("webhook", "error").Inc()
		h.log.Warn().Int("status", resp.StatusCode).Str("event_id", evt.ID).Msg("webhook notify rejected")
		return
	}
	metrics.NotificationsTotal.WithLabelValues("webhook", "ok").Inc()
}

// Noop discards every event. Used in tests.
type Noop struct{}

func (Noop) Notify(string, types.EventKind, string, string) {}
