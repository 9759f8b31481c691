package httpserver

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"brokerhub/internal/metrics"
	"brokerhub/internal/notify"
)

// EventsWSHandler streams the authenticated user's notifications over
// a websocket. Each connection gets its own bus subscription filtered
// to the user's id.
type EventsWSHandler struct {
	bus      *notify.Bus
	upgrader websocket.Upgrader
}

func NewEventsWSHandler(bus *notify.Bus, allowedOrigin string) *EventsWSHandler {
	return &EventsWSHandler{
		bus: bus,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
	}
}

func (h *EventsWSHandler) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	metrics.WebSocketClients.Inc()
	defer metrics.WebSocketClients.Dec()

	done := make(chan struct{})

	// Drain the read side so pings and closes are processed.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(45 * time.Second)
	defer ticker.Stop()
	defer conn.Close()
	for {
		select {
		case evt, ok := <-sub:
			if !ok {
				return
			}
			if evt.UserID != userID {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
