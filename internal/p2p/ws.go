package p2p

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"brokerhub/internal/metrics"
	"brokerhub/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// ChatHub runs one broadcast room per trade. Messages arriving over a
// socket are persisted through the service before fan-out, so the REST
// history and the live stream never diverge.
type ChatHub struct {
	svc      *Service
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu    sync.Mutex
	rooms map[string]map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan model.TradeMessage
}

func NewChatHub(svc *Service, allowedOrigin string, log zerolog.Logger) *ChatHub {
	return &ChatHub{
		svc: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
		log:   log,
		rooms: make(map[string]map[*client]struct{}),
	}
}

// Serve upgrades the connection and joins the trade's room. The caller
// must already have authenticated userID.
func (h *ChatHub) Serve(w http.ResponseWriter, r *http.Request, userID, tradeID string) {
	if _, err := h.svc.GetTrade(r.Context(), userID, tradeID); err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn, send: make(chan model.TradeMessage, 32)}
	h.join(tradeID, c)
	metrics.WebSocketClients.Inc()

	go h.writePump(c)
	h.readPump(c, userID, tradeID)
}

func (h *ChatHub) join(tradeID string, c *client) {
	h.mu.Lock()
	room, ok := h.rooms[tradeID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[tradeID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()
}

func (h *ChatHub) leave(tradeID string, c *client) {
	h.mu.Lock()
	if room, ok := h.rooms[tradeID]; ok {
		if _, in := room[c]; in {
			delete(room, c)
			close(c.send)
			if len(room) == 0 {
				delete(h.rooms, tradeID)
			}
		}
	}
	h.mu.Unlock()
	metrics.WebSocketClients.Dec()
}

// Broadcast delivers a persisted message to every room member. Slow
// consumers drop messages instead of blocking the room.
func (h *ChatHub) Broadcast(tradeID string, m model.TradeMessage) {
	h.mu.Lock()
	for c := range h.rooms[tradeID] {
		select {
		case c.send <- m:
		default:
		}
	}
	h.mu.Unlock()
}

// BroadcastSystem pushes a system line to the live room only; the
// persisted copy is written by the service.
func (h *ChatHub) BroadcastSystem(tradeID, body string) {
	h.Broadcast(tradeID, model.TradeMessage{
		TradeID:   tradeID,
		Sender:    "system",
		Body:      body,
		CreatedAt: time.Now().UTC(),
	})
}

type inboundMessage struct {
	Body string `json:"body"`
}

func (h *ChatHub) readPump(c *client, userID, tradeID string) {
	defer func() {
		h.leave(tradeID, c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var in inboundMessage
		if err := c.conn.ReadJSON(&in); err != nil {
			return
		}
		m, err := h.svc.PostMessage(context.Background(), userID, tradeID, in.Body)
		if err != nil {
			h.log.Debug().Err(err).Str("trade_id", tradeID).Msg("chat message rejected")
			continue
		}
		h.Broadcast(tradeID, *m)
	}
}

func (h *ChatHub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case m, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(m); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
