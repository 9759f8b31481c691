package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"brokerhub/internal/model"
	"brokerhub/internal/notify"
	"brokerhub/internal/types"
)

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestEventsWebSocketUpgradeAndDelivery(t *testing.T) {
	router, _, bus := newTestRouter(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	userID, token := registerUser(t, router, "ws-user@example.com")

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/v1/events/ws?access_token="+token), nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial events ws: %v (status %d)", err, status)
	}
	defer conn.Close()

	// An event for someone else must not reach this connection.
	bus.Publish(notify.Event{ID: "other", UserID: "someone-else", Kind: types.EventBonusCredited, At: time.Now().UTC()})
	bus.Publish(notify.Event{ID: "mine", UserID: userID, Kind: types.EventBonusCredited, Title: "Bonus credited", At: time.Now().UTC()})

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var evt notify.Event
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if evt.ID != "mine" || evt.UserID != userID {
		t.Fatalf("event = %+v, want id=mine for %s", evt, userID)
	}
}

func TestEventsWebSocketRejectsMissingToken(t *testing.T) {
	router, _, _ := newTestRouter(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/v1/events/ws"), nil)
	if err == nil {
		t.Fatal("dial without token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("resp = %+v, want 401", resp)
	}
}

func TestTradeChatWebSocketRoundTrip(t *testing.T) {
	router, st, _ := newTestRouter(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	_, token := registerUser(t, router, "chat-user@example.com")
	vendor := &model.Vendor{
		ID:        "v1",
		Name:      "Fast Exchange",
		MinAmount: decimal.NewFromInt(10),
		MaxAmount: decimal.NewFromInt(1000),
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := st.PutVendor(context.Background(), vendor); err != nil {
		t.Fatalf("seed vendor: %v", err)
	}

	rec := doJSON(t, router, http.MethodPost, "/v1/vendors/v1/trades", token, map[string]any{"amount": "100"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open trade = %d: %s", rec.Code, rec.Body.String())
	}
	var trade struct {
		ID string `json:"id"`
	}
	decode(t, rec, &trade)

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/v1/trades/"+trade.ID+"/ws?access_token="+token), nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial chat ws: %v (status %d)", err, status)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]string{"body": "is the rate still valid?"}); err != nil {
		t.Fatalf("write message: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg model.TradeMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if msg.Body != "is the rate still valid?" || msg.TradeID != trade.ID {
		t.Fatalf("broadcast = %+v", msg)
	}
}
