package p2p_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"brokerhub/internal/model"
	"brokerhub/internal/p2p"
	"brokerhub/internal/store"
	"brokerhub/internal/types"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func newTestService(t *testing.T) (*p2p.Service, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	v := &model.Vendor{
		ID:        "v1",
		Name:      "QuickPay",
		Rating:    d(4.8),
		Trades:    120,
		MinAmount: d(50),
		MaxAmount: d(5000),
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := ms.PutVendor(context.Background(), v); err != nil {
		t.Fatalf("seed vendor: %v", err)
	}
	return p2p.NewService(ms, zerolog.Nop()), ms
}

func TestOpenTradeSeedsSystemMessage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tr, err := svc.OpenTrade(ctx, "u1", "v1", d(100))
	if err != nil {
		t.Fatalf("open trade: %v", err)
	}
	if tr.Status != types.TradeStatusPending {
		t.Errorf("status = %s, want pending", tr.Status)
	}
	msgs, err := svc.Messages(ctx, "u1", tr.ID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Sender != "system" {
		t.Fatalf("want one system message, got %+v", msgs)
	}
}

func TestOpenTradeAmountLimits(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.OpenTrade(ctx, "u1", "v1", d(10)); !errors.Is(err, p2p.ErrAmountOutOfRange) {
		t.Fatalf("below min err = %v, want ErrAmountOutOfRange", err)
	}
	if _, err := svc.OpenTrade(ctx, "u1", "v1", d(9000)); !errors.Is(err, p2p.ErrAmountOutOfRange) {
		t.Fatalf("above max err = %v, want ErrAmountOutOfRange", err)
	}
}

func TestMarkPaidFlow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tr, _ := svc.OpenTrade(ctx, "u1", "v1", d(100))

	paid, err := svc.MarkPaid(ctx, "u1", tr.ID, "receipt-123.png")
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.Status != types.TradeStatusPaid || paid.ProofFile != "receipt-123.png" {
		t.Errorf("trade = %+v, want paid with proof", paid)
	}

	// Paid trades cannot be marked paid again or cancelled by the user.
	if _, err := svc.MarkPaid(ctx, "u1", tr.ID, "x"); !errors.Is(err, p2p.ErrBadTransition) {
		t.Fatalf("double paid err = %v, want ErrBadTransition", err)
	}
	if _, err := svc.Cancel(ctx, "u1", tr.ID); !errors.Is(err, p2p.ErrBadTransition) {
		t.Fatalf("cancel paid err = %v, want ErrBadTransition", err)
	}

	// Admin completes the paid trade.
	done, err := svc.SetStatus(ctx, tr.ID, types.TradeStatusCompleted)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != types.TradeStatusCompleted {
		t.Errorf("status = %s, want completed", done.Status)
	}
	if _, err := svc.SetStatus(ctx, tr.ID, types.TradeStatusCancelled); !errors.Is(err, p2p.ErrBadTransition) {
		t.Fatalf("cancel completed err = %v, want ErrBadTransition", err)
	}
}

func TestTradeOwnership(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tr, _ := svc.OpenTrade(ctx, "u1", "v1", d(100))

	if _, err := svc.GetTrade(ctx, "intruder", tr.ID); !errors.Is(err, p2p.ErrNotParticipant) {
		t.Fatalf("err = %v, want ErrNotParticipant", err)
	}
	if _, err := svc.PostMessage(ctx, "intruder", tr.ID, "hello"); !errors.Is(err, p2p.ErrNotParticipant) {
		t.Fatalf("post err = %v, want ErrNotParticipant", err)
	}
}

func TestChatPersistsInOrder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	tr, _ := svc.OpenTrade(ctx, "u1", "v1", d(100))

	if _, err := svc.PostMessage(ctx, "u1", tr.ID, "first"); err != nil {
		t.Fatalf("post: %v", err)
	}
	if _, err := svc.PostMessage(ctx, "u1", tr.ID, "second"); err != nil {
		t.Fatalf("post: %v", err)
	}
	msgs, err := svc.Messages(ctx, "u1", tr.ID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	// System line plus the two user lines, oldest first.
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	if msgs[1].Body != "first" || msgs[2].Body != "second" {
		t.Errorf("order wrong: %+v", msgs)
	}
}
