package copytrading_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"brokerhub/internal/copytrading"
	"brokerhub/internal/model"
	"brokerhub/internal/store"
)

func newTestService(t *testing.T) (*copytrading.Service, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	seed := []model.ExpertTrader{
		{ID: "e1", Name: "Alpha", Wins: 80, Losses: 20, ProfitShare: 15, Active: true, CreatedAt: time.Now().UTC()},
		{ID: "e2", Name: "Beta", Wins: 10, Losses: 10, ProfitShare: 20, Active: false, CreatedAt: time.Now().UTC()},
	}
	for i := range seed {
		if err := ms.PutExpert(context.Background(), &seed[i]); err != nil {
			t.Fatalf("seed expert: %v", err)
		}
	}
	return copytrading.NewService(ms, zerolog.Nop()), ms
}

func TestRosterActiveOnlyWithWinRate(t *testing.T) {
	svc, _ := newTestService(t)
	experts, err := svc.Roster(context.Background())
	if err != nil {
		t.Fatalf("roster: %v", err)
	}
	if len(experts) != 1 {
		t.Fatalf("roster = %d entries, want 1 active", len(experts))
	}
	if experts[0].WinRatePct != 80 {
		t.Errorf("win rate = %v, want 80", experts[0].WinRatePct)
	}
}

func TestCopyAndCancel(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Copy(ctx, "u1", "e1")
	if err != nil {
		t.Fatalf("copy: %v", err)
	}
	if !sub.Active {
		t.Error("new subscription must be active")
	}

	cancelled, err := svc.Cancel(ctx, "u1", "e1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Active || cancelled.EndedAt == nil {
		t.Error("cancel must deactivate and stamp ended_at")
	}

	// After cancelling, copying again starts a fresh subscription.
	again, err := svc.Copy(ctx, "u1", "e1")
	if err != nil {
		t.Fatalf("re-copy: %v", err)
	}
	if again.ID == sub.ID {
		t.Error("re-copy must create a new subscription")
	}
}

func TestRecopyReplacesActiveSubscription(t *testing.T) {
	svc, ms := newTestService(t)
	ctx := context.Background()

	first, err := svc.Copy(ctx, "u1", "e1")
	if err != nil {
		t.Fatalf("first copy: %v", err)
	}
	second, err := svc.Copy(ctx, "u1", "e1")
	if err != nil {
		t.Fatalf("second copy: %v", err)
	}
	if second.ID == first.ID {
		t.Fatal("re-copy must create a fresh subscription")
	}
	if !second.Active {
		t.Error("new subscription must be active")
	}

	subs, err := ms.ListSubscriptions(ctx, "u1")
	if err != nil {
		t.Fatalf("list subscriptions: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("subscriptions = %d, want 2", len(subs))
	}
	active := 0
	for _, sub := range subs {
		if sub.Active {
			active++
			continue
		}
		if sub.ID == first.ID && sub.EndedAt == nil {
			t.Error("replaced subscription must be stamped ended_at")
		}
	}
	if active != 1 {
		t.Fatalf("active subscriptions = %d, want 1", active)
	}
}

func TestCopyInactiveExpert(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Copy(context.Background(), "u1", "e2"); !errors.Is(err, copytrading.ErrExpertInactive) {
		t.Fatalf("err = %v, want ErrExpertInactive", err)
	}
}

func TestCancelWithoutSubscription(t *testing.T) {
	svc, _ := newTestService(t)
	if _, err := svc.Cancel(context.Background(), "u1", "e1"); !errors.Is(err, copytrading.ErrNotSubscribed) {
		t.Fatalf("err = %v, want ErrNotSubscribed", err)
	}
}
