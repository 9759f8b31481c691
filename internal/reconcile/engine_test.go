package reconcile_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"brokerhub/internal/ledger"
	"brokerhub/internal/model"
	"brokerhub/internal/notify"
	"brokerhub/internal/reconcile"
	"brokerhub/internal/store"
	"brokerhub/internal/types"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func newTestEngine(t *testing.T) (*reconcile.Engine, *store.MemoryStore, string) {
	t.Helper()
	ms := store.NewMemoryStore()
	u := &model.User{
		ID:          "u1",
		Email:       "u1@example.com",
		CurrentPlan: types.PlanMini,
		CreatedAt:   time.Now().UTC(),
	}
	if err := ms.CreateUser(context.Background(), u, "hash"); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return reconcile.NewEngine(ms, notify.Noop{}, zerolog.Nop()), ms, u.ID
}

func fund(t *testing.T, ms *store.MemoryStore, userID string, amount decimal.Decimal) {
	t.Helper()
	err := ms.Update(context.Background(), userID, func(txn store.Txn) error {
		return txn.ApplyDelta(amount, decimal.Zero)
	})
	if err != nil {
		t.Fatalf("fund: %v", err)
	}
}

func balance(t *testing.T, ms *store.MemoryStore, userID string) model.Ledger {
	t.Helper()
	l, err := ms.GetLedger(context.Background(), userID)
	if err != nil {
		t.Fatalf("get ledger: %v", err)
	}
	return *l
}

func openPosition(t *testing.T, eng *reconcile.Engine, userID string, amount decimal.Decimal) model.Position {
	t.Helper()
	p, err := eng.OpenPosition(context.Background(), userID, reconcile.OpenInput{
		Asset:  "BTCUSD",
		Side:   types.PositionSideBuy,
		Amount: amount,
		Actor:  types.ActorUser,
	})
	if err != nil {
		t.Fatalf("open position: %v", err)
	}
	return p
}

// --- position lifecycle ---

func TestOpenPositionDebitsPrincipal(t *testing.T) {
	eng, ms, userID := newTestEngine(t)
	fund(t, ms, userID, d(1000))

	p := openPosition(t, eng, userID, d(200))

	l := balance(t, ms, userID)
	if !l.AccountBalance.Equal(d(800)) {
		t.Errorf("balance = %s, want 800", l.AccountBalance)
	}
	if p.Status != types.PositionStatusOpen {
		t.Errorf("status = %s, want open", p.Status)
	}
	if p.ClosedAt != nil {
		t.Error("closed_at must be nil on an open position")
	}
}

func TestOpenPositionInsufficientFunds(t *testing.T) {
	eng, ms, userID := newTestEngine(t)
	fund(t, ms, userID, d(100))

	_, err := eng.OpenPosition(context.Background(), userID, reconcile.OpenInput{
		Asset:  "BTCUSD",
		Side:   types.PositionSideBuy,
		Amount: d(200),
		Actor:  types.ActorUser,
	})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if l := balance(t, ms, userID); !l.AccountBalance.Equal(d(100)) {
		t.Errorf("balance = %s, want 100 (no partial state)", l.AccountBalance)
	}
}

func TestCloseReturnsPrincipalPlusProfit(t *testing.T) {
	eng, ms, userID := newTestEngine(t)
	fund(t, ms, userID, d(1000))
	p := openPosition(t, eng, userID, d(200))

	// Admin marks the running profit before the close.
	if _, err := eng.ApplyPositionEdit(context.Background(), userID, reconcile.PositionEdit{
		ID: p.ID, Amount: d(200), Profit: d(30), Status: types.PositionStatusOpen,
	}); err != nil {
		t.Fatalf("edit: %v", err)
	}

	closed, err := eng.ClosePosition(context.Background(), userID, p.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.ClosedAt == nil {
		t.Error("closed_at must be stamped")
	}
	l := balance(t, ms, userID)
	if !l.AccountBalance.Equal(d(1030)) {
		t.Errorf("balance = %s, want 1030", l.AccountBalance)
	}
	if !l.ProfitToday.IsZero() {
		t.Errorf("profit_today = %s, want 0 after close", l.ProfitToday)
	}
}

func TestCloseTwiceIsInvalid(t *testing.T) {
	eng, ms, userID := newTestEngine(t)
	fund(t, ms, userID, d(1000))
	p := openPosition(t, eng, userID, d(200))

	if _, err := eng.ClosePosition(context.Background(), userID, p.ID); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if _, err := eng.ClosePosition(context.Background(), userID, p.ID); !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Fatalf("second close err = %v, want ErrInvalidTransition", err)
	}
	if l := balance(t, ms, userID); !l.AccountBalance.Equal(d(1000)) {
		t.Errorf("balance = %s, want 1000 (single payout)", l.AccountBalance)
	}
}

func TestConcurrentCloseSingleWinner(t *testing.T) {
	eng, ms, userID := newTestEngine(t)
	fund(t, ms, userID, d(1000))
	p := openPosition(t, eng, userID, d(200))

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = eng.ClosePosition(context.Background(), userID, p.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else if !errors.Is(err, ledger.ErrInvalidTransition) {
			t.Errorf("unexpected err: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("winners = %d, want exactly 1", wins)
	}
	if l := balance(t, ms, userID); !l.AccountBalance.Equal(d(1000)) {
		t.Errorf("balance = %s, want 1000", l.AccountBalance)
	}
}

func TestReopenDebitsAgain(t *testing.T) {
	eng, ms, userID := newTestEngine(t)
	fund(t, ms, userID, d(1000))
	p := openPosition(t, eng, userID, d(200))
	if _, err := eng.ClosePosition(context.Background(), userID, p.ID); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := eng.ReopenPosition(context.Background(), userID, p.ID)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Status != types.PositionStatusOpen || reopened.ClosedAt != nil {
		t.Error("reopen must restore open status and clear closed_at")
	}
	if l := balance(t, ms, userID); !l.AccountBalance.Equal(d(800)) {
		t.Errorf("balance = %s, want 800", l.AccountBalance)
	}
	// Reopening an open position is invalid.
	if _, err := eng.ReopenPosition(context.Background(), userID, p.ID); !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestEditScenarioFullCycle(t *testing.T) {
	// 1000 -> open 200 -> 800 -> shrink to 150 -> 850 -> close at
	// profit 30 -> 1030.
	eng, ms, userID := newTestEngine(t)
	fund(t, ms, userID, d(1000))
	ctx := context.Background()
	p := openPosition(t, eng, userID, d(200))

	if l := balance(t, ms, userID); !l.AccountBalance.Equal(d(800)) {
		t.Fatalf("after open: balance = %s, want 800", l.AccountBalance)
	}
	if _, err := eng.ApplyPositionEdit(ctx, userID, reconcile.PositionEdit{
		ID: p.ID, Amount: d(150), Profit: decimal.Zero, Status: types.PositionStatusOpen,
	}); err != nil {
		t.Fatalf("shrink: %v", err)
	}
	if l := balance(t, ms, userID); !l.AccountBalance.Equal(d(850)) {
		t.Fatalf("after shrink: balance = %s, want 850", l.AccountBalance)
	}
	if _, err := eng.ApplyPositionEdit(ctx, userID, reconcile.PositionEdit{
		ID: p.ID, Amount: d(150), Profit: d(30), Status: types.PositionStatusClosed,
	}); err != nil {
		t.Fatalf("close edit: %v", err)
	}
	if l := balance(t, ms, userID); !l.AccountBalance.Equal(d(1030)) {
		t.Fatalf("after close: balance = %s, want 1030", l.AccountBalance)
	}
}

func TestEditGrowAmountWhileOpen(t *testing.T) {
	eng, ms, userID := newTestEngine(t)
	fund(t, ms, userID, d(1000))
	p := openPosition(t, eng, userID, d(200))

	if _, err := eng.ApplyPositionEdit(context.Background(), userID, reconcile.PositionEdit{
		ID: p.ID, Amount: d(300), Profit: decimal.Zero, Status: types.PositionStatusOpen,
	}); err != nil {
		t.Fatalf("grow: %v", err)
	}
	if l := balance(t, ms, userID); !l.AccountBalance.Equal(d(700)) {
		t.Errorf("balance = %s, want 700", l.AccountBalance)
	}
}

func TestEditSameStateIsNoOp(t *testing.T) {
	eng, ms, userID := newTestEngine(t)
	fund(t, ms, userID, d(1000))
	p := openPosition(t, eng, userID, d(200))

	for i := 0; i < 3; i++ {
		if _, err := eng.ApplyPositionEdit(context.Background(), userID, reconcile.PositionEdit{
			ID: p.ID, Amount: d(200), Profit: decimal.Zero, Status: types.PositionStatusOpen,
		}); err != nil {
			t.Fatalf("edit %d: %v", i, err)
		}
	}
	if l := balance(t, ms, userID); !l.AccountBalance.Equal(d(800)) {
		t.Errorf("balance = %s, want 800 after repeated identical saves", l.AccountBalance)
	}
}

func TestProfitTodayTracksOpenPositions(t *testing.T) {
	eng, ms, userID := newTestEngine(t)
	fund(t, ms, userID, d(1000))
	ctx := context.Background()
	p1 := openPosition(t, eng, userID, d(100))
	p2 := openPosition(t, eng, userID, d(100))

	if _, err := eng.ApplyPositionEdit(ctx, userID, reconcile.PositionEdit{
		ID: p1.ID, Amount: d(100), Profit: d(40), Status: types.PositionStatusOpen,
	}); err != nil {
		t.Fatalf("edit p1: %v", err)
	}
	if _, err := eng.ApplyPositionEdit(ctx, userID, reconcile.PositionEdit{
		ID: p2.ID, Amount: d(100), Profit: d(-15), Status: types.PositionStatusOpen,
	}); err != nil {
		t.Fatalf("edit p2: %v", err)
	}
	if l := balance(t, ms, userID); !l.ProfitToday.Equal(d(25)) {
		t.Errorf("profit_today = %s, want 25", l.ProfitToday)
	}

	// Closing p1 removes its profit from the snapshot.
	if _, err := eng.ClosePosition(ctx, userID, p1.ID); err != nil {
		t.Fatalf("close p1: %v", err)
	}
	if l := balance(t, ms, userID); !l.ProfitToday.Equal(d(-15)) {
		t.Errorf("profit_today = %s, want -15", l.ProfitToday)
	}
}

// --- money requests ---

func TestDepositLifecycle(t *testing.T) {
	eng, ms, userID := newTestEngine(t)
	ctx := context.Background()

	r, err := eng.SubmitDeposit(ctx, userID, d(500), model.RequestNote{Method: "btc", Address: "bc1qexample"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if l := balance(t, ms, userID); !l.AccountBalance.IsZero() {
		t.Fatalf("pending deposit must not credit, balance = %s", l.AccountBalance)
	}

	decided, err := eng.DecideRequest(ctx, r.ID, true)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if decided.DecidedAt == nil {
		t.Error("decided_at must be stamped")
	}
	if l := balance(t, ms, userID); !l.AccountBalance.Equal(d(500)) {
		t.Errorf("balance = %s, want 500", l.AccountBalance)
	}

	// Repeating the same decision is a no-op.
	if _, err := eng.DecideRequest(ctx, r.ID, true); err != nil {
		t.Fatalf("repeat approve: %v", err)
	}
	if l := balance(t, ms, userID); !l.AccountBalance.Equal(d(500)) {
		t.Errorf("balance = %s, want 500 after repeat", l.AccountBalance)
	}

	// Flipping the decision is invalid.
	if _, err := eng.DecideRequest(ctx, r.ID, false); !errors.Is(err, ledger.ErrInvalidTransition) {
		t.Fatalf("flip err = %v, want ErrInvalidTransition", err)
	}
}

func TestDepositRejectionIsNoOp(t *testing.T) {
	eng, ms, userID := newTestEngine(t)
	ctx := context.Background()
	r, err := eng.SubmitDeposit(ctx, userID, d(500), model.RequestNote{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := eng.DecideRequest(ctx, r.ID, false); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if l := balance(t, ms, userID); !l.AccountBalance.IsZero() {
		t.Errorf("balance = %s, want 0", l.AccountBalance)
	}
}

func TestWithdrawalApprovalDebits(t *testing.T) {
	eng, ms, userID := newTestEngine(t)
	fund(t, ms, userID, d(1000))
	ctx := context.Background()

	r, err := eng.SubmitWithdrawal(ctx, userID, d(300), model.RequestNote{Method: "bank",
		Bank: &model.BankDetails{BankName: "First National", AccountNumber: "12345678"}})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	// Submission leaves the balance untouched.
	if l := balance(t, ms, userID); !l.AccountBalance.Equal(d(1000)) {
		t.Fatalf("balance = %s, want 1000 while pending", l.AccountBalance)
	}
	if _, err := eng.DecideRequest(ctx, r.ID, true); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if l := balance(t, ms, userID); !l.AccountBalance.Equal(d(700)) {
		t.Errorf("balance = %s, want 700", l.AccountBalance)
	}
}

func TestWithdrawalRejectNoHoldKeepsBalance(t *testing.T) {
	eng, ms, userID := newTestEngine(t)
	fund(t, ms, userID, d(1000))
	ctx := context.Background()

	r, err := eng.SubmitWithdrawal(ctx, userID, d(300), model.RequestNote{Method: "eth", Address: "0xabc"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := eng.DecideRequest(ctx, r.ID, false); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if l := balance(t, ms, userID); !l.AccountBalance.Equal(d(1000)) {
		t.Errorf("balance = %s, want 1000 (nothing was deducted)", l.AccountBalance)
	}
}

// seedHoldWithdrawal plants a legacy pre-deducted withdrawal row.
func seedHoldWithdrawal(t *testing.T, ms *store.MemoryStore, userID string, amount decimal.Decimal) string {
	t.Helper()
	id := uuid.NewString()
	err := ms.Update(context.Background(), userID, func(txn store.Txn) error {
		if err := txn.ApplyDelta(amount.Neg(), decimal.Zero); err != nil {
			return err
		}
		return txn.InsertRequest(model.MoneyRequest{
			ID:        id,
			UserID:    userID,
			Kind:      types.RequestKindWithdrawal,
			Amount:    amount,
			Status:    types.RequestStatusPending,
			Note:      model.RequestNote{Method: "btc", Address: "bc1qlegacy", Hold: true},
			CreatedAt: time.Now().UTC(),
		})
	})
	if err != nil {
		t.Fatalf("seed hold withdrawal: %v", err)
	}
	return id
}

func TestWithdrawalHoldApproveNoDoubleDebit(t *testing.T) {
	eng, ms, userID := newTestEngine(t)
	fund(t, ms, userID, d(1000))
	id := seedHoldWithdrawal(t, ms, userID, d(300))

	if l := balance(t, ms, userID); !l.AccountBalance.Equal(d(700)) {
		t.Fatalf("balance = %s, want 700 after pre-deduction", l.AccountBalance)
	}
	if _, err := eng.DecideRequest(context.Background(), id, true); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if l := balance(t, ms, userID); !l.AccountBalance.Equal(d(700)) {
		t.Errorf("balance = %s, want 700 (already deducted)", l.AccountBalance)
	}
}

func TestWithdrawalHoldRejectRefunds(t *testing.T) {
	eng, ms, userID := newTestEngine(t)
	fund(t, ms, userID, d(1000))
	id := seedHoldWithdrawal(t, ms, userID, d(300))

	decided, err := eng.DecideRequest(context.Background(), id, false)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if l := balance(t, ms, userID); !l.AccountBalance.Equal(d(1000)) {
		t.Errorf("balance = %s, want 1000 after refund", l.AccountBalance)
	}
	if decided.Note.Hold {
		t.Error("hold flag must be cleared after refund")
	}
	if !decided.Note.Refunded {
		t.Error("refunded flag must be set")
	}

	// Repeating the rejection must not refund twice.
	if _, err := eng.DecideRequest(context.Background(), id, false); err != nil {
		t.Fatalf("repeat reject: %v", err)
	}
	if l := balance(t, ms, userID); !l.AccountBalance.Equal(d(1000)) {
		t.Errorf("balance = %s, want 1000 after repeat", l.AccountBalance)
	}
}

func TestWithdrawalSubmitInsufficientFunds(t *testing.T) {
	eng, ms, userID := newTestEngine(t)
	fund(t, ms, userID, d(100))

	_, err := eng.SubmitWithdrawal(context.Background(), userID, d(200), model.RequestNote{Method: "btc", Address: "bc1q"})
	if !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
}

func TestWithdrawalApproveInsufficientFunds(t *testing.T) {
	// Balance can shrink between submission and approval.
	eng, ms, userID := newTestEngine(t)
	fund(t, ms, userID, d(300))
	ctx := context.Background()

	r, err := eng.SubmitWithdrawal(ctx, userID, d(300), model.RequestNote{Method: "btc", Address: "bc1q"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	openPosition(t, eng, userID, d(100))

	if _, err := eng.DecideRequest(ctx, r.ID, true); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	// Still pending; a later reject works.
	if _, err := eng.DecideRequest(ctx, r.ID, false); err != nil {
		t.Fatalf("reject after failed approve: %v", err)
	}
}

func TestDecideManyPerRowIsolation(t *testing.T) {
	eng, ms, userID := newTestEngine(t)
	fund(t, ms, userID, d(1000))
	ctx := context.Background()

	r1, _ := eng.SubmitDeposit(ctx, userID, d(100), model.RequestNote{})
	r2, _ := eng.SubmitDeposit(ctx, userID, d(200), model.RequestNote{})

	results := eng.DecideMany(ctx, []string{r1.ID, "missing", r2.ID}, true)
	if len(results) != 3 {
		t.Fatalf("results = %d, want 3", len(results))
	}
	if !results[0].OK || !results[2].OK {
		t.Error("valid rows must succeed")
	}
	if results[1].OK {
		t.Error("missing row must fail")
	}
	if l := balance(t, ms, userID); !l.AccountBalance.Equal(d(1300)) {
		t.Errorf("balance = %s, want 1300", l.AccountBalance)
	}
}

func TestCreditBonus(t *testing.T) {
	eng, ms, userID := newTestEngine(t)
	if err := eng.CreditBonus(context.Background(), userID, d(50)); err != nil {
		t.Fatalf("credit bonus: %v", err)
	}
	if l := balance(t, ms, userID); !l.BonusAmount.Equal(d(50)) {
		t.Errorf("bonus = %s, want 50", l.BonusAmount)
	}
}

func TestRecomputeProfit(t *testing.T) {
	eng, ms, userID := newTestEngine(t)
	fund(t, ms, userID, d(1000))
	ctx := context.Background()
	p := openPosition(t, eng, userID, d(100))
	if _, err := eng.ApplyPositionEdit(ctx, userID, reconcile.PositionEdit{
		ID: p.ID, Amount: d(100), Profit: d(42), Status: types.PositionStatusOpen,
	}); err != nil {
		t.Fatalf("edit: %v", err)
	}

	// Corrupt the snapshot, then rebuild it.
	if err := ms.Update(ctx, userID, func(txn store.Txn) error {
		return txn.SetProfitToday(d(999))
	}); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	sum, err := eng.RecomputeProfit(ctx, userID)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if !sum.Equal(d(42)) {
		t.Errorf("sum = %s, want 42", sum)
	}
	if l := balance(t, ms, userID); !l.ProfitToday.Equal(d(42)) {
		t.Errorf("profit_today = %s, want 42", l.ProfitToday)
	}
}
