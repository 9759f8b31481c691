// Package reconcile is the only writer of ledger balances. Every
// position or money-request transition maps the (previous, proposed)
// pair to one ledger delta, applies it atomically with the status and
// timestamp writes, then refreshes the profit_today snapshot from the
// open positions.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"brokerhub/internal/ledger"
	"brokerhub/internal/metrics"
	"brokerhub/internal/model"
	"brokerhub/internal/notify"
	"brokerhub/internal/store"
	"brokerhub/internal/types"
)

type Engine struct {
	store    store.Store
	notifier notify.Dispatcher
	log      zerolog.Logger
}

func NewEngine(st store.Store, notifier notify.Dispatcher, log zerolog.Logger) *Engine {
	return &Engine{store: st, notifier: notifier, log: log}
}

// OpenInput describes a position to open.
type OpenInput struct {
	Asset    string
	Side     types.PositionSide
	Amount   decimal.Decimal
	Leverage string
	Duration string
	Actor    types.ActorKind
}

// OpenPosition debits the principal and creates the open position.
func (e *Engine) OpenPosition(ctx context.Context, userID string, in OpenInput) (model.Position, error) {
	if in.Asset == "" {
		return model.Position{}, errors.New("asset is required")
	}
	if !types.ValidSide(in.Side) {
		return model.Position{}, errors.New("side must be buy or sell")
	}
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return model.Position{}, errors.New("amount must be positive")
	}
	p := model.Position{
		ID:       uuid.NewString(),
		UserID:   userID,
		Asset:    in.Asset,
		Side:     in.Side,
		Amount:   in.Amount,
		Profit:   decimal.Zero,
		Status:   types.PositionStatusOpen,
		Leverage: in.Leverage,
		Duration: in.Duration,
		OpenedBy: in.Actor,
		OpenedAt: time.Now().UTC(),
	}
	err := e.update(ctx, userID, "position_open", func(txn store.Txn) error {
		l, err := txn.Ledger()
		if err != nil {
			return err
		}
		if l.AccountBalance.LessThan(in.Amount) {
			return ledger.ErrInsufficientFunds
		}
		if err := txn.ApplyDelta(in.Amount.Neg(), decimal.Zero); err != nil {
			return err
		}
		if err := txn.InsertPosition(p); err != nil {
			return err
		}
		return refreshProfit(txn)
	})
	if err != nil {
		return model.Position{}, err
	}
	e.notifier.Notify(userID, types.EventPositionOpened, "Trade opened",
		fmt.Sprintf("%s %s for %s opened", in.Side, in.Asset, in.Amount))
	return p, nil
}

// ClosePosition returns the principal plus accumulated profit to the
// balance and stamps closed_at. Closing an already closed position is
// an invalid transition; under concurrent closes exactly one wins.
func (e *Engine) ClosePosition(ctx context.Context, userID, positionID string) (model.Position, error) {
	var out model.Position
	err := e.update(ctx, userID, "position_close", func(txn store.Txn) error {
		p, err := txn.GetPosition(positionID)
		if err != nil {
			return err
		}
		if p.Status != types.PositionStatusOpen {
			return ledger.ErrInvalidTransition
		}
		if err := txn.ApplyDelta(p.Amount.Add(p.Profit), decimal.Zero); err != nil {
			return err
		}
		now := time.Now().UTC()
		p.Status = types.PositionStatusClosed
		p.ClosedAt = &now
		if err := txn.SavePosition(p); err != nil {
			return err
		}
		out = p
		return refreshProfit(txn)
	})
	if err != nil {
		return model.Position{}, err
	}
	e.notifier.Notify(userID, types.EventPositionClosed, "Trade closed",
		fmt.Sprintf("%s closed with profit %s", out.Asset, out.Profit))
	return out, nil
}

// ReopenPosition reverses a close: the principal is debited again and
// closed_at cleared. Admin correction, so no funds check.
func (e *Engine) ReopenPosition(ctx context.Context, userID, positionID string) (model.Position, error) {
	var out model.Position
	err := e.update(ctx, userID, "position_reopen", func(txn store.Txn) error {
		p, err := txn.GetPosition(positionID)
		if err != nil {
			return err
		}
		if p.Status != types.PositionStatusClosed {
			return ledger.ErrInvalidTransition
		}
		if err := txn.ApplyDelta(p.Amount.Neg(), decimal.Zero); err != nil {
			return err
		}
		p.Status = types.PositionStatusOpen
		p.ClosedAt = nil
		if err := txn.SavePosition(p); err != nil {
			return err
		}
		out = p
		return refreshProfit(txn)
	})
	return out, err
}

// PositionEdit is a proposed new state for an existing position.
type PositionEdit struct {
	ID     string
	Amount decimal.Decimal
	Profit decimal.Decimal
	Status types.PositionStatus
}

// ApplyPositionEdit reconciles an arbitrary admin edit against the
// stored position. The delta is derived from the snapshot taken before
// anything is written, so saving the same state twice is a no-op.
func (e *Engine) ApplyPositionEdit(ctx context.Context, userID string, edit PositionEdit) (model.Position, error) {
	if edit.Amount.LessThanOrEqual(decimal.Zero) {
		return model.Position{}, errors.New("amount must be positive")
	}
	if edit.Status != types.PositionStatusOpen && edit.Status != types.PositionStatusClosed {
		return model.Position{}, errors.New("status must be open or closed")
	}
	var out model.Position
	err := e.update(ctx, userID, "position_edit", func(txn store.Txn) error {
		prev, err := txn.GetPosition(edit.ID)
		if err != nil {
			return err
		}
		next := prev
		next.Amount = edit.Amount
		next.Profit = edit.Profit
		next.Status = edit.Status

		switch {
		case prev.Status == types.PositionStatusOpen && next.Status == types.PositionStatusClosed:
			// Closing via edit pays out the edited amount and profit.
			if err := txn.ApplyDelta(next.Amount.Add(next.Profit), decimal.Zero); err != nil {
				return err
			}
			now := time.Now().UTC()
			next.ClosedAt = &now
		case prev.Status == types.PositionStatusClosed && next.Status == types.PositionStatusOpen:
			if err := txn.ApplyDelta(next.Amount.Neg(), decimal.Zero); err != nil {
				return err
			}
			next.ClosedAt = nil
		case prev.Status == types.PositionStatusOpen && next.Status == types.PositionStatusOpen:
			// Amount change while open moves the difference.
			diff := next.Amount.Sub(prev.Amount)
			if !diff.IsZero() {
				if err := txn.ApplyDelta(diff.Neg(), decimal.Zero); err != nil {
					return err
				}
			}
		default:
			// closed -> closed: field edits only, no ledger delta.
		}

		if err := txn.SavePosition(next); err != nil {
			return err
		}
		out = next
		return refreshProfit(txn)
	})
	return out, err
}

// SubmitDeposit creates a pending deposit. No ledger effect until the
// decision.
func (e *Engine) SubmitDeposit(ctx context.Context, userID string, amount decimal.Decimal, note model.RequestNote) (model.MoneyRequest, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return model.MoneyRequest{}, errors.New("amount must be positive")
	}
	r := model.MoneyRequest{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      types.RequestKindDeposit,
		Amount:    amount,
		Status:    types.RequestStatusPending,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
	err := e.update(ctx, userID, "deposit_submit", func(txn store.Txn) error {
		return txn.InsertRequest(r)
	})
	if err != nil {
		return model.MoneyRequest{}, err
	}
	return r, nil
}

// SubmitWithdrawal creates a pending withdrawal with hold=false: the
// principal stays on the balance until approval, but the balance must
// cover the amount at submission time.
func (e *Engine) SubmitWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, note model.RequestNote) (model.MoneyRequest, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return model.MoneyRequest{}, errors.New("amount must be positive")
	}
	note.Hold = false
	note.Refunded = false
	r := model.MoneyRequest{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      types.RequestKindWithdrawal,
		Amount:    amount,
		Status:    types.RequestStatusPending,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	}
	err := e.update(ctx, userID, "withdrawal_submit", func(txn store.Txn) error {
		l, err := txn.Ledger()
		if err != nil {
			return err
		}
		if l.AccountBalance.LessThan(amount) {
			return ledger.ErrInsufficientFunds
		}
		return txn.InsertRequest(r)
	})
	if err != nil {
		return model.MoneyRequest{}, err
	}
	return r, nil
}

// DecideRequest applies the one-time decision for a deposit or
// withdrawal. Repeating the same decision is a no-op; a conflicting
// decision fails with ErrInvalidTransition.
func (e *Engine) DecideRequest(ctx context.Context, requestID string, approve bool) (model.MoneyRequest, error) {
	stored, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.MoneyRequest{}, ledger.ErrNotFound
		}
		return model.MoneyRequest{}, err
	}
	target := types.RequestStatusRejected
	if approve {
		target = types.RequestStatusApproved
	}
	event := string(stored.Kind) + "_decide"
	var out model.MoneyRequest
	err = e.update(ctx, stored.UserID, event, func(txn store.Txn) error {
		r, err := txn.GetRequest(requestID)
		if err != nil {
			return err
		}
		if r.Decided() {
			if r.Status == target {
				out = r
				return nil
			}
			return ledger.ErrInvalidTransition
		}

		switch {
		case r.Kind == types.RequestKindDeposit && approve:
			if err := txn.ApplyDelta(r.Amount, decimal.Zero); err != nil {
				return err
			}
		case r.Kind == types.RequestKindDeposit:
			// Rejected deposit never touched the balance.
		case r.Kind == types.RequestKindWithdrawal && approve:
			if !r.Note.Hold {
				l, err := txn.Ledger()
				if err != nil {
					return err
				}
				if l.AccountBalance.LessThan(r.Amount) {
					return ledger.ErrInsufficientFunds
				}
				if err := txn.ApplyDelta(r.Amount.Neg(), decimal.Zero); err != nil {
					return err
				}
			}
			// hold=true rows were already debited at submission.
		default:
			// Rejected withdrawal refunds only pre-deducted principal.
			if r.Note.Hold {
				if err := txn.ApplyDelta(r.Amount, decimal.Zero); err != nil {
					return err
				}
				r.Note.Hold = false
				r.Note.Refunded = true
			}
		}

		now := time.Now().UTC()
		r.Status = target
		r.DecidedAt = &now
		if err := txn.SaveRequest(r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return model.MoneyRequest{}, err
	}
	e.notifyDecision(out)
	metrics.RequestsDecidedTotal.WithLabelValues(string(out.Kind), string(out.Status)).Inc()
	return out, nil
}

// DecisionResult is the per-row outcome of a bulk decide.
type DecisionResult struct {
	RequestID string `json:"request_id"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

// DecideMany processes each request independently. One failing row
// never rolls back the others.
func (e *Engine) DecideMany(ctx context.Context, requestIDs []string, approve bool) []DecisionResult {
	out := make([]DecisionResult, 0, len(requestIDs))
	for _, id := range requestIDs {
		_, err := e.DecideRequest(ctx, id, approve)
		res := DecisionResult{RequestID: id, OK: err == nil}
		if err != nil {
			res.Error = err.Error()
		}
		out = append(out, res)
	}
	return out
}

// CreditBonus adds to bonus_amount. Claimed later through the ledger
// service.
func (e *Engine) CreditBonus(ctx context.Context, userID string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("amount must be positive")
	}
	err := e.update(ctx, userID, "bonus_credit", func(txn store.Txn) error {
		return txn.ApplyDelta(decimal.Zero, amount)
	})
	if err != nil {
		return err
	}
	e.notifier.Notify(userID, types.EventBonusCredited, "Bonus credited",
		fmt.Sprintf("A bonus of %s was added to your account", amount))
	return nil
}

// RecomputeProfit rebuilds the profit_today snapshot from the open
// positions.
func (e *Engine) RecomputeProfit(ctx context.Context, userID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := e.update(ctx, userID, "profit_recompute", func(txn store.Txn) error {
		var err error
		sum, err = txn.SumOpenProfit()
		if err != nil {
			return err
		}
		return txn.SetProfitToday(sum)
	})
	return sum, err
}

func (e *Engine) notifyDecision(r model.MoneyRequest) {
	kind := types.EventDepositDecided
	noun := "deposit"
	if r.Kind == types.RequestKindWithdrawal {
		kind = types.EventWithdrawalDecided
		noun = "withdrawal"
	}
	verb := "rejected"
	if r.Status == types.RequestStatusApproved {
		verb = "approved"
	}
	e.notifier.Notify(r.UserID, kind, "Request "+verb,
		fmt.Sprintf("Your %s of %s was %s", noun, r.Amount, verb))
}

func (e *Engine) update(ctx context.Context, userID, event string, fn func(store.Txn) error) error {
	err := e.store.Update(ctx, userID, fn)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			err = ledger.ErrNotFound
		}
		metrics.ReconciliationsTotal.WithLabelValues(event, "error").Inc()
		e.log.Warn().Err(err).Str("user_id", userID).Str("event", event).Msg("reconciliation failed")
		return err
	}
	metrics.ReconciliationsTotal.WithLabelValues(event, "ok").Inc()
	return nil
}

func refreshProfit(txn store.Txn) error {
	sum, err := txn.SumOpenProfit()
	if err != nil {
		return err
	}
	return txn.SetProfitToday(sum)
}
