// Package ledger owns direct balance operations: credits, debits, and
// the profit/bonus claims. Everything runs inside the store's per-user
// atomic unit; callers never see partial state.
package ledger

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"brokerhub/internal/model"
	"brokerhub/internal/store"
)

type Service struct {
	store store.Store
	log   zerolog.Logger
}

func NewService(st store.Store, log zerolog.Logger) *Service {
	return &Service{store: st, log: log}
}

// Snapshot returns the current balance triple.
func (s *Service) Snapshot(ctx context.Context, userID string) (model.Ledger, error) {
	l, err := s.store.GetLedger(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.Ledger{}, ErrNotFound
		}
		return model.Ledger{}, err
	}
	return *l, nil
}

// Credit adds amount to account_balance.
func (s *Service) Credit(ctx context.Context, userID string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("amount must be positive")
	}
	return s.update(ctx, userID, func(txn store.Txn) error {
		return txn.ApplyDelta(amount, decimal.Zero)
	})
}

// Debit removes amount from account_balance, failing when the balance
// would go negative.
func (s *Service) Debit(ctx context.Context, userID string, amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("amount must be positive")
	}
	return s.update(ctx, userID, func(txn store.Txn) error {
		l, err := txn.Ledger()
		if err != nil {
			return err
		}
		if l.AccountBalance.LessThan(amount) {
			return ErrInsufficientFunds
		}
		return txn.ApplyDelta(amount.Neg(), decimal.Zero)
	})
}

// ClaimProfit moves the whole profit_today snapshot into the balance
// and zeroes it.
func (s *Service) ClaimProfit(ctx context.Context, userID string) (decimal.Decimal, error) {
	var claimed decimal.Decimal
	err := s.update(ctx, userID, func(txn store.Txn) error {
		l, err := txn.Ledger()
		if err != nil {
			return err
		}
		if l.ProfitToday.LessThanOrEqual(decimal.Zero) {
			return ErrNothingToClaim
		}
		claimed = l.ProfitToday
		if err := txn.ApplyDelta(claimed, decimal.Zero); err != nil {
			return err
		}
		return txn.SetProfitToday(decimal.Zero)
	})
	if err != nil {
		return decimal.Zero, err
	}
	s.log.Info().Str("user_id", userID).Str("amount", claimed.String()).Msg("profit claimed")
	return claimed, nil
}

// ClaimBonus moves the whole bonus_amount into the balance and zeroes
// it.
func (s *Service) ClaimBonus(ctx context.Context, userID string) (decimal.Decimal, error) {
	var claimed decimal.Decimal
	err := s.update(ctx, userID, func(txn store.Txn) error {
		l, err := txn.Ledger()
		if err != nil {
			return err
		}
		if l.BonusAmount.LessThanOrEqual(decimal.Zero) {
			return ErrNothingToClaim
		}
		claimed = l.BonusAmount
		return txn.ApplyDelta(claimed, claimed.Neg())
	})
	if err != nil {
		return decimal.Zero, err
	}
	s.log.Info().Str("user_id", userID).Str("amount", claimed.String()).Msg("bonus claimed")
	return claimed, nil
}

func (s *Service) update(ctx context.Context, userID string, fn func(store.Txn) error) error {
	err := s.store.Update(ctx, userID, fn)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
