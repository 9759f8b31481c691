// Package p2p implements vendor trades and their chat rooms.
package p2p

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"brokerhub/internal/model"
	"brokerhub/internal/store"
	"brokerhub/internal/types"
)

var (
	ErrVendorInactive   = errors.New("vendor is not active")
	ErrAmountOutOfRange = errors.New("amount outside vendor limits")
	ErrNotParticipant   = errors.New("not a participant of this trade")
	ErrBadTransition    = errors.New("trade status does not allow this")
)

type Service struct {
	store store.Store
	log   zerolog.Logger
}

func NewService(st store.Store, log zerolog.Logger) *Service {
	return &Service{store: st, log: log}
}

func (s *Service) Vendors(ctx context.Context) ([]model.Vendor, error) {
	return s.store.ListVendors(ctx)
}

// OpenTrade starts a pending trade with a vendor and seeds the chat
// with a system line.
func (s *Service) OpenTrade(ctx context.Context, userID, vendorID string, amount decimal.Decimal) (*model.P2PTrade, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, errors.New("amount must be positive")
	}
	v, err := s.store.GetVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if !v.Active {
		return nil, ErrVendorInactive
	}
	if amount.LessThan(v.MinAmount) || amount.GreaterThan(v.MaxAmount) {
		return nil, ErrAmountOutOfRange
	}
	now := time.Now().UTC()
	tr := &model.P2PTrade{
		ID:        uuid.NewString(),
		UserID:    userID,
		VendorID:  vendorID,
		Amount:    amount,
		Status:    types.TradeStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateTrade(ctx, tr); err != nil {
		return nil, err
	}
	_ = s.postSystem(ctx, tr.ID, "Trade opened for "+amount.String()+" with "+v.Name+". Follow the payment instructions.")
	s.log.Info().Str("trade_id", tr.ID).Str("user_id", userID).Str("vendor_id", vendorID).Msg("p2p trade opened")
	return tr, nil
}

func (s *Service) GetTrade(ctx context.Context, userID, tradeID string) (*model.P2PTrade, error) {
	tr, err := s.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if tr.UserID != userID {
		return nil, ErrNotParticipant
	}
	return tr, nil
}

func (s *Service) ListTrades(ctx context.Context, userID string) ([]model.P2PTrade, error) {
	return s.store.ListTrades(ctx, userID)
}

// MarkPaid moves a pending trade to paid, attaching the payment proof
// reference and emitting a system chat line.
func (s *Service) MarkPaid(ctx context.Context, userID, tradeID, proofFile string) (*model.P2PTrade, error) {
	tr, err := s.GetTrade(ctx, userID, tradeID)
	if err != nil {
		return nil, err
	}
	if tr.Status != types.TradeStatusPending {
		return nil, ErrBadTransition
	}
	tr.Status = types.TradeStatusPaid
	tr.ProofFile = strings.TrimSpace(proofFile)
	tr.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveTrade(ctx, tr); err != nil {
		return nil, err
	}
	_ = s.postSystem(ctx, tr.ID, "Buyer marked the trade as paid.")
	return tr, nil
}

// Cancel aborts a trade the user has not paid yet.
func (s *Service) Cancel(ctx context.Context, userID, tradeID string) (*model.P2PTrade, error) {
	tr, err := s.GetTrade(ctx, userID, tradeID)
	if err != nil {
		return nil, err
	}
	if tr.Status != types.TradeStatusPending {
		return nil, ErrBadTransition
	}
	tr.Status = types.TradeStatusCancelled
	tr.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveTrade(ctx, tr); err != nil {
		return nil, err
	}
	_ = s.postSystem(ctx, tr.ID, "Trade cancelled by the buyer.")
	return tr, nil
}

// SetStatus is the admin-side transition: paid trades complete, and
// pending or paid trades can be cancelled.
func (s *Service) SetStatus(ctx context.Context, tradeID string, status types.TradeStatus) (*model.P2PTrade, error) {
	tr, err := s.store.GetTrade(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	switch status {
	case types.TradeStatusCompleted:
		if tr.Status != types.TradeStatusPaid {
			return nil, ErrBadTransition
		}
	case types.TradeStatusCancelled:
		if tr.Status != types.TradeStatusPending && tr.Status != types.TradeStatusPaid {
			return nil, ErrBadTransition
		}
	default:
		return nil, ErrBadTransition
	}
	tr.Status = status
	tr.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveTrade(ctx, tr); err != nil {
		return nil, err
	}
	_ = s.postSystem(ctx, tr.ID, "Trade marked "+string(status)+".")
	return tr, nil
}

// Messages returns the chat history for a trade the user participates
// in.
func (s *Service) Messages(ctx context.Context, userID, tradeID string) ([]model.TradeMessage, error) {
	if _, err := s.GetTrade(ctx, userID, tradeID); err != nil {
		return nil, err
	}
	return s.store.ListTradeMessages(ctx, tradeID)
}

// PostMessage appends a chat line from the user.
func (s *Service) PostMessage(ctx context.Context, userID, tradeID, body string) (*model.TradeMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, errors.New("message body is empty")
	}
	if _, err := s.GetTrade(ctx, userID, tradeID); err != nil {
		return nil, err
	}
	m := &model.TradeMessage{
		ID:        uuid.NewString(),
		TradeID:   tradeID,
		SenderID:  userID,
		Sender:    "user",
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.AddTradeMessage(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Service) postSystem(ctx context.Context, tradeID, body string) error {
	return s.store.AddTradeMessage(ctx, &model.TradeMessage{
		ID:        uuid.NewString(),
		TradeID:   tradeID,
		Sender:    "system",
		Body:      body,
		CreatedAt: time.Now().UTC(),
	})
}
