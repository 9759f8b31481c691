// Package copytrading manages the expert roster and the user's copy
// subscriptions.
package copytrading

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"brokerhub/internal/model"
	"brokerhub/internal/store"
)

var (
	ErrExpertInactive = errors.New("expert is not active")
	ErrNotSubscribed  = errors.New("no active subscription for this expert")
)

type Service struct {
	store store.Store
	log   zerolog.Logger
}

func NewService(st store.Store, log zerolog.Logger) *Service {
	return &Service{store: st, log: log}
}

// ExpertView decorates the roster entry with the computed win rate.
type ExpertView struct {
	model.ExpertTrader
	WinRatePct float64 `json:"win_rate_pct"`
}

func (s *Service) Roster(ctx context.Context) ([]ExpertView, error) {
	experts, err := s.store.ListExperts(ctx, true)
	if err != nil {
		return nil, err
	}
	out := make([]ExpertView, 0, len(experts))
	for _, e := range experts {
		out = append(out, ExpertView{ExpertTrader: e, WinRatePct: e.WinRate()})
	}
	return out, nil
}

// Copy starts copying an expert. An existing active subscription for
// the same expert is cancelled first, so the result is always exactly
// one fresh active row; subscriptions to other experts are left alone.
func (s *Service) Copy(ctx context.Context, userID, expertID string) (*model.CopySubscription, error) {
	expert, err := s.store.GetExpert(ctx, expertID)
	if err != nil {
		return nil, err
	}
	if !expert.Active {
		return nil, ErrExpertInactive
	}
	prev, err := s.store.GetActiveSubscription(ctx, userID, expertID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if prev != nil {
		now := time.Now().UTC()
		prev.Active = false
		prev.EndedAt = &now
		if err := s.store.PutSubscription(ctx, prev); err != nil {
			return nil, err
		}
	}
	sub := &model.CopySubscription{
		ID:        uuid.NewString(),
		UserID:    userID,
		ExpertID:  expertID,
		Active:    true,
		StartedAt: time.Now().UTC(),
	}
	if err := s.store.PutSubscription(ctx, sub); err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", userID).Str("expert_id", expertID).Msg("copy started")
	return sub, nil
}

// Cancel ends the active subscription and stamps ended_at.
func (s *Service) Cancel(ctx context.Context, userID, expertID string) (*model.CopySubscription, error) {
	sub, err := s.store.GetActiveSubscription(ctx, userID, expertID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotSubscribed
		}
		return nil, err
	}
	now := time.Now().UTC()
	sub.Active = false
	sub.EndedAt = &now
	if err := s.store.PutSubscription(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) Subscriptions(ctx context.Context, userID string) ([]model.CopySubscription, error) {
	return s.store.ListSubscriptions(ctx, userID)
}
