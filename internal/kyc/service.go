// Package kyc handles identity submissions and admin review.
package kyc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"brokerhub/internal/model"
	"brokerhub/internal/notify"
	"brokerhub/internal/store"
	"brokerhub/internal/types"
)

var (
	ErrAlreadyVerified = errors.New("kyc already verified")
	ErrNotSubmitted    = errors.New("kyc not submitted")
)

var documentTypes = map[string]bool{
	"passport":        true,
	"id_card":         true,
	"drivers_license": true,
}

type Service struct {
	store    store.Store
	notifier notify.Dispatcher
	log      zerolog.Logger
}

func NewService(st store.Store, notifier notify.Dispatcher, log zerolog.Logger) *Service {
	return &Service{store: st, notifier: notifier, log: log}
}

type SubmitInput struct {
	FullName       string
	DocumentType   string
	DocumentNumber string
	State          string
	City           string
}

// Submit stores the user's identity record. Resubmission overwrites a
// pending record; a verified record is frozen.
func (s *Service) Submit(ctx context.Context, userID string, in SubmitInput) (*model.KYCRecord, error) {
	in.DocumentType = strings.ToLower(strings.TrimSpace(in.DocumentType))
	if !documentTypes[in.DocumentType] {
		return nil, errors.New("document_type must be passport, id_card or drivers_license")
	}
	if strings.TrimSpace(in.FullName) == "" || strings.TrimSpace(in.DocumentNumber) == "" {
		return nil, errors.New("full_name and document_number are required")
	}
	existing, err := s.store.GetKYC(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.Verified {
		return nil, ErrAlreadyVerified
	}
	rec := &model.KYCRecord{
		UserID:         userID,
		FullName:       strings.TrimSpace(in.FullName),
		DocumentType:   in.DocumentType,
		DocumentNumber: strings.TrimSpace(in.DocumentNumber),
		State:          strings.TrimSpace(in.State),
		City:           strings.TrimSpace(in.City),
		CreatedAt:      time.Now().UTC(),
	}
	if existing != nil {
		rec.CreatedAt = existing.CreatedAt
	}
	if err := s.store.PutKYC(ctx, rec); err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", userID).Str("document_type", rec.DocumentType).Msg("kyc submitted")
	return rec, nil
}

func (s *Service) Status(ctx context.Context, userID string) (*model.KYCRecord, error) {
	rec, err := s.store.GetKYC(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotSubmitted
	}
	return rec, err
}

// Review sets the verification flag and notifies the user.
func (s *Service) Review(ctx context.Context, userID string, verified bool) error {
	if err := s.store.SetKYCVerified(ctx, userID, verified); err != nil {
		return err
	}
	title, body := "Identity verified", "Your identity verification was approved."
	if !verified {
		title, body = "Identity review updated", "Your identity verification needs attention."
	}
	s.notifier.Notify(userID, types.EventKYCReviewed, title, body)
	return nil
}
