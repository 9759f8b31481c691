package kyc

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"brokerhub/internal/notify"
	"brokerhub/internal/store"
)

func newTestService() *Service {
	return NewService(store.NewMemoryStore(), notify.Noop{}, zerolog.Nop())
}

func TestSubmitAndStatus(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Status(ctx, "u1"); !errors.Is(err, ErrNotSubmitted) {
		t.Fatalf("status before submit: err = %v", err)
	}

	rec, err := svc.Submit(ctx, "u1", SubmitInput{
		FullName:       "  Alice Smith ",
		DocumentType:   " Passport ",
		DocumentNumber: "P1234567",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if rec.DocumentType != "passport" {
		t.Fatalf("document_type = %q", rec.DocumentType)
	}
	if rec.FullName != "Alice Smith" {
		t.Fatalf("full_name = %q", rec.FullName)
	}

	got, err := svc.Status(ctx, "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if got.Verified {
		t.Fatal("fresh submission marked verified")
	}
}

func TestResubmitKeepsOriginalTimestamp(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	first, err := svc.Submit(ctx, "u1", SubmitInput{FullName: "A", DocumentType: "id_card", DocumentNumber: "1"})
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := svc.Submit(ctx, "u1", SubmitInput{FullName: "A B", DocumentType: "passport", DocumentNumber: "2"})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("created_at changed on resubmit: %v != %v", second.CreatedAt, first.CreatedAt)
	}
	if second.DocumentNumber != "2" {
		t.Fatalf("resubmit not applied: %+v", second)
	}
}

func TestVerifiedRecordIsFrozen(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	if _, err := svc.Submit(ctx, "u1", SubmitInput{FullName: "A", DocumentType: "passport", DocumentNumber: "1"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := svc.Review(ctx, "u1", true); err != nil {
		t.Fatalf("review: %v", err)
	}

	_, err := svc.Submit(ctx, "u1", SubmitInput{FullName: "B", DocumentType: "passport", DocumentNumber: "2"})
	if !errors.Is(err, ErrAlreadyVerified) {
		t.Fatalf("resubmit after verify: err = %v", err)
	}
}

func TestSubmitRejectsBadDocumentType(t *testing.T) {
	svc := newTestService()
	if _, err := svc.Submit(context.Background(), "u1", SubmitInput{
		FullName:       "A",
		DocumentType:   "library_card",
		DocumentNumber: "1",
	}); err == nil {
		t.Fatal("unknown document type accepted")
	}
}

func TestReviewUnknownUser(t *testing.T) {
	svc := newTestService()
	if err := svc.Review(context.Background(), "ghost", true); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("review unknown user: err = %v", err)
	}
}
