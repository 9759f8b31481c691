// Package model holds the persisted entities of the back office: the
// per-user ledger, simulated trading positions, and money-movement
// requests awaiting review.
package model

import (
	"time"

	"github.com/shopspring/decimal"

	"brokerhub/internal/types"
)

// Ledger is the three-field balance record owned by a user. It is only
// ever mutated through the reconciliation engine; profit_today is a
// derived snapshot over the user's open positions, never adjusted
// incrementally.
type Ledger struct {
	UserID         string          `json:"user_id"`
	AccountBalance decimal.Decimal `json:"account_balance"`
	ProfitToday    decimal.Decimal `json:"profit_today"`
	BonusAmount    decimal.Decimal `json:"bonus_amount"`
}

// Position is a simulated trade. Principal is debited from the ledger
// when the position opens and returned together with profit when it
// closes.
type Position struct {
	ID       string                `json:"id"`
	UserID   string                `json:"user_id"`
	Asset    string                `json:"asset"`
	Side     types.PositionSide    `json:"side"`
	Amount   decimal.Decimal       `json:"amount"`
	Profit   decimal.Decimal       `json:"profit"`
	Status   types.PositionStatus  `json:"status"`
	Leverage string                `json:"leverage,omitempty"`
	Duration string                `json:"duration,omitempty"`
	OpenedBy types.ActorKind       `json:"opened_by"`
	OpenedAt time.Time             `json:"opened_at"`
	ClosedAt *time.Time            `json:"closed_at,omitempty"`
}

// MoneyRequest is a deposit or withdrawal awaiting or having received a
// decision. Status moves from pending to approved or rejected exactly
// once; the decision is the single point where the ledger delta and the
// decided_at stamp are applied.
type MoneyRequest struct {
	ID        string              `json:"id"`
	UserID    string              `json:"user_id"`
	Kind      types.RequestKind   `json:"kind"`
	Amount    decimal.Decimal     `json:"amount"`
	Status    types.RequestStatus `json:"status"`
	Note      RequestNote         `json:"note"`
	CreatedAt time.Time           `json:"created_at"`
	DecidedAt *time.Time          `json:"decided_at,omitempty"`
}

// Decided reports whether the request has already received its one-time
// decision.
func (r MoneyRequest) Decided() bool {
	return r.Status != types.RequestStatusPending
}

// User carries the profile and plan-upgrade fields. Ledger fields live
// on the same row in Postgres but are modelled separately so they stay
// behind the reconciliation engine.
type User struct {
	ID              string         `json:"id"`
	Email           string         `json:"email"`
	FullName        string         `json:"full_name"`
	Country         string         `json:"country"`
	Currency        string         `json:"currency"`
	CurrentPlan     types.PlanCode `json:"current_plan"`
	PendingPlan     types.PlanCode `json:"pending_plan,omitempty"`
	UpgradeProgress int            `json:"upgrade_progress"`
	UpgradeNote     string         `json:"upgrade_note,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// KYCRecord is the one-per-user identity submission.
type KYCRecord struct {
	UserID         string    `json:"user_id"`
	FullName       string    `json:"full_name"`
	DocumentType   string    `json:"document_type"`
	DocumentNumber string    `json:"document_number"`
	State          string    `json:"state,omitempty"`
	City           string    `json:"city,omitempty"`
	Verified       bool      `json:"verified"`
	CreatedAt      time.Time `json:"created_at"`
}

// ExpertTrader is a copy-trading roster entry.
type ExpertTrader struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	ProfitShare int       `json:"profit_share"`
	Active      bool      `json:"active"`
	Bio         string    `json:"bio,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// WinRate is wins over total decided copy trades, in percent.
func (e ExpertTrader) WinRate() float64 {
	total := e.Wins + e.Losses
	if total == 0 {
		return 0
	}
	return float64(e.Wins) / float64(total) * 100
}

// CopySubscription links a user to an expert. At most one active
// subscription per (user, expert) pair.
type CopySubscription struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	ExpertID  string     `json:"expert_id"`
	Active    bool       `json:"active"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Notice is a one-to-one message from the admin console to a user,
// shown until marked read.
type Notice struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
