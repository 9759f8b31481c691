// Package store defines the persistence interface for the back office.
// PostgreSQL is the source of truth; the in-memory implementation backs
// the engine and handler tests.
package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"brokerhub/internal/model"
	"brokerhub/internal/types"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when registration reuses an email.
var ErrDuplicateEmail = errors.New("email already registered")

// Txn is the per-user atomic unit. Everything called on a Txn happens
// under the user's row lock (Postgres) or the user's mutex (memory);
// either all of it commits or none of it does.
type Txn interface {
	User() (model.User, error)
	SaveUser(u model.User) error

	Ledger() (model.Ledger, error)
	// ApplyDelta adjusts account_balance and bonus_amount relatively.
	ApplyDelta(balance, bonus decimal.Decimal) error
	// SetProfitToday overwrites the derived profit snapshot.
	SetProfitToday(v decimal.Decimal) error

	GetPosition(id string) (model.Position, error)
	InsertPosition(p model.Position) error
	SavePosition(p model.Position) error
	// SumOpenProfit sums profit over the user's open positions.
	SumOpenProfit() (decimal.Decimal, error)

	GetRequest(id string) (model.MoneyRequest, error)
	InsertRequest(r model.MoneyRequest) error
	SaveRequest(r model.MoneyRequest) error
}

// Store is the persistence interface.
type Store interface {
	// Update runs fn inside the per-user atomic unit. fn returning an
	// error aborts the whole unit.
	Update(ctx context.Context, userID string, fn func(Txn) error) error

	CreateUser(ctx context.Context, u *model.User, passwordHash string) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, string, error)

	GetLedger(ctx context.Context, userID string) (*model.Ledger, error)

	GetPosition(ctx context.Context, id string) (*model.Position, error)
	// ListPositions filters by status; empty status returns everything.
	ListPositions(ctx context.Context, userID string, status types.PositionStatus) ([]model.Position, error)

	GetRequest(ctx context.Context, id string) (*model.MoneyRequest, error)
	// ListRequests returns the user's requests newest first; limit <= 0
	// means no limit.
	ListRequests(ctx context.Context, userID string, limit int) ([]model.MoneyRequest, error)
	ListPendingRequests(ctx context.Context, kind types.RequestKind) ([]model.MoneyRequest, error)

	GetKYC(ctx context.Context, userID string) (*model.KYCRecord, error)
	PutKYC(ctx context.Context, rec *model.KYCRecord) error
	SetKYCVerified(ctx context.Context, userID string, verified bool) error

	ListExperts(ctx context.Context, activeOnly bool) ([]model.ExpertTrader, error)
	GetExpert(ctx context.Context, id string) (*model.ExpertTrader, error)
	PutExpert(ctx context.Context, e *model.ExpertTrader) error
	GetActiveSubscription(ctx context.Context, userID, expertID string) (*model.CopySubscription, error)
	ListSubscriptions(ctx context.Context, userID string) ([]model.CopySubscription, error)
	PutSubscription(ctx context.Context, sub *model.CopySubscription) error

	AddNotice(ctx context.Context, n *model.Notice) error
	ListNotices(ctx context.Context, userID string) ([]model.Notice, error)
	MarkNoticeRead(ctx context.Context, userID, noticeID string) error

	ListVendors(ctx context.Context) ([]model.Vendor, error)
	GetVendor(ctx context.Context, id string) (*model.Vendor, error)
	PutVendor(ctx context.Context, v *model.Vendor) error
	CreateTrade(ctx context.Context, tr *model.P2PTrade) error
	GetTrade(ctx context.Context, id string) (*model.P2PTrade, error)
	SaveTrade(ctx context.Context, tr *model.P2PTrade) error
	ListTrades(ctx context.Context, userID string) ([]model.P2PTrade, error)
	AddTradeMessage(ctx context.Context, m *model.TradeMessage) error
	ListTradeMessages(ctx context.Context, tradeID string) ([]model.TradeMessage, error)

	Ping(ctx context.Context) error
}
