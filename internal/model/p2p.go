package model

import (
	"time"

	"github.com/shopspring/decimal"

	"brokerhub/internal/types"
)

// Vendor is a P2P counterparty users can open trades against.
type Vendor struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Rating    decimal.Decimal `json:"rating"`
	Trades    int             `json:"trades"`
	MinAmount decimal.Decimal `json:"min_amount"`
	MaxAmount decimal.Decimal `json:"max_amount"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
}

// P2PTrade is a user-initiated trade with a vendor. Status moves
// pending -> paid -> completed, or to cancelled from pending/paid.
type P2PTrade struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	VendorID  string            `json:"vendor_id"`
	Amount    decimal.Decimal   `json:"amount"`
	Status    types.TradeStatus `json:"status"`
	ProofFile string            `json:"proof_file,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// TradeMessage is one chat line inside a trade room. System lines carry
// an empty SenderID and Sender set to "system".
type TradeMessage struct {
	ID        string    `json:"id"`
	TradeID   string    `json:"trade_id"`
	SenderID  string    `json:"sender_id,omitempty"`
	Sender    string    `json:"sender"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
