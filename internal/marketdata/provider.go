// Package marketdata supplies watchlist quotes from a pluggable
// provider with a short-lived cache in front.
package marketdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one watchlist row.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Change24h decimal.Decimal `json:"change_24h"`
	AsOf      time.Time       `json:"as_of"`
}

// Provider fetches quotes for a symbol set. Implementations may call
// an external feed; callers always go through the cache.
type Provider interface {
	Quotes(ctx context.Context, symbols []string) ([]Quote, error)
}

// WatchlistSymbols is the fixed symbol set shown to every user.
var WatchlistSymbols = []string{"BTC", "ETH", "SOL", "EURUSD", "GOLD", "SILVER", "OIL"}
