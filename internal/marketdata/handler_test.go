package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingProvider struct {
	calls int
	fail  bool
}

func (p *countingProvider) Quotes(_ context.Context, symbols []string) ([]Quote, error) {
	p.calls++
	if p.fail {
		return nil, errors.New("feed down")
	}
	out := make([]Quote, len(symbols))
	for i, s := range symbols {
		out[i] = Quote{Symbol: s, AsOf: time.Now().UTC()}
	}
	return out, nil
}

func TestCacheServesWithinTTL(t *testing.T) {
	p := &countingProvider{}
	h := NewHandler(p, time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := h.quotes(ctx); err != nil {
			t.Fatalf("quotes: %v", err)
		}
	}
	if p.calls != 1 {
		t.Errorf("provider calls = %d, want 1", p.calls)
	}
}

func TestCacheExpires(t *testing.T) {
	p := &countingProvider{}
	h := NewHandler(p, time.Nanosecond)
	ctx := context.Background()

	_, _ = h.quotes(ctx)
	time.Sleep(time.Millisecond)
	_, _ = h.quotes(ctx)
	if p.calls != 2 {
		t.Errorf("provider calls = %d, want 2", p.calls)
	}
}

func TestStaleCacheOnProviderError(t *testing.T) {
	p := &countingProvider{}
	h := NewHandler(p, time.Nanosecond)
	ctx := context.Background()

	if _, err := h.quotes(ctx); err != nil {
		t.Fatalf("warm-up: %v", err)
	}
	p.fail = true
	time.Sleep(time.Millisecond)
	quotes, err := h.quotes(ctx)
	if err != nil {
		t.Fatalf("stale serve: %v", err)
	}
	if len(quotes) != len(WatchlistSymbols) {
		t.Errorf("quotes = %d, want %d", len(quotes), len(WatchlistSymbols))
	}
}

func TestStaticProviderCoversWatchlist(t *testing.T) {
	quotes, err := StaticProvider{}.Quotes(context.Background(), WatchlistSymbols)
	if err != nil {
		t.Fatalf("quotes: %v", err)
	}
	if len(quotes) != len(WatchlistSymbols) {
		t.Fatalf("quotes = %d, want %d", len(quotes), len(WatchlistSymbols))
	}
	for _, q := range quotes {
		if q.Price.IsZero() {
			t.Errorf("symbol %s has zero price", q.Symbol)
		}
	}
}
