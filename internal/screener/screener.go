// Package screener discovers tradeable symbols by ranking the 24h movers
// on the futures venue.
package screener

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"futures-engine/pkg/exchanges/common"
)

// TickerSource provides the 24h statistics the screener ranks.
type TickerSource interface {
	Tickers(ctx context.Context) ([]common.Ticker, error)
}

// Screener picks the most volatile USDT-margined symbols.
type Screener struct {
	source TickerSource
}

// New builds a screener over a ticker source.
func New(source TickerSource) *Screener {
	return &Screener{source: source}
}

// TopMovers returns up to count USDT symbols ranked by absolute 24h change.
// Stablecoin pairs are excluded.
func (s *Screener) TopMovers(ctx context.Context, count int) ([]string, error) {
	tickers, err := s.source.Tickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("screener: fetch tickers: %w", err)
	}

	eligible := tickers[:0]
	for _, t := range tickers {
		if !strings.HasSuffix(t.Symbol, "USDT") {
			continue
		}
		if strings.Contains(t.Symbol, "BUSD") || strings.Contains(t.Symbol, "USDC") {
			continue
		}
		eligible = append(eligible, t)
	}
	if len(eligible) == 0 {
		return nil, fmt.Errorf("screener: no eligible USDT symbols")
	}

	sort.Slice(eligible, func(i, j int) bool {
		return math.Abs(eligible[i].PriceChangePercent) > math.Abs(eligible[j].PriceChangePercent)
	})

	if count > len(eligible) {
		count = len(eligible)
	}
	out := make([]string, 0, count)
	for _, t := range eligible[:count] {
		out = append(out, t.Symbol)
	}
	return out, nil
}
