package market

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"futures-engine/pkg/exchanges/binance/futures"
)

// Fetcher pulls historical candles over REST and normalizes the raw kline
// arrays into typed Candle values.
type Fetcher struct {
	client *futures.Client
}

// NewFetcher wraps a futures REST client.
func NewFetcher(client *futures.Client) *Fetcher {
	return &Fetcher{client: client}
}

// Candles fetches up to limit candles for symbol at the given interval.
func (f *Fetcher) Candles(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	raw, err := f.client.Klines(ctx, symbol, interval, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s %s: %w", symbol, interval, err)
	}
	candles := make([]Candle, 0, len(raw))
	for _, item := range raw {
		// Binance returns 12 fields per kline; the first 7 are what we keep.
		if len(item) < 7 {
			continue
		}
		candles = append(candles, Candle{
			OpenTime:  asInt64(item[0]),
			Open:      asFloat(item[1]),
			High:      asFloat(item[2]),
			Low:       asFloat(item[3]),
			Close:     asFloat(item[4]),
			Volume:    asFloat(item[5]),
			CloseTime: asInt64(item[6]),
		})
	}
	return candles, nil
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	case json.Number:
		f, _ := t.Float64()
		return f
	case float64:
		return t
	default:
		return 0
	}
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case json.Number:
		i, _ := t.Int64()
		return i
	default:
		return 0
	}
}
