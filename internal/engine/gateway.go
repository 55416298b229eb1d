package engine

import (
	"context"

	"futures-engine/internal/market"
	"futures-engine/internal/store"
	"futures-engine/pkg/exchanges/common"
)

// Gateway is the execution surface the engine consumes. Every call is a
// blocking I/O boundary that may fail with a transient or permanent remote
// error; see common.IsPermanent.
type Gateway interface {
	PlaceMarketOrder(ctx context.Context, symbol string, side common.Side, qty float64, clientID string) (common.OrderAck, error)
	PlaceStopOrder(ctx context.Context, symbol string, side common.Side, kind common.StopKind, stopPrice float64) (common.OrderAck, error)
	CancelAllOpenOrders(ctx context.Context, symbol string) error
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	SetMarginMode(ctx context.Context, symbol string, mode common.MarginMode) error
	Positions(ctx context.Context) ([]common.Position, error)
	OpenOrders(ctx context.Context, symbol string) ([]common.OpenOrder, error)
	RecentFills(ctx context.Context, symbol string, limit int) ([]common.Fill, error)
	SymbolFilters(ctx context.Context, symbol string) (common.SymbolFilters, error)
	MarkPrice(ctx context.Context, symbol string) (float64, error)
}

// MarketData supplies candle windows for signal evaluation.
type MarketData interface {
	Candles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error)
}

// SymbolSource discovers tradeable symbols when auto-discovery is enabled.
type SymbolSource interface {
	TopMovers(ctx context.Context, count int) ([]string, error)
}

// Ledger receives closed-trade records. Append must be idempotent on the
// order id so a closure observed twice is recorded once.
type Ledger interface {
	Append(ctx context.Context, t store.ClosedTrade) (bool, error)
}
