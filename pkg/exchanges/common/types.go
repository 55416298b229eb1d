package common

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the closing side for a given side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// StopKind distinguishes the two protective order flavors.
type StopKind string

const (
	StopKindTakeProfit StopKind = "TAKE_PROFIT_MARKET"
	StopKindStopLoss   StopKind = "STOP_MARKET"
)

// MarginMode is the futures margin mode for a symbol.
type MarginMode string

const (
	MarginCrossed  MarginMode = "CROSSED"
	MarginIsolated MarginMode = "ISOLATED"
)

// OrderStatus normalizes exchange status into a small set.
type OrderStatus string

const (
	StatusNew      OrderStatus = "NEW"
	StatusPartial  OrderStatus = "PARTIAL"
	StatusFilled   OrderStatus = "FILLED"
	StatusCanceled OrderStatus = "CANCELED"
	StatusRejected OrderStatus = "REJECTED"
	StatusExpired  OrderStatus = "EXPIRED"
	StatusUnknown  OrderStatus = "UNKNOWN"
)

// OrderAck is the exchange acknowledgement for a submitted order.
type OrderAck struct {
	OrderID  string
	ClientID string
	Status   OrderStatus
}

// Position is an exchange-reported futures position.
type Position struct {
	Symbol        string
	Quantity      float64 // signed: >0 long, <0 short
	EntryPrice    float64
	MarkPrice     float64
	UnrealizedPnL float64
	Leverage      int
}

// OpenOrder is an exchange-reported working order.
type OpenOrder struct {
	OrderID   string
	Symbol    string
	Side      Side
	Type      string // original order type, e.g. STOP_MARKET
	StopPrice float64
	Quantity  float64
}

// Fill is a historical account trade.
type Fill struct {
	TradeID     string
	OrderID     string
	Symbol      string
	Side        Side
	Price       float64
	Quantity    float64
	RealizedPnL float64
	Commission  float64
	Time        int64 // epoch ms
}

// SymbolFilters carries the exchange-imposed precision rules for a symbol.
type SymbolFilters struct {
	Symbol            string
	StepSize          float64 // minimum quantity increment
	MinQty            float64
	MinNotional       float64
	TickSize          float64 // minimum price increment
	PricePrecision    int
	QuantityPrecision int
}

// Ticker is a 24h rolling statistics snapshot.
type Ticker struct {
	Symbol             string
	LastPrice          float64
	PriceChangePercent float64
	QuoteVolume        float64
}
