package engine

import (
	"time"

	"futures-engine/internal/signal"
	"futures-engine/pkg/exchanges/common"
)

// State is the lifecycle phase of a managed position. Transitions are
// serialized per symbol; a symbol is never in two phases at once.
type State string

const (
	StateOpening State = "OPENING" // entry order sent, fill not yet confirmed
	StateOpen    State = "OPEN"    // confirmed on the exchange
	StateClosing State = "CLOSING" // close order in flight
)

// Trailing is the per-position trailing-stop state. Once Active, the stop
// only ever moves in the position's favor.
type Trailing struct {
	Active  bool    `json:"active"`
	Extreme float64 `json:"extreme"` // best mark price seen since promotion
	Stop    float64 `json:"stop"`    // current (or desired, if unplaced) stop price
}

// Position is the engine's local view of one symbol's exposure. The
// exchange remains the source of truth; reconciliation keeps this aligned.
type Position struct {
	Symbol     string           `json:"symbol"`
	Direction  signal.Direction `json:"direction"`
	State      State            `json:"state"`
	EntryPrice float64          `json:"entry_price"`
	Quantity   float64          `json:"quantity"` // always positive
	Leverage   int              `json:"leverage"`
	MarkPrice  float64          `json:"mark_price"` // last observed

	TakeProfit float64 `json:"take_profit"` // 0 once trailing replaces it
	StopLoss   float64 `json:"stop_loss"`

	// ProtectionMissing marks a position whose protective orders are not
	// confirmed working on the exchange; placement is retried every tick.
	ProtectionMissing bool     `json:"protection_missing"`
	Trailing          Trailing `json:"trailing"`

	Adopted  bool      `json:"adopted"` // discovered on the exchange, not opened by us
	OpenedAt time.Time `json:"opened_at"`
}

// roi returns the leveraged return-on-investment percentage at mark.
func (p *Position) roi(mark float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	move := (mark - p.EntryPrice) / p.EntryPrice
	if p.Direction == signal.Short {
		move = -move
	}
	return move * float64(p.Leverage) * 100
}

// entrySide returns the order side that opens in the given direction.
func entrySide(dir signal.Direction) common.Side {
	if dir == signal.Long {
		return common.SideBuy
	}
	return common.SideSell
}

// closeSide returns the order side that reduces this position.
func (p *Position) closeSide() common.Side {
	return entrySide(p.Direction).Opposite()
}
