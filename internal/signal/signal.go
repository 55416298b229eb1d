// Package signal defines the directional signal contract and the built-in
// providers. A provider is a pure function over candles; the engine decides
// what to do with the answer.
package signal

import "futures-engine/internal/market"

// Direction is the directional call a provider makes.
type Direction string

const (
	Long  Direction = "LONG"
	Short Direction = "SHORT"
	Wait  Direction = "WAIT"
)

// Opposite returns the reverse direction; Wait maps to Wait.
func (d Direction) Opposite() Direction {
	switch d {
	case Long:
		return Short
	case Short:
		return Long
	default:
		return Wait
	}
}

// Signal is the ephemeral result of one evaluation.
type Signal struct {
	Direction  Direction
	Volatility float64 // non-negative, in price units (ATR)
}

// Provider turns a candle window into a directional signal plus a
// volatility scalar used for protective-order placement.
type Provider interface {
	Name() string
	Evaluate(candles []market.Candle) (Signal, error)
}
