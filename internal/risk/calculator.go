// Package risk converts notional trade sizes into exchange-legal order
// quantities and computes protective price levels. Everything here is pure
// arithmetic; failures are typed values, never panics.
package risk

import (
	"fmt"
	"math"

	"futures-engine/internal/signal"
	"futures-engine/pkg/exchanges/common"
)

// Reasons a sizing request can fail.
const (
	ReasonBadPrice      = "price must be positive"
	ReasonBelowMinQty   = "quantity below exchange minimum"
	ReasonBelowNotional = "notional below exchange minimum"
)

// SizingError reports why a notional could not be converted into an order
// quantity. It aborts one trade, not the engine.
type SizingError struct {
	Symbol   string
	Notional float64
	Price    float64
	Reason   string
}

func (e *SizingError) Error() string {
	return fmt.Sprintf("sizing %s (notional %.2f @ %.8g): %s", e.Symbol, e.Notional, e.Price, e.Reason)
}

// Quantity converts a USD notional into an order quantity legal under the
// symbol's lot-size filter. Rounding floors to the step so the resulting
// order never exceeds the requested notional.
func Quantity(notionalUSD, price float64, f common.SymbolFilters) (float64, error) {
	if price <= 0 {
		return 0, &SizingError{Symbol: f.Symbol, Notional: notionalUSD, Price: price, Reason: ReasonBadPrice}
	}
	if f.MinNotional > 0 && notionalUSD < f.MinNotional {
		return 0, &SizingError{Symbol: f.Symbol, Notional: notionalUSD, Price: price, Reason: ReasonBelowNotional}
	}

	qty := notionalUSD / price
	if f.StepSize > 0 {
		qty = FloorToStep(qty, f.StepSize)
	} else if f.QuantityPrecision >= 0 {
		scale := math.Pow(10, float64(f.QuantityPrecision))
		qty = math.Floor(qty*scale) / scale
	}

	if qty <= 0 || (f.MinQty > 0 && qty < f.MinQty) {
		return 0, &SizingError{Symbol: f.Symbol, Notional: notionalUSD, Price: price, Reason: ReasonBelowMinQty}
	}
	return qty, nil
}

// Params select how protective levels are derived.
type Params struct {
	// Volatility mode
	Volatility float64
	SLMultiple float64
	TPMultiple float64
	// Fixed-percentage mode (fractions, e.g. 0.02 = 2%)
	FixedTPPct float64
	FixedSLPct float64
	UseFixed   bool
}

// Levels holds the computed protective prices.
type Levels struct {
	TakeProfit float64
	StopLoss   float64
}

// ProtectiveLevels computes stop-loss and take-profit prices for an entry.
// The stop always lands on the losing side of entry and the take-profit on
// the winning side; prices are rounded to the symbol's tick size.
func ProtectiveLevels(entry float64, dir signal.Direction, p Params, f common.SymbolFilters) Levels {
	var tp, sl float64
	if p.UseFixed {
		switch dir {
		case signal.Long:
			tp = entry * (1 + p.FixedTPPct)
			sl = entry * (1 - p.FixedSLPct)
		case signal.Short:
			tp = entry * (1 - p.FixedTPPct)
			sl = entry * (1 + p.FixedSLPct)
		}
	} else {
		switch dir {
		case signal.Long:
			sl = entry - p.Volatility*p.SLMultiple
			tp = entry + p.Volatility*p.TPMultiple
		case signal.Short:
			sl = entry + p.Volatility*p.SLMultiple
			tp = entry - p.Volatility*p.TPMultiple
		}
	}
	return Levels{
		TakeProfit: RoundToTick(tp, f),
		StopLoss:   RoundToTick(sl, f),
	}
}

// FloorToStep floors a quantity to a multiple of step, compensating for
// binary float error so 5.000000001 steps still floors to 5 steps.
func FloorToStep(qty, step float64) float64 {
	if step <= 0 {
		return qty
	}
	const epsilon = 1e-9
	steps := math.Floor(qty/step + epsilon)
	return roundDecimals(steps*step, decimalsOf(step))
}

// RoundToTick rounds a price to the symbol's tick size, falling back to the
// advertised price precision.
func RoundToTick(price float64, f common.SymbolFilters) float64 {
	if f.TickSize > 0 {
		ticks := math.Round(price / f.TickSize)
		return roundDecimals(ticks*f.TickSize, decimalsOf(f.TickSize))
	}
	if f.PricePrecision > 0 {
		return roundDecimals(price, f.PricePrecision)
	}
	return price
}

// decimalsOf counts the decimal places needed to represent a step like
// 0.001 exactly (capped at 8, the finest Binance uses).
func decimalsOf(step float64) int {
	for d := 0; d <= 8; d++ {
		scaled := step * math.Pow(10, float64(d))
		if math.Abs(scaled-math.Round(scaled)) < 1e-9 {
			return d
		}
	}
	return 8
}

func roundDecimals(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
