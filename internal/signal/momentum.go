package signal

import (
	"fmt"

	"futures-engine/internal/indicators"
	"futures-engine/internal/market"
)

// MomentumParams tune the EMA-cross momentum provider.
type MomentumParams struct {
	EMAFast       int `yaml:"ema_fast"`
	EMASlow       int `yaml:"ema_slow"`
	RSILength     int `yaml:"rsi_length"`
	RSIOverbought int `yaml:"rsi_overbought"`
	RSIOversold   int `yaml:"rsi_oversold"`
	ATRLength     int `yaml:"atr_length"`
}

// DefaultMomentumParams mirror the tuning the strategy shipped with.
func DefaultMomentumParams() MomentumParams {
	return MomentumParams{
		EMAFast:       9,
		EMASlow:       21,
		RSILength:     14,
		RSIOverbought: 70,
		RSIOversold:   30,
		ATRLength:     14,
	}
}

// Momentum signals on a fresh EMA cross confirmed by RSI leaving its extreme
// zone. Only fully closed candles are considered.
type Momentum struct {
	params MomentumParams
}

// NewMomentum builds the provider, falling back to defaults for zero params.
func NewMomentum(p MomentumParams) *Momentum {
	def := DefaultMomentumParams()
	if p.EMAFast <= 0 {
		p.EMAFast = def.EMAFast
	}
	if p.EMASlow <= 0 {
		p.EMASlow = def.EMASlow
	}
	if p.RSILength <= 0 {
		p.RSILength = def.RSILength
	}
	if p.RSIOverbought <= 0 {
		p.RSIOverbought = def.RSIOverbought
	}
	if p.RSIOversold <= 0 {
		p.RSIOversold = def.RSIOversold
	}
	if p.ATRLength <= 0 {
		p.ATRLength = def.ATRLength
	}
	return &Momentum{params: p}
}

func (m *Momentum) Name() string { return "momentum" }

// Evaluate inspects the last two closed candles for a cross.
func (m *Momentum) Evaluate(candles []market.Candle) (Signal, error) {
	need := m.params.EMASlow + 3
	if n := m.params.ATRLength + 3; n > need {
		need = n
	}
	if len(candles) < need {
		return Signal{Direction: Wait}, fmt.Errorf("momentum: need %d candles, have %d", need, len(candles))
	}

	closes := market.Closes(candles)
	fast := indicators.EMA(closes, m.params.EMAFast)
	slow := indicators.EMA(closes, m.params.EMASlow)

	// The final candle may still be forming; compare the last closed candle
	// against the one before it.
	last := len(candles) - 2
	prev := last - 1

	bullCross := fast[last] > slow[last] && fast[prev] <= slow[prev]
	bearCross := fast[last] < slow[last] && fast[prev] >= slow[prev]

	rsi := indicators.RSI(closes[:last+1], m.params.RSILength)
	atr := m.atr(candles, last)

	if bullCross && rsi > float64(m.params.RSIOversold) {
		return Signal{Direction: Long, Volatility: atr}, nil
	}
	if bearCross && rsi < float64(m.params.RSIOverbought) {
		return Signal{Direction: Short, Volatility: atr}, nil
	}
	return Signal{Direction: Wait}, nil
}

func (m *Momentum) atr(candles []market.Candle, last int) float64 {
	highs := make([]float64, last+1)
	lows := make([]float64, last+1)
	closes := make([]float64, last+1)
	for i := 0; i <= last; i++ {
		highs[i] = candles[i].High
		lows[i] = candles[i].Low
		closes[i] = candles[i].Close
	}
	return indicators.ATR(highs, lows, closes, m.params.ATRLength)
}
