package signal

import (
	"fmt"

	"futures-engine/internal/indicators"
	"futures-engine/internal/market"
)

// ScalperParams tune the volume-spike scalping provider.
type ScalperParams struct {
	VolumeMALength  int     `yaml:"volume_ma_length"`
	VolumeThreshold float64 `yaml:"volume_threshold"`
	BodyRatio       float64 `yaml:"body_ratio"`
	ATRLength       int     `yaml:"atr_length"`
}

// DefaultScalperParams mirror the tuning the strategy shipped with.
func DefaultScalperParams() ScalperParams {
	return ScalperParams{
		VolumeMALength:  20,
		VolumeThreshold: 2.5,
		BodyRatio:       0.7,
		ATRLength:       14,
	}
}

// Scalper signals on an abnormal volume spike carried by a strong-bodied
// candle, trading in the candle's direction.
type Scalper struct {
	params ScalperParams
}

// NewScalper builds the provider, falling back to defaults for zero params.
func NewScalper(p ScalperParams) *Scalper {
	def := DefaultScalperParams()
	if p.VolumeMALength <= 0 {
		p.VolumeMALength = def.VolumeMALength
	}
	if p.VolumeThreshold <= 0 {
		p.VolumeThreshold = def.VolumeThreshold
	}
	if p.BodyRatio <= 0 {
		p.BodyRatio = def.BodyRatio
	}
	if p.ATRLength <= 0 {
		p.ATRLength = def.ATRLength
	}
	return &Scalper{params: p}
}

func (s *Scalper) Name() string { return "scalper" }

// Evaluate inspects the last closed candle.
func (s *Scalper) Evaluate(candles []market.Candle) (Signal, error) {
	need := s.params.VolumeMALength + 2
	if n := s.params.ATRLength + 2; n > need {
		need = n
	}
	if len(candles) < need {
		return Signal{Direction: Wait}, fmt.Errorf("scalper: need %d candles, have %d", need, len(candles))
	}

	last := len(candles) - 2 // final candle may still be forming
	c := candles[last]

	volumes := market.Volumes(candles[:last+1])
	volMA := indicators.SMA(volumes, s.params.VolumeMALength)
	spike := volMA > 0 && c.Volume > volMA*s.params.VolumeThreshold

	candleRange := c.High - c.Low
	body := c.Close - c.Open
	if body < 0 {
		body = -body
	}
	strong := candleRange > 0 && body/candleRange >= s.params.BodyRatio

	if !spike || !strong {
		return Signal{Direction: Wait}, nil
	}

	highs := make([]float64, last+1)
	lows := make([]float64, last+1)
	closes := make([]float64, last+1)
	for i := 0; i <= last; i++ {
		highs[i] = candles[i].High
		lows[i] = candles[i].Low
		closes[i] = candles[i].Close
	}
	atr := indicators.ATR(highs, lows, closes, s.params.ATRLength)

	if c.Close > c.Open {
		return Signal{Direction: Long, Volatility: atr}, nil
	}
	if c.Close < c.Open {
		return Signal{Direction: Short, Volatility: atr}, nil
	}
	return Signal{Direction: Wait}, nil
}
