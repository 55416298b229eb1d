package signal

import (
	"testing"

	"futures-engine/internal/market"
)

// candlesFromCloses builds a candle series with a small symmetric range
// around each close so ATR is non-zero.
func candlesFromCloses(closes []float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		open := c
		if i > 0 {
			open = closes[i-1]
		}
		out[i] = market.Candle{
			Open:   open,
			High:   c + 0.5,
			Low:    c - 0.5,
			Close:  c,
			Volume: 10,
		}
	}
	return out
}

func testMomentum() *Momentum {
	return NewMomentum(MomentumParams{
		EMAFast:       3,
		EMASlow:       5,
		RSILength:     5,
		RSIOverbought: 70,
		RSIOversold:   30,
		ATRLength:     3,
	})
}

func TestMomentumBullishCross(t *testing.T) {
	// flat then a spike: fast EMA crosses above slow on the last closed
	// candle (the final candle is still forming and must be ignored)
	closes := []float64{10, 10, 10, 10, 10, 9.8, 9.6, 12, 11}
	sig, err := testMomentum().Evaluate(candlesFromCloses(closes))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if sig.Direction != Long {
		t.Fatalf("direction=%s, expected LONG", sig.Direction)
	}
	if sig.Volatility <= 0 {
		t.Fatalf("volatility=%v, expected positive ATR", sig.Volatility)
	}
}

func TestMomentumBearishCross(t *testing.T) {
	closes := []float64{10, 10, 10, 10, 10, 10.2, 10.4, 8, 9}
	sig, err := testMomentum().Evaluate(candlesFromCloses(closes))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if sig.Direction != Short {
		t.Fatalf("direction=%s, expected SHORT", sig.Direction)
	}
}

func TestMomentumNoCrossWaits(t *testing.T) {
	closes := []float64{10, 10, 10, 10, 10, 10, 10, 10, 10}
	sig, err := testMomentum().Evaluate(candlesFromCloses(closes))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if sig.Direction != Wait {
		t.Fatalf("direction=%s, expected WAIT", sig.Direction)
	}
}

func TestMomentumInsufficientCandles(t *testing.T) {
	closes := []float64{10, 10, 10}
	sig, err := testMomentum().Evaluate(candlesFromCloses(closes))
	if err == nil {
		t.Fatal("expected an error for a short candle window")
	}
	if sig.Direction != Wait {
		t.Fatalf("direction=%s, short window must yield WAIT", sig.Direction)
	}
}

func TestDirectionOpposite(t *testing.T) {
	if Long.Opposite() != Short || Short.Opposite() != Long {
		t.Fatal("LONG and SHORT must be each other's opposite")
	}
	if Wait.Opposite() != Wait {
		t.Fatal("WAIT has no opposite")
	}
}
