package indicators

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	if got := SMA(values, 3); !almostEqual(got, 4) {
		t.Fatalf("SMA=%v, expected 4", got)
	}
	if got := SMA(values, 5); !almostEqual(got, 3) {
		t.Fatalf("SMA=%v, expected 3", got)
	}
	if got := SMA(values, 6); got != 0 {
		t.Fatalf("SMA with short series=%v, expected 0", got)
	}
}

func TestEMASeedAndDecay(t *testing.T) {
	values := []float64{2, 4, 6, 8, 10}
	out := EMA(values, 3)
	if len(out) != len(values) {
		t.Fatalf("len=%d, expected %d", len(out), len(values))
	}
	// seed at index period-1 is the SMA of the first period values
	if !almostEqual(out[2], 4) {
		t.Fatalf("seed=%v, expected 4", out[2])
	}
	// k = 2/(3+1) = 0.5: next = 8*0.5 + 4*0.5 = 6
	if !almostEqual(out[3], 6) {
		t.Fatalf("ema[3]=%v, expected 6", out[3])
	}
	if !almostEqual(out[4], 8) {
		t.Fatalf("ema[4]=%v, expected 8", out[4])
	}
	// before the seed the series is zero-filled
	if out[0] != 0 || out[1] != 0 {
		t.Fatalf("pre-seed values=%v,%v, expected zeros", out[0], out[1])
	}
}

func TestRSIExtremes(t *testing.T) {
	up := []float64{1, 2, 3, 4, 5, 6}
	if got := RSI(up, 5); got != 100 {
		t.Fatalf("RSI all gains=%v, expected 100", got)
	}
	down := []float64{6, 5, 4, 3, 2, 1}
	if got := RSI(down, 5); got != 0 {
		t.Fatalf("RSI all losses=%v, expected 0", got)
	}
}

func TestRSIMixed(t *testing.T) {
	// gains 3, losses 1 over the window: RS=3, RSI=75
	values := []float64{10, 11, 10.5, 11.5, 11, 12}
	if got := RSI(values, 5); !almostEqual(got, 75) {
		t.Fatalf("RSI=%v, expected 75", got)
	}
}

func TestATRUsesTrueRange(t *testing.T) {
	// bar 1: plain range 2; bar 2: gap up, TR from previous close = 5
	highs := []float64{10, 12, 20}
	lows := []float64{8, 10, 18}
	closes := []float64{9, 11, 19}
	// window: bars 1 and 2, TRs: max(2, |12-9|, |10-9|)=3 and max(2, |20-11|, |18-11|)=9
	if got := ATR(highs, lows, closes, 2); !almostEqual(got, 6) {
		t.Fatalf("ATR=%v, expected 6", got)
	}
	if got := ATR(highs, lows, closes, 5); got != 0 {
		t.Fatalf("ATR with short series=%v, expected 0", got)
	}
}
