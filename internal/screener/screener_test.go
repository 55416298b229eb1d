package screener

import (
	"context"
	"errors"
	"testing"

	"futures-engine/pkg/exchanges/common"
)

type fakeSource struct {
	tickers []common.Ticker
	err     error
}

func (f *fakeSource) Tickers(ctx context.Context) ([]common.Ticker, error) {
	return f.tickers, f.err
}

func TestTopMoversRanksByAbsoluteChange(t *testing.T) {
	src := &fakeSource{tickers: []common.Ticker{
		{Symbol: "BTCUSDT", PriceChangePercent: 2.1},
		{Symbol: "ETHUSDT", PriceChangePercent: -8.4},
		{Symbol: "SOLUSDT", PriceChangePercent: 5.0},
		{Symbol: "DOGEUSDT", PriceChangePercent: -1.2},
	}}

	got, err := New(src).TopMovers(context.Background(), 3)
	if err != nil {
		t.Fatalf("TopMovers returned error: %v", err)
	}
	want := []string{"ETHUSDT", "SOLUSDT", "BTCUSDT"}
	if len(got) != len(want) {
		t.Fatalf("len=%d, expected %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rank %d=%s, expected %s", i, got[i], want[i])
		}
	}
}

func TestTopMoversFiltersNonUSDTAndStablecoins(t *testing.T) {
	src := &fakeSource{tickers: []common.Ticker{
		{Symbol: "BTCUSDT", PriceChangePercent: 1},
		{Symbol: "BTCBUSD", PriceChangePercent: 50},
		{Symbol: "USDCUSDT", PriceChangePercent: 40},
		{Symbol: "ETHBTC", PriceChangePercent: 30},
	}}

	got, err := New(src).TopMovers(context.Background(), 10)
	if err != nil {
		t.Fatalf("TopMovers returned error: %v", err)
	}
	if len(got) != 1 || got[0] != "BTCUSDT" {
		t.Fatalf("got %v, expected only BTCUSDT", got)
	}
}

func TestTopMoversNoEligibleSymbols(t *testing.T) {
	src := &fakeSource{tickers: []common.Ticker{
		{Symbol: "ETHBTC", PriceChangePercent: 3},
	}}
	if _, err := New(src).TopMovers(context.Background(), 5); err == nil {
		t.Fatal("expected error when nothing is eligible")
	}
}

func TestTopMoversPropagatesSourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	if _, err := New(src).TopMovers(context.Background(), 5); err == nil {
		t.Fatal("expected wrapped source error")
	}
}
