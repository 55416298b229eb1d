package market

import (
	"context"
	"log"
	"sync"

	"futures-engine/internal/events"
	"futures-engine/pkg/exchanges/binance/futures"
)

// CandleClose is published on the bus when a streamed candle finishes.
type CandleClose struct {
	Symbol string
	Candle Candle
}

// Feed subscribes to per-symbol kline streams and publishes closed candles
// to the event bus. Symbols can be swapped at runtime; the feed tears down
// streams for symbols no longer tracked.
type Feed struct {
	Stream   *futures.StreamClient
	Bus      *events.Bus
	Interval string

	mu    sync.Mutex
	stops map[string]func()
}

// Track reconciles the set of streamed symbols with the given list.
func (f *Feed) Track(ctx context.Context, symbols []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stops == nil {
		f.stops = make(map[string]func())
	}

	want := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		want[s] = true
	}

	for sym, stop := range f.stops {
		if !want[sym] {
			stop()
			delete(f.stops, sym)
		}
	}

	for sym := range want {
		if _, ok := f.stops[sym]; ok {
			continue
		}
		ch, stop, err := f.Stream.SubscribeKlines(ctx, sym, f.Interval)
		if err != nil {
			log.Printf("⚠️ kline stream %s: %v", sym, err)
			continue
		}
		f.stops[sym] = stop
		go f.pump(sym, ch)
	}
}

// Stop tears down every active stream.
func (f *Feed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sym, stop := range f.stops {
		stop()
		delete(f.stops, sym)
	}
}

func (f *Feed) pump(symbol string, ch <-chan futures.Kline) {
	for k := range ch {
		if !k.Final {
			continue
		}
		f.Bus.Publish(events.EventCandleClose, CandleClose{
			Symbol: symbol,
			Candle: Candle{
				OpenTime:  k.OpenTime,
				CloseTime: k.CloseTime,
				Open:      k.Open,
				High:      k.High,
				Low:       k.Low,
				Close:     k.Close,
				Volume:    k.Volume,
			},
		})
	}
}
