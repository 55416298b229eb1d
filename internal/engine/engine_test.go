package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"futures-engine/internal/events"
	"futures-engine/internal/market"
	"futures-engine/internal/signal"
	"futures-engine/internal/store"
	"futures-engine/pkg/config"
	"futures-engine/pkg/exchanges/common"
)

func init() {
	fillConfirmWait = time.Millisecond
}

// fakeGateway simulates the exchange: market orders fill instantly at the
// mark price, stop orders sit in the open-order book, a full close settles
// realized PnL into the fill history.
type fakeGateway struct {
	mu         sync.Mutex
	positions  map[string]common.Position
	openOrders map[string][]common.OpenOrder
	fills      map[string][]common.Fill
	marks      map[string]float64
	filters    common.SymbolFilters

	closePnL   float64
	failStop   error
	failCancel error
	failMarket error

	marketOrders int
	nextID       int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		positions:  make(map[string]common.Position),
		openOrders: make(map[string][]common.OpenOrder),
		fills:      make(map[string][]common.Fill),
		marks:      make(map[string]float64),
		filters:    common.SymbolFilters{StepSize: 0.001, MinQty: 0.001, TickSize: 0.01},
		closePnL:   3.5,
	}
}

func (f *fakeGateway) mark(symbol string) float64 {
	if m, ok := f.marks[symbol]; ok {
		return m
	}
	return 100
}

func (f *fakeGateway) setMark(symbol string, price float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks[symbol] = price
}

func (f *fakeGateway) PlaceMarketOrder(ctx context.Context, symbol string, side common.Side, qty float64, clientID string) (common.OrderAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMarket != nil {
		return common.OrderAck{}, f.failMarket
	}
	f.marketOrders++
	f.nextID++
	id := fmt.Sprintf("o-%d", f.nextID)

	delta := qty
	if side == common.SideSell {
		delta = -qty
	}
	cur := f.positions[symbol]
	next := cur.Quantity + delta
	if cur.Quantity != 0 && next == 0 {
		delete(f.positions, symbol)
		f.fills[symbol] = append(f.fills[symbol], common.Fill{
			TradeID:     id + "-t",
			OrderID:     id,
			Symbol:      symbol,
			Side:        side,
			Price:       f.mark(symbol),
			Quantity:    qty,
			RealizedPnL: f.closePnL,
			Time:        time.Now().UnixMilli(),
		})
	} else {
		f.positions[symbol] = common.Position{
			Symbol:     symbol,
			Quantity:   next,
			EntryPrice: f.mark(symbol),
			MarkPrice:  f.mark(symbol),
			Leverage:   10,
		}
	}
	return common.OrderAck{OrderID: id, ClientID: clientID, Status: common.StatusFilled}, nil
}

func (f *fakeGateway) PlaceStopOrder(ctx context.Context, symbol string, side common.Side, kind common.StopKind, stopPrice float64) (common.OrderAck, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStop != nil {
		return common.OrderAck{}, f.failStop
	}
	f.nextID++
	id := fmt.Sprintf("s-%d", f.nextID)
	f.openOrders[symbol] = append(f.openOrders[symbol], common.OpenOrder{
		OrderID:   id,
		Symbol:    symbol,
		Side:      side,
		Type:      string(kind),
		StopPrice: stopPrice,
	})
	return common.OrderAck{OrderID: id, Status: common.StatusNew}, nil
}

func (f *fakeGateway) CancelAllOpenOrders(ctx context.Context, symbol string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCancel != nil {
		return f.failCancel
	}
	delete(f.openOrders, symbol)
	return nil
}

func (f *fakeGateway) SetLeverage(ctx context.Context, symbol string, leverage int) error { return nil }
func (f *fakeGateway) SetMarginMode(ctx context.Context, symbol string, mode common.MarginMode) error {
	return nil
}

func (f *fakeGateway) Positions(ctx context.Context) ([]common.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]common.Position, 0, len(f.positions))
	for _, p := range f.positions {
		p.MarkPrice = f.mark(p.Symbol)
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeGateway) OpenOrders(ctx context.Context, symbol string) ([]common.OpenOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]common.OpenOrder(nil), f.openOrders[symbol]...), nil
}

func (f *fakeGateway) RecentFills(ctx context.Context, symbol string, limit int) ([]common.Fill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]common.Fill(nil), f.fills[symbol]...), nil
}

func (f *fakeGateway) SymbolFilters(ctx context.Context, symbol string) (common.SymbolFilters, error) {
	fl := f.filters
	fl.Symbol = symbol
	return fl, nil
}

func (f *fakeGateway) MarkPrice(ctx context.Context, symbol string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mark(symbol), nil
}

func (f *fakeGateway) stopOrders(symbol string) []common.OpenOrder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]common.OpenOrder(nil), f.openOrders[symbol]...)
}

// fakeMarket returns a fixed candle window.
type fakeMarket struct{ candles []market.Candle }

func (f *fakeMarket) Candles(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	return f.candles, nil
}

// memLedger is an in-memory Ledger with the same order-id idempotency as
// the SQLite store.
type memLedger struct {
	mu      sync.Mutex
	entries map[string]store.ClosedTrade
}

func newMemLedger() *memLedger {
	return &memLedger{entries: make(map[string]store.ClosedTrade)}
}

func (m *memLedger) Append(ctx context.Context, t store.ClosedTrade) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.entries[t.OrderID]; dup {
		return false, nil
	}
	m.entries[t.OrderID] = t
	return true, nil
}

func (m *memLedger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *memLedger) snapshot() []store.ClosedTrade {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.ClosedTrade, 0, len(m.entries))
	for _, t := range m.entries {
		out = append(out, t)
	}
	return out
}

type stubProvider struct{ sig signal.Signal }

func (s *stubProvider) Name() string { return "stub" }
func (s *stubProvider) Evaluate(candles []market.Candle) (signal.Signal, error) {
	return s.sig, nil
}

func testSettings() config.Settings {
	s := config.DefaultSettings()
	s.NotionalUSD = 20
	s.Leverage = 10
	s.MaxConcurrent = 2
	s.Trailing.Enabled = true
	s.Trailing.TriggerPct = 1.5
	s.Trailing.DistancePct = 0.5
	return s
}

func newTestEngine(t *testing.T, gw *fakeGateway, s config.Settings) (*Engine, *memLedger) {
	t.Helper()
	ledger := newMemLedger()
	eng, err := New(Options{
		Gateway:   gw,
		Market:    &fakeMarket{},
		Ledger:    ledger,
		Bus:       events.NewBus(),
		Providers: map[string]signal.Provider{"momentum": &stubProvider{sig: signal.Signal{Direction: signal.Wait}}},
		Settings:  s,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return eng, ledger
}

func TestOpenOnSignal(t *testing.T) {
	gw := newFakeGateway()
	eng, _ := newTestEngine(t, gw, testSettings())
	ctx := context.Background()

	err := eng.applySignal(ctx, "BTCUSDT", signal.Signal{Direction: signal.Long, Volatility: 2})
	if err != nil {
		t.Fatalf("applySignal returned error: %v", err)
	}

	pos := eng.position("BTCUSDT")
	if pos == nil {
		t.Fatal("expected a managed position")
	}
	if pos.State != StateOpen {
		t.Fatalf("state=%s, expected OPEN", pos.State)
	}
	if pos.Direction != signal.Long {
		t.Fatalf("direction=%s, expected LONG", pos.Direction)
	}
	if pos.Quantity != 0.2 {
		t.Fatalf("qty=%v, expected 0.2", pos.Quantity)
	}
	if pos.TakeProfit != 106 || pos.StopLoss != 97 {
		t.Fatalf("levels TP=%v SL=%v, expected 106/97", pos.TakeProfit, pos.StopLoss)
	}

	stops := gw.stopOrders("BTCUSDT")
	if len(stops) != 2 {
		t.Fatalf("open orders=%d, expected 2 protective orders", len(stops))
	}
	byType := map[string]float64{}
	for _, o := range stops {
		byType[o.Type] = o.StopPrice
		if o.Side != common.SideSell {
			t.Fatalf("protective order side=%s, expected SELL for a long", o.Side)
		}
	}
	if byType["TAKE_PROFIT_MARKET"] != 106 {
		t.Fatalf("TP stop=%v, expected 106", byType["TAKE_PROFIT_MARKET"])
	}
	if byType["STOP_MARKET"] != 97 {
		t.Fatalf("SL stop=%v, expected 97", byType["STOP_MARKET"])
	}
}

func TestWaitSignalIsNoop(t *testing.T) {
	gw := newFakeGateway()
	eng, _ := newTestEngine(t, gw, testSettings())

	if err := eng.applySignal(context.Background(), "BTCUSDT", signal.Signal{Direction: signal.Wait}); err != nil {
		t.Fatalf("applySignal returned error: %v", err)
	}
	if eng.position("BTCUSDT") != nil {
		t.Fatal("WAIT signal must not open a position")
	}
	if gw.marketOrders != 0 {
		t.Fatalf("market orders=%d, expected 0", gw.marketOrders)
	}
}

func TestCapacityRefusal(t *testing.T) {
	gw := newFakeGateway()
	s := testSettings()
	s.MaxConcurrent = 1
	eng, _ := newTestEngine(t, gw, s)
	ctx := context.Background()

	if err := eng.applySignal(ctx, "BTCUSDT", signal.Signal{Direction: signal.Long, Volatility: 2}); err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	if err := eng.applySignal(ctx, "ETHUSDT", signal.Signal{Direction: signal.Short, Volatility: 1}); err != nil {
		t.Fatalf("capacity refusal must be silent, got %v", err)
	}
	if eng.position("ETHUSDT") != nil {
		t.Fatal("second position must be refused at capacity")
	}
	if len(gw.stopOrders("ETHUSDT")) != 0 {
		t.Fatal("no orders may be placed for a refused trade")
	}
}

func TestSameDirectionNoChurn(t *testing.T) {
	gw := newFakeGateway()
	eng, _ := newTestEngine(t, gw, testSettings())
	ctx := context.Background()

	sig := signal.Signal{Direction: signal.Long, Volatility: 2}
	if err := eng.applySignal(ctx, "BTCUSDT", sig); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := eng.applySignal(ctx, "BTCUSDT", sig); err != nil {
		t.Fatalf("repeat signal failed: %v", err)
	}
	if gw.marketOrders != 1 {
		t.Fatalf("market orders=%d, expected 1 (no churn on same direction)", gw.marketOrders)
	}
}

func TestFlipReversesPosition(t *testing.T) {
	gw := newFakeGateway()
	eng, ledger := newTestEngine(t, gw, testSettings())
	ctx := context.Background()

	if err := eng.applySignal(ctx, "BTCUSDT", signal.Signal{Direction: signal.Long, Volatility: 2}); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := eng.applySignal(ctx, "BTCUSDT", signal.Signal{Direction: signal.Short, Volatility: 2}); err != nil {
		t.Fatalf("flip failed: %v", err)
	}

	pos := eng.position("BTCUSDT")
	if pos == nil || pos.Direction != signal.Short {
		t.Fatalf("expected SHORT position after flip, got %+v", pos)
	}
	if ledger.count() != 1 {
		t.Fatalf("ledger entries=%d, expected 1 from the closed long", ledger.count())
	}
	gw.mu.Lock()
	remote := gw.positions["BTCUSDT"]
	gw.mu.Unlock()
	if remote.Quantity >= 0 {
		t.Fatalf("exchange quantity=%v, expected negative after flip", remote.Quantity)
	}
}

func TestManualCloseRecordsTradeOnce(t *testing.T) {
	gw := newFakeGateway()
	gw.closePnL = 4.2
	eng, ledger := newTestEngine(t, gw, testSettings())
	ctx := context.Background()

	if err := eng.applySignal(ctx, "BTCUSDT", signal.Signal{Direction: signal.Long, Volatility: 2}); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := eng.ClosePosition(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if eng.position("BTCUSDT") != nil {
		t.Fatal("position must be gone after close")
	}
	if ledger.count() != 1 {
		t.Fatalf("ledger entries=%d, expected 1", ledger.count())
	}
	for _, trade := range ledger.entries {
		if trade.PnL != 4.2 {
			t.Fatalf("PnL=%v, expected 4.2 from the settling fill", trade.PnL)
		}
	}

	// the same closure seen again (e.g. by reconciliation) must not double
	eng.reconcile(ctx)
	if ledger.count() != 1 {
		t.Fatalf("ledger entries=%d after reconcile, expected still 1", ledger.count())
	}

	if err := eng.ClosePosition(ctx, "BTCUSDT"); !errors.Is(err, ErrNoPosition) {
		t.Fatalf("second close err=%v, expected ErrNoPosition", err)
	}
}

func TestReconcileFinalizesRemoteClose(t *testing.T) {
	gw := newFakeGateway()
	eng, ledger := newTestEngine(t, gw, testSettings())
	ctx := context.Background()

	if err := eng.applySignal(ctx, "BTCUSDT", signal.Signal{Direction: signal.Long, Volatility: 2}); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	// protective order fires on the exchange behind our back
	gw.mu.Lock()
	delete(gw.positions, "BTCUSDT")
	gw.fills["BTCUSDT"] = append(gw.fills["BTCUSDT"], common.Fill{
		TradeID: "t-99", OrderID: "o-99", Symbol: "BTCUSDT",
		RealizedPnL: -1.7, Time: time.Now().UnixMilli(),
	})
	gw.mu.Unlock()

	eng.reconcile(ctx)
	if eng.position("BTCUSDT") != nil {
		t.Fatal("remotely closed position must be finalized")
	}
	if ledger.count() != 1 {
		t.Fatalf("ledger entries=%d, expected 1", ledger.count())
	}
	for _, trade := range ledger.entries {
		if trade.PnL != -1.7 {
			t.Fatalf("PnL=%v, expected -1.7", trade.PnL)
		}
	}

	eng.reconcile(ctx)
	if ledger.count() != 1 {
		t.Fatalf("ledger entries=%d after second pass, expected 1", ledger.count())
	}
}

func TestCandleCloseEventSeesReconciledState(t *testing.T) {
	gw := newFakeGateway()
	eng, ledger := newTestEngine(t, gw, testSettings())
	ctx := context.Background()

	if err := eng.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer eng.Stop()

	if err := eng.applySignal(ctx, "BTCUSDT", signal.Signal{Direction: signal.Long, Volatility: 2}); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	// the exchange closes the position between polls
	gw.mu.Lock()
	delete(gw.positions, "BTCUSDT")
	gw.fills["BTCUSDT"] = append(gw.fills["BTCUSDT"], common.Fill{
		TradeID: "t-77", OrderID: "o-77", Symbol: "BTCUSDT",
		RealizedPnL: -2.3, Time: time.Now().UnixMilli(),
	})
	gw.mu.Unlock()

	// a streamed candle close must finalize the stale position before acting
	eng.bus.Publish(events.EventCandleClose, market.CandleClose{Symbol: "BTCUSDT"})

	deadline := time.Now().Add(2 * time.Second)
	for ledger.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("candle event did not reconcile the remotely closed position")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if eng.position("BTCUSDT") != nil {
		t.Fatal("remotely closed position must be gone after the event-driven pass")
	}
	for _, trade := range ledger.snapshot() {
		if trade.PnL != -2.3 {
			t.Fatalf("PnL=%v, expected -2.3", trade.PnL)
		}
	}
}

func TestReconcileAdoptsRemotePosition(t *testing.T) {
	gw := newFakeGateway()
	eng, _ := newTestEngine(t, gw, testSettings())
	ctx := context.Background()

	gw.mu.Lock()
	gw.positions["SOLUSDT"] = common.Position{
		Symbol: "SOLUSDT", Quantity: -3, EntryPrice: 150, Leverage: 5,
	}
	gw.mu.Unlock()

	eng.reconcile(ctx)
	pos := eng.position("SOLUSDT")
	if pos == nil {
		t.Fatal("remote-only position must be adopted")
	}
	if !pos.Adopted {
		t.Fatal("adopted flag must be set")
	}
	if pos.Direction != signal.Short {
		t.Fatalf("direction=%s, expected SHORT for negative quantity", pos.Direction)
	}
	if pos.Quantity != 3 {
		t.Fatalf("qty=%v, expected 3", pos.Quantity)
	}
	if !pos.ProtectionMissing {
		t.Fatal("adopted position with no working orders must be flagged for protection")
	}

	eng.reconcile(ctx)
	if again := eng.position("SOLUSDT"); again != pos {
		t.Fatal("second reconcile must not re-adopt")
	}
}

func TestTrailingPromotionReplacesProtection(t *testing.T) {
	gw := newFakeGateway()
	eng, _ := newTestEngine(t, gw, testSettings())
	ctx := context.Background()

	if err := eng.applySignal(ctx, "BTCUSDT", signal.Signal{Direction: signal.Long, Volatility: 2}); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	// entry 100, leverage 10: mark 101 is +10% ROI, past the 1.5% trigger
	gw.setMark("BTCUSDT", 101)
	eng.manageProtection(ctx)

	pos := eng.position("BTCUSDT")
	if !pos.Trailing.Active {
		t.Fatal("trailing must be active past the trigger")
	}
	if pos.Trailing.Stop != 100.1 {
		t.Fatalf("promotion stop=%v, expected 100.1 (entry plus buffer)", pos.Trailing.Stop)
	}
	if pos.TakeProfit != 0 || pos.StopLoss != 0 {
		t.Fatal("fixed protective levels must be cleared after promotion")
	}

	stops := gw.stopOrders("BTCUSDT")
	if len(stops) != 1 {
		t.Fatalf("open orders=%d, expected the single trailing stop", len(stops))
	}
	if stops[0].Type != "STOP_MARKET" || stops[0].StopPrice != 100.1 {
		t.Fatalf("working order %+v, expected STOP_MARKET @100.1", stops[0])
	}
}

func TestTrailingRatchetIsMonotonic(t *testing.T) {
	gw := newFakeGateway()
	eng, _ := newTestEngine(t, gw, testSettings())
	ctx := context.Background()

	if err := eng.applySignal(ctx, "BTCUSDT", signal.Signal{Direction: signal.Long, Volatility: 2}); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	gw.setMark("BTCUSDT", 101)
	eng.manageProtection(ctx) // promote, stop 100.1

	gw.setMark("BTCUSDT", 104)
	eng.manageProtection(ctx)
	pos := eng.position("BTCUSDT")
	if pos.Trailing.Stop != 103.48 {
		t.Fatalf("stop=%v, expected 103.48 after new extreme 104", pos.Trailing.Stop)
	}

	// retrace: extreme and stop must hold
	gw.setMark("BTCUSDT", 102)
	eng.manageProtection(ctx)
	pos = eng.position("BTCUSDT")
	if pos.Trailing.Stop != 103.48 {
		t.Fatalf("stop=%v moved on retrace, expected 103.48", pos.Trailing.Stop)
	}
	if pos.Trailing.Extreme != 104 {
		t.Fatalf("extreme=%v, expected 104 to hold on retrace", pos.Trailing.Extreme)
	}

	gw.setMark("BTCUSDT", 108)
	eng.manageProtection(ctx)
	pos = eng.position("BTCUSDT")
	if pos.Trailing.Stop != 107.46 {
		t.Fatalf("stop=%v, expected 107.46 after new extreme 108", pos.Trailing.Stop)
	}

	stops := gw.stopOrders("BTCUSDT")
	if len(stops) != 1 {
		t.Fatalf("open orders=%d, expected exactly one working stop", len(stops))
	}
	if stops[0].StopPrice != 107.46 {
		t.Fatalf("working stop=%v, expected 107.46", stops[0].StopPrice)
	}
}

func TestProtectionRetryAfterFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.failStop = &common.APIError{HTTPStatus: 500, Code: -1001, Message: "internal error"}
	eng, _ := newTestEngine(t, gw, testSettings())
	ctx := context.Background()

	if err := eng.applySignal(ctx, "BTCUSDT", signal.Signal{Direction: signal.Long, Volatility: 2}); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	pos := eng.position("BTCUSDT")
	if pos == nil || pos.State != StateOpen {
		t.Fatal("position must stay open even with protection unplaced")
	}
	if !pos.ProtectionMissing {
		t.Fatal("failed protection must be flagged for retry")
	}

	gw.mu.Lock()
	gw.failStop = nil
	gw.mu.Unlock()
	eng.manageProtection(ctx)

	pos = eng.position("BTCUSDT")
	if pos.ProtectionMissing {
		t.Fatal("protection flag must clear after successful retry")
	}
	if len(gw.stopOrders("BTCUSDT")) == 0 {
		t.Fatal("protective orders must be working after retry")
	}
}

func TestManualTradeRequiresRunning(t *testing.T) {
	gw := newFakeGateway()
	eng, _ := newTestEngine(t, gw, testSettings())

	err := eng.ManualTrade(context.Background(), "BTCUSDT", signal.Long)
	if !errors.Is(err, ErrNotRunning) {
		t.Fatalf("err=%v, expected ErrNotRunning", err)
	}
}

func TestUpdateSymbolsRefusedWhileRunning(t *testing.T) {
	gw := newFakeGateway()
	eng, _ := newTestEngine(t, gw, testSettings())

	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer eng.Stop()

	if err := eng.UpdateSymbols([]string{"ETHUSDT"}); !errors.Is(err, ErrRunning) {
		t.Fatalf("err=%v, expected ErrRunning", err)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	gw := newFakeGateway()
	eng, _ := newTestEngine(t, gw, testSettings())

	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("second Start must be a no-op, got %v", err)
	}
	eng.Stop()
	eng.Stop() // must not panic or block
	if eng.Running() {
		t.Fatal("engine must report stopped")
	}
}

func TestUpdateSettingsRejectsInvalidPatch(t *testing.T) {
	gw := newFakeGateway()
	eng, _ := newTestEngine(t, gw, testSettings())

	bad := 0
	if _, err := eng.UpdateSettings(config.Patch{Leverage: &bad}); err == nil {
		t.Fatal("invalid leverage must be rejected")
	}
	if eng.Settings().Leverage != 10 {
		t.Fatalf("leverage=%d, settings must be untouched after a rejected patch", eng.Settings().Leverage)
	}

	lev := 25
	next, err := eng.UpdateSettings(config.Patch{Leverage: &lev})
	if err != nil {
		t.Fatalf("valid patch rejected: %v", err)
	}
	if next.Leverage != 25 {
		t.Fatalf("leverage=%d, expected 25", next.Leverage)
	}
}
