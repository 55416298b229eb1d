// Package engine drives the autonomous trading loop: it evaluates signals,
// opens and closes leveraged positions through the exchange gateway, keeps
// protective orders working, and reconciles its local view against the
// exchange every cycle. The exchange is always the source of truth.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"futures-engine/internal/events"
	"futures-engine/internal/indicators"
	"futures-engine/internal/market"
	"futures-engine/internal/risk"
	"futures-engine/internal/signal"
	"futures-engine/internal/store"
	"futures-engine/pkg/config"
	"futures-engine/pkg/exchanges/common"
)

const (
	candleWindow    = 200 // candles fetched per evaluation
	fillConfirmTry  = 3
	recentFillLimit = 5
)

// overridable in tests
var fillConfirmWait = 500 * time.Millisecond

// Options wires the engine's collaborators.
type Options struct {
	Gateway   Gateway
	Market    MarketData
	Discovery SymbolSource // optional; required only when auto-discovery is on
	Ledger    Ledger
	Bus       *events.Bus
	Providers map[string]signal.Provider
	Settings  config.Settings
}

// Engine owns the trading loop and all position state. One instance per
// process; all exported methods are safe for concurrent use.
type Engine struct {
	gw        Gateway
	market    MarketData
	discovery SymbolSource
	ledger    Ledger
	bus       *events.Bus
	providers map[string]signal.Provider

	settingsMu sync.RWMutex
	settings   config.Settings

	posMu     sync.RWMutex
	positions map[string]*Position

	lockMu   sync.Mutex
	symLocks map[string]*sync.Mutex

	symbolMu sync.Mutex
	filters  map[string]common.SymbolFilters
	margined map[string]bool

	runMu    sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopping atomic.Bool

	lastSymbols atomic.Value // []string
}

// New validates the wiring and returns a stopped engine.
func New(o Options) (*Engine, error) {
	switch {
	case o.Gateway == nil:
		return nil, fmt.Errorf("engine: gateway is required")
	case o.Market == nil:
		return nil, fmt.Errorf("engine: market data source is required")
	case o.Ledger == nil:
		return nil, fmt.Errorf("engine: ledger is required")
	case o.Bus == nil:
		return nil, fmt.Errorf("engine: event bus is required")
	case len(o.Providers) == 0:
		return nil, fmt.Errorf("engine: at least one signal provider is required")
	}
	if err := o.Settings.Validate(); err != nil {
		return nil, err
	}
	if _, ok := o.Providers[o.Settings.Strategy]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, o.Settings.Strategy)
	}
	e := &Engine{
		gw:        o.Gateway,
		market:    o.Market,
		discovery: o.Discovery,
		ledger:    o.Ledger,
		bus:       o.Bus,
		providers: o.Providers,
		settings:  o.Settings,
		positions: make(map[string]*Position),
		symLocks:  make(map[string]*sync.Mutex),
		filters:   make(map[string]common.SymbolFilters),
		margined:  make(map[string]bool),
	}
	e.lastSymbols.Store(append([]string(nil), o.Settings.Symbols...))
	return e, nil
}

// Start launches the trading loop. Starting a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.stopping.Store(false)
	e.wg.Add(1)
	go e.run(runCtx)
	e.logf("✓ engine started (strategy=%s interval=%s)", e.Settings().Strategy, e.Settings().Interval)
	e.bus.Publish(events.EventEngineState, map[string]any{"running": true})
	return nil
}

// Stop halts the loop. No new position transitions begin; the transition in
// flight is allowed to finish. Stopping a stopped engine is a no-op.
func (e *Engine) Stop() {
	e.runMu.Lock()
	if !e.running {
		e.runMu.Unlock()
		return
	}
	e.stopping.Store(true)
	e.cancel()
	e.runMu.Unlock()

	e.wg.Wait()

	e.runMu.Lock()
	e.running = false
	e.runMu.Unlock()
	e.logf("✓ engine stopped")
	e.bus.Publish(events.EventEngineState, map[string]any{"running": false})
}

// Running reports whether the loop is active.
func (e *Engine) Running() bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.running
}

func (e *Engine) run(ctx context.Context) {
	defer e.wg.Done()

	candleCh, unsub := e.bus.Subscribe(events.EventCandleClose, 64)
	defer unsub()

	// Exchange mutations must survive shutdown cancellation so an order
	// already sent is confirmed, not abandoned half-way.
	opCtx := context.WithoutCancel(ctx)

	e.tick(opCtx)
	timer := time.NewTimer(e.Settings().PollInterval())
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if e.stopping.Load() {
				return
			}
			e.tick(opCtx)
			timer.Reset(e.Settings().PollInterval())
		case msg, ok := <-candleCh:
			if !ok {
				return
			}
			if e.stopping.Load() {
				return
			}
			if cc, isClose := msg.(market.CandleClose); isClose {
				// The event-driven path sees the same reconciled state as
				// the poll loop; the exchange may have closed the position
				// since the last tick.
				e.reconcile(opCtx)
				e.evaluateSymbol(opCtx, cc.Symbol)
			}
		}
	}
}

// tick is one full cycle: resolve symbols, reconcile against the exchange,
// evaluate each symbol, then run the protection pass.
func (e *Engine) tick(ctx context.Context) {
	symbols := e.resolveSymbols(ctx)
	e.reconcile(ctx)
	for _, sym := range symbols {
		if e.stopping.Load() {
			break
		}
		e.evaluateSymbol(ctx, sym)
	}
	e.manageProtection(ctx)
}

// resolveSymbols returns the tradeable universe for this cycle. Discovery
// failures fall back to the last known list; the loop never goes blind.
func (e *Engine) resolveSymbols(ctx context.Context) []string {
	s := e.Settings()
	if !s.AutoDiscover || e.discovery == nil {
		e.lastSymbols.Store(append([]string(nil), s.Symbols...))
		return s.Symbols
	}
	movers, err := e.discovery.TopMovers(ctx, s.AutoDiscoverCount)
	if err != nil {
		last, _ := e.lastSymbols.Load().([]string)
		e.warnf("symbol discovery failed, keeping %d known symbols: %v", len(last), err)
		return last
	}
	// Symbols with a live position stay tracked even when they drop out of
	// the movers list, otherwise their trailing stops go unmanaged.
	held := e.heldSymbols()
	merged := append([]string(nil), movers...)
	for _, sym := range held {
		if !containsString(merged, sym) {
			merged = append(merged, sym)
		}
	}
	e.lastSymbols.Store(merged)
	return merged
}

func (e *Engine) evaluateSymbol(ctx context.Context, symbol string) {
	s := e.Settings()
	provider, ok := e.providers[s.Strategy]
	if !ok {
		e.warnf("strategy %q has no provider, skipping %s", s.Strategy, symbol)
		return
	}
	candles, err := e.market.Candles(ctx, symbol, s.Interval, candleWindow)
	if err != nil {
		e.warnf("candle fetch %s failed: %v", symbol, err)
		return
	}
	sig, err := provider.Evaluate(candles)
	if err != nil {
		e.warnf("signal %s %s: %v", provider.Name(), symbol, err)
		return
	}
	e.bus.Publish(events.EventSignal, map[string]any{
		"symbol":    symbol,
		"direction": sig.Direction,
		"strategy":  provider.Name(),
	})
	if err := e.applySignal(ctx, symbol, sig); err != nil {
		e.warnf("apply %s signal on %s: %v", sig.Direction, symbol, err)
	}
}

// applySignal is the decision point. It holds the symbol lock for the whole
// transition so a symbol is never opening and closing at once.
func (e *Engine) applySignal(ctx context.Context, symbol string, sig signal.Signal) error {
	if sig.Direction != signal.Long && sig.Direction != signal.Short {
		return nil
	}
	lock := e.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	pos := e.position(symbol)
	switch {
	case pos == nil:
		if e.stopping.Load() {
			return nil
		}
		return e.openPosition(ctx, symbol, sig.Direction, sig.Volatility)
	case pos.State != StateOpen:
		// mid-transition; this cycle's signal is stale by the next one
		return nil
	case pos.Direction == sig.Direction:
		return nil
	default:
		e.logf("⚠️ %s signal flipped %s → %s, reversing", symbol, pos.Direction, sig.Direction)
		if err := e.closeLocked(ctx, pos, "signal reversal"); err != nil {
			return err
		}
		if e.stopping.Load() {
			return nil
		}
		return e.openPosition(ctx, symbol, sig.Direction, sig.Volatility)
	}
}

// claimSlot atomically checks capacity and reserves the symbol with an
// OPENING placeholder. Capacity counts positions that are open or becoming
// open; positions on their way out free their slot when they finalize.
func (e *Engine) claimSlot(symbol string, dir signal.Direction) (*Position, error) {
	e.posMu.Lock()
	defer e.posMu.Unlock()
	if _, exists := e.positions[symbol]; exists {
		return nil, ErrPositionBusy
	}
	max := e.Settings().MaxConcurrent
	active := 0
	for _, p := range e.positions {
		if p.State == StateOpening || p.State == StateOpen {
			active++
		}
	}
	if active >= max {
		return nil, ErrAtCapacity
	}
	pos := &Position{
		Symbol:    symbol,
		Direction: dir,
		State:     StateOpening,
		OpenedAt:  time.Now(),
	}
	e.positions[symbol] = pos
	return pos, nil
}

// openPosition opens a market position and arms its protective orders.
// Caller holds the symbol lock.
func (e *Engine) openPosition(ctx context.Context, symbol string, dir signal.Direction, volatility float64) error {
	pos, err := e.claimSlot(symbol, dir)
	if err != nil {
		if errors.Is(err, ErrAtCapacity) {
			e.logf("⚠️ %s %s signal refused: %v", symbol, dir, err)
			return nil
		}
		return err
	}
	abandon := func() { e.removePosition(symbol) }

	filters, err := e.ensureSymbolConfig(ctx, symbol)
	if err != nil {
		abandon()
		return fmt.Errorf("configure %s: %w", symbol, err)
	}
	price, err := e.gw.MarkPrice(ctx, symbol)
	if err != nil {
		abandon()
		return fmt.Errorf("mark price %s: %w", symbol, err)
	}
	s := e.Settings()
	qty, err := risk.Quantity(s.NotionalUSD, price, filters)
	if err != nil {
		abandon()
		e.logf("❌ %v", err)
		return nil // sizing failure aborts this trade, not the engine
	}

	clientID := "fe-" + uuid.NewString()[:18]
	ack, err := e.gw.PlaceMarketOrder(ctx, symbol, entrySide(dir), qty, clientID)
	if err != nil {
		abandon()
		if common.IsPermanent(err) {
			e.logf("❌ entry order %s rejected permanently: %v", symbol, err)
			return nil
		}
		return fmt.Errorf("entry order %s: %w", symbol, err)
	}

	remote, err := e.confirmEntry(ctx, symbol)
	if err != nil {
		// Order was acked but the fill never showed; reconciliation will
		// adopt it if it lands later.
		abandon()
		return fmt.Errorf("confirm entry %s (order %s): %w", symbol, ack.OrderID, err)
	}

	entry := remote.EntryPrice
	if entry <= 0 {
		entry = price
	}
	levels := risk.ProtectiveLevels(entry, dir, e.riskParams(volatility), filters)

	e.posMu.Lock()
	pos.State = StateOpen
	pos.EntryPrice = entry
	pos.Quantity = abs(remote.Quantity)
	pos.Leverage = s.Leverage
	pos.MarkPrice = price
	pos.TakeProfit = levels.TakeProfit
	pos.StopLoss = levels.StopLoss
	e.posMu.Unlock()

	e.logf("✓ opened %s %s qty=%v entry=%v", dir, symbol, pos.Quantity, entry)
	e.bus.Publish(events.EventPositionChange, e.snapshotOf(pos))

	if err := e.placeProtection(ctx, pos, filters); err != nil {
		e.setProtectionMissing(pos, true)
		e.warnf("%s protection not armed, retrying next cycle: %v", symbol, err)
	}
	return nil
}

// confirmEntry polls the exchange until the new position is visible.
func (e *Engine) confirmEntry(ctx context.Context, symbol string) (common.Position, error) {
	var lastErr error
	for i := 0; i < fillConfirmTry; i++ {
		select {
		case <-ctx.Done():
			return common.Position{}, ctx.Err()
		case <-time.After(fillConfirmWait):
		}
		remote, err := e.gw.Positions(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		for _, rp := range remote {
			if rp.Symbol == symbol && abs(rp.Quantity) > 0 {
				return rp, nil
			}
		}
		lastErr = fmt.Errorf("position not visible yet")
	}
	return common.Position{}, lastErr
}

// placeProtection arms the protective orders for a position. Before trailing
// promotion that is a take-profit plus a stop-loss; after promotion it is
// the single trailing stop. Both use closePosition semantics so a partial
// fill can never leave residue.
func (e *Engine) placeProtection(ctx context.Context, pos *Position, filters common.SymbolFilters) error {
	side := pos.closeSide()
	if pos.Trailing.Active {
		if pos.Trailing.Stop <= 0 {
			return fmt.Errorf("trailing stop price unset")
		}
		if _, err := e.gw.PlaceStopOrder(ctx, pos.Symbol, side, common.StopKindStopLoss, pos.Trailing.Stop); err != nil {
			return err
		}
		e.setProtectionMissing(pos, false)
		return nil
	}
	if pos.TakeProfit <= 0 || pos.StopLoss <= 0 {
		// Adopted position with no recoverable levels: derive from current
		// settings using fixed percentages, volatility is unknown here.
		s := e.Settings()
		levels := risk.ProtectiveLevels(pos.EntryPrice, pos.Direction, risk.Params{
			UseFixed:   true,
			FixedTPPct: s.FixedTPPct / 100,
			FixedSLPct: s.FixedSLPct / 100,
		}, filters)
		e.posMu.Lock()
		pos.TakeProfit = levels.TakeProfit
		pos.StopLoss = levels.StopLoss
		e.posMu.Unlock()
	}
	if _, err := e.gw.PlaceStopOrder(ctx, pos.Symbol, side, common.StopKindTakeProfit, pos.TakeProfit); err != nil {
		return fmt.Errorf("take-profit: %w", err)
	}
	if _, err := e.gw.PlaceStopOrder(ctx, pos.Symbol, side, common.StopKindStopLoss, pos.StopLoss); err != nil {
		return fmt.Errorf("stop-loss: %w", err)
	}
	e.setProtectionMissing(pos, false)
	e.logf("✓ %s protected: TP=%v SL=%v", pos.Symbol, pos.TakeProfit, pos.StopLoss)
	return nil
}

// closeLocked closes a position at market and finalizes it. Caller holds the
// symbol lock. A transient failure leaves the position OPEN for retry.
func (e *Engine) closeLocked(ctx context.Context, pos *Position, reason string) error {
	e.setState(pos, StateClosing)

	if err := e.gw.CancelAllOpenOrders(ctx, pos.Symbol); err != nil && !common.IsPermanent(err) {
		e.setState(pos, StateOpen)
		return fmt.Errorf("cancel working orders %s: %w", pos.Symbol, err)
	}

	remoteQty, err := e.remoteQuantity(ctx, pos.Symbol)
	if err != nil {
		e.setState(pos, StateOpen)
		return fmt.Errorf("read position %s: %w", pos.Symbol, err)
	}
	if remoteQty == 0 {
		// Already flat on the exchange (protective order fired).
		e.finalize(ctx, pos, "")
		return nil
	}

	ack, err := e.gw.PlaceMarketOrder(ctx, pos.Symbol, pos.closeSide(), abs(remoteQty), "fe-close-"+uuid.NewString()[:12])
	if err != nil {
		if common.IsPermanent(err) {
			// e.g. position vanished between read and order; reconcile
			// picks this up next cycle.
			e.setState(pos, StateOpen)
			e.logf("❌ close order %s rejected: %v", pos.Symbol, err)
			return err
		}
		e.setState(pos, StateOpen)
		return fmt.Errorf("close order %s: %w", pos.Symbol, err)
	}
	e.logf("✓ closing %s (%s)", pos.Symbol, reason)
	e.finalize(ctx, pos, ack.OrderID)
	return nil
}

// finalize records the closed trade exactly once and frees the symbol. The
// realized PnL comes from the most recent fill that settled PnL; if the
// exchange has no such fill yet the trade is recorded with zero PnL under
// the fallback order id.
func (e *Engine) finalize(ctx context.Context, pos *Position, fallbackOrderID string) {
	pnl := 0.0
	orderID := fallbackOrderID
	closedAt := time.Now()

	fills, err := e.gw.RecentFills(ctx, pos.Symbol, recentFillLimit)
	if err != nil {
		e.warnf("fills lookup %s failed, recording zero PnL: %v", pos.Symbol, err)
	} else {
		for i := len(fills) - 1; i >= 0; i-- {
			if fills[i].RealizedPnL != 0 {
				pnl = fills[i].RealizedPnL
				orderID = fills[i].OrderID
				closedAt = time.UnixMilli(fills[i].Time)
				break
			}
		}
	}
	if orderID == "" {
		orderID = "local-" + uuid.NewString()
	}

	e.removePosition(pos.Symbol)

	trade := store.ClosedTrade{
		OrderID:   orderID,
		Symbol:    pos.Symbol,
		Direction: string(pos.Direction),
		PnL:       pnl,
		ClosedAt:  closedAt,
	}
	inserted, err := e.ledger.Append(ctx, trade)
	if err != nil {
		e.logf("❌ ledger append %s: %v", pos.Symbol, err)
		return
	}
	if inserted {
		e.logf("✓ closed %s %s PnL=%+.4f", pos.Direction, pos.Symbol, pnl)
		e.bus.Publish(events.EventTradeClosed, trade)
	}
	e.bus.Publish(events.EventPositionChange, map[string]any{"symbol": pos.Symbol, "state": "FLAT"})
}

// remoteQuantity returns the signed exchange quantity for symbol, 0 if flat.
func (e *Engine) remoteQuantity(ctx context.Context, symbol string) (float64, error) {
	remote, err := e.gw.Positions(ctx)
	if err != nil {
		return 0, err
	}
	for _, rp := range remote {
		if rp.Symbol == symbol {
			return rp.Quantity, nil
		}
	}
	return 0, nil
}

// ensureSymbolConfig applies leverage and margin mode once per symbol and
// caches the exchange filters.
func (e *Engine) ensureSymbolConfig(ctx context.Context, symbol string) (common.SymbolFilters, error) {
	e.symbolMu.Lock()
	defer e.symbolMu.Unlock()

	s := e.Settings()
	if !e.margined[symbol] {
		if err := e.gw.SetMarginMode(ctx, symbol, common.MarginMode(s.MarginMode)); err != nil {
			// "no need to change" is success in disguise
			if !common.IsCode(err, common.CodeNoNeedToChangeMargin) {
				return common.SymbolFilters{}, fmt.Errorf("margin mode: %w", err)
			}
		}
		if err := e.gw.SetLeverage(ctx, symbol, s.Leverage); err != nil {
			return common.SymbolFilters{}, fmt.Errorf("leverage: %w", err)
		}
		e.margined[symbol] = true
	}
	if f, ok := e.filters[symbol]; ok {
		return f, nil
	}
	f, err := e.gw.SymbolFilters(ctx, symbol)
	if err != nil {
		return common.SymbolFilters{}, fmt.Errorf("filters: %w", err)
	}
	e.filters[symbol] = f
	return f, nil
}

func (e *Engine) riskParams(volatility float64) risk.Params {
	s := e.Settings()
	return risk.Params{
		Volatility: volatility,
		SLMultiple: s.SLMultiple,
		TPMultiple: s.TPMultiple,
		FixedTPPct: s.FixedTPPct / 100,
		FixedSLPct: s.FixedSLPct / 100,
		UseFixed:   s.RiskMode == config.RiskModeFixed || volatility <= 0,
	}
}

// -- control surface ---------------------------------------------------

// ManualTrade opens (or reverses into) a position on explicit operator
// request, bypassing the signal but not risk sizing or capacity limits.
func (e *Engine) ManualTrade(ctx context.Context, symbol string, dir signal.Direction) error {
	if dir != signal.Long && dir != signal.Short {
		return fmt.Errorf("engine: manual trade direction must be LONG or SHORT")
	}
	if !e.Running() {
		return ErrNotRunning
	}
	if symbol == "" {
		syms, _ := e.lastSymbols.Load().([]string)
		if len(syms) == 0 {
			return ErrNoSymbols
		}
		symbol = syms[0]
	}

	s := e.Settings()
	vol := 0.0
	if candles, err := e.market.Candles(ctx, symbol, s.Interval, candleWindow); err == nil && len(candles) > 15 {
		vol = indicators.ATR(market.Highs(candles), market.Lows(candles), market.Closes(candles), 14)
	}

	lock := e.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	pos := e.position(symbol)
	switch {
	case pos == nil:
		return e.openPosition(ctx, symbol, dir, vol)
	case pos.State != StateOpen:
		return ErrPositionBusy
	case pos.Direction == dir:
		return ErrAlreadyInSide
	default:
		if err := e.closeLocked(ctx, pos, "manual reversal"); err != nil {
			return err
		}
		return e.openPosition(ctx, symbol, dir, vol)
	}
}

// ClosePosition closes one symbol's position on operator request.
func (e *Engine) ClosePosition(ctx context.Context, symbol string) error {
	lock := e.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	pos := e.position(symbol)
	if pos == nil {
		return ErrNoPosition
	}
	if pos.State != StateOpen {
		return ErrPositionBusy
	}
	return e.closeLocked(ctx, pos, "manual close")
}

// CloseAll closes every open position; it keeps going past individual
// failures and reports them joined.
func (e *Engine) CloseAll(ctx context.Context) error {
	var errs []error
	for _, sym := range e.heldSymbols() {
		if err := e.ClosePosition(ctx, sym); err != nil && !errors.Is(err, ErrNoPosition) {
			errs = append(errs, fmt.Errorf("%s: %w", sym, err))
		}
	}
	return errors.Join(errs...)
}

// Settings returns a copy of the current runtime settings.
func (e *Engine) Settings() config.Settings {
	e.settingsMu.RLock()
	defer e.settingsMu.RUnlock()
	return e.settings
}

// UpdateSettings applies a partial update. The patch is validated as a
// whole; an invalid combination leaves the current settings untouched. New
// values take effect from the next cycle; open positions keep the
// protective levels they were opened with.
func (e *Engine) UpdateSettings(p config.Patch) (config.Settings, error) {
	e.settingsMu.Lock()
	defer e.settingsMu.Unlock()
	next, err := e.settings.Apply(p)
	if err != nil {
		return e.settings, err
	}
	if _, ok := e.providers[next.Strategy]; !ok {
		return e.settings, fmt.Errorf("%w: %q", ErrUnknownStrategy, next.Strategy)
	}
	e.settings = next
	e.logf("✓ settings updated")
	return next, nil
}

// UpdateSymbols replaces the fixed symbol list. Refused while the engine is
// running: swapping the universe under live positions is how positions get
// orphaned.
func (e *Engine) UpdateSymbols(symbols []string) error {
	if e.Running() {
		return ErrRunning
	}
	if len(symbols) == 0 {
		return ErrNoSymbols
	}
	e.settingsMu.Lock()
	defer e.settingsMu.Unlock()
	next := e.settings
	next.Symbols = append([]string(nil), symbols...)
	if err := next.Validate(); err != nil {
		return err
	}
	e.settings = next
	e.lastSymbols.Store(append([]string(nil), symbols...))
	return nil
}

// Status is a point-in-time snapshot of the engine for the API surface.
type Status struct {
	Running   bool            `json:"running"`
	Strategy  string          `json:"strategy"`
	Interval  string          `json:"interval"`
	Symbols   []string        `json:"symbols"`
	Positions []Position      `json:"positions"`
	Settings  config.Settings `json:"settings"`
}

// Status reports current engine state. It reads only local state and never
// blocks on the exchange.
func (e *Engine) Status() Status {
	s := e.Settings()
	syms, _ := e.lastSymbols.Load().([]string)

	e.posMu.RLock()
	positions := make([]Position, 0, len(e.positions))
	for _, p := range e.positions {
		positions = append(positions, *p)
	}
	e.posMu.RUnlock()
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })

	return Status{
		Running:   e.Running(),
		Strategy:  s.Strategy,
		Interval:  s.Interval,
		Symbols:   syms,
		Positions: positions,
		Settings:  s,
	}
}

// -- internal state helpers --------------------------------------------

func (e *Engine) symbolLock(symbol string) *sync.Mutex {
	e.lockMu.Lock()
	defer e.lockMu.Unlock()
	l, ok := e.symLocks[symbol]
	if !ok {
		l = &sync.Mutex{}
		e.symLocks[symbol] = l
	}
	return l
}

func (e *Engine) position(symbol string) *Position {
	e.posMu.RLock()
	defer e.posMu.RUnlock()
	return e.positions[symbol]
}

func (e *Engine) removePosition(symbol string) {
	e.posMu.Lock()
	defer e.posMu.Unlock()
	delete(e.positions, symbol)
}

func (e *Engine) setState(pos *Position, st State) {
	e.posMu.Lock()
	pos.State = st
	e.posMu.Unlock()
}

func (e *Engine) setProtectionMissing(pos *Position, missing bool) {
	e.posMu.Lock()
	pos.ProtectionMissing = missing
	e.posMu.Unlock()
}

func (e *Engine) heldSymbols() []string {
	e.posMu.RLock()
	defer e.posMu.RUnlock()
	out := make([]string, 0, len(e.positions))
	for sym := range e.positions {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

func (e *Engine) snapshotOf(pos *Position) Position {
	e.posMu.RLock()
	defer e.posMu.RUnlock()
	return *pos
}

func (e *Engine) logf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Print(msg)
	e.bus.Publish(events.EventLog, events.LogLine{Time: time.Now(), Message: msg})
}

func (e *Engine) warnf(format string, args ...any) {
	e.logf("⚠️ "+format, args...)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
