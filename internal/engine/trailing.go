package engine

import (
	"context"

	"futures-engine/internal/risk"
	"futures-engine/internal/signal"
	"futures-engine/pkg/config"
	"futures-engine/pkg/exchanges/common"
)

// breakEvenBufferPct is the margin past entry, in percent of entry price,
// at which the promotion stop is parked so fees do not turn a break-even
// exit into a loss.
const breakEvenBufferPct = 0.1

// manageProtection is the per-cycle protection pass: retry any unarmed
// protective orders, then run trailing promotion / ratcheting for every
// open position.
func (e *Engine) manageProtection(ctx context.Context) {
	s := e.Settings()
	for _, sym := range e.heldSymbols() {
		lock := e.symbolLock(sym)
		lock.Lock()
		if pos := e.position(sym); pos != nil && pos.State == StateOpen {
			e.protectOne(ctx, pos, s)
		}
		lock.Unlock()
	}
}

func (e *Engine) protectOne(ctx context.Context, pos *Position, s config.Settings) {
	filters, err := e.ensureSymbolConfig(ctx, pos.Symbol)
	if err != nil {
		e.warnf("protection pass %s: %v", pos.Symbol, err)
		return
	}
	if pos.ProtectionMissing {
		if err := e.placeProtection(ctx, pos, filters); err != nil {
			e.warnf("%s protection retry failed: %v", pos.Symbol, err)
			return
		}
	}
	if !s.Trailing.Enabled {
		return
	}
	mark, err := e.gw.MarkPrice(ctx, pos.Symbol)
	if err != nil {
		e.warnf("mark price %s: %v", pos.Symbol, err)
		return
	}
	e.posMu.Lock()
	pos.MarkPrice = mark
	e.posMu.Unlock()

	if !pos.Trailing.Active {
		if pos.roi(mark) >= s.Trailing.TriggerPct {
			e.promote(ctx, pos, filters)
		}
		return
	}
	e.ratchet(ctx, pos, mark, s.Trailing.DistancePct, filters)
}

// promote replaces the fixed take-profit / stop-loss pair with a single
// stop just past break-even and activates the ratchet. If the cancel fails
// the fixed protection stays working and promotion is retried next cycle.
func (e *Engine) promote(ctx context.Context, pos *Position, filters common.SymbolFilters) {
	buffer := breakEvenBufferPct / 100
	var stop float64
	if pos.Direction == signal.Long {
		stop = pos.EntryPrice * (1 + buffer)
	} else {
		stop = pos.EntryPrice * (1 - buffer)
	}
	stop = risk.RoundToTick(stop, filters)

	if err := e.gw.CancelAllOpenOrders(ctx, pos.Symbol); err != nil && !common.IsPermanent(err) {
		e.warnf("%s trailing promotion deferred, cancel failed: %v", pos.Symbol, err)
		return
	}

	e.posMu.Lock()
	pos.Trailing = Trailing{Active: true, Extreme: pos.EntryPrice, Stop: stop}
	pos.TakeProfit = 0
	pos.StopLoss = 0
	e.posMu.Unlock()

	if _, err := e.gw.PlaceStopOrder(ctx, pos.Symbol, pos.closeSide(), common.StopKindStopLoss, stop); err != nil {
		// fixed orders are already cancelled, so the retry path must place
		// the trailing stop, not re-arm the old pair
		e.setProtectionMissing(pos, true)
		e.warnf("%s break-even stop not placed, retrying: %v", pos.Symbol, err)
		return
	}
	e.setProtectionMissing(pos, false)
	e.logf("✓ %s trailing armed, break-even stop %v", pos.Symbol, stop)
}

// ratchet advances the trailing stop when the mark sets a new favorable
// extreme. The stop only ever tightens: a candidate that is not strictly
// better than the working stop is discarded.
func (e *Engine) ratchet(ctx context.Context, pos *Position, mark, distancePct float64, filters common.SymbolFilters) {
	long := pos.Direction == signal.Long

	e.posMu.Lock()
	if (long && mark > pos.Trailing.Extreme) || (!long && mark < pos.Trailing.Extreme) {
		pos.Trailing.Extreme = mark
	}
	extreme := pos.Trailing.Extreme
	current := pos.Trailing.Stop
	e.posMu.Unlock()

	var candidate float64
	if long {
		candidate = extreme * (1 - distancePct/100)
	} else {
		candidate = extreme * (1 + distancePct/100)
	}
	candidate = risk.RoundToTick(candidate, filters)

	if long && candidate <= current {
		return
	}
	if !long && candidate >= current {
		return
	}

	if err := e.gw.CancelAllOpenOrders(ctx, pos.Symbol); err != nil && !common.IsPermanent(err) {
		// previous stop is still working; try again next cycle
		e.warnf("%s ratchet deferred, cancel failed: %v", pos.Symbol, err)
		return
	}
	if _, err := e.gw.PlaceStopOrder(ctx, pos.Symbol, pos.closeSide(), common.StopKindStopLoss, candidate); err != nil {
		e.posMu.Lock()
		pos.Trailing.Stop = candidate
		pos.ProtectionMissing = true
		e.posMu.Unlock()
		e.warnf("%s trailing stop %v not placed, retrying: %v", pos.Symbol, candidate, err)
		return
	}
	e.posMu.Lock()
	pos.Trailing.Stop = candidate
	e.posMu.Unlock()
	e.logf("✓ %s trailing stop moved to %v", pos.Symbol, candidate)
}
