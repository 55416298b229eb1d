package engine

import (
	"context"
	"time"

	"futures-engine/internal/events"
	"futures-engine/internal/signal"
	"futures-engine/pkg/exchanges/common"
)

// reconcile aligns local position state with the exchange. Remote-only
// positions are adopted under management; local-only positions are treated
// as closed remotely (a protective order fired) and finalized. Running it
// twice against an unchanged exchange changes nothing.
func (e *Engine) reconcile(ctx context.Context) {
	remote, err := e.gw.Positions(ctx)
	if err != nil {
		e.warnf("reconcile skipped, positions unavailable: %v", err)
		return
	}

	live := make(map[string]common.Position, len(remote))
	for _, rp := range remote {
		if abs(rp.Quantity) > 0 {
			live[rp.Symbol] = rp
		}
	}

	// Local positions the exchange no longer has were closed out from
	// under us; derive their ledger entry and free the slot.
	for _, sym := range e.heldSymbols() {
		lock := e.symbolLock(sym)
		lock.Lock()
		pos := e.position(sym)
		if pos == nil || pos.State != StateOpen {
			// opening or closing transitions settle on their own
			lock.Unlock()
			continue
		}
		if rp, ok := live[sym]; ok {
			e.refreshFromRemote(pos, rp)
			lock.Unlock()
			continue
		}
		e.logf("⚠️ %s closed on exchange (protective order assumed), finalizing", sym)
		e.finalize(ctx, pos, "")
		lock.Unlock()
	}

	// Exchange positions we do not track were opened outside the engine or
	// survived a restart; adopt them so they get protection and trailing.
	for sym, rp := range live {
		if e.position(sym) != nil {
			continue
		}
		lock := e.symbolLock(sym)
		lock.Lock()
		if e.position(sym) == nil {
			e.adopt(ctx, rp)
		}
		lock.Unlock()
	}
}

// refreshFromRemote lets exchange truth win on the numeric fields.
func (e *Engine) refreshFromRemote(pos *Position, rp common.Position) {
	e.posMu.Lock()
	pos.Quantity = abs(rp.Quantity)
	if rp.EntryPrice > 0 {
		pos.EntryPrice = rp.EntryPrice
	}
	if rp.MarkPrice > 0 {
		pos.MarkPrice = rp.MarkPrice
	}
	if rp.Leverage > 0 {
		pos.Leverage = rp.Leverage
	}
	e.posMu.Unlock()
}

// adopt registers an exchange position under local management. Existing
// protective orders are kept; if none are working the position is flagged
// for protection on the next pass. Caller holds the symbol lock.
func (e *Engine) adopt(ctx context.Context, rp common.Position) {
	dir := signal.Long
	if rp.Quantity < 0 {
		dir = signal.Short
	}
	lev := rp.Leverage
	if lev <= 0 {
		lev = e.Settings().Leverage
	}
	pos := &Position{
		Symbol:     rp.Symbol,
		Direction:  dir,
		State:      StateOpen,
		EntryPrice: rp.EntryPrice,
		Quantity:   abs(rp.Quantity),
		Leverage:   lev,
		MarkPrice:  rp.MarkPrice,
		Adopted:    true,
		OpenedAt:   time.Now(),
	}

	orders, err := e.gw.OpenOrders(ctx, rp.Symbol)
	if err != nil {
		pos.ProtectionMissing = true
	} else {
		for _, oo := range orders {
			switch common.StopKind(oo.Type) {
			case common.StopKindTakeProfit:
				pos.TakeProfit = oo.StopPrice
			case common.StopKindStopLoss:
				pos.StopLoss = oo.StopPrice
			}
		}
		pos.ProtectionMissing = pos.StopLoss <= 0
	}

	e.posMu.Lock()
	e.positions[rp.Symbol] = pos
	e.posMu.Unlock()

	e.logf("⚠️ adopted unmanaged %s position on %s (qty=%v entry=%v)", dir, rp.Symbol, pos.Quantity, pos.EntryPrice)
	e.bus.Publish(events.EventAnomaly, map[string]any{
		"kind":   "adopted_position",
		"symbol": rp.Symbol,
	})
	e.bus.Publish(events.EventPositionChange, *pos)
}
