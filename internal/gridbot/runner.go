package gridbot

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Thruth-tech/Polymarket-grid/internal/clob"
	"github.com/Thruth-tech/Polymarket-grid/internal/jsonl"
	"github.com/Thruth-tech/Polymarket-grid/internal/state"
)

const shutdownTimeout = 30 * time.Second

// Runner drives one grid cycle per interval across all configured tokens.
// Tokens are processed sequentially; one token failing its cycle never stops
// the others, and the loop itself only stops on shutdown.
type Runner struct {
	cfg      Config
	exchange Exchange
	oracle   *Oracle
	eventLog *jsonl.Writer

	tokens    []*tokenRuntime
	status    statusTracker
	startedAt time.Time
}

// tokenRuntime is the per-token mutable state carried across cycles.
type tokenRuntime struct {
	cfg      TokenConfig
	pos      Position
	snapshot []OpenOrder // last known open orders, for fill detection
}

func NewRunner(cfg Config, ex Exchange, oracle *Oracle, eventLog *jsonl.Writer) *Runner {
	r := &Runner{
		cfg:       cfg,
		exchange:  ex,
		oracle:    oracle,
		eventLog:  eventLog,
		status:    newStatusTracker(5 * time.Minute),
		startedAt: time.Now(),
	}
	for _, tc := range cfg.Tokens {
		r.tokens = append(r.tokens, &tokenRuntime{cfg: tc})
	}
	r.restoreCheckpoint()
	return r
}

func (r *Runner) restoreCheckpoint() {
	ckpt, ok, err := state.LoadCheckpoint(r.cfg.CheckpointPath)
	if err != nil {
		log.Printf("[warn] checkpoint load: %v", err)
		return
	}
	if !ok {
		return
	}
	for _, tr := range r.tokens {
		ts, ok := ckpt.Tokens[tr.cfg.TokenID]
		if !ok {
			continue
		}
		tr.pos = Position{
			SharesMicros:      ts.SharesMicros,
			AvgCostMicros:     ts.AvgCostMicros,
			RealizedPnLMicros: ts.RealizedPnLMicros,
			VolumeMicros:      ts.VolumeMicros,
		}
		for _, os := range ts.Orders {
			tr.snapshot = append(tr.snapshot, orderFromState(os))
		}
		log.Printf("[cfg] %s: restored position=%s avg_cost=%s pnl=%s (%d tracked orders)",
			tr.cfg.Name, formatMicros(ts.SharesMicros), formatMicros(ts.AvgCostMicros),
			formatSignedMicros(ts.RealizedPnLMicros), len(ts.Orders))
	}
}

func (r *Runner) saveCheckpoint() {
	if r.cfg.CheckpointPath == "" {
		return
	}
	ckpt := state.Checkpoint{
		SavedAt: time.Now().UTC(),
		Tokens:  make(map[string]state.TokenState, len(r.tokens)),
	}
	for _, tr := range r.tokens {
		ts := state.TokenState{
			Name:              tr.cfg.Name,
			SharesMicros:      tr.pos.SharesMicros,
			AvgCostMicros:     tr.pos.AvgCostMicros,
			RealizedPnLMicros: tr.pos.RealizedPnLMicros,
			VolumeMicros:      tr.pos.VolumeMicros,
		}
		for _, o := range tr.snapshot {
			ts.Orders = append(ts.Orders, orderToState(o))
		}
		ckpt.Tokens[tr.cfg.TokenID] = ts
	}
	if err := state.SaveCheckpoint(r.cfg.CheckpointPath, ckpt); err != nil {
		log.Printf("[warn] checkpoint save: %v", err)
	}
}

func orderFromState(os state.OrderState) OpenOrder {
	side := clob.SideBuy
	if os.Side == string(clob.SideSell) {
		side = clob.SideSell
	}
	status := OrderStatus(os.Status)
	switch status {
	case StatusOpen, StatusPartiallyFilled, StatusFilled, StatusCancelled:
	default:
		status = StatusOpen
	}
	return OpenOrder{
		ID:              os.ID,
		Side:            side,
		PriceMicros:     os.PriceMicros,
		SizeMicros:      os.SizeMicros,
		RemainingMicros: os.RemainingMicros,
		Status:          status,
	}
}

func orderToState(o OpenOrder) state.OrderState {
	return state.OrderState{
		ID:              o.ID,
		Side:            string(o.Side),
		PriceMicros:     o.PriceMicros,
		SizeMicros:      o.SizeMicros,
		RemainingMicros: o.RemainingMicros,
		Status:          string(o.Status),
	}
}

// Run executes grid cycles until ctx is cancelled, then cancels every
// tracked open order before returning.
func (r *Runner) Run(ctx context.Context) error {
	logGridEvent(r.eventLog, gridLogEvent{
		Event:         "start",
		Mode:          gridMode(r.cfg.EnableTrading),
		Source:        r.cfg.Source,
		EnableTrading: r.cfg.EnableTrading,
	})

	ticker := time.NewTicker(r.cfg.CycleInterval)
	defer ticker.Stop()

	r.runAll(ctx)
	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			logGridEvent(r.eventLog, gridLogEvent{
				Event:    "stop",
				Mode:     gridMode(r.cfg.EnableTrading),
				UptimeMs: uptimeMs(r.startedAt),
			})
			return nil
		case <-ticker.C:
			r.runAll(ctx)
		}
	}
}

func (r *Runner) runAll(ctx context.Context) {
	for _, tr := range r.tokens {
		if ctx.Err() != nil {
			return
		}
		if err := r.runCycle(ctx, tr); err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[warn] %s: cycle failed: %v", tr.cfg.Name, err)
			logGridEvent(r.eventLog, gridLogEvent{
				Event:     "cycle_error",
				TokenID:   tr.cfg.TokenID,
				TokenName: tr.cfg.Name,
				Err:       err.Error(),
				UptimeMs:  uptimeMs(r.startedAt),
			})
		}
	}
	r.saveCheckpoint()
}

func (r *Runner) runCycle(ctx context.Context, tr *tokenRuntime) error {
	price, source, err := r.resolvePrice(ctx, tr.cfg.TokenID)
	if err != nil {
		// No price means no grid this cycle. Existing orders stay put.
		r.status.Set(tr.cfg.Name, fmt.Sprintf("no price: %v", err))
		return nil
	}

	open, err := r.fetchOpenOrders(ctx, tr.cfg.TokenID)
	if err != nil {
		return fmt.Errorf("open orders: %w", err)
	}

	fills := DetectFills(tr.snapshot, open)
	counters := r.applyFills(tr, fills)

	target := Plan(price, tr.cfg)
	quantum := tr.cfg.PriceQuantumMicros()
	plan := Reconcile(target, open, quantum)
	for _, c := range counters {
		plan = MergeCounter(plan, c, open, quantum)
	}

	kept, cancelled, placed := r.execute(ctx, tr, open, plan)

	tr.snapshot = nextSnapshot(open, cancelled, placed)

	r.status.Set(tr.cfg.Name, fmt.Sprintf(
		"price=%s (%s) open=%d keep=%d cancel=%d place=%d fills=%d pos=%s pnl=%s",
		formatMicros(price), source, len(open), kept, len(cancelled), len(placed), len(fills),
		formatMicros(tr.pos.SharesMicros), formatSignedMicros(tr.pos.RealizedPnLMicros)))

	logGridEvent(r.eventLog, gridLogEvent{
		Event:             "cycle",
		TokenID:           tr.cfg.TokenID,
		TokenName:         tr.cfg.Name,
		PriceMicros:       price,
		PriceSource:       source,
		Keeps:             kept,
		Cancels:           len(cancelled),
		Places:            len(placed),
		Fills:             len(fills),
		PositionMicros:    tr.pos.SharesMicros,
		AvgCostMicros:     tr.pos.AvgCostMicros,
		RealizedPnLMicros: tr.pos.RealizedPnLMicros,
		VolumeMicros:      tr.pos.VolumeMicros,
		UptimeMs:          uptimeMs(r.startedAt),
	})
	return nil
}

func (r *Runner) resolvePrice(ctx context.Context, tokenID string) (uint64, string, error) {
	cctx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()
	return r.oracle.Resolve(cctx, tokenID)
}

func (r *Runner) fetchOpenOrders(ctx context.Context, tokenID string) ([]OpenOrder, error) {
	cctx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()
	return r.exchange.OpenOrders(cctx, tokenID)
}

// applyFills books detected fills into the position and returns the
// profit-taking counter-levels they imply.
func (r *Runner) applyFills(tr *tokenRuntime, fills []Fill) []Level {
	var counters []Level
	for _, f := range fills {
		switch f.Side {
		case clob.SideBuy:
			tr.pos.ApplyBuy(f.PriceMicros, f.SharesMicros)
		case clob.SideSell:
			tr.pos.ApplySell(f.PriceMicros, f.SharesMicros)
		}
		log.Printf("%s: fill %s %s @ %s (pos=%s pnl=%s)",
			tr.cfg.Name, f.Side, formatMicros(f.SharesMicros), formatMicros(f.PriceMicros),
			formatMicros(tr.pos.SharesMicros), formatSignedMicros(tr.pos.RealizedPnLMicros))
		logGridEvent(r.eventLog, gridLogEvent{
			Event:             "fill",
			TokenID:           tr.cfg.TokenID,
			TokenName:         tr.cfg.Name,
			OrderID:           f.OrderID,
			Side:              string(f.Side),
			LevelMicros:       f.PriceMicros,
			SharesMicros:      f.SharesMicros,
			PositionMicros:    tr.pos.SharesMicros,
			AvgCostMicros:     tr.pos.AvgCostMicros,
			RealizedPnLMicros: tr.pos.RealizedPnLMicros,
			VolumeMicros:      tr.pos.VolumeMicros,
			UptimeMs:          uptimeMs(r.startedAt),
		})
		if c, ok := CounterLevel(f, tr.cfg); ok {
			counters = append(counters, c)
		}
	}
	return counters
}

// execute runs the reconcile plan: all cancels first, then all placements.
// A failed cancel leaves the live order in place, so any placement at the
// same level is suppressed to avoid doubling up.
func (r *Runner) execute(ctx context.Context, tr *tokenRuntime, open []OpenOrder, plan ReconcilePlan) (kept int, cancelled []OpenOrder, placed []OpenOrder) {
	quantum := tr.cfg.PriceQuantumMicros()

	type levelKey struct {
		side  clob.Side
		price uint64
	}
	blocked := make(map[levelKey]struct{})
	key := func(side clob.Side, priceMicros uint64) levelKey {
		return levelKey{side: side, price: roundNearestToStep(priceMicros, quantum)}
	}

	for _, o := range plan.Cancels {
		if !r.cfg.EnableTrading {
			log.Printf("[dry] %s: would cancel %s %s @ %s (id=%s)",
				tr.cfg.Name, o.Side, formatMicros(o.RemainingMicros), formatMicros(o.PriceMicros), o.ID)
			blocked[key(o.Side, o.PriceMicros)] = struct{}{}
			continue
		}
		if err := r.cancelOrder(ctx, o.ID); err != nil {
			log.Printf("[warn] %s: cancel %s failed: %v", tr.cfg.Name, o.ID, err)
			logGridEvent(r.eventLog, gridLogEvent{
				Event:       "cancel_error",
				TokenID:     tr.cfg.TokenID,
				TokenName:   tr.cfg.Name,
				OrderID:     o.ID,
				Side:        string(o.Side),
				LevelMicros: o.PriceMicros,
				Err:         err.Error(),
			})
			blocked[key(o.Side, o.PriceMicros)] = struct{}{}
			continue
		}
		cancelled = append(cancelled, o)
		logGridEvent(r.eventLog, gridLogEvent{
			Event:       "cancel",
			TokenID:     tr.cfg.TokenID,
			TokenName:   tr.cfg.Name,
			OrderID:     o.ID,
			Side:        string(o.Side),
			LevelMicros: o.PriceMicros,
			UptimeMs:    uptimeMs(r.startedAt),
		})
	}

	survivors := openAfterCancels(open, cancelled)

	// Shares already promised to live sell orders are not sellable again.
	sellBudget := tr.pos.SharesMicros
	for _, o := range survivors {
		if o.Side != clob.SideSell {
			continue
		}
		sellBudget -= min(sellBudget, o.RemainingMicros)
	}

	for _, lvl := range plan.Places {
		if _, skip := blocked[key(lvl.Side, lvl.PriceMicros)]; skip {
			continue
		}
		shares := Authorize(&tr.pos, lvl.Side, lvl.PriceMicros, lvl.SharesMicros, tr.cfg.MaxPositionUSDMicros)
		reason := "min_order_size"
		if shares < lvl.SharesMicros {
			if lvl.Side == clob.SideBuy {
				reason = "position_cap"
			} else {
				reason = "no_inventory"
			}
		}
		if lvl.Side == clob.SideSell && shares > sellBudget {
			shares = sellBudget
			reason = "sell_budget"
		}
		if shares < tr.cfg.MinOrderSizeMicros {
			r.reportSuppressed(tr, lvl, shares, reason)
			continue
		}
		lvl.SharesMicros = shares

		if !r.cfg.EnableTrading {
			log.Printf("[dry] %s: would place %s %s @ %s ($%s)",
				tr.cfg.Name, lvl.Side, formatMicros(lvl.SharesMicros), formatMicros(lvl.PriceMicros),
				formatMicros(lvl.ValueMicros()))
			continue
		}
		o, err := r.placeOrder(ctx, tr.cfg.TokenID, lvl)
		if err != nil {
			log.Printf("[warn] %s: place %s @ %s failed: %v",
				tr.cfg.Name, lvl.Side, formatMicros(lvl.PriceMicros), err)
			logGridEvent(r.eventLog, gridLogEvent{
				Event:        "place_error",
				TokenID:      tr.cfg.TokenID,
				TokenName:    tr.cfg.Name,
				Side:         string(lvl.Side),
				LevelMicros:  lvl.PriceMicros,
				SharesMicros: lvl.SharesMicros,
				Err:          err.Error(),
			})
			continue
		}
		if lvl.Side == clob.SideSell {
			sellBudget -= min(sellBudget, o.RemainingMicros)
		}
		placed = append(placed, o)
		logGridEvent(r.eventLog, gridLogEvent{
			Event:        "place",
			TokenID:      tr.cfg.TokenID,
			TokenName:    tr.cfg.Name,
			OrderID:      o.ID,
			Side:         string(o.Side),
			LevelMicros:  o.PriceMicros,
			SharesMicros: o.SizeMicros,
			UptimeMs:     uptimeMs(r.startedAt),
		})
	}

	return len(survivors), cancelled, placed
}

// reportSuppressed records a placement the risk checks shrank below the
// venue minimum. A buy dropped at the position cap is the rebuy a sell fill
// would otherwise spawn; suppressing it keeps the realized profit as cash.
func (r *Runner) reportSuppressed(tr *tokenRuntime, lvl Level, approvedMicros uint64, reason string) {
	log.Printf("%s: suppress %s %s @ %s (%s, approved %s)",
		tr.cfg.Name, lvl.Side, formatMicros(lvl.SharesMicros), formatMicros(lvl.PriceMicros),
		reason, formatMicros(approvedMicros))
	logGridEvent(r.eventLog, gridLogEvent{
		Event:        "place_suppressed",
		TokenID:      tr.cfg.TokenID,
		TokenName:    tr.cfg.Name,
		Side:         string(lvl.Side),
		LevelMicros:  lvl.PriceMicros,
		SharesMicros: lvl.SharesMicros,
		Reason:       reason,
		UptimeMs:     uptimeMs(r.startedAt),
	})
}

// openAfterCancels is the set of orders still live after this cycle's
// cancels: everything fetched this cycle minus what was actually cancelled.
func openAfterCancels(open, cancelled []OpenOrder) []OpenOrder {
	gone := make(map[string]struct{}, len(cancelled))
	for _, o := range cancelled {
		gone[o.ID] = struct{}{}
	}
	var out []OpenOrder
	for _, o := range open {
		if _, ok := gone[o.ID]; ok {
			continue
		}
		out = append(out, o)
	}
	return out
}

func nextSnapshot(open, cancelled, placed []OpenOrder) []OpenOrder {
	gone := make(map[string]struct{}, len(cancelled))
	for _, o := range cancelled {
		gone[o.ID] = struct{}{}
	}
	out := make([]OpenOrder, 0, len(open)+len(placed))
	for _, o := range open {
		if _, ok := gone[o.ID]; ok {
			continue
		}
		out = append(out, o)
	}
	return append(out, placed...)
}

func (r *Runner) cancelOrder(ctx context.Context, orderID string) error {
	cctx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()
	return r.exchange.Cancel(cctx, orderID)
}

func (r *Runner) placeOrder(ctx context.Context, tokenID string, lvl Level) (OpenOrder, error) {
	cctx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout)
	defer cancel()
	return r.exchange.Place(cctx, tokenID, lvl)
}

// shutdown cancels every tracked open order under a fresh deadline; the run
// context is already cancelled by the time this is called.
func (r *Runner) shutdown() {
	log.Printf("Cancelling open orders…")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, tr := range r.tokens {
		open, err := r.exchange.OpenOrders(ctx, tr.cfg.TokenID)
		if err != nil {
			log.Printf("[warn] %s: open orders during shutdown: %v (using last snapshot)", tr.cfg.Name, err)
			open = tr.snapshot
		}
		var remaining []OpenOrder
		for _, o := range open {
			if !r.cfg.EnableTrading {
				log.Printf("[dry] %s: would cancel %s %s @ %s (id=%s)",
					tr.cfg.Name, o.Side, formatMicros(o.RemainingMicros), formatMicros(o.PriceMicros), o.ID)
				continue
			}
			if err := r.exchange.Cancel(ctx, o.ID); err != nil {
				log.Printf("[warn] %s: shutdown cancel %s failed: %v", tr.cfg.Name, o.ID, err)
				remaining = append(remaining, o)
				continue
			}
			logGridEvent(r.eventLog, gridLogEvent{
				Event:       "cancel",
				TokenID:     tr.cfg.TokenID,
				TokenName:   tr.cfg.Name,
				OrderID:     o.ID,
				Side:        string(o.Side),
				LevelMicros: o.PriceMicros,
				Reason:      "shutdown",
			})
		}
		if r.cfg.EnableTrading {
			tr.snapshot = remaining
		}
	}
	r.saveCheckpoint()
}
