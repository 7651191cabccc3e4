package gridbot

import (
	"github.com/Thruth-tech/Polymarket-grid/internal/clob"
)

// DetectFills diffs two consecutive open-order snapshots and returns the
// executions that happened in between: an order whose remaining size shrank,
// or one that disappeared from the snapshot entirely. Orders the bot
// cancelled itself never reach prev (they are removed from the snapshot when
// the cancel succeeds), so a vanished order is treated as fully executed for
// its last known remaining size.
//
// Fills are ephemeral: they exist only while one cycle processes them.
func DetectFills(prev, cur []OpenOrder) []Fill {
	curByID := make(map[string]OpenOrder, len(cur))
	for _, o := range cur {
		curByID[o.ID] = o
	}

	var fills []Fill
	for _, p := range prev {
		if !p.live() {
			continue
		}
		c, ok := curByID[p.ID]
		if !ok {
			if p.RemainingMicros > 0 {
				fills = append(fills, Fill{
					OrderID:      p.ID,
					Side:         p.Side,
					PriceMicros:  p.PriceMicros,
					SharesMicros: p.RemainingMicros,
				})
			}
			continue
		}
		if c.RemainingMicros < p.RemainingMicros {
			fills = append(fills, Fill{
				OrderID:      p.ID,
				Side:         p.Side,
				PriceMicros:  p.PriceMicros,
				SharesMicros: p.RemainingMicros - c.RemainingMicros,
			})
		}
	}
	return fills
}

// CounterLevel maps a fill to its profit-taking counter-order: a BUY fill at
// P answers with a SELL at P+spacing, a SELL fill at P with a BUY at
// P-spacing, each for the filled size. The second return is false when the
// counter price would leave the configured range or the venue's valid price
// band, in which case no counter-order is placed.
func CounterLevel(f Fill, cfg TokenConfig) (Level, bool) {
	switch f.Side {
	case clob.SideBuy:
		price := f.PriceMicros + cfg.SpacingMicros
		if price > cfg.RangeMaxMicros || price > maxPriceMicros {
			return Level{}, false
		}
		return Level{Side: clob.SideSell, PriceMicros: price, SharesMicros: f.SharesMicros}, true
	case clob.SideSell:
		if f.PriceMicros < cfg.SpacingMicros {
			return Level{}, false
		}
		price := f.PriceMicros - cfg.SpacingMicros
		if price < cfg.RangeMinMicros || price < minPriceMicros {
			return Level{}, false
		}
		return Level{Side: clob.SideBuy, PriceMicros: price, SharesMicros: f.SharesMicros}, true
	default:
		return Level{}, false
	}
}

// MergeCounter folds a counter-order into an execution plan, keeping the
// one-order-per-level invariant. If the plan already places at the counter's
// level the sizes are summed; if a live order covers the level it is queued
// for cancellation and replaced by one order for the combined size; otherwise
// the counter becomes a fresh placement.
func MergeCounter(plan ReconcilePlan, counter Level, open []OpenOrder, quantumMicros uint64) ReconcilePlan {
	if counter.SharesMicros == 0 {
		return plan
	}
	for i, pl := range plan.Places {
		if pl.Side == counter.Side && samePrice(pl.PriceMicros, counter.PriceMicros, quantumMicros) {
			plan.Places[i].SharesMicros += counter.SharesMicros
			return plan
		}
	}
	cancelled := func(id string) bool {
		for _, c := range plan.Cancels {
			if c.ID == id {
				return true
			}
		}
		return false
	}
	for _, o := range open {
		if !o.live() || cancelled(o.ID) {
			continue
		}
		if o.Side == counter.Side && samePrice(o.PriceMicros, counter.PriceMicros, quantumMicros) {
			plan.Cancels = append(plan.Cancels, o)
			counter.SharesMicros += o.RemainingMicros
			break
		}
	}
	// Counters go to the front: when holdings are thin they must claim the
	// sellable inventory before the regular grid levels do.
	plan.Places = append([]Level{counter}, plan.Places...)
	return plan
}
