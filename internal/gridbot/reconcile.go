package gridbot

import (
	"github.com/Thruth-tech/Polymarket-grid/internal/clob"
)

// ReconcilePlan is the minimal cancel/place diff between the target grid and
// the exchange's open orders. Cancels must be executed before Places so the
// account never transiently holds more exposure than intended.
type ReconcilePlan struct {
	Cancels []OpenOrder
	Places  []Level
}

func (p ReconcilePlan) Empty() bool {
	return len(p.Cancels) == 0 && len(p.Places) == 0
}

// Reconcile diffs target levels against the current open-order snapshot.
//
// An open order is kept when a target level with the same side and price
// (within one quantum of the configured precision) exists; partially filled
// orders still cover their level. Everything else is queued for cancellation.
// Target levels with no covering order are queued for placement. Duplicate
// targets at one (side, price) are coalesced by summing sizes; duplicate open
// orders at one (side, price) keep the first and cancel the rest, so at most
// one order per (token, price, side) survives.
//
// Reconcile is pure: re-running it on unchanged inputs yields the same plan,
// and running it on the state the plan produces yields an empty plan.
func Reconcile(target []Level, open []OpenOrder, quantumMicros uint64) ReconcilePlan {
	if quantumMicros == 0 {
		quantumMicros = 1
	}
	targets := coalesceLevels(target)

	covered := make([]bool, len(targets))
	claimed := make(map[int]bool, len(targets)) // target index -> has a live order

	var plan ReconcilePlan
	for _, o := range open {
		if !o.live() {
			continue
		}
		idx := -1
		for i, t := range targets {
			if t.Side == o.Side && samePrice(t.PriceMicros, o.PriceMicros, quantumMicros) {
				idx = i
				break
			}
		}
		if idx < 0 || claimed[idx] {
			plan.Cancels = append(plan.Cancels, o)
			continue
		}
		claimed[idx] = true
		covered[idx] = true
	}

	for i, t := range targets {
		if !covered[i] {
			plan.Places = append(plan.Places, t)
		}
	}
	return plan
}

// coalesceLevels merges target levels that share a side and price, summing
// their sizes. Order of first appearance is preserved.
func coalesceLevels(levels []Level) []Level {
	type key struct {
		side  clob.Side
		price uint64
	}
	out := make([]Level, 0, len(levels))
	index := make(map[key]int, len(levels))
	for _, l := range levels {
		if l.SharesMicros == 0 {
			continue
		}
		k := key{l.Side, l.PriceMicros}
		if i, ok := index[k]; ok {
			out[i].SharesMicros += l.SharesMicros
			continue
		}
		index[k] = len(out)
		out = append(out, l)
	}
	return out
}

// samePrice reports whether two prices agree within one precision unit.
func samePrice(a, b, quantumMicros uint64) bool {
	if a > b {
		a, b = b, a
	}
	return b-a < quantumMicros
}
