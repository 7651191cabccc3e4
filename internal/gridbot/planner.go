package gridbot

import (
	"github.com/Thruth-tech/Polymarket-grid/internal/clob"
)

// Plan computes the target grid for the current price: GridLevels BUY levels
// stepping down from the price and GridLevels SELL levels stepping up, all
// snapped to spacing increments. Candidates outside [RangeMin, RangeMax] or
// outside the venue's $0.01..$0.99 band are dropped, not clamped, so the grid
// is asymmetric near the range edges.
//
// Share size per level is OrderSizeUSD / price rounded to 0.01 shares, which
// keeps notional per level constant as price moves: levels near resolution
// quote large share counts and callers must treat size as variable.
//
// Plan is pure; identical inputs always yield the identical grid.
func Plan(priceMicros uint64, cfg TokenConfig) []Level {
	// Snap to the grid line nearest the current price. Stepping every level
	// from this base (rather than cumulatively) keeps prices exact.
	base := roundHalfUpToStep(priceMicros, cfg.SpacingMicros)

	levels := make([]Level, 0, 2*cfg.GridLevels)

	buyBase := base
	if buyBase >= priceMicros {
		if buyBase < cfg.SpacingMicros {
			buyBase = 0
		} else {
			buyBase -= cfg.SpacingMicros
		}
	}
	for i := 0; i < cfg.GridLevels; i++ {
		step := uint64(i) * cfg.SpacingMicros
		if step > buyBase {
			break
		}
		price := buyBase - step
		if price < cfg.RangeMinMicros || price >= priceMicros || price < minPriceMicros {
			continue
		}
		shares, ok := levelShares(price, cfg)
		if !ok {
			continue
		}
		levels = append(levels, Level{Side: clob.SideBuy, PriceMicros: price, SharesMicros: shares})
	}

	sellBase := base
	if sellBase <= priceMicros {
		sellBase += cfg.SpacingMicros
	}
	for i := 0; i < cfg.GridLevels; i++ {
		price := sellBase + uint64(i)*cfg.SpacingMicros
		if price > cfg.RangeMaxMicros || price <= priceMicros || price > maxPriceMicros {
			continue
		}
		shares, ok := levelShares(price, cfg)
		if !ok {
			continue
		}
		levels = append(levels, Level{Side: clob.SideSell, PriceMicros: price, SharesMicros: shares})
	}

	return levels
}

// levelShares converts the per-level dollar size to a share count at the
// given price, rounded to 0.01 shares, bounded by the configured min/max.
func levelShares(priceMicros uint64, cfg TokenConfig) (uint64, bool) {
	if priceMicros == 0 {
		return 0, false
	}
	shares := cfg.OrderSizeUSDMicros * microsScale / priceMicros
	shares = roundNearestToStep(shares, 10_000) // 0.01 shares
	if shares < cfg.MinOrderSizeMicros {
		return 0, false
	}
	if shares > cfg.MaxOrderSizeMicros {
		shares = cfg.MaxOrderSizeMicros
	}
	return shares, true
}
