package gridbot

import (
	"github.com/Thruth-tech/Polymarket-grid/internal/clob"
)

// Position tracks one token's holdings and trading results. The venue does
// not support shorting, so SharesMicros is never negative; sells beyond the
// current holdings are clipped at apply time.
type Position struct {
	SharesMicros  uint64 // outcome shares held, 1e6 scale
	AvgCostMicros uint64 // weighted average entry price, micros per share

	RealizedPnLMicros int64  // USD micros, signed
	VolumeMicros      uint64 // cumulative traded notional, USD micros
}

// ValueMicros is the mark value of the holdings at the given price.
func (p *Position) ValueMicros(priceMicros uint64) uint64 {
	return mulPriceShares(priceMicros, p.SharesMicros)
}

// ApplyBuy records a buy fill: position grows and the average cost is
// recomputed as the share-weighted mean of the old cost and the fill price.
func (p *Position) ApplyBuy(priceMicros, sharesMicros uint64) {
	if sharesMicros == 0 {
		return
	}
	oldCost := mulPriceShares(p.AvgCostMicros, p.SharesMicros)
	fillCost := mulPriceShares(priceMicros, sharesMicros)
	p.SharesMicros += sharesMicros
	p.AvgCostMicros = (oldCost + fillCost) * microsScale / p.SharesMicros
	p.VolumeMicros += fillCost
}

// ApplySell records a sell fill, booking realized P&L against the average
// cost. It returns the share count actually applied, which is less than
// sharesMicros if the fill exceeds tracked holdings.
func (p *Position) ApplySell(priceMicros, sharesMicros uint64) uint64 {
	sold := sharesMicros
	if sold > p.SharesMicros {
		sold = p.SharesMicros
	}
	if sold == 0 {
		return 0
	}
	proceeds := mulPriceShares(priceMicros, sold)
	cost := mulPriceShares(p.AvgCostMicros, sold)
	p.RealizedPnLMicros += int64(proceeds) - int64(cost)
	p.VolumeMicros += proceeds
	p.SharesMicros -= sold
	if p.SharesMicros == 0 {
		p.AvgCostMicros = 0
	}
	return sold
}

// Authorize is the single chokepoint gating every order submission.
//
// BUY requests are shrunk so the resulting position value cannot exceed
// maxPositionUSD at the order's price: approved = min(requested,
// maxPositionUSD/price - held), floored at zero. SELL requests are capped at
// current holdings since the venue forbids shorting. The returned size may be
// zero, meaning the order is suppressed.
func Authorize(pos *Position, side clob.Side, priceMicros, requestMicros, maxPositionUSDMicros uint64) uint64 {
	if requestMicros == 0 || priceMicros == 0 {
		return 0
	}
	switch side {
	case clob.SideBuy:
		maxShares := maxPositionUSDMicros * microsScale / priceMicros
		if pos.SharesMicros >= maxShares {
			return 0
		}
		headroom := maxShares - pos.SharesMicros
		if requestMicros > headroom {
			return headroom
		}
		return requestMicros
	case clob.SideSell:
		if requestMicros > pos.SharesMicros {
			return pos.SharesMicros
		}
		return requestMicros
	default:
		return 0
	}
}
