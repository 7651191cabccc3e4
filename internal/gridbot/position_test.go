package gridbot

import (
	"testing"

	"github.com/Thruth-tech/Polymarket-grid/internal/clob"
)

func TestApplyBuy_WeightedAverageCost(t *testing.T) {
	var p Position
	p.ApplyBuy(500_000, 10*microsScale) // 10 shares @ $0.50
	p.ApplyBuy(400_000, 10*microsScale) // 10 shares @ $0.40

	if p.SharesMicros != 20*microsScale {
		t.Fatalf("shares = %d, want %d", p.SharesMicros, 20*microsScale)
	}
	if p.AvgCostMicros != 450_000 {
		t.Fatalf("avg cost = %d, want 450000", p.AvgCostMicros)
	}
	if p.VolumeMicros != 9*microsScale {
		t.Fatalf("volume = %d, want %d", p.VolumeMicros, 9*microsScale)
	}
}

func TestApplySell_BooksRealizedPnL(t *testing.T) {
	var p Position
	p.ApplyBuy(450_000, 20*microsScale)

	sold := p.ApplySell(600_000, 10*microsScale)
	if sold != 10*microsScale {
		t.Fatalf("sold = %d, want %d", sold, 10*microsScale)
	}
	// ($0.60 - $0.45) * 10 shares = $1.50
	if p.RealizedPnLMicros != 1_500_000 {
		t.Fatalf("pnl = %d, want 1500000", p.RealizedPnLMicros)
	}
	if p.SharesMicros != 10*microsScale {
		t.Fatalf("shares = %d, want %d", p.SharesMicros, 10*microsScale)
	}
	if p.AvgCostMicros != 450_000 {
		t.Fatalf("avg cost moved on sell: %d", p.AvgCostMicros)
	}
}

func TestApplySell_ClipsAtHoldings(t *testing.T) {
	var p Position
	p.ApplyBuy(500_000, 5*microsScale)

	sold := p.ApplySell(500_000, 30*microsScale)
	if sold != 5*microsScale {
		t.Fatalf("sold = %d, want %d", sold, 5*microsScale)
	}
	if p.SharesMicros != 0 {
		t.Fatalf("shares = %d, want 0", p.SharesMicros)
	}
	if p.AvgCostMicros != 0 {
		t.Fatalf("avg cost should reset at zero holdings, got %d", p.AvgCostMicros)
	}
}

func TestApplySell_LossIsNegative(t *testing.T) {
	var p Position
	p.ApplyBuy(500_000, 10*microsScale)

	p.ApplySell(400_000, 10*microsScale)
	if p.RealizedPnLMicros != -1_000_000 {
		t.Fatalf("pnl = %d, want -1000000", p.RealizedPnLMicros)
	}
}

func TestAuthorize_ShrinksBuyToPositionCap(t *testing.T) {
	pos := &Position{SharesMicros: 190 * microsScale}
	// $100 cap at $0.50 allows 200 shares; 190 held leaves headroom of 10.
	got := Authorize(pos, clob.SideBuy, 500_000, 20*microsScale, 100*microsScale)
	if got != 10*microsScale {
		t.Fatalf("authorized = %d, want %d", got, 10*microsScale)
	}
}

func TestAuthorize_BlocksBuyAtCap(t *testing.T) {
	pos := &Position{SharesMicros: 200 * microsScale}
	got := Authorize(pos, clob.SideBuy, 500_000, 20*microsScale, 100*microsScale)
	if got != 0 {
		t.Fatalf("authorized = %d, want 0", got)
	}
}

func TestAuthorize_PassesBuyWithHeadroom(t *testing.T) {
	pos := &Position{}
	got := Authorize(pos, clob.SideBuy, 500_000, 20*microsScale, 100*microsScale)
	if got != 20*microsScale {
		t.Fatalf("authorized = %d, want request unchanged", got)
	}
}

func TestAuthorize_CapsSellAtHoldings(t *testing.T) {
	pos := &Position{SharesMicros: 5 * microsScale}
	got := Authorize(pos, clob.SideSell, 500_000, 20*microsScale, 100*microsScale)
	if got != 5*microsScale {
		t.Fatalf("authorized = %d, want holdings", got)
	}
}

func TestAuthorize_SellWithNoHoldingsIsZero(t *testing.T) {
	pos := &Position{}
	got := Authorize(pos, clob.SideSell, 500_000, 20*microsScale, 100*microsScale)
	if got != 0 {
		t.Fatalf("authorized = %d, want 0", got)
	}
}
