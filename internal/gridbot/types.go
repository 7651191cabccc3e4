package gridbot

import (
	"github.com/Thruth-tech/Polymarket-grid/internal/clob"
)

// Level is a single target quote the grid wants resting on the book.
// Levels are derived from config and the current price every cycle and are
// never persisted; only the exchange orders they turn into persist.
type Level struct {
	Side         clob.Side
	PriceMicros  uint64
	SharesMicros uint64
}

// ValueMicros is the notional (USD micros) of the level.
func (l Level) ValueMicros() uint64 {
	return mulPriceShares(l.PriceMicros, l.SharesMicros)
}

// OrderStatus is the bot-side view of an exchange order's lifecycle.
type OrderStatus string

const (
	StatusOpen            OrderStatus = "OPEN"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCancelled       OrderStatus = "CANCELLED"
)

// OpenOrder is one cycle's snapshot of an exchange-side order. The exchange
// is the source of truth; the bot only caches the most recent snapshot per
// token.
type OpenOrder struct {
	ID              string
	Side            clob.Side
	PriceMicros     uint64
	SizeMicros      uint64 // original share size
	RemainingMicros uint64 // unfilled share size
	Status          OrderStatus
}

func (o OpenOrder) live() bool {
	return o.Status == StatusOpen || o.Status == StatusPartiallyFilled
}

// Fill is derived by diffing order snapshots between consecutive cycles.
// It exists only within one cycle's fill handling.
type Fill struct {
	OrderID      string
	Side         clob.Side
	PriceMicros  uint64
	SharesMicros uint64
}
