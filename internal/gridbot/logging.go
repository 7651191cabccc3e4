package gridbot

import (
	"log"
	"time"

	"github.com/Thruth-tech/Polymarket-grid/internal/jsonl"
)

type gridLogEvent struct {
	TsMs  int64  `json:"ts_ms"`
	Event string `json:"event"`

	Mode   string `json:"mode,omitempty"`   // dry | live
	Source string `json:"source,omitempty"` // poll | stream

	TokenID   string `json:"token_id,omitempty"`
	TokenName string `json:"token_name,omitempty"`

	PriceMicros uint64 `json:"price_micros,omitempty"`
	PriceSource string `json:"price_source,omitempty"`

	// Per-order fields.
	OrderID      string `json:"order_id,omitempty"`
	Side         string `json:"side,omitempty"`
	LevelMicros  uint64 `json:"level_micros,omitempty"`
	SharesMicros uint64 `json:"shares_micros,omitempty"`

	// Cycle summary.
	Keeps   int `json:"keeps,omitempty"`
	Cancels int `json:"cancels,omitempty"`
	Places  int `json:"places,omitempty"`
	Fills   int `json:"fills,omitempty"`

	// Accounting after the event.
	PositionMicros    uint64 `json:"position_micros,omitempty"`
	AvgCostMicros     uint64 `json:"avg_cost_micros,omitempty"`
	RealizedPnLMicros int64  `json:"realized_pnl_micros,omitempty"`
	VolumeMicros      uint64 `json:"volume_micros,omitempty"`

	EnableTrading bool   `json:"enable_trading,omitempty"`
	Reason        string `json:"reason,omitempty"`
	Err           string `json:"err,omitempty"`

	UptimeMs int64 `json:"uptime_ms,omitempty"`
}

func gridMode(enableTrading bool) string {
	if enableTrading {
		return "live"
	}
	return "dry"
}

func logGridEvent(w *jsonl.Writer, ev gridLogEvent) {
	if w == nil {
		return
	}
	if ev.TsMs == 0 {
		ev.TsMs = time.Now().UnixMilli()
	}
	if err := w.Write(ev); err != nil {
		log.Printf("[warn] event log write failed: %v", err)
	}
}

func uptimeMs(startedAt time.Time) int64 {
	return time.Since(startedAt).Milliseconds()
}
