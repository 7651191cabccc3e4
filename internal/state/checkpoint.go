package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint persists per-token accounting and the last known open-order
// snapshot so a restart can resume fill tracking instead of starting blind.
type Checkpoint struct {
	SavedAt time.Time             `json:"saved_at"`
	Tokens  map[string]TokenState `json:"tokens"`
}

type TokenState struct {
	Name string `json:"name,omitempty"`

	SharesMicros      uint64 `json:"shares_micros"`
	AvgCostMicros     uint64 `json:"avg_cost_micros"`
	RealizedPnLMicros int64  `json:"realized_pnl_micros"`
	VolumeMicros      uint64 `json:"volume_micros"`

	Orders []OrderState `json:"orders,omitempty"`
}

type OrderState struct {
	ID              string `json:"id"`
	Side            string `json:"side"`
	PriceMicros     uint64 `json:"price_micros"`
	SizeMicros      uint64 `json:"size_micros"`
	RemainingMicros uint64 `json:"remaining_micros"`
	Status          string `json:"status"`
}

func LoadCheckpoint(path string) (Checkpoint, bool, error) {
	if path == "" {
		return Checkpoint{}, false, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, err
	}

	var ckpt Checkpoint
	if err := json.Unmarshal(b, &ckpt); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint %s: %w", path, err)
	}
	return ckpt, true, nil
}

func SaveCheckpoint(path string, ckpt Checkpoint) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	b, err := json.MarshalIndent(ckpt, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
