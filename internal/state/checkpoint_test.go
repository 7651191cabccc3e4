package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCheckpoint_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "grid.json")

	ckpt := Checkpoint{
		SavedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Tokens: map[string]TokenState{
			"111": {
				Name:              "Test Market",
				SharesMicros:      20_000_000,
				AvgCostMicros:     460_000,
				RealizedPnLMicros: -1_500_000,
				VolumeMicros:      42_000_000,
				Orders: []OrderState{
					{ID: "a", Side: "BUY", PriceMicros: 480_000, SizeMicros: 10_000_000, RemainingMicros: 10_000_000, Status: "OPEN"},
				},
			},
		},
	}
	if err := SaveCheckpoint(path, ckpt); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatalf("expected checkpoint to exist")
	}
	ts, found := got.Tokens["111"]
	if !found {
		t.Fatalf("token state missing after reload")
	}
	if ts.SharesMicros != 20_000_000 || ts.AvgCostMicros != 460_000 {
		t.Fatalf("position = %+v", ts)
	}
	if ts.RealizedPnLMicros != -1_500_000 {
		t.Fatalf("pnl = %d, want -1500000", ts.RealizedPnLMicros)
	}
	if len(ts.Orders) != 1 || ts.Orders[0].ID != "a" {
		t.Fatalf("orders = %+v", ts.Orders)
	}
}

func TestLoadCheckpoint_MissingFile(t *testing.T) {
	_, ok, err := LoadCheckpoint(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if ok {
		t.Fatalf("missing file reported as present")
	}
}

func TestLoadCheckpoint_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := LoadCheckpoint(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSaveCheckpoint_EmptyPathIsNoop(t *testing.T) {
	if err := SaveCheckpoint("", Checkpoint{}); err != nil {
		t.Fatalf("empty path: %v", err)
	}
}
