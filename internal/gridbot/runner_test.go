package gridbot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Thruth-tech/Polymarket-grid/internal/clob"
	"github.com/Thruth-tech/Polymarket-grid/internal/jsonl"
)

type fakeExchange struct {
	open     []OpenOrder
	openErr  error
	openReqs int

	placed     []OpenOrder
	cancelled  []string
	failCancel map[string]bool
	nextID     int
}

func (f *fakeExchange) OpenOrders(context.Context, string) ([]OpenOrder, error) {
	f.openReqs++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return append([]OpenOrder(nil), f.open...), nil
}

func (f *fakeExchange) Place(_ context.Context, _ string, lvl Level) (OpenOrder, error) {
	f.nextID++
	o := OpenOrder{
		ID:              fmt.Sprintf("o%d", f.nextID),
		Side:            lvl.Side,
		PriceMicros:     lvl.PriceMicros,
		SizeMicros:      lvl.SharesMicros,
		RemainingMicros: lvl.SharesMicros,
		Status:          StatusOpen,
	}
	f.placed = append(f.placed, o)
	return o, nil
}

func (f *fakeExchange) Cancel(_ context.Context, orderID string) error {
	if f.failCancel[orderID] {
		return fmt.Errorf("cancel refused")
	}
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func testRunner(t *testing.T, ex Exchange, price uint64) *Runner {
	t.Helper()
	cfg := Config{
		Tokens:         []TokenConfig{testTokenConfig()},
		CycleInterval:  time.Minute,
		RequestTimeout: time.Second,
		Source:         "poll",
		EnableTrading:  true,
	}
	oracle := &Oracle{Meta: &fakeSource{price: price}}
	return NewRunner(cfg, ex, oracle, nil)
}

func TestRunner_FirstCyclePlacesBuySideOnly(t *testing.T) {
	ex := &fakeExchange{}
	r := testRunner(t, ex, 500_000)

	if err := r.runCycle(context.Background(), r.tokens[0]); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	// With no holdings every sell is shrunk to zero; only the five buy
	// levels go out.
	if len(ex.placed) != 5 {
		t.Fatalf("placed %d orders, want 5", len(ex.placed))
	}
	for _, o := range ex.placed {
		if o.Side != clob.SideBuy {
			t.Fatalf("placed %s order with no holdings", o.Side)
		}
	}
	if len(r.tokens[0].snapshot) != 5 {
		t.Fatalf("snapshot = %d orders, want 5", len(r.tokens[0].snapshot))
	}
}

func TestRunner_FillSpawnsSingleCounterSell(t *testing.T) {
	ex := &fakeExchange{}
	r := testRunner(t, ex, 500_000)
	tr := r.tokens[0]

	// A buy from the previous cycle vanished from the book: full fill.
	tr.snapshot = []OpenOrder{
		{ID: "b1", Side: clob.SideBuy, PriceMicros: 460_000, SizeMicros: 20 * microsScale, RemainingMicros: 20 * microsScale, Status: StatusOpen},
	}

	if err := r.runCycle(context.Background(), tr); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	if tr.pos.SharesMicros != 20*microsScale {
		t.Fatalf("position = %d, want %d", tr.pos.SharesMicros, 20*microsScale)
	}

	var counterSells []OpenOrder
	for _, o := range ex.placed {
		if o.Side == clob.SideSell {
			counterSells = append(counterSells, o)
		}
	}
	if len(counterSells) != 1 {
		t.Fatalf("sell orders = %v, want exactly one counter", counterSells)
	}
	c := counterSells[0]
	if c.PriceMicros != 480_000 || c.SizeMicros != 20*microsScale {
		t.Fatalf("counter = %+v, want 20 shares @ 0.48", c)
	}
}

func TestRunner_FailedCancelBlocksSameLevelPlacement(t *testing.T) {
	ex := &fakeExchange{failCancel: map[string]bool{"s1": true}}
	r := testRunner(t, ex, 500_000)
	tr := r.tokens[0]

	// The filled buy wants a counter sell at 0.48, but a stuck sell already
	// sits there and refuses to cancel.
	tr.snapshot = []OpenOrder{
		{ID: "b1", Side: clob.SideBuy, PriceMicros: 460_000, SizeMicros: 20 * microsScale, RemainingMicros: 20 * microsScale, Status: StatusOpen},
	}
	ex.open = []OpenOrder{
		{ID: "s1", Side: clob.SideSell, PriceMicros: 480_000, SizeMicros: 10 * microsScale, RemainingMicros: 10 * microsScale, Status: StatusOpen},
	}

	if err := r.runCycle(context.Background(), tr); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	for _, o := range ex.placed {
		if o.Side == clob.SideSell && samePrice(o.PriceMicros, 480_000, 1_000) {
			t.Fatalf("placed sell at blocked level: %+v", o)
		}
	}
	stuck := false
	for _, o := range tr.snapshot {
		if o.ID == "s1" {
			stuck = true
		}
	}
	if !stuck {
		t.Fatalf("uncancelled order dropped from snapshot")
	}
}

func TestRunner_DryRunTouchesNothing(t *testing.T) {
	ex := &fakeExchange{
		open: []OpenOrder{
			{ID: "stray", Side: clob.SideBuy, PriceMicros: 310_000, SizeMicros: microsScale, RemainingMicros: microsScale, Status: StatusOpen},
		},
	}
	r := testRunner(t, ex, 500_000)
	r.cfg.EnableTrading = false

	if err := r.runCycle(context.Background(), r.tokens[0]); err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(ex.placed) != 0 || len(ex.cancelled) != 0 {
		t.Fatalf("dry-run executed orders: placed=%d cancelled=%d", len(ex.placed), len(ex.cancelled))
	}
	snap := r.tokens[0].snapshot
	if len(snap) != 1 || snap[0].ID != "stray" {
		t.Fatalf("dry-run snapshot = %v, want exchange truth", snap)
	}
}

func TestRunner_PriceUnavailableSkipsToken(t *testing.T) {
	ex := &fakeExchange{}
	r := testRunner(t, ex, 500_000)
	r.oracle = &Oracle{Meta: &fakeSource{err: fmt.Errorf("gamma down")}}

	if err := r.runCycle(context.Background(), r.tokens[0]); err != nil {
		t.Fatalf("cycle: %v (price outage must not be a cycle error)", err)
	}
	if ex.openReqs != 0 {
		t.Fatalf("exchange consulted despite missing price")
	}
	if len(ex.placed) != 0 {
		t.Fatalf("orders placed without a price")
	}
}

func TestRunner_OpenOrdersErrorFailsCycle(t *testing.T) {
	ex := &fakeExchange{openErr: fmt.Errorf("api down")}
	r := testRunner(t, ex, 500_000)

	if err := r.runCycle(context.Background(), r.tokens[0]); err == nil {
		t.Fatalf("expected cycle error when order state is unknown")
	}
	if len(ex.placed) != 0 {
		t.Fatalf("orders placed with unknown open-order state")
	}
}

func TestRunner_ShutdownCancelsEveryOpenOrderOnce(t *testing.T) {
	ex := &fakeExchange{
		open: []OpenOrder{
			{ID: "a", Side: clob.SideBuy, PriceMicros: 480_000, SizeMicros: microsScale, RemainingMicros: microsScale, Status: StatusOpen},
			{ID: "b", Side: clob.SideBuy, PriceMicros: 460_000, SizeMicros: microsScale, RemainingMicros: microsScale, Status: StatusOpen},
			{ID: "c", Side: clob.SideSell, PriceMicros: 520_000, SizeMicros: microsScale, RemainingMicros: microsScale, Status: StatusOpen},
		},
	}
	r := testRunner(t, ex, 500_000)

	r.shutdown()

	if len(ex.cancelled) != 3 {
		t.Fatalf("cancelled %d orders, want 3", len(ex.cancelled))
	}
	seen := make(map[string]int)
	for _, id := range ex.cancelled {
		seen[id]++
	}
	for _, id := range []string{"a", "b", "c"} {
		if seen[id] != 1 {
			t.Fatalf("order %s cancelled %d times, want exactly once", id, seen[id])
		}
	}
}

func TestRunner_ShutdownFallsBackToSnapshotOnFetchError(t *testing.T) {
	ex := &fakeExchange{openErr: fmt.Errorf("api down")}
	r := testRunner(t, ex, 500_000)
	r.tokens[0].snapshot = []OpenOrder{
		{ID: "tracked", Side: clob.SideBuy, PriceMicros: 480_000, SizeMicros: microsScale, RemainingMicros: microsScale, Status: StatusOpen},
	}

	r.shutdown()

	if len(ex.cancelled) != 1 || ex.cancelled[0] != "tracked" {
		t.Fatalf("cancelled = %v, want the tracked order", ex.cancelled)
	}
}

func testRunnerWithLog(t *testing.T, ex Exchange, price uint64) (*Runner, *jsonl.Writer, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	w := jsonl.New(path)
	cfg := Config{
		Tokens:         []TokenConfig{testTokenConfig()},
		CycleInterval:  time.Minute,
		RequestTimeout: time.Second,
		Source:         "poll",
		EnableTrading:  true,
	}
	return NewRunner(cfg, ex, &Oracle{Meta: &fakeSource{price: price}}, w), w, path
}

func readEventLog(t *testing.T, w *jsonl.Writer, path string) string {
	t.Helper()
	if err := w.Close(); err != nil {
		t.Fatalf("close event log: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read event log: %v", err)
	}
	return string(data)
}

func TestRunner_SuppressedSellsReported(t *testing.T) {
	ex := &fakeExchange{}
	r, w, path := testRunnerWithLog(t, ex, 500_000)

	if err := r.runCycle(context.Background(), r.tokens[0]); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	// No holdings shrinks every sell to zero; each of the five dropped
	// levels must leave a trace in the event log.
	events := readEventLog(t, w, path)
	if got := strings.Count(events, `"event":"place_suppressed"`); got != 5 {
		t.Fatalf("suppressed events = %d, want 5\n%s", got, events)
	}
	if !strings.Contains(events, `"reason":"no_inventory"`) {
		t.Fatalf("missing suppression reason:\n%s", events)
	}
}

func TestRunner_RebuySuppressedAtPositionCap(t *testing.T) {
	ex := &fakeExchange{}
	r, w, path := testRunnerWithLog(t, ex, 500_000)
	r.tokens[0].pos.SharesMicros = 250 * microsScale
	r.tokens[0].pos.AvgCostMicros = 400_000

	if err := r.runCycle(context.Background(), r.tokens[0]); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	for _, o := range ex.placed {
		if o.Side != clob.SideBuy {
			continue
		}
		t.Fatalf("placed buy at %d with position at the cap", o.PriceMicros)
	}
	events := readEventLog(t, w, path)
	if got := strings.Count(events, `"event":"place_suppressed"`); got != 5 {
		t.Fatalf("suppressed events = %d, want 5\n%s", got, events)
	}
	if !strings.Contains(events, `"reason":"position_cap"`) {
		t.Fatalf("missing suppression reason:\n%s", events)
	}
}
