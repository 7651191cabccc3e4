package rtds

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestSubscribeRequest_JSONShape(t *testing.T) {
	req := subscribeRequest{
		Action: "subscribe",
		Subscriptions: []Subscription{
			{
				Topic:   "clob_market",
				Type:    "agg_orderbook",
				Filters: `["100","200"]`,
			},
		},
	}
	b, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got, ok := m["action"].(string); !ok || got != "subscribe" {
		t.Fatalf("action mismatch: %#v", m["action"])
	}
	subs, ok := m["subscriptions"].([]any)
	if !ok || len(subs) != 1 {
		t.Fatalf("subscriptions mismatch: %#v", m["subscriptions"])
	}
	sub0, ok := subs[0].(map[string]any)
	if !ok {
		t.Fatalf("subscription[0] type mismatch: %#v", subs[0])
	}
	if got := sub0["filters"]; got != `["100","200"]` {
		t.Fatalf("filters mismatch: got=%#v want=%q", got, `["100","200"]`)
	}
}

func TestMarketBooksSubscription_FiltersAreAJSONString(t *testing.T) {
	sub, err := MarketBooksSubscription([]string{"100", "200"})
	if err != nil {
		t.Fatalf("MarketBooksSubscription: %v", err)
	}
	if sub.Topic != "clob_market" || sub.Type != "agg_orderbook" {
		t.Fatalf("unexpected subscription: %+v", sub)
	}
	if sub.Filters != `["100","200"]` {
		t.Fatalf("filters: got=%q want=%q", sub.Filters, `["100","200"]`)
	}

	if _, err := MarketBooksSubscription(nil); err == nil {
		t.Fatalf("expected error for empty token list")
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	o := (Options{}).withDefaults()
	if o.PingInterval != DefaultPingInterval {
		t.Fatalf("PingInterval: got=%s want=%s", o.PingInterval, DefaultPingInterval)
	}
	if o.BackoffMin <= 0 || o.BackoffMax <= 0 {
		t.Fatalf("backoff defaults missing: %#v", o)
	}
	if o.OutBuffer <= 0 {
		t.Fatalf("OutBuffer default missing: %#v", o)
	}
}

func TestNextBackoff_CapsAtMax(t *testing.T) {
	if got := nextBackoff(2*time.Second, 3*time.Second); got != 3*time.Second {
		t.Fatalf("got=%s want=%s", got, 3*time.Second)
	}
	if got := nextBackoff(250*time.Millisecond, 3*time.Second); got != 500*time.Millisecond {
		t.Fatalf("got=%s want=%s", got, 500*time.Millisecond)
	}
}


func TestRunSession_NoGoroutineLeftAfterSessionEnds(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.ReadMessage() // the subscribe request
		conn.Close()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	before := runtime.NumGoroutine()

	// A flappy server produces many short sessions; each one must release
	// its keepalive and connection-watcher goroutines when it ends.
	for i := 0; i < 5; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		out := make(chan Message, 1)
		errs := make(chan error, 1)
		if err := runSession(context.Background(), conn, nil, time.Minute, out, errs); err == nil {
			t.Fatalf("expected read error after server close")
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= before+1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("goroutines grew from %d to %d across sessions", before, runtime.NumGoroutine())
}
