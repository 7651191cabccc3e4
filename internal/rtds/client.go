// Package rtds consumes the Polymarket real-time data socket. It maintains
// one connection with resubscribe-on-reconnect and exponential backoff, and
// hands decoded message envelopes to the caller.
package rtds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const DefaultURL = "wss://ws-live-data.polymarket.com"

const DefaultPingInterval = 5 * time.Second

type Subscription struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`

	// Filters is an optional JSON string (not an object).
	Filters string `json:"filters,omitempty"`

	ClobAuth  any `json:"clob_auth,omitempty"`
	GammaAuth any `json:"gamma_auth,omitempty"`
}

type subscribeRequest struct {
	Action        string         `json:"action"`
	Subscriptions []Subscription `json:"subscriptions"`
}

// MarketBooksSubscription builds a clob_market subscription for aggregated
// order book updates on the given token ids. RTDS wants the filter list as a
// JSON string, not a JSON array.
func MarketBooksSubscription(tokenIDs []string) (Subscription, error) {
	if len(tokenIDs) == 0 {
		return Subscription{}, fmt.Errorf("rtds: at least one token id required")
	}
	filters, err := json.Marshal(tokenIDs)
	if err != nil {
		return Subscription{}, fmt.Errorf("rtds filters marshal: %w", err)
	}
	return Subscription{
		Topic:   "clob_market",
		Type:    "agg_orderbook",
		Filters: string(filters),
	}, nil
}

// Message is the RTDS envelope. Payload stays raw so callers can decode it
// per topic/type.
type Message struct {
	Topic        string          `json:"topic"`
	Type         string          `json:"type"`
	Timestamp    int64           `json:"timestamp"`
	Payload      json.RawMessage `json:"payload"`
	ConnectionID string          `json:"connection_id,omitempty"`
}

type Options struct {
	PingInterval time.Duration

	BackoffMin time.Duration
	BackoffMax time.Duration

	OutBuffer int
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = DefaultPingInterval
	}
	if o.BackoffMin <= 0 {
		o.BackoffMin = 500 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 15 * time.Second
	}
	if o.OutBuffer <= 0 {
		o.OutBuffer = 256
	}
	return o
}

// Start connects to the RTDS WebSocket and emits decoded messages until ctx
// is cancelled. Both channels close when the loop exits. Messages are dropped
// rather than blocking when the caller falls behind.
func Start(ctx context.Context, url string, subs []Subscription, opts Options) (<-chan Message, <-chan error) {
	opts = opts.withDefaults()
	if url == "" {
		url = DefaultURL
	}

	out := make(chan Message, opts.OutBuffer)
	errs := make(chan error, 16)

	go func() {
		defer close(out)
		defer close(errs)

		backoff := opts.BackoffMin
		for ctx.Err() == nil {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			if err != nil {
				tryEmitErr(errs, fmt.Errorf("rtds dial: %w", err))
				sleepWithJitter(ctx, backoff)
				backoff = nextBackoff(backoff, opts.BackoffMax)
				continue
			}

			backoff = opts.BackoffMin
			if err := runSession(ctx, conn, subs, opts.PingInterval, out, errs); err != nil && ctx.Err() == nil {
				tryEmitErr(errs, err)
			}
			_ = conn.Close()

			if ctx.Err() != nil {
				return
			}
			sleepWithJitter(ctx, backoff)
			backoff = nextBackoff(backoff, opts.BackoffMax)
		}
	}()

	return out, errs
}

func runSession(
	ctx context.Context,
	conn *websocket.Conn,
	subs []Subscription,
	pingInterval time.Duration,
	out chan<- Message,
	errs chan<- error,
) error {
	if conn == nil {
		return fmt.Errorf("rtds session: nil conn")
	}

	reqBytes, err := json.Marshal(subscribeRequest{Action: "subscribe", Subscriptions: subs})
	if err != nil {
		return fmt.Errorf("rtds subscribe marshal: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, reqBytes); err != nil {
		return fmt.Errorf("rtds subscribe write: %w", err)
	}

	stop := make(chan struct{})
	var stopOnce sync.Once
	stopAll := func() { stopOnce.Do(func() { close(stop) }) }

	// Keepalive. The server drops quiet connections, so ping on a timer and
	// tear the session down if a write ever fails.
	go func() {
		defer stopAll()
		t := time.NewTicker(pingInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-t.C:
				_ = conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
				if werr := conn.WriteMessage(websocket.TextMessage, []byte("ping")); werr != nil {
					tryEmitErr(errs, fmt.Errorf("rtds ping: %w", werr))
					_ = conn.Close()
					return
				}
			}
		}
	}()

	// Connection watcher. Bound to the session's stop channel as well as the
	// context so a finished session never leaves it parked.
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		_ = conn.Close()
	}()

	for {
		typ, msg, err := conn.ReadMessage()
		if err != nil {
			stopAll()
			// Expected when we're the side shutting down.
			if errors.Is(err, websocket.ErrCloseSent) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("rtds read: %w", err)
		}

		if typ != websocket.TextMessage && typ != websocket.BinaryMessage {
			continue
		}
		if len(msg) == 0 || string(msg) == "pong" || string(msg) == "ping" {
			continue
		}

		var m Message
		if err := json.Unmarshal(msg, &m); err != nil {
			tryEmitErr(errs, fmt.Errorf("rtds json decode: %w", err))
			continue
		}

		select {
		case out <- m:
		default:
		}
	}
}

func tryEmitErr(ch chan<- error, err error) {
	if err == nil {
		return
	}
	select {
	case ch <- err:
	default:
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	if next := cur * 2; next < max {
		return next
	}
	return max
}

func sleepWithJitter(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	if j := int64(d) / 7; j > 0 {
		d = time.Duration(int64(d) + rand.Int63n(2*j+1) - j)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
