package gridbot

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Thruth-tech/Polymarket-grid/internal/rtds"
)

// DefaultStreamMaxAge bounds how old a cached stream quote may be before the
// oracle falls through to the REST sources.
const DefaultStreamMaxAge = 30 * time.Second

// StreamFeed caches the latest book midpoint per token from the RTDS
// aggregated order book stream. It satisfies PriceSource; a missing or stale
// entry is an error so the oracle can fall back.
type StreamFeed struct {
	maxAge time.Duration

	mu     sync.RWMutex
	prices map[string]streamQuote
}

type streamQuote struct {
	priceMicros uint64
	at          time.Time
}

type aggBook struct {
	AssetID string `json:"asset_id"`
	Bids    []struct {
		Price string `json:"price"`
		Size  string `json:"size"`
	} `json:"bids"`
	Asks []struct {
		Price string `json:"price"`
		Size  string `json:"size"`
	} `json:"asks"`
}

// StartStreamFeed subscribes to book updates for the given tokens and keeps
// the feed updated until ctx is cancelled. Connection errors are logged and
// retried inside the rtds client; they never stop the bot.
func StartStreamFeed(ctx context.Context, url string, tokenIDs []string, maxAge time.Duration) (*StreamFeed, error) {
	sub, err := rtds.MarketBooksSubscription(tokenIDs)
	if err != nil {
		return nil, err
	}
	if maxAge <= 0 {
		maxAge = DefaultStreamMaxAge
	}

	f := &StreamFeed{
		maxAge: maxAge,
		prices: make(map[string]streamQuote, len(tokenIDs)),
	}

	msgs, errs := rtds.Start(ctx, url, []rtds.Subscription{sub}, rtds.Options{})
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errs:
				if !ok {
					return
				}
				log.Printf("[warn] stream: %v", err)
			case m, ok := <-msgs:
				if !ok {
					return
				}
				f.apply(m)
			}
		}
	}()
	return f, nil
}

func (f *StreamFeed) apply(m rtds.Message) {
	if m.Topic != "clob_market" || m.Type != "agg_orderbook" {
		return
	}
	var book aggBook
	if err := json.Unmarshal(m.Payload, &book); err != nil {
		log.Printf("[warn] stream book decode: %v", err)
		return
	}
	if book.AssetID == "" {
		return
	}

	var bestBid, bestAsk uint64
	if n := len(book.Bids); n > 0 {
		if p, err := parseDecimalMicros(book.Bids[n-1].Price); err == nil {
			bestBid = p
		}
	}
	if n := len(book.Asks); n > 0 {
		if p, err := parseDecimalMicros(book.Asks[n-1].Price); err == nil {
			bestAsk = p
		}
	}
	if bestBid == 0 || bestAsk == 0 {
		return
	}

	f.mu.Lock()
	f.prices[book.AssetID] = streamQuote{priceMicros: (bestBid + bestAsk) / 2, at: time.Now()}
	f.mu.Unlock()
}

func (f *StreamFeed) Price(_ context.Context, tokenID string) (uint64, error) {
	f.mu.RLock()
	q, ok := f.prices[tokenID]
	f.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("no stream quote for token %s", tokenID)
	}
	if age := time.Since(q.at); age > f.maxAge {
		return 0, fmt.Errorf("stream quote for token %s is stale (%s)", tokenID, age.Round(time.Second))
	}
	return q.priceMicros, nil
}
