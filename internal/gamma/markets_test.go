package gamma

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func marketsServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
}

const testMarketJSON = `[
  {
    "slug": "will-it-rain",
    "question": "Will it rain tomorrow?",
    "conditionId": "0xabc",
    "active": true,
    "closed": false,
    "outcomes": "[\"Yes\",\"No\"]",
    "outcomePrices": "[\"0.48\",\"0.52\"]",
    "clobTokenIds": "[\"100\",\"200\"]"
  }
]`

func TestMarketByTokenID_ParsesStringifiedFields(t *testing.T) {
	srv := marketsServer(t, testMarketJSON)
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	info, err := c.MarketByTokenID(ctx, "100")
	if err != nil {
		t.Fatalf("MarketByTokenID: %v", err)
	}
	if info.Slug != "will-it-rain" || info.ConditionID != "0xabc" {
		t.Fatalf("unexpected market: %+v", info)
	}
	if len(info.TokenIDs) != 2 || info.TokenIDs[1] != "200" {
		t.Fatalf("unexpected TokenIDs: %#v", info.TokenIDs)
	}
	if len(info.OutcomePrices) != 2 || info.OutcomePrices[0] != "0.48" {
		t.Fatalf("unexpected OutcomePrices: %#v", info.OutcomePrices)
	}
}

func TestTokenPrice_MatchesTokenIndex(t *testing.T) {
	srv := marketsServer(t, testMarketJSON)
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if p, err := c.TokenPrice(ctx, "100"); err != nil || p != "0.48" {
		t.Fatalf("TokenPrice(100) = %q, %v; want 0.48", p, err)
	}
	if p, err := c.TokenPrice(ctx, "200"); err != nil || p != "0.52" {
		t.Fatalf("TokenPrice(200) = %q, %v; want 0.52", p, err)
	}
}

func TestTokenPrice_UnknownToken(t *testing.T) {
	srv := marketsServer(t, testMarketJSON)
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := c.TokenPrice(ctx, "999"); err == nil {
		t.Fatalf("expected error for token absent from market")
	}
}

func TestMarketByTokenID_EmptyResult(t *testing.T) {
	srv := marketsServer(t, `[]`)
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := c.MarketByTokenID(ctx, "100"); err == nil {
		t.Fatalf("expected error for empty market list")
	}
}
