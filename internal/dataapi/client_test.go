package dataapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const testPositionsJSON = `[
  {"proxyWallet":"0xabc","asset":"111","conditionId":"0xc1","size":20.5,"avgPrice":0.46,"curPrice":0.5,"cashPnl":0.82,"title":"Test Market","outcome":"Yes"},
  {"proxyWallet":"0xabc","asset":"222","conditionId":"0xc1","size":3,"avgPrice":0.54,"curPrice":0.5,"cashPnl":-0.12,"title":"Test Market","outcome":"No"}
]`

func TestGetPositions_RequiresUser(t *testing.T) {
	c, err := NewClient("")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.GetPositions(context.Background(), PositionsParams{}); err == nil {
		t.Fatalf("expected error for missing user")
	}
}

func TestGetPositions_ParsesAndFilters(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/positions" {
			http.NotFound(w, r)
			return
		}
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(testPositionsJSON))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	positions, err := c.GetPositions(context.Background(), PositionsParams{
		User:   "0xabc",
		Market: []string{"0xc1"},
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("GetPositions: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("got %d positions, want 2", len(positions))
	}
	if positions[0].Asset != "111" || positions[0].Size != 20.5 {
		t.Fatalf("unexpected first position: %+v", positions[0])
	}
	for _, want := range []string{"user=0xabc", "market=0xc1", "limit=10"} {
		if !containsParam(gotQuery, want) {
			t.Fatalf("query %q missing %q", gotQuery, want)
		}
	}
}

func TestPositionsByAsset_IndexesByTokenID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(testPositionsJSON))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	byAsset, err := c.PositionsByAsset(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("PositionsByAsset: %v", err)
	}
	if len(byAsset) != 2 {
		t.Fatalf("got %d entries, want 2", len(byAsset))
	}
	if p, ok := byAsset["222"]; !ok || p.Outcome != "No" {
		t.Fatalf("asset 222 missing or wrong: %+v ok=%v", p, ok)
	}
}

func TestGetPositions_SurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := c.GetPositions(context.Background(), PositionsParams{User: "0xabc"}); err == nil {
		t.Fatalf("expected error for 403 response")
	}
}

func containsParam(query, param string) bool {
	for _, part := range strings.Split(query, "&") {
		if part == param {
			return true
		}
	}
	return false
}
