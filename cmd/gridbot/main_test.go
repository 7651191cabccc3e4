package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Thruth-tech/Polymarket-grid/internal/clob"
	"github.com/Thruth-tech/Polymarket-grid/internal/gridbot"
)

func testClobClient(t *testing.T, host string) *clob.Client {
	t.Helper()
	pk, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	c, err := clob.NewClient(host, 137, pk, common.Address{}, 0)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

// Creds are configured for every run, not just -enable-trading: the cycle
// reads open orders in dry-run too.
func TestConfigureAPICreds_StaticCredsWithoutTrading(t *testing.T) {
	c := testClobClient(t, "http://127.0.0.1:1")
	cfg := gridbot.Config{APIKey: "k", APISecret: "c2VjcmV0", APIPassphrase: "p"}

	if err := configureAPICreds(context.Background(), c, cfg, false); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if !c.HasApiCreds() {
		t.Fatalf("static creds not installed")
	}
}

func TestConfigureAPICreds_DerivesFromRealKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/derive-api-key" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"apiKey":     "key-1",
			"secret":     "c2VjcmV0",
			"passphrase": "pass",
		})
	}))
	defer srv.Close()

	c := testClobClient(t, srv.URL)
	if err := configureAPICreds(context.Background(), c, gridbot.Config{}, false); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if !c.HasApiCreds() {
		t.Fatalf("creds not derived from the signing key")
	}
}

func TestConfigureAPICreds_EphemeralKeyStaysCredless(t *testing.T) {
	c := testClobClient(t, "http://127.0.0.1:1")

	if err := configureAPICreds(context.Background(), c, gridbot.Config{}, true); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if c.HasApiCreds() {
		t.Fatalf("ephemeral dry-run must not carry creds")
	}
}
