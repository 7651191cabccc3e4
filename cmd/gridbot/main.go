package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Thruth-tech/Polymarket-grid/internal/clob"
	"github.com/Thruth-tech/Polymarket-grid/internal/dotenv"
	"github.com/Thruth-tech/Polymarket-grid/internal/gamma"
	"github.com/Thruth-tech/Polymarket-grid/internal/gridbot"
	"github.com/Thruth-tech/Polymarket-grid/internal/jsonl"
	"github.com/Thruth-tech/Polymarket-grid/internal/polygonutil"
)

func main() {
	log.SetFlags(0)

	if err := dotenv.Load(); err != nil {
		log.Printf("[warn] %v", err)
	}

	cfg, err := gridbot.ParseArgs()
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	pk, ephemeral, err := parseOrGeneratePrivateKey(cfg.PrivateKeyHex)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	if ephemeral {
		if cfg.EnableTrading {
			log.Fatalf("[fatal] -enable-trading requires POLYMARKET_PRIVATE_KEY/PRIVATE_KEY")
		}
		log.Printf("[info] no private key provided; using ephemeral key for dry-run")
	}

	var funder common.Address
	if f := strings.TrimSpace(cfg.Funder); f != "" {
		if !common.IsHexAddress(f) {
			log.Fatalf("[fatal] invalid funder address %q", f)
		}
		funder = common.HexToAddress(f)
	}

	log.Printf("Polymarket grid bot")
	for i, tc := range cfg.Tokens {
		log.Printf("Token %d: %s (%s…)", i+1, tc.Name, safePrefix(tc.TokenID, 12))
		log.Printf("  grid: %d levels x %s spacing, range [%s, %s], precision %d",
			tc.GridLevels, formatUSD(tc.SpacingMicros),
			formatUSD(tc.RangeMinMicros), formatUSD(tc.RangeMaxMicros), tc.PricePrecision)
		log.Printf("  size: $%s per order, $%s max position",
			formatUSD(tc.OrderSizeUSDMicros), formatUSD(tc.MaxPositionUSDMicros))
	}
	log.Printf("Cycle: %s", cfg.CycleInterval)
	log.Printf("Source: %s", cfg.Source)
	log.Printf("Dry-run: %v", !cfg.EnableTrading)

	clobClient, err := clob.NewClient(cfg.ClobHost, 137, pk, funder, cfg.SignatureType)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	gammaClient, err := gamma.NewClient(cfg.GammaHost)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	reportBalance(cfg, clobClient.FunderAddress())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		log.Printf("Shutting down…")
		cancel()
	}()

	if err := configureAPICreds(ctx, clobClient, cfg, ephemeral); err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	var rngMu sync.Mutex
	saltGen := func() int64 {
		rngMu.Lock()
		defer rngMu.Unlock()
		return int64(rng.Uint64() & 0x7fffffffffffffff)
	}

	exchange := &gridbot.ClobExchange{
		Client:        clobClient,
		UseServerTime: cfg.UseServerTime,
		SaltGenerator: saltGen,
	}

	oracle := &gridbot.Oracle{
		Meta: &gridbot.GammaPrice{Client: gammaClient},
		Book: exchange,
	}
	if cfg.Source == "stream" {
		tokenIDs := make([]string, 0, len(cfg.Tokens))
		for _, tc := range cfg.Tokens {
			tokenIDs = append(tokenIDs, tc.TokenID)
		}
		feed, err := gridbot.StartStreamFeed(ctx, cfg.StreamURL, tokenIDs, 0)
		if err != nil {
			log.Fatalf("[fatal] stream feed: %v", err)
		}
		oracle.Stream = feed
	}

	eventLog := jsonl.New(cfg.OutFile)
	if eventLog != nil {
		log.Printf("Event log: %s (JSONL)", cfg.OutFile)
		defer func() {
			if err := eventLog.Close(); err != nil {
				log.Printf("[warn] event log close: %v", err)
			}
		}()
	}

	runner := gridbot.NewRunner(cfg, exchange, oracle, eventLog)
	log.Printf("Running…")
	if err := runner.Run(ctx); err != nil {
		log.Fatalf("[fatal] %v", err)
	}
}

// configureAPICreds installs L2 credentials on the CLOB client. Explicit
// creds from the environment win; otherwise they are derived from the
// signing key. Dry-run needs creds too, since every cycle reads the open
// orders even when it places nothing. An ephemeral key has no venue account
// to derive against, so it stays credless and the exchange serves an empty
// order snapshot instead.
func configureAPICreds(ctx context.Context, c *clob.Client, cfg gridbot.Config, ephemeral bool) error {
	if cfg.APIKey != "" && cfg.APISecret != "" && cfg.APIPassphrase != "" {
		c.SetApiCreds(clob.ApiKeyCreds{Key: cfg.APIKey, Secret: cfg.APISecret, Passphrase: cfg.APIPassphrase})
		return nil
	}
	if ephemeral {
		log.Printf("[info] no API creds available; open-order checks will see an empty book")
		return nil
	}
	creds, err := c.CreateOrDeriveApiKey(ctx, cfg.APINonce, cfg.UseServerTime)
	if err != nil {
		return fmt.Errorf("failed to create/derive api key: %w", err)
	}
	c.SetApiCreds(creds)
	log.Printf("CLOB API creds ready (key=%s…)", safePrefix(creds.Key, 8))
	return nil
}

// reportBalance logs the funder's USDC balance at startup when a Polygon RPC
// endpoint is configured. Purely informational; failures never stop the bot.
func reportBalance(cfg gridbot.Config, funder common.Address) {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()
	usdcMicros, err := polygonutil.USDCTokenBalanceMicros(ctx, cfg.RPCURL, funder)
	if err != nil {
		log.Printf("[warn] balance check: %v", err)
		return
	}
	log.Printf("USDC balance: $%s (funder=%s)", formatUSD(usdcMicros), funder.Hex())
}

func parseOrGeneratePrivateKey(pkHex string) (*ecdsa.PrivateKey, bool, error) {
	pkHex = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(pkHex), "0x"))
	if pkHex == "" {
		pk, err := crypto.GenerateKey()
		if err != nil {
			return nil, false, fmt.Errorf("generate ephemeral key: %w", err)
		}
		return pk, true, nil
	}
	pk, err := crypto.HexToECDSA(pkHex)
	if err != nil {
		return nil, false, fmt.Errorf("invalid private key: %w", err)
	}
	return pk, false, nil
}

func safePrefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func formatUSD(m uint64) string {
	whole := m / 1_000_000
	frac := m % 1_000_000
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	fs := strings.TrimRight(fmt.Sprintf("%06d", frac), "0")
	return fmt.Sprintf("%d.%s", whole, fs)
}
