// Command balance_allowance reports the venue-side view of the funding
// wallet: USDC balance/allowance plus the conditional token balance for every
// market the grid is configured to trade. Run it before enabling trading to
// confirm the exchange can actually settle the orders the bot will place.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Thruth-tech/Polymarket-grid/internal/clob"
	"github.com/Thruth-tech/Polymarket-grid/internal/dotenv"
)

const requestTimeout = 12 * time.Second

func main() {
	log.SetFlags(0)

	if err := dotenv.Load(); err != nil {
		log.Printf("[warn] %v", err)
	}

	var tokenIDFlag string
	var signatureTypeFlag int
	var updateFirst bool
	var useServerTime bool
	var apiNonce uint64

	flag.StringVar(&tokenIDFlag, "token-id", "", "Extra conditional token id to check (besides TOKEN_ID_* env)")
	flag.IntVar(&signatureTypeFlag, "signature-type", -1, "Signature type override (default: CLOB_SIGNATURE_TYPE env)")
	flag.BoolVar(&updateFirst, "update", true, "Call /balance-allowance/update before fetching")
	flag.BoolVar(&useServerTime, "use-server-time", true, "Use /time for signed requests")
	flag.Uint64Var(&apiNonce, "api-nonce", 0, "Nonce for API key derive/create")
	flag.Parse()

	privateKeyHex := strings.TrimSpace(firstNonEmpty(os.Getenv("POLYMARKET_PRIVATE_KEY"), os.Getenv("PRIVATE_KEY")))
	if privateKeyHex == "" {
		log.Fatalf("[fatal] private key required (set POLYMARKET_PRIVATE_KEY/PRIVATE_KEY in .env)")
	}
	privateKeyHex = strings.TrimSpace(strings.TrimPrefix(privateKeyHex, "0x"))
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		log.Fatalf("[fatal] invalid private key: %v", err)
	}

	var funder common.Address
	if envFunder := strings.TrimSpace(firstNonEmpty(os.Getenv("POLYMARKET_PROXY_WALLET"), os.Getenv("FUNDER"))); envFunder != "" {
		if !common.IsHexAddress(envFunder) {
			log.Fatalf("[fatal] invalid POLYMARKET_PROXY_WALLET/FUNDER %q", envFunder)
		}
		funder = common.HexToAddress(envFunder)
	}

	signatureType := 0
	if env := strings.TrimSpace(os.Getenv("CLOB_SIGNATURE_TYPE")); env != "" {
		v, err := strconv.Atoi(env)
		if err != nil {
			log.Fatalf("[fatal] invalid CLOB_SIGNATURE_TYPE %q: %v", env, err)
		}
		signatureType = v
	}
	if signatureTypeFlag >= 0 {
		signatureType = signatureTypeFlag
	}

	clobClient, err := clob.NewClient(strings.TrimSpace(os.Getenv("CLOB_URL")), 137, privateKey, funder, signatureType)
	if err != nil {
		log.Fatalf("[fatal] clob client: %v", err)
	}

	apiKey := strings.TrimSpace(os.Getenv("POLYMARKET_API_KEY"))
	apiSecret := strings.TrimSpace(os.Getenv("POLYMARKET_API_SECRET"))
	apiPass := strings.TrimSpace(os.Getenv("POLYMARKET_API_PASSPHRASE"))
	if apiKey != "" && apiSecret != "" && apiPass != "" {
		clobClient.SetApiCreds(clob.ApiKeyCreds{Key: apiKey, Secret: apiSecret, Passphrase: apiPass})
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		creds, err := clobClient.CreateOrDeriveApiKey(ctx, apiNonce, useServerTime)
		cancel()
		if err != nil {
			log.Fatalf("[fatal] failed to create/derive api key: %v", err)
		}
		clobClient.SetApiCreds(creds)
	}

	log.Printf("[info] signer=%s funder=%s", clobClient.SignerAddress().Hex(), clobClient.FunderAddress().Hex())

	report(clobClient, "collateral", &clob.BalanceAllowanceParams{
		AssetType:     "COLLATERAL",
		SignatureType: signatureTypeFlag,
	}, updateFirst, useServerTime)

	for _, tokenID := range configuredTokenIDs(tokenIDFlag) {
		report(clobClient, "token "+tokenID, &clob.BalanceAllowanceParams{
			AssetType:     "CONDITIONAL",
			TokenID:       tokenID,
			SignatureType: signatureTypeFlag,
		}, updateFirst, useServerTime)
	}
}

func report(c *clob.Client, label string, params *clob.BalanceAllowanceParams, updateFirst, useServerTime bool) {
	if updateFirst {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		_, err := c.UpdateBalanceAllowance(ctx, params, useServerTime)
		cancel()
		if err != nil {
			log.Printf("[warn] update balance/allowance (%s): %v", label, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	resp, err := c.GetBalanceAllowance(ctx, params, useServerTime)
	cancel()
	if err != nil {
		log.Fatalf("[fatal] get balance/allowance (%s): %v", label, err)
	}
	printJSON(label, resp)
}

// configuredTokenIDs collects the token ids the grid bot would trade: the
// numbered TOKEN_ID_* env slots, the single TOKEN_ID fallback, and any extra
// id passed on the command line.
func configuredTokenIDs(extra string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}

	for i := 1; i <= 100; i++ {
		add(os.Getenv(fmt.Sprintf("TOKEN_ID_%d", i)))
	}
	add(os.Getenv("TOKEN_ID"))
	add(extra)
	return out
}

func printJSON(label string, v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatalf("[fatal] %s marshal: %v", label, err)
	}
	fmt.Printf("[%s]\n%s\n", label, string(b))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
