package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Thruth-tech/Polymarket-grid/internal/dotenv"
	"github.com/Thruth-tech/Polymarket-grid/internal/polygonutil"
)

const microsScale = uint64(1_000_000)

// Polymarket exchange contracts on Polygon; USDC must be approved for these
// before live trading works.
var (
	ctfExchange     = common.HexToAddress("0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E")
	negRiskExchange = common.HexToAddress("0xC5d563A36AE78145C45a50134d48A1215220f80a")
)

func main() {
	log.SetFlags(0)

	if err := dotenv.Load(); err != nil {
		log.Printf("[warn] %v", err)
	}

	var addrFlag string
	flag.StringVar(&addrFlag, "address", "", "Wallet address to check (default: POLYMARKET_PROXY_WALLET/FUNDER or signer from the private key)")
	flag.Parse()

	rpcURL, err := polygonutil.RPCURLFromEnv()
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	owner, ownerSrc, err := resolveOwnerAddress(addrFlag)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	usdcMicros, allowances, err := polygonutil.USDCTokenBalanceAndAllowancesMicros(
		ctx, rpcURL, owner, []common.Address{ctfExchange, negRiskExchange})
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	fmt.Printf("owner: %s (%s)\n", owner.Hex(), ownerSrc)
	fmt.Printf("usdc_balance: $%s (micros=%d)\n", formatMicros(usdcMicros), usdcMicros)
	fmt.Printf("allowance ctf_exchange: $%s\n", formatMicros(allowances[ctfExchange]))
	fmt.Printf("allowance neg_risk_exchange: $%s\n", formatMicros(allowances[negRiskExchange]))
}

func resolveOwnerAddress(addrFlag string) (common.Address, string, error) {
	if raw := strings.TrimSpace(addrFlag); raw != "" {
		if !common.IsHexAddress(raw) {
			return common.Address{}, "", fmt.Errorf("invalid --address %q", raw)
		}
		return common.HexToAddress(raw), "--address", nil
	}

	if envFunder := firstNonEmpty(os.Getenv("POLYMARKET_PROXY_WALLET"), os.Getenv("FUNDER")); strings.TrimSpace(envFunder) != "" {
		envFunder = strings.TrimSpace(envFunder)
		if !common.IsHexAddress(envFunder) {
			return common.Address{}, "", fmt.Errorf("invalid POLYMARKET_PROXY_WALLET/FUNDER env %q", envFunder)
		}
		return common.HexToAddress(envFunder), "FUNDER", nil
	}

	if pkHex := firstNonEmpty(os.Getenv("POLYMARKET_PRIVATE_KEY"), os.Getenv("PRIVATE_KEY")); strings.TrimSpace(pkHex) != "" {
		pkHex = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(pkHex), "0x"))
		pk, err := crypto.HexToECDSA(pkHex)
		if err != nil {
			return common.Address{}, "", fmt.Errorf("invalid PRIVATE_KEY: %w", err)
		}
		return crypto.PubkeyToAddress(pk.PublicKey), "PRIVATE_KEY", nil
	}

	return common.Address{}, "", fmt.Errorf("wallet required: set POLYMARKET_PROXY_WALLET/FUNDER, POLYMARKET_PRIVATE_KEY/PRIVATE_KEY, or pass --address")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func formatMicros(m uint64) string {
	whole := m / microsScale
	frac := m % microsScale
	if frac == 0 {
		return fmt.Sprintf("%d", whole)
	}
	fs := strings.TrimRight(fmt.Sprintf("%06d", frac), "0")
	return fmt.Sprintf("%d.%s", whole, fs)
}
