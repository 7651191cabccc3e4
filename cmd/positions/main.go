// Command positions prints the exchange-reported positions for the funding
// wallet, and when a checkpoint file exists, compares them against the share
// counts the grid bot tracked itself. A drift between the two usually means
// the wallet traded outside the bot, or cycles were missed while it was down.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"time"

	"github.com/Thruth-tech/Polymarket-grid/internal/dataapi"
	"github.com/Thruth-tech/Polymarket-grid/internal/dotenv"
	"github.com/Thruth-tech/Polymarket-grid/internal/state"
)

func main() {
	log.SetFlags(0)

	if err := dotenv.Load(); err != nil {
		log.Printf("[warn] %v", err)
	}

	var user string
	var dataURL string
	var checkpointPath string
	var all bool

	flag.StringVar(&user, "user", firstNonEmpty(
		strings.TrimSpace(os.Getenv("POLYMARKET_PROXY_WALLET")),
		strings.TrimSpace(os.Getenv("FUNDER")),
	), "Wallet address to query (POLYMARKET_PROXY_WALLET/FUNDER env)")
	flag.StringVar(&dataURL, "data-url", strings.TrimSpace(os.Getenv("DATA_API_URL")), "Data API base URL (default https://data-api.polymarket.com)")
	flag.StringVar(&checkpointPath, "checkpoint", strings.TrimSpace(os.Getenv("GRID_CHECKPOINT")), "Checkpoint file to compare against (GRID_CHECKPOINT env)")
	flag.BoolVar(&all, "all", false, "Print every position, not only the tokens in the checkpoint")
	flag.Parse()

	if strings.TrimSpace(user) == "" {
		log.Fatalf("[fatal] wallet address required (-user or POLYMARKET_PROXY_WALLET/FUNDER env)")
	}

	client, err := dataapi.NewClient(dataURL)
	if err != nil {
		log.Fatalf("[fatal] data api client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	byAsset, err := client.PositionsByAsset(ctx, user)
	if err != nil {
		log.Fatalf("[fatal] positions: %v", err)
	}

	var haveCheckpoint bool
	var cp state.Checkpoint
	if checkpointPath != "" {
		cp, haveCheckpoint, err = state.LoadCheckpoint(checkpointPath)
		if err != nil {
			log.Printf("[warn] checkpoint load: %v", err)
		}
	}

	if haveCheckpoint {
		for tokenID, ts := range cp.Tokens {
			tracked := float64(ts.SharesMicros) / 1e6
			venue := 0.0
			title := ts.Name
			if p, ok := byAsset[tokenID]; ok {
				venue = p.Size
				if title == "" {
					title = p.Title
				}
			}
			drift := venue - tracked
			line := fmt.Sprintf("%s (%s): venue=%.2f tracked=%.2f", title, shortID(tokenID), venue, tracked)
			if math.Abs(drift) >= 0.01 {
				log.Printf("[warn] %s drift=%+.2f", line, drift)
			} else {
				log.Printf("[info] %s", line)
			}
			delete(byAsset, tokenID)
		}
	}

	if all || !haveCheckpoint {
		for tokenID, p := range byAsset {
			log.Printf("[info] %s / %s (%s): size=%.2f avg=%.4f cur=%.4f pnl=%+.2f",
				p.Title, p.Outcome, shortID(tokenID), p.Size, p.AvgPrice, p.CurPrice, p.CashPnl)
		}
	}
}

func shortID(id string) string {
	if len(id) <= 10 {
		return id
	}
	return id[:10] + "…"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
