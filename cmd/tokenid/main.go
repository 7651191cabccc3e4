package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/Thruth-tech/Polymarket-grid/internal/dotenv"
	"github.com/Thruth-tech/Polymarket-grid/internal/gamma"
)

// tokenid resolves Polymarket CLOB token ids from a market slug, condition
// id, or an already-known token id, and prints the outcomes with their
// current prices. Use it to fill in TOKEN_ID_n in the .env file.
func main() {
	log.SetFlags(0)

	if err := dotenv.Load(); err != nil {
		log.Printf("[warn] %v", err)
	}

	var (
		slug      string
		condition string
		token     string
		gammaURL  string
	)
	flag.StringVar(&slug, "slug", "", "Event/market slug (from the polymarket.com URL)")
	flag.StringVar(&condition, "condition", "", "Market condition id (0x...)")
	flag.StringVar(&token, "token", "", "Known CLOB token id (prints its sibling outcome)")
	flag.StringVar(&gammaURL, "gamma-url", "", "Gamma API base URL (default https://gamma-api.polymarket.com)")
	flag.Parse()

	client, err := gamma.NewClient(gammaURL)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch {
	case condition != "":
		info, err := client.MarketByConditionID(ctx, condition)
		if err != nil {
			log.Fatalf("[fatal] %v", err)
		}
		printMarket(info)
	case token != "":
		info, err := client.MarketByTokenID(ctx, token)
		if err != nil {
			log.Fatalf("[fatal] %v", err)
		}
		printMarket(info)
	case slug != "":
		resolved, err := client.ResolveMarketBySlug(ctx, slug)
		if err != nil {
			log.Fatalf("[fatal] %v", err)
		}
		fmt.Printf("market: %s\n", resolved.EventSlug)
		for i, id := range resolved.TokenIDs {
			outcome := "?"
			if i < len(resolved.Outcomes) {
				outcome = resolved.Outcomes[i]
			}
			fmt.Printf("  %-4s token_id=%s\n", outcome, id)
		}
	default:
		log.Fatalf("[fatal] one of -slug, -condition or -token required")
	}
}

func printMarket(info gamma.MarketInfo) {
	fmt.Printf("market: %s\n", info.Slug)
	if info.Question != "" {
		fmt.Printf("question: %s\n", info.Question)
	}
	fmt.Printf("condition_id: %s\n", info.ConditionID)
	fmt.Printf("active: %v closed: %v\n", info.Active, info.Closed)
	for i, id := range info.TokenIDs {
		outcome, price := "?", "?"
		if i < len(info.Outcomes) {
			outcome = info.Outcomes[i]
		}
		if i < len(info.OutcomePrices) {
			price = info.OutcomePrices[i]
		}
		fmt.Printf("  %-4s price=%-8s token_id=%s\n", outcome, price, id)
	}
}
