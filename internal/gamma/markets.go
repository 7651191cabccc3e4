package gamma

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// MarketInfo is the subset of a Gamma market record the bot and CLI tools
// consume. Outcomes, OutcomePrices and TokenIDs are index-aligned.
type MarketInfo struct {
	Slug          string
	Question      string
	ConditionID   string
	Active        bool
	Closed        bool
	Outcomes      []string
	OutcomePrices []string
	TokenIDs      []string
}

func marketInfoFrom(m *market) MarketInfo {
	return MarketInfo{
		Slug:          m.Slug,
		Question:      m.Question,
		ConditionID:   m.ConditionID,
		Active:        m.Active,
		Closed:        m.Closed,
		Outcomes:      append([]string(nil), m.Outcomes...),
		OutcomePrices: append([]string(nil), m.OutcomePrices...),
		TokenIDs:      append([]string(nil), m.ClobTokenIDs...),
	}
}

// MarketByTokenID looks up the market holding the given CLOB token.
func (c *Client) MarketByTokenID(ctx context.Context, tokenID string) (MarketInfo, error) {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return MarketInfo{}, fmt.Errorf("token id required")
	}

	q := url.Values{}
	q.Set("clob_token_ids", tokenID)
	q.Set("limit", "1")

	var markets []market
	if err := c.getJSON(ctx, "/markets", q, &markets); err != nil {
		return MarketInfo{}, err
	}
	if len(markets) == 0 {
		return MarketInfo{}, fmt.Errorf("gamma: no market for token %s", tokenID)
	}
	return marketInfoFrom(&markets[0]), nil
}

// MarketByConditionID looks up a market by its condition id.
func (c *Client) MarketByConditionID(ctx context.Context, conditionID string) (MarketInfo, error) {
	conditionID = strings.TrimSpace(conditionID)
	if conditionID == "" {
		return MarketInfo{}, fmt.Errorf("condition id required")
	}

	q := url.Values{}
	q.Set("condition_ids", conditionID)
	q.Set("limit", "1")

	var markets []market
	if err := c.getJSON(ctx, "/markets", q, &markets); err != nil {
		return MarketInfo{}, err
	}
	if len(markets) == 0 {
		return MarketInfo{}, fmt.Errorf("gamma: no market for condition %s", conditionID)
	}
	return marketInfoFrom(&markets[0]), nil
}

// TokenPrice returns the outcome price for the given token as a decimal
// string, matched by the token's position among the market's clobTokenIds.
func (c *Client) TokenPrice(ctx context.Context, tokenID string) (string, error) {
	info, err := c.MarketByTokenID(ctx, tokenID)
	if err != nil {
		return "", err
	}
	for i, id := range info.TokenIDs {
		if id == tokenID {
			if i >= len(info.OutcomePrices) {
				return "", fmt.Errorf("gamma: market %s has %d outcome prices for %d tokens", info.Slug, len(info.OutcomePrices), len(info.TokenIDs))
			}
			p := strings.TrimSpace(info.OutcomePrices[i])
			if p == "" {
				return "", fmt.Errorf("gamma: empty outcome price for token %s", tokenID)
			}
			return p, nil
		}
	}
	return "", fmt.Errorf("gamma: token %s not listed on market %s", tokenID, info.Slug)
}
