package clob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// BalanceAllowanceParams filters the balance/allowance endpoints. AssetType is
// "COLLATERAL" or "CONDITIONAL" (the latter needs TokenID). SignatureType < 0
// falls back to the client's configured signature type.
type BalanceAllowanceParams struct {
	AssetType     string
	TokenID       string
	SignatureType int
}

// GetBalanceAllowance returns the venue's cached view of what the wallet can
// spend or sell.
func (c *Client) GetBalanceAllowance(ctx context.Context, params *BalanceAllowanceParams, useServerTime bool) (map[string]any, error) {
	return c.balanceAllowance(ctx, "/balance-allowance", params, useServerTime)
}

// UpdateBalanceAllowance asks the venue to refresh that cache from chain
// state before the next read.
func (c *Client) UpdateBalanceAllowance(ctx context.Context, params *BalanceAllowanceParams, useServerTime bool) (map[string]any, error) {
	return c.balanceAllowance(ctx, "/balance-allowance/update", params, useServerTime)
}

func (c *Client) balanceAllowance(ctx context.Context, path string, params *BalanceAllowanceParams, useServerTime bool) (map[string]any, error) {
	if !c.HasApiCreds() {
		return nil, fmt.Errorf("api creds not configured")
	}

	p := BalanceAllowanceParams{SignatureType: -1}
	if params != nil {
		p = *params
	}
	if p.SignatureType < 0 {
		p.SignatureType = c.signatureTy
	}

	q := url.Values{}
	if v := strings.TrimSpace(p.AssetType); v != "" {
		q.Set("asset_type", v)
	}
	if v := strings.TrimSpace(p.TokenID); v != "" {
		q.Set("token_id", v)
	}
	q.Set("signature_type", strconv.Itoa(p.SignatureType))

	ts, err := c.timestampForAuth(ctx, useServerTime)
	if err != nil {
		return nil, err
	}
	headers, err := c.l2Headers(ts, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	body, err := c.doJSONBodyWithResponse(ctx, http.MethodGet, path, q, headers, nil, nil)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return map[string]any{}, nil
	}
	var resp map[string]any
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w (body=%s)", path, err, strings.TrimSpace(string(body)))
	}
	return resp, nil
}
