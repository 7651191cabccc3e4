package clob

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// OrderInfo mirrors the /data/order/<order_hash> response payload.
type OrderInfo struct {
	ID               string   `json:"id"`
	Status           string   `json:"status"`
	Market           string   `json:"market"`
	AssetID          string   `json:"asset_id"`
	Side             string   `json:"side"`
	Price            string   `json:"price"`
	OriginalSize     string   `json:"original_size"`
	SizeMatched      string   `json:"size_matched"`
	AssociatedTrades []string `json:"associate_trades"`
	Type             string   `json:"type"`
	OrderType        string   `json:"order_type"`
}

type cancelOrderReq struct {
	OrderID string `json:"orderID"`
}

// CancelOrder submits a cancel request for a single order ID/hash.
func (c *Client) CancelOrder(ctx context.Context, orderID string, useServerTime bool) (map[string]any, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, fmt.Errorf("order id required")
	}
	if !c.HasApiCreds() {
		return nil, fmt.Errorf("api creds not configured")
	}

	body, err := json.Marshal(cancelOrderReq{OrderID: orderID})
	if err != nil {
		return nil, fmt.Errorf("marshal cancel order: %w", err)
	}

	path := "/order"
	ts, err := c.timestampForAuth(ctx, useServerTime)
	if err != nil {
		return nil, err
	}
	headers, err := c.l2Headers(ts, http.MethodDelete, path, body)
	if err != nil {
		return nil, err
	}

	var resp map[string]any
	if err := c.doJSONBody(ctx, http.MethodDelete, path, nil, headers, body, &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

// GetOpenOrders fetches the live orders for the authenticated account,
// optionally filtered to one token.
func (c *Client) GetOpenOrders(ctx context.Context, tokenID string, useServerTime bool) ([]OrderInfo, error) {
	if !c.HasApiCreds() {
		return nil, fmt.Errorf("api creds not configured")
	}

	q := url.Values{}
	if tokenID = strings.TrimSpace(tokenID); tokenID != "" {
		q.Set("asset_id", tokenID)
	}

	path := "/data/orders"
	signedPath := path
	if len(q) > 0 {
		signedPath = path + "?" + q.Encode()
	}

	ts, err := c.timestampForAuth(ctx, useServerTime)
	if err != nil {
		return nil, err
	}
	headers, err := c.l2Headers(ts, http.MethodGet, signedPath, nil)
	if err != nil {
		return nil, err
	}

	var resp []OrderInfo
	if err := c.doJSON(ctx, http.MethodGet, signedPath, nil, headers, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}
