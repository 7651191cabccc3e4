package gridbot

import (
	"context"
	"fmt"
	"strings"

	"github.com/Thruth-tech/Polymarket-grid/internal/clob"
	"github.com/Thruth-tech/Polymarket-grid/internal/gamma"
)

// Exchange is the venue surface the runner drives. Implementations must
// return only orders belonging to the requested token from OpenOrders.
type Exchange interface {
	OpenOrders(ctx context.Context, tokenID string) ([]OpenOrder, error)
	Place(ctx context.Context, tokenID string, lvl Level) (OpenOrder, error)
	Cancel(ctx context.Context, orderID string) error
}

// ClobExchange adapts the CLOB REST client to the runner's Exchange and
// book-midpoint PriceSource.
type ClobExchange struct {
	Client        *clob.Client
	UseServerTime bool
	SaltGenerator func() int64 // nil uses the order builder's default
}

func (e *ClobExchange) OpenOrders(ctx context.Context, tokenID string) ([]OpenOrder, error) {
	// Without L2 creds (keyless dry-run) the account has no resting orders,
	// so serve an empty snapshot rather than failing the cycle.
	if !e.Client.HasApiCreds() {
		return nil, nil
	}
	infos, err := e.Client.GetOpenOrders(ctx, tokenID, e.UseServerTime)
	if err != nil {
		return nil, err
	}
	orders := make([]OpenOrder, 0, len(infos))
	for i := range infos {
		o, err := openOrderFromInfo(&infos[i])
		if err != nil {
			return nil, fmt.Errorf("order %s: %w", infos[i].ID, err)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func openOrderFromInfo(info *clob.OrderInfo) (OpenOrder, error) {
	price, err := parseDecimalMicros(info.Price)
	if err != nil {
		return OpenOrder{}, fmt.Errorf("price %q: %w", info.Price, err)
	}
	size, err := parseDecimalMicros(info.OriginalSize)
	if err != nil {
		return OpenOrder{}, fmt.Errorf("original size %q: %w", info.OriginalSize, err)
	}
	matched := uint64(0)
	if s := strings.TrimSpace(info.SizeMatched); s != "" {
		matched, err = parseDecimalMicros(s)
		if err != nil {
			return OpenOrder{}, fmt.Errorf("size matched %q: %w", info.SizeMatched, err)
		}
	}
	if matched > size {
		matched = size
	}

	status := StatusOpen
	switch {
	case strings.Contains(strings.ToUpper(info.Status), "CANCEL"):
		status = StatusCancelled
	case matched >= size:
		status = StatusFilled
	case matched > 0:
		status = StatusPartiallyFilled
	}

	side := clob.SideBuy
	if strings.EqualFold(info.Side, string(clob.SideSell)) {
		side = clob.SideSell
	}

	return OpenOrder{
		ID:              info.ID,
		Side:            side,
		PriceMicros:     price,
		SizeMicros:      size,
		RemainingMicros: size - matched,
		Status:          status,
	}, nil
}

func (e *ClobExchange) Place(ctx context.Context, tokenID string, lvl Level) (OpenOrder, error) {
	res, err := e.Client.CreateSignedLimitOrder(ctx, tokenID, lvl.Side, lvl.PriceMicros, lvl.SharesMicros, e.SaltGenerator)
	if err != nil {
		return OpenOrder{}, err
	}
	resp, _, err := e.Client.PostSignedOrder(ctx, res.SignedOrder, clob.OrderTypeGTC, false, e.UseServerTime)
	if err != nil {
		return OpenOrder{}, err
	}
	if msg, _ := resp["errorMsg"].(string); msg != "" {
		return OpenOrder{}, fmt.Errorf("order rejected: %s", msg)
	}
	id, _ := resp["orderID"].(string)
	if id == "" {
		return OpenOrder{}, fmt.Errorf("order id missing in response %v", resp)
	}

	price, err := parseDecimalMicros(res.Price)
	if err != nil {
		price = lvl.PriceMicros
	}
	shares := lvl.SharesMicros - lvl.SharesMicros%10_000
	return OpenOrder{
		ID:              id,
		Side:            lvl.Side,
		PriceMicros:     price,
		SizeMicros:      shares,
		RemainingMicros: shares,
		Status:          StatusOpen,
	}, nil
}

func (e *ClobExchange) Cancel(ctx context.Context, orderID string) error {
	resp, err := e.Client.CancelOrder(ctx, orderID, e.UseServerTime)
	if err != nil {
		return err
	}
	if notCanceled, ok := resp["not_canceled"].(map[string]any); ok {
		if reason, ok := notCanceled[orderID].(string); ok {
			return fmt.Errorf("cancel refused: %s", reason)
		}
	}
	return nil
}

// Price returns the order-book midpoint for a token. With only one side of
// the book populated it nudges half a cent inside the quoted side; an empty
// book yields an error so the oracle can report the token unpriceable.
func (e *ClobExchange) Price(ctx context.Context, tokenID string) (uint64, error) {
	book, err := e.Client.GetOrderBook(ctx, tokenID)
	if err != nil {
		return 0, err
	}

	// Bids and asks arrive sorted worst-to-best; the inside of the book is
	// the last element on each side.
	var bestBid, bestAsk uint64
	if n := len(book.Bids); n > 0 {
		bestBid, err = parseDecimalMicros(book.Bids[n-1].Price)
		if err != nil {
			return 0, fmt.Errorf("bid price %q: %w", book.Bids[n-1].Price, err)
		}
	}
	if n := len(book.Asks); n > 0 {
		bestAsk, err = parseDecimalMicros(book.Asks[n-1].Price)
		if err != nil {
			return 0, fmt.Errorf("ask price %q: %w", book.Asks[n-1].Price, err)
		}
	}

	const halfCent = 5_000
	switch {
	case bestBid > 0 && bestAsk > 0:
		return (bestBid + bestAsk) / 2, nil
	case bestBid > 0:
		p := bestBid + halfCent
		if p >= microsScale {
			p = microsScale - 1
		}
		return p, nil
	case bestAsk > 0:
		if bestAsk <= halfCent {
			return bestAsk / 2, nil
		}
		return bestAsk - halfCent, nil
	default:
		return 0, fmt.Errorf("order book empty for token %s", tokenID)
	}
}

// GammaPrice adapts the Gamma metadata API to a PriceSource.
type GammaPrice struct {
	Client *gamma.Client
}

func (g *GammaPrice) Price(ctx context.Context, tokenID string) (uint64, error) {
	s, err := g.Client.TokenPrice(ctx, tokenID)
	if err != nil {
		return 0, err
	}
	p, err := parseDecimalMicros(s)
	if err != nil {
		return 0, fmt.Errorf("outcome price %q: %w", s, err)
	}
	if p == 0 || p >= microsScale {
		return 0, fmt.Errorf("outcome price %q outside (0, 1)", s)
	}
	return p, nil
}
