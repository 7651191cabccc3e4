package clob

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	ordermodel "github.com/polymarket/go-order-utils/pkg/model"
)

const (
	// Limit order sizes support a max accuracy of 2 decimals (shares).
	limitShareStepMicros = 10_000
	microsPerUnit        = 1_000_000
)

// CreateSignedLimitOrder builds and signs a GTC limit order for the given
// price and size, both in 1e6 fixed-point units. The price is snapped to the
// market's tick size and the share amount rounded down to the venue's two
// decimal places before the maker/taker amounts are derived, so the signed
// order never promises more than the caller asked for.
func (c *Client) CreateSignedLimitOrder(
	ctx context.Context,
	tokenID string,
	side Side,
	priceMicros uint64,
	sharesMicros uint64,
	saltGenerator func() int64,
) (*OrderResult, error) {
	if priceMicros == 0 || priceMicros >= microsPerUnit {
		return nil, fmt.Errorf("limit price must be inside (0, 1), got %d micros", priceMicros)
	}
	if sharesMicros == 0 {
		return nil, fmt.Errorf("share amount must be > 0")
	}

	tickSize, err := c.GetTickSize(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	_, priceDecimals, err := tickScaleFromTickSize(tickSize)
	if err != nil {
		return nil, err
	}
	tickMicros := uint64(1)
	for i := 0; i < 6-priceDecimals; i++ {
		tickMicros *= 10
	}

	// Snap to the tick grid, then keep the price strictly inside the book.
	price := (priceMicros + tickMicros/2) / tickMicros * tickMicros
	if price == 0 {
		price = tickMicros
	}
	if price >= microsPerUnit {
		price = microsPerUnit - tickMicros
	}

	shares := sharesMicros - sharesMicros%limitShareStepMicros
	if shares == 0 {
		return nil, fmt.Errorf("share amount %d micros rounds to 0 at 2 decimals", sharesMicros)
	}

	// shares is a multiple of 1e4 and price of at least 1e2, so the product
	// is an exact multiple of 1e6.
	collateral := price * shares / microsPerUnit
	if collateral == 0 {
		return nil, fmt.Errorf("collateral amount rounds to 0")
	}

	var makerAmount, takerAmount uint64
	var sideEnum ordermodel.Side
	switch side {
	case SideBuy:
		makerAmount, takerAmount = collateral, shares
		sideEnum = ordermodel.BUY
	case SideSell:
		makerAmount, takerAmount = shares, collateral
		sideEnum = ordermodel.SELL
	default:
		return nil, fmt.Errorf("invalid side %q", side)
	}

	feeBps, err := c.GetFeeRateBps(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	negRisk, err := c.GetNegRisk(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	contract := ordermodel.CTFExchange
	if negRisk {
		contract = ordermodel.NegRiskCTFExchange
	}

	od := &ordermodel.OrderData{
		Maker:         c.funder.Hex(),
		Taker:         zeroAddressHex,
		TokenId:       tokenID,
		MakerAmount:   strconv.FormatUint(makerAmount, 10),
		TakerAmount:   strconv.FormatUint(takerAmount, 10),
		FeeRateBps:    strconv.Itoa(feeBps),
		Nonce:         "0",
		Signer:        c.signer.Hex(),
		Expiration:    "0",
		Side:          sideEnum,
		SignatureType: ordermodel.SignatureType(c.signatureTy),
	}

	signed, err := signOrder(c.chainID, c.privateKey, od, contract, saltGenerator)
	if err != nil {
		return nil, err
	}

	priceStr := formatDecimalUnits(new(big.Int).SetUint64(price/tickMicros), priceDecimals)
	return &OrderResult{SignedOrder: signed, Price: priceStr, TickSize: tickSize}, nil
}
