package clob

import (
	"fmt"
	"math/big"
	"strings"
)

const collateralTokenDecimals = 6

type roundConfig struct {
	price  int
	size   int
	amount int
}

var roundingConfigByTickSize = map[string]roundConfig{
	"0.1":    {price: 1, size: 2, amount: 3},
	"0.01":   {price: 2, size: 2, amount: 4},
	"0.001":  {price: 3, size: 2, amount: 5},
	"0.0001": {price: 4, size: 2, amount: 6},
}

func tickScaleFromTickSize(tickSize string) (*big.Int, int, error) {
	tickSize = strings.TrimSpace(tickSize)
	rc, ok := roundingConfigByTickSize[tickSize]
	if !ok {
		return nil, 0, fmt.Errorf("unsupported tickSize %q", tickSize)
	}
	// tickScale = 10^priceDecimals
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(rc.price)), nil)
	return scale, rc.price, nil
}
