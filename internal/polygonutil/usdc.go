// Package polygonutil reads USDC state straight from Polygon via eth_call,
// without generated contract bindings.
package polygonutil

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

const USDCTokenDecimals = 6

// USDCTokenAddress is the bridged USDC contract on Polygon, the collateral
// token the exchange settles in.
var USDCTokenAddress = common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")

var (
	balanceOfSelector = crypto.Keccak256([]byte("balanceOf(address)"))[:4]
	allowanceSelector = crypto.Keccak256([]byte("allowance(address,address)"))[:4]
)

// RPCURLFromEnv resolves the Polygon RPC endpoint from the environment.
func RPCURLFromEnv() (string, error) {
	rpcURL := ""
	for _, key := range []string{"RPC_WS_URL", "RPC_URL", "POLYGON_WS_URL"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			rpcURL = v
			break
		}
	}
	if rpcURL == "" {
		return "", fmt.Errorf("RPC_WS_URL or RPC_URL required (set RPC_WS_URL in .env)")
	}
	if !strings.HasPrefix(rpcURL, "wss") && !strings.HasPrefix(rpcURL, "http") {
		return "", fmt.Errorf("polygon RPC URL must be wss://... or http(s)://..., got %q", rpcURL)
	}
	if strings.Contains(rpcURL, "YOUR_KEY") {
		return "", fmt.Errorf("polygon RPC URL still contains placeholder YOUR_KEY. Set RPC_WS_URL/RPC_URL to your provider URL")
	}
	return rpcURL, nil
}

// USDCTokenBalanceMicros returns the owner's USDC balance in 1e6 units.
func USDCTokenBalanceMicros(ctx context.Context, rpcURL string, owner common.Address) (uint64, error) {
	balance, _, err := usdcState(ctx, rpcURL, owner, nil)
	return balance, err
}

// USDCTokenBalanceAndAllowancesMicros returns the owner's USDC balance plus
// the allowance granted to each spender, all in 1e6 units. Allowances are
// commonly max(uint256), which saturates to MaxUint64 here so "unlimited"
// approvals stay comparable to real amounts.
func USDCTokenBalanceAndAllowancesMicros(ctx context.Context, rpcURL string, owner common.Address, spenders []common.Address) (uint64, map[common.Address]uint64, error) {
	return usdcState(ctx, rpcURL, owner, spenders)
}

func usdcState(ctx context.Context, rpcURL string, owner common.Address, spenders []common.Address) (uint64, map[common.Address]uint64, error) {
	if strings.TrimSpace(rpcURL) == "" {
		return 0, nil, fmt.Errorf("polygon RPC URL missing")
	}
	if (owner == common.Address{}) {
		return 0, nil, fmt.Errorf("owner address missing")
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return 0, nil, fmt.Errorf("dial polygon RPC: %w", err)
	}
	defer client.Close()

	bal, err := callUint256(ctx, client, balanceOfCalldata(owner))
	if err != nil {
		return 0, nil, fmt.Errorf("usdc balanceOf(%s): %w", owner.Hex(), err)
	}
	if !bal.IsUint64() {
		return 0, nil, fmt.Errorf("usdc balance overflows uint64")
	}

	var allowances map[common.Address]uint64
	if len(spenders) > 0 {
		allowances = make(map[common.Address]uint64, len(spenders))
		for _, sp := range spenders {
			if (sp == common.Address{}) {
				continue
			}
			if _, ok := allowances[sp]; ok {
				continue
			}
			a, err := callUint256(ctx, client, allowanceCalldata(owner, sp))
			if err != nil {
				return 0, nil, fmt.Errorf("usdc allowance(%s,%s): %w", owner.Hex(), sp.Hex(), err)
			}
			allowances[sp] = saturateUint64(a)
		}
	}

	return bal.Uint64(), allowances, nil
}

func callUint256(ctx context.Context, client *ethclient.Client, data []byte) (*big.Int, error) {
	out, err := client.CallContract(ctx, ethereum.CallMsg{To: &USDCTokenAddress, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty result")
	}
	return new(big.Int).SetBytes(out), nil
}

func balanceOfCalldata(owner common.Address) []byte {
	data := make([]byte, 0, 4+32)
	data = append(data, balanceOfSelector...)
	return append(data, common.LeftPadBytes(owner.Bytes(), 32)...)
}

func allowanceCalldata(owner, spender common.Address) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, allowanceSelector...)
	data = append(data, common.LeftPadBytes(owner.Bytes(), 32)...)
	return append(data, common.LeftPadBytes(spender.Bytes(), 32)...)
}

func saturateUint64(x *big.Int) uint64 {
	if x == nil || x.Sign() <= 0 {
		return 0
	}
	if x.IsUint64() {
		return x.Uint64()
	}
	return math.MaxUint64
}
