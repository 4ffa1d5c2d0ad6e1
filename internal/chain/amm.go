package chain

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

const v2FactoryABIJSON = `[
 {"inputs":[{"internalType":"address","name":"tokenA","type":"address"},{"internalType":"address","name":"tokenB","type":"address"}],"name":"getPair","outputs":[{"internalType":"address","name":"pair","type":"address"}],"stateMutability":"view","type":"function"}
]`

const v2PairABIJSON = `[
 {"inputs":[],"name":"getReserves","outputs":[{"internalType":"uint112","name":"reserve0","type":"uint112"},{"internalType":"uint112","name":"reserve1","type":"uint112"},{"internalType":"uint32","name":"blockTimestampLast","type":"uint32"}],"stateMutability":"view","type":"function"},
 {"inputs":[],"name":"token0","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

const v2RouterABIJSON = `[
 {"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"}],"name":"getAmountsOut","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"internalType":"uint256","name":"amountOutMin","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"},{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"}],"name":"swapExactETHForTokens","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"payable","type":"function"},
 {"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint256","name":"amountOutMin","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"},{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"}],"name":"swapExactTokensForETH","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"},
 {"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint256","name":"amountOutMin","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"},{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"}],"name":"swapExactTokensForTokens","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"}
]`

var (
	v2FactoryABI = mustABI(v2FactoryABIJSON)
	v2PairABI    = mustABI(v2PairABIJSON)
	v2RouterABI  = mustABI(v2RouterABIJSON)
)

// AMM is one configured V2-style venue (router + factory pair).
type AMM struct {
	caller  Caller
	name    string
	router  common.Address
	factory common.Address
}

func NewAMM(caller Caller, name string, router, factory common.Address) *AMM {
	return &AMM{caller: caller, name: name, router: router, factory: factory}
}

func (a *AMM) Label() string              { return a.name }
func (a *AMM) RouterAddr() common.Address { return a.router }

// Pair returns the canonical pair for (tokenA, tokenB), or the zero address
// when the factory has none.
func (a *AMM) Pair(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error) {
	data, err := v2FactoryABI.Pack("getPair", tokenA, tokenB)
	if err != nil {
		return common.Address{}, fmt.Errorf("pack getPair: %w", err)
	}
	raw, err := a.caller.CallContract(ctx, ethereum.CallMsg{To: &a.factory, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("call getPair: %w", err)
	}
	outs, err := v2FactoryABI.Methods["getPair"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return common.Address{}, fmt.Errorf("decode getPair: %w", err)
	}
	return outs[0].(common.Address), nil
}

// Reserves reads getReserves plus token0 so the caller can orient them.
func (a *AMM) Reserves(ctx context.Context, pair common.Address) (r0, r1 *big.Int, token0 common.Address, err error) {
	data, _ := v2PairABI.Pack("getReserves")
	raw, err := a.caller.CallContract(ctx, ethereum.CallMsg{To: &pair, Data: data}, nil)
	if err != nil {
		return nil, nil, common.Address{}, fmt.Errorf("call getReserves: %w", err)
	}
	outs, err := v2PairABI.Methods["getReserves"].Outputs.Unpack(raw)
	if err != nil || len(outs) < 2 {
		return nil, nil, common.Address{}, fmt.Errorf("decode getReserves: %w", err)
	}
	r0, _ = outs[0].(*big.Int)
	r1, _ = outs[1].(*big.Int)

	data, _ = v2PairABI.Pack("token0")
	raw, err = a.caller.CallContract(ctx, ethereum.CallMsg{To: &pair, Data: data}, nil)
	if err != nil {
		return nil, nil, common.Address{}, fmt.Errorf("call token0: %w", err)
	}
	outs, err = v2PairABI.Methods["token0"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return nil, nil, common.Address{}, fmt.Errorf("decode token0: %w", err)
	}
	return r0, r1, outs[0].(common.Address), nil
}

// AmountsOut queries the router's constant-product quote along path.
func (a *AMM) AmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error) {
	data, err := v2RouterABI.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("pack getAmountsOut: %w", err)
	}
	raw, err := a.caller.CallContract(ctx, ethereum.CallMsg{To: &a.router, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call getAmountsOut: %w", err)
	}
	outs, err := v2RouterABI.Methods["getAmountsOut"].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return nil, fmt.Errorf("decode getAmountsOut: %w", err)
	}
	amounts, ok := outs[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return nil, fmt.Errorf("bad amounts length")
	}
	return amounts, nil
}

func (a *AMM) PackSwapExactETHForTokens(minOut *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	return v2RouterABI.Pack("swapExactETHForTokens", minOut, path, to, deadline)
}

func (a *AMM) PackSwapExactTokensForETH(amountIn, minOut *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	return v2RouterABI.Pack("swapExactTokensForETH", amountIn, minOut, path, to, deadline)
}

func (a *AMM) PackSwapExactTokensForTokens(amountIn, minOut *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error) {
	return v2RouterABI.Pack("swapExactTokensForTokens", amountIn, minOut, path, to, deadline)
}
