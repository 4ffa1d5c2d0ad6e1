package chain

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/multicall"
)

// Minimal ABI of the launchpad sale manager: per-token sale record, the
// linear-curve constants, the pure conversion helpers and the buy/sell
// entry points with their fill events.
const curveABIJSON = `[
 {"inputs":[{"internalType":"address","name":"token","type":"address"}],"name":"sales","outputs":[{"internalType":"uint256","name":"sold","type":"uint256"},{"internalType":"uint256","name":"raised","type":"uint256"},{"internalType":"bool","name":"launched","type":"bool"},{"internalType":"bool","name":"open","type":"bool"}],"stateMutability":"view","type":"function"},
 {"inputs":[],"name":"targetSupply","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
 {"inputs":[],"name":"initialPrice","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
 {"inputs":[],"name":"finalPrice","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
 {"inputs":[],"name":"platformFeeBps","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"internalType":"address","name":"token","type":"address"},{"internalType":"uint256","name":"coreAmount","type":"uint256"}],"name":"calculateTokensOut","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"internalType":"address","name":"token","type":"address"},{"internalType":"uint256","name":"tokenAmount","type":"uint256"}],"name":"calculateCoreOut","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"internalType":"address","name":"token","type":"address"},{"internalType":"uint256","name":"minTokens","type":"uint256"}],"name":"buy","outputs":[],"stateMutability":"payable","type":"function"},
 {"inputs":[{"internalType":"address","name":"token","type":"address"},{"internalType":"uint256","name":"tokenAmount","type":"uint256"},{"internalType":"uint256","name":"minCore","type":"uint256"}],"name":"sell","outputs":[],"stateMutability":"nonpayable","type":"function"},
 {"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"token","type":"address"},{"indexed":true,"internalType":"address","name":"buyer","type":"address"},{"indexed":false,"internalType":"uint256","name":"coreIn","type":"uint256"},{"indexed":false,"internalType":"uint256","name":"tokensOut","type":"uint256"}],"name":"TokenPurchased","type":"event"},
 {"anonymous":false,"inputs":[{"indexed":true,"internalType":"address","name":"token","type":"address"},{"indexed":true,"internalType":"address","name":"seller","type":"address"},{"indexed":false,"internalType":"uint256","name":"tokensIn","type":"uint256"},{"indexed":false,"internalType":"uint256","name":"coreOut","type":"uint256"}],"name":"TokenSold","type":"event"}
]`

var curveABI = mustABI(curveABIJSON)

// SaleRecord mirrors the manager's per-token sale slot.
type SaleRecord struct {
	Sold     *big.Int
	Raised   *big.Int
	Launched bool
	Open     bool
}

type CurveConstants struct {
	TargetSupply   *big.Int
	InitialPrice   *big.Int
	FinalPrice     *big.Int
	PlatformFeeBps int64
}

// Aggregator batches independent view calls into one round trip.
type Aggregator interface {
	Aggregate(ctx context.Context, calls []multicall.Call) ([]multicall.Result, error)
}

// CurveSale binds the bonding-curve sale manager contract.
type CurveSale struct {
	caller Caller
	addr   common.Address
	agg    Aggregator // nil = per-call reads
}

func NewCurveSale(caller Caller, addr common.Address) *CurveSale {
	return &CurveSale{caller: caller, addr: addr}
}

// WithAggregator routes the multi-read paths through a multicall contract.
func (c *CurveSale) WithAggregator(agg Aggregator) *CurveSale {
	c.agg = agg
	return c
}

func (c *CurveSale) Address() common.Address { return c.addr }

func (c *CurveSale) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := curveABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &c.addr, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	outs, err := curveABI.Methods[method].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return nil, fmt.Errorf("decode %s: %w", method, err)
	}
	return outs, nil
}

func (c *CurveSale) SaleOf(ctx context.Context, token common.Address) (SaleRecord, error) {
	outs, err := c.call(ctx, "sales", token)
	if err != nil {
		return SaleRecord{}, err
	}
	if len(outs) < 4 {
		return SaleRecord{}, fmt.Errorf("bad sales output length %d", len(outs))
	}
	return SaleRecord{
		Sold:     outs[0].(*big.Int),
		Raised:   outs[1].(*big.Int),
		Launched: outs[2].(bool),
		Open:     outs[3].(bool),
	}, nil
}

func (c *CurveSale) Constants(ctx context.Context) (CurveConstants, error) {
	if c.agg != nil {
		return c.constantsBatched(ctx)
	}
	var cc CurveConstants
	outs, err := c.call(ctx, "targetSupply")
	if err != nil {
		return cc, err
	}
	cc.TargetSupply = outs[0].(*big.Int)

	if outs, err = c.call(ctx, "initialPrice"); err != nil {
		return cc, err
	}
	cc.InitialPrice = outs[0].(*big.Int)

	if outs, err = c.call(ctx, "finalPrice"); err != nil {
		return cc, err
	}
	cc.FinalPrice = outs[0].(*big.Int)

	if outs, err = c.call(ctx, "platformFeeBps"); err != nil {
		return cc, err
	}
	cc.PlatformFeeBps = outs[0].(*big.Int).Int64()
	return cc, nil
}

// constantsBatched reads the four curve constants in one aggregate call.
func (c *CurveSale) constantsBatched(ctx context.Context) (CurveConstants, error) {
	var cc CurveConstants
	methods := []string{"targetSupply", "initialPrice", "finalPrice", "platformFeeBps"}
	calls := make([]multicall.Call, 0, len(methods))
	for _, m := range methods {
		data, err := curveABI.Pack(m)
		if err != nil {
			return cc, fmt.Errorf("pack %s: %w", m, err)
		}
		calls = append(calls, multicall.Call{Target: c.addr, CallData: data})
	}
	results, err := c.agg.Aggregate(ctx, calls)
	if err != nil {
		return cc, fmt.Errorf("batched constants read: %w", err)
	}
	vals := make([]*big.Int, len(methods))
	for i, m := range methods {
		if !results[i].Success {
			return cc, fmt.Errorf("batched %s returned no data", m)
		}
		outs, err := curveABI.Methods[m].Outputs.Unpack(results[i].Data)
		if err != nil || len(outs) == 0 {
			return cc, fmt.Errorf("decode %s: %w", m, err)
		}
		vals[i] = outs[0].(*big.Int)
	}
	cc.TargetSupply, cc.InitialPrice, cc.FinalPrice = vals[0], vals[1], vals[2]
	cc.PlatformFeeBps = vals[3].Int64()
	return cc, nil
}

// TokensOut asks the contract's pure conversion for a buy.
func (c *CurveSale) TokensOut(ctx context.Context, token common.Address, coreIn *big.Int) (*big.Int, error) {
	outs, err := c.call(ctx, "calculateTokensOut", token, coreIn)
	if err != nil {
		return nil, err
	}
	return outs[0].(*big.Int), nil
}

// CoreOut asks the contract's pure conversion for a sell.
func (c *CurveSale) CoreOut(ctx context.Context, token common.Address, tokenAmount *big.Int) (*big.Int, error) {
	outs, err := c.call(ctx, "calculateCoreOut", token, tokenAmount)
	if err != nil {
		return nil, err
	}
	return outs[0].(*big.Int), nil
}

func (c *CurveSale) PackBuy(token common.Address, minTokens *big.Int) ([]byte, error) {
	return curveABI.Pack("buy", token, minTokens)
}

func (c *CurveSale) PackSell(token common.Address, tokenAmount, minCore *big.Int) ([]byte, error) {
	return curveABI.Pack("sell", token, tokenAmount, minCore)
}

// ParsePurchase recovers the actual filled token amount from TokenPurchased,
// or ok=false when the event is absent.
func (c *CurveSale) ParsePurchase(logs []*gethtypes.Log) (tokensOut *big.Int, ok bool) {
	return c.parseFill(logs, "TokenPurchased")
}

// ParseSale recovers the actual core proceeds from TokenSold.
func (c *CurveSale) ParseSale(logs []*gethtypes.Log) (coreOut *big.Int, ok bool) {
	return c.parseFill(logs, "TokenSold")
}

func (c *CurveSale) parseFill(logs []*gethtypes.Log, event string) (*big.Int, bool) {
	ev, exists := curveABI.Events[event]
	if !exists {
		return nil, false
	}
	for _, lg := range logs {
		if lg == nil || lg.Address != c.addr || len(lg.Topics) == 0 || lg.Topics[0] != ev.ID {
			continue
		}
		vals, err := ev.Inputs.NonIndexed().Unpack(lg.Data)
		if err != nil || len(vals) < 2 {
			continue
		}
		// second non-indexed field is the fill amount (tokensOut / coreOut)
		if amt, ok := vals[1].(*big.Int); ok {
			return amt, true
		}
	}
	return nil, false
}
