package chain

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

const erc20ABIJSON = `[
 {"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
 {"inputs":[],"name":"symbol","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
 {"inputs":[],"name":"name","outputs":[{"internalType":"string","name":"","type":"string"}],"stateMutability":"view","type":"function"},
 {"inputs":[],"name":"totalSupply","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"internalType":"address","name":"account","type":"address"}],"name":"balanceOf","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"internalType":"address","name":"owner","type":"address"},{"internalType":"address","name":"spender","type":"address"}],"name":"allowance","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
 {"inputs":[{"internalType":"address","name":"spender","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"approve","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

var erc20ABI = mustABI(erc20ABIJSON)

// MaxApproval is the uint256 max used for one-shot allowances.
var MaxApproval = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// ERC20 reads and packs calls for any fungible token; the token address is
// passed per call rather than bound at construction.
type ERC20 struct {
	caller Caller
}

func NewERC20(caller Caller) *ERC20 { return &ERC20{caller: caller} }

func (e *ERC20) call(ctx context.Context, token common.Address, method string, args ...any) ([]any, error) {
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := e.caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	outs, err := erc20ABI.Methods[method].Outputs.Unpack(raw)
	if err != nil || len(outs) == 0 {
		return nil, fmt.Errorf("decode %s: %w", method, err)
	}
	return outs, nil
}

func (e *ERC20) Decimals(ctx context.Context, token common.Address) (int, error) {
	outs, err := e.call(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}
	switch v := outs[0].(type) {
	case uint8:
		return int(v), nil
	case *big.Int:
		return int(v.Int64()), nil
	default:
		return 0, fmt.Errorf("unexpected decimals type %T", v)
	}
}

func (e *ERC20) Symbol(ctx context.Context, token common.Address) (string, error) {
	outs, err := e.call(ctx, token, "symbol")
	if err != nil {
		return "", err
	}
	s, ok := outs[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected symbol type %T", outs[0])
	}
	return s, nil
}

func (e *ERC20) TotalSupply(ctx context.Context, token common.Address) (*big.Int, error) {
	outs, err := e.call(ctx, token, "totalSupply")
	if err != nil {
		return nil, err
	}
	return outs[0].(*big.Int), nil
}

func (e *ERC20) BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error) {
	outs, err := e.call(ctx, token, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	return outs[0].(*big.Int), nil
}

func (e *ERC20) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	outs, err := e.call(ctx, token, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return outs[0].(*big.Int), nil
}

func (e *ERC20) PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return erc20ABI.Pack("approve", spender, amount)
}
