// Package multicall batches independent view calls into one aggregate RPC
// round trip. The analyzer-facing readers use it to collapse the constant
// burst of small reads a quote otherwise fans out.
package multicall

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const aggregateABIJSON = `[
 {"inputs":[{"components":[{"name":"target","type":"address"},{"name":"callData","type":"bytes"}],"name":"calls","type":"tuple[]"}],"name":"aggregate","outputs":[{"name":"blockNumber","type":"uint256"},{"name":"returnData","type":"bytes[]"}],"stateMutability":"nonpayable","type":"function"}
]`

// Caller is the read-only chain client slice this package needs.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Call is one target + packed calldata pair.
type Call struct {
	Target   common.Address
	CallData []byte
}

// Result carries the raw return bytes of one batched call. Empty data means
// the call returned nothing, which for view calls reads as a failure.
type Result struct {
	Success bool
	Data    []byte
}

type Client struct {
	caller Caller
	addr   common.Address
	abi    abi.ABI
}

func New(caller Caller, addr common.Address) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(aggregateABIJSON))
	if err != nil {
		return nil, fmt.Errorf("bad aggregate abi: %w", err)
	}
	return &Client{caller: caller, addr: addr, abi: parsed}, nil
}

// Aggregate submits all calls in one eth_call against the multicall contract
// and returns results in call order.
func (c *Client) Aggregate(ctx context.Context, calls []Call) ([]Result, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	payload, err := c.abi.Pack("aggregate", calls)
	if err != nil {
		return nil, fmt.Errorf("pack aggregate: %w", err)
	}
	raw, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &c.addr, Data: payload}, nil)
	if err != nil {
		return nil, fmt.Errorf("call aggregate: %w", err)
	}

	var decoded struct {
		BlockNumber *big.Int
		ReturnData  [][]byte
	}
	if err := c.abi.UnpackIntoInterface(&decoded, "aggregate", raw); err != nil {
		return nil, fmt.Errorf("unpack aggregate: %w", err)
	}
	if len(decoded.ReturnData) != len(calls) {
		return nil, fmt.Errorf("aggregate returned %d results for %d calls", len(decoded.ReturnData), len(calls))
	}

	out := make([]Result, len(calls))
	for i, data := range decoded.ReturnData {
		out[i] = Result{Success: len(data) > 0, Data: data}
	}
	return out, nil
}
