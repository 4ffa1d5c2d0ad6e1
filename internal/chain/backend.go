package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Caller is the read-only slice of the chain client.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Backend is everything the traders need from a JSON-RPC client.
// *ethclient.Client satisfies it.
type Backend interface {
	Caller
	ChainID(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

var _ Backend = (*ethclient.Client)(nil)

func Dial(rpcURL string) (*ethclient.Client, error) {
	ec, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return ec, nil
}

// FeeData is the EIP-1559 view used for pricing submissions.
type FeeData struct {
	BaseFee *big.Int
	TipCap  *big.Int
}

// ReadFeeData reads the latest base fee and suggested tip, with the legacy
// gas-price fallback for providers that predate EIP-1559.
func ReadFeeData(ctx context.Context, b Backend) (FeeData, error) {
	tip, err := b.SuggestGasTipCap(ctx)
	if err != nil || tip == nil {
		tip = big.NewInt(1_000_000_000) // 1 gwei fallback
	}
	if h, err := b.HeaderByNumber(ctx, nil); err == nil && h != nil && h.BaseFee != nil {
		return FeeData{BaseFee: new(big.Int).Set(h.BaseFee), TipCap: tip}, nil
	}
	sp, err := b.SuggestGasPrice(ctx)
	if err != nil {
		return FeeData{}, fmt.Errorf("suggest gas price: %w", err)
	}
	return FeeData{BaseFee: sp, TipCap: tip}, nil
}

func mustABI(raw string) abi.ABI {
	a, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("chain: bad embedded abi: %v", err))
	}
	return a
}
