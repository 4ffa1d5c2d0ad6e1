package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

// TxRequest is a prepared contract call about to become a transaction.
type TxRequest struct {
	To       common.Address
	Value    *big.Int
	Data     []byte
	GasLimit uint64   // fallback when estimation fails
	TipCap   *big.Int // nil = suggested tip
}

const receiptPollInterval = 1500 * time.Millisecond

// SendAndWait signs, broadcasts and waits for the transaction to mine.
// feeCap = 2*baseFee + tip, the usual headroom for one full base-fee bump.
// There is no cancellation after broadcast: the ctx deadline only bounds the
// receipt wait.
func SendAndWait(ctx context.Context, b Backend, s *Signer, req TxRequest) (*gethtypes.Receipt, string, error) {
	chainID, err := b.ChainID(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("get chain id: %w", err)
	}
	nonce, err := b.PendingNonceAt(ctx, s.Address())
	if err != nil {
		return nil, "", fmt.Errorf("get nonce: %w", err)
	}

	fees, err := ReadFeeData(ctx, b)
	if err != nil {
		return nil, "", err
	}
	tip := fees.TipCap
	if req.TipCap != nil {
		tip = req.TipCap
	}
	feeCap := new(big.Int).Add(new(big.Int).Mul(fees.BaseFee, big.NewInt(2)), tip)

	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}
	gas, err := b.EstimateGas(ctx, ethereum.CallMsg{From: s.Address(), To: &req.To, Value: value, Data: req.Data})
	if err != nil || gas == 0 {
		gas = req.GasLimit
	}

	to := req.To
	tx := gethtypes.NewTx(&gethtypes.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		To:        &to,
		Gas:       gas,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Value:     value,
		Data:      req.Data,
	})
	signed, err := s.SignTx(chainID, tx)
	if err != nil {
		return nil, "", err
	}
	if err := b.SendTransaction(ctx, signed); err != nil {
		return nil, "", fmt.Errorf("send transaction: %w", err)
	}
	hash := signed.Hash()

	rcpt, err := waitMined(ctx, b, hash)
	if err != nil {
		return nil, hash.Hex(), err
	}
	return rcpt, hash.Hex(), nil
}

func waitMined(ctx context.Context, b Backend, hash common.Hash) (*gethtypes.Receipt, error) {
	t := time.NewTicker(receiptPollInterval)
	defer t.Stop()
	for {
		rcpt, err := b.TransactionReceipt(ctx, hash)
		if err == nil && rcpt != nil {
			return rcpt, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait receipt %s: timeout: %w", hash.Hex(), ctx.Err())
		case <-t.C:
		}
	}
}
