package mev

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// Stats is the mempool view for one token. Scanned=false means the provider
// exposes no pending-pool view; callers must not read that as "confirmed
// safe".
type Stats struct {
	Scanned  bool
	TokenTxs int     // pending txs touching the token
	GasRatio float64 // max gas price among those txs vs. pending average
}

type Scanner interface {
	Scan(ctx context.Context, token common.Address) Stats
}

type rawTx struct {
	To           *common.Address `json:"to"`
	GasPrice     *hexutil.Big    `json:"gasPrice"`
	MaxFeePerGas *hexutil.Big    `json:"maxFeePerGas"`
	Input        hexutil.Bytes   `json:"input"`
}

// TxPoolScanner reads txpool_content. Many providers do not expose it; every
// failure degrades silently to an unscanned result.
type TxPoolScanner struct {
	log *zap.Logger
	rpc *rpc.Client
}

func NewTxPoolScanner(log *zap.Logger, rpcClient *rpc.Client) *TxPoolScanner {
	return &TxPoolScanner{log: log, rpc: rpcClient}
}

func (s *TxPoolScanner) Scan(ctx context.Context, token common.Address) Stats {
	if s.rpc == nil {
		return Stats{}
	}
	var content map[string]map[string]map[string]*rawTx
	if err := s.rpc.CallContext(ctx, &content, "txpool_content"); err != nil {
		s.log.Debug("txpool_content unavailable", zap.Error(err))
		return Stats{}
	}

	needle := strings.ToLower(strings.TrimPrefix(token.Hex(), "0x"))
	var (
		total       int
		sumGas      = new(big.Int)
		maxTokenGas = new(big.Int)
		tokenTxs    int
	)
	for _, byAddr := range content { // "pending" and "queued" buckets
		for _, byNonce := range byAddr {
			for _, tx := range byNonce {
				if tx == nil {
					continue
				}
				gas := gasOf(tx)
				total++
				sumGas.Add(sumGas, gas)
				if touchesToken(tx, token, needle) {
					tokenTxs++
					if gas.Cmp(maxTokenGas) > 0 {
						maxTokenGas.Set(gas)
					}
				}
			}
		}
	}

	st := Stats{Scanned: true, TokenTxs: tokenTxs}
	if total > 0 && sumGas.Sign() > 0 && maxTokenGas.Sign() > 0 {
		avg := new(big.Float).Quo(new(big.Float).SetInt(sumGas), big.NewFloat(float64(total)))
		ratio := new(big.Float).Quo(new(big.Float).SetInt(maxTokenGas), avg)
		st.GasRatio, _ = ratio.Float64()
	}
	return st
}

func gasOf(tx *rawTx) *big.Int {
	if tx.GasPrice != nil {
		return tx.GasPrice.ToInt()
	}
	if tx.MaxFeePerGas != nil {
		return tx.MaxFeePerGas.ToInt()
	}
	return big.NewInt(0)
}

func touchesToken(tx *rawTx, token common.Address, needle string) bool {
	if tx.To != nil && *tx.To == token {
		return true
	}
	// swaps go through routers; a token trade carries the address in calldata
	return len(tx.Input) >= 4 && strings.Contains(strings.ToLower(hexutil.Encode(tx.Input)), needle)
}
