// Package amm implements the DEX trading venue over the configured V2-style
// AMMs: direct and multi-hop route discovery and swap execution.
package amm

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/chain"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/metrics"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/pricing"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/trading"
)

const (
	directGasEstimate   = 150_000
	multiHopGasEstimate = 260_000

	// V2 LP fee, taken on amountIn.
	lpFeeBps = 30

	// Placeholder impact for 3-hop paths. True multi-hop impact across two
	// pools is not computed; this constant is a known approximation.
	multiHopImpactPct = 1.5
)

type Dex interface {
	Label() string
	RouterAddr() common.Address
	Pair(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error)
	Reserves(ctx context.Context, pair common.Address) (r0, r1 *big.Int, token0 common.Address, err error)
	AmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) ([]*big.Int, error)
	PackSwapExactETHForTokens(minOut *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error)
	PackSwapExactTokensForETH(amountIn, minOut *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error)
	PackSwapExactTokensForTokens(amountIn, minOut *big.Int, path []common.Address, to common.Address, deadline *big.Int) ([]byte, error)
}

type erc20Contract interface {
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
	PackApprove(spender common.Address, amount *big.Int) ([]byte, error)
}

type Config struct {
	Base            common.Address
	Intermediates   []common.Address
	MultiHop        bool
	DefaultDeadline time.Duration
	GasLimit        uint64
	MaxGasPriceWei  *big.Int
	MEVEnabled      bool
	PriorityFeeWei  *big.Int
}

type Trader struct {
	log     *zap.Logger
	dexes   []Dex
	erc20   erc20Contract
	backend chain.Backend
	cfg     Config
	now     func() time.Time
}

func New(log *zap.Logger, dexes []Dex, erc20 erc20Contract, backend chain.Backend, cfg Config) *Trader {
	if cfg.DefaultDeadline <= 0 {
		cfg.DefaultDeadline = 5 * time.Minute
	}
	return &Trader{log: log, dexes: dexes, erc20: erc20, backend: backend, cfg: cfg, now: time.Now}
}

func (t *Trader) Name() string { return "dex" }

// Routes fans out across every configured DEX concurrently: direct candidates
// first, plus 3-hop candidates through each intermediate when enabled. A DEX
// with no pair or a failing query is skipped and audited, never fatal, so
// discovery latency is the slowest venue rather than the sum.
func (t *Trader) Routes(ctx context.Context, p *trading.TradeParams, _ *trading.TokenState) ([]*trading.Route, error) {
	amount, err := trading.ParseAmount(p.Amount)
	if err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		routes []*trading.Route
	)
	collect := func(r *trading.Route) {
		mu.Lock()
		routes = append(routes, r)
		mu.Unlock()
	}
	skip := func(dex, kind string, err error) {
		metrics.VenueSkips.Inc()
		t.log.Warn("venue skipped",
			zap.String("dex", dex),
			zap.String("kind", kind),
			zap.String("token", p.Token.Hex()),
			zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, dex := range t.dexes {
		dex := dex
		g.Go(func() error {
			r, err := t.directRoute(gctx, dex, p, amount)
			if err != nil {
				skip(dex.Label(), "direct", err)
				return nil
			}
			collect(r)
			return nil
		})
		if !t.cfg.MultiHop {
			continue
		}
		for _, mid := range t.cfg.Intermediates {
			mid := mid
			if mid == p.Token || mid == t.cfg.Base {
				continue
			}
			g.Go(func() error {
				r, err := t.multiHopRoute(gctx, dex, p, amount, mid)
				if err != nil {
					skip(dex.Label(), "multi-hop", err)
					return nil
				}
				collect(r)
				return nil
			})
		}
	}
	_ = g.Wait() // candidates are best-effort; workers never return errors
	return routes, nil
}

func (t *Trader) path(p *trading.TradeParams) []common.Address {
	if p.Side == trading.Buy {
		return []common.Address{t.cfg.Base, p.Token}
	}
	return []common.Address{p.Token, t.cfg.Base}
}

func (t *Trader) directRoute(ctx context.Context, dex Dex, p *trading.TradeParams, amount *big.Int) (*trading.Route, error) {
	path := t.path(p)
	pair, err := dex.Pair(ctx, path[0], path[1])
	if err != nil {
		return nil, err
	}
	if pair == (common.Address{}) {
		return nil, fmt.Errorf("no pair for %s", p.Token.Hex())
	}
	r0, r1, token0, err := dex.Reserves(ctx, pair)
	if err != nil {
		return nil, err
	}
	reserveIn, reserveOut := r0, r1
	if token0 != path[0] {
		reserveIn, reserveOut = r1, r0
	}
	if reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, fmt.Errorf("empty reserves in pair %s", pair.Hex())
	}

	amounts, err := dex.AmountsOut(ctx, amount, path)
	if err != nil {
		return nil, err
	}
	out := amounts[len(amounts)-1]
	if out.Sign() <= 0 {
		return nil, fmt.Errorf("zero output")
	}

	spot := pricing.Price(reserveOut, reserveIn) // out-per-in at the margin
	exec := pricing.Price(out, amount)

	r := &trading.Route{
		Kind:           trading.RouteDexV2,
		Venue:          dex.Label(),
		Path:           path,
		Pools:          []common.Address{pair},
		AmountIn:       amount,
		AmountOut:      out,
		Fee:            pricing.FeeAmount(amount, lpFeeBps),
		EstimatedGas:   directGasEstimate,
		PriceImpactPct: pricing.ExecutionImpactPct(spot, exec),
	}
	t.finishRoute(r, p)
	return r, nil
}

func (t *Trader) multiHopRoute(ctx context.Context, dex Dex, p *trading.TradeParams, amount *big.Int, mid common.Address) (*trading.Route, error) {
	var path []common.Address
	if p.Side == trading.Buy {
		path = []common.Address{t.cfg.Base, mid, p.Token}
	} else {
		path = []common.Address{p.Token, mid, t.cfg.Base}
	}
	amounts, err := dex.AmountsOut(ctx, amount, path)
	if err != nil {
		return nil, err
	}
	out := amounts[len(amounts)-1]
	if out.Sign() <= 0 {
		return nil, fmt.Errorf("zero output via %s", mid.Hex())
	}

	r := &trading.Route{
		Kind:           trading.RouteMultiHop,
		Venue:          dex.Label(),
		Path:           path,
		AmountIn:       amount,
		AmountOut:      out,
		Fee:            pricing.FeeAmount(amount, 2*lpFeeBps), // one LP fee per hop
		EstimatedGas:   multiHopGasEstimate,
		PriceImpactPct: multiHopImpactPct,
	}
	t.finishRoute(r, p)
	return r, nil
}

func (t *Trader) finishRoute(r *trading.Route, p *trading.TradeParams) {
	if p.Side == trading.Buy {
		r.ExecutionPrice = pricing.Price(r.AmountIn, r.AmountOut)
	} else {
		r.ExecutionPrice = pricing.Price(r.AmountOut, r.AmountIn)
	}
	if p.MinOut != nil {
		r.MinimumOut = p.MinOut
	} else {
		r.MinimumOut = pricing.MinOut(r.AmountOut, p.SlippagePct)
	}
}

// Execute submits the swap along the quoted route. A BUY paying the base
// asset goes through the pay-with-native entry point; any token-funded input
// first ensures router allowance, awaiting the approval before the dependent
// swap.
func (t *Trader) Execute(ctx context.Context, p *trading.TradeParams, r *trading.Route, signer *chain.Signer) (*trading.TradeResult, error) {
	dex := t.dexByLabel(r.Venue)
	if dex == nil {
		return nil, trading.Errorf(trading.ErrRouteNotFound, "route venue %q is not configured", r.Venue)
	}
	if len(r.Path) < 2 {
		return nil, trading.NewError(trading.ErrRouteNotFound, "route has no path")
	}

	fees, err := chain.ReadFeeData(ctx, t.backend)
	if err != nil {
		return nil, trading.WrapError(trading.ErrTransactionFailed, "fee data read failed", err)
	}
	if t.cfg.MaxGasPriceWei != nil && fees.BaseFee.Cmp(t.cfg.MaxGasPriceWei) > 0 {
		return nil, trading.Errorf(trading.ErrGasPriceTooHigh,
			"base fee %s exceeds ceiling %s", fees.BaseFee, t.cfg.MaxGasPriceWei)
	}
	tip := fees.TipCap
	if t.cfg.MEVEnabled && t.cfg.PriorityFeeWei != nil {
		tip = t.cfg.PriorityFeeWei
	}
	if p.PriorityFee != nil {
		tip = p.PriorityFee
	}

	deadline := big.NewInt(p.Deadline)
	if p.Deadline == 0 {
		deadline = big.NewInt(t.now().Add(t.cfg.DefaultDeadline).Unix())
	}

	req := chain.TxRequest{To: dex.RouterAddr(), GasLimit: t.cfg.GasLimit, TipCap: tip}
	payNative := p.Side == trading.Buy && r.Path[0] == t.cfg.Base
	if payNative {
		req.Value = r.AmountIn
		req.Data, err = dex.PackSwapExactETHForTokens(r.MinimumOut, r.Path, signer.Address(), deadline)
	} else {
		if res := t.ensureAllowance(ctx, r.Path[0], dex.RouterAddr(), r, signer, tip); res != nil {
			return res, nil
		}
		if r.Path[len(r.Path)-1] == t.cfg.Base {
			req.Data, err = dex.PackSwapExactTokensForETH(r.AmountIn, r.MinimumOut, r.Path, signer.Address(), deadline)
		} else {
			req.Data, err = dex.PackSwapExactTokensForTokens(r.AmountIn, r.MinimumOut, r.Path, signer.Address(), deadline)
		}
	}
	if err != nil {
		return nil, trading.WrapError(trading.ErrUnknown, "pack swap calldata", err)
	}

	rcpt, txHash, err := chain.SendAndWait(ctx, t.backend, signer, req)
	if err != nil {
		return failedResult(r, txHash, trading.WrapError(trading.ErrTransactionFailed, "submission failed", err)), nil
	}
	if rcpt.Status != gethtypes.ReceiptStatusSuccessful {
		return failedResult(r, txHash, trading.NewError(trading.ErrTransactionFailed, "execution reverted")), nil
	}

	// Exact-in swaps fill at least MinimumOut; the quoted amount is reported
	// without re-deriving the realized fill from pair logs.
	res := &trading.TradeResult{
		Success:        true,
		TxHash:         txHash,
		AmountIn:       r.AmountIn,
		AmountOut:      r.AmountOut,
		ExecutionPrice: r.ExecutionPrice,
		PriceImpactPct: r.PriceImpactPct,
		Route:          r,
		GasUsed:        rcpt.GasUsed,
		Timestamp:      time.Now(),
	}
	if rcpt.EffectiveGasPrice != nil {
		res.GasCost = new(big.Int).Mul(rcpt.EffectiveGasPrice, new(big.Int).SetUint64(rcpt.GasUsed))
	}
	return res, nil
}

// ensureAllowance tops the router allowance up to max when it cannot cover
// the trade. Returns a failed TradeResult when the approval itself fails;
// nil means the swap may proceed.
func (t *Trader) ensureAllowance(ctx context.Context, token, spender common.Address, r *trading.Route, signer *chain.Signer, tip *big.Int) *trading.TradeResult {
	allowance, err := t.erc20.Allowance(ctx, token, signer.Address(), spender)
	if err != nil {
		return failedResult(r, "", trading.WrapError(trading.ErrTransactionFailed, "allowance read failed", err))
	}
	if allowance.Cmp(r.AmountIn) >= 0 {
		return nil
	}
	data, err := t.erc20.PackApprove(spender, chain.MaxApproval)
	if err != nil {
		return failedResult(r, "", trading.WrapError(trading.ErrUnknown, "pack approve", err))
	}
	rcpt, txHash, err := chain.SendAndWait(ctx, t.backend, signer, chain.TxRequest{
		To: token, Data: data, GasLimit: 80_000, TipCap: tip,
	})
	if err != nil {
		return failedResult(r, txHash, trading.WrapError(trading.ErrTransactionFailed, "approval failed", err))
	}
	if rcpt.Status != gethtypes.ReceiptStatusSuccessful {
		return failedResult(r, txHash, trading.NewError(trading.ErrTransactionFailed, "approval reverted"))
	}
	t.log.Debug("allowance granted", zap.String("token", token.Hex()), zap.String("tx", txHash))
	return nil
}

func (t *Trader) dexByLabel(label string) Dex {
	for _, d := range t.dexes {
		if d.Label() == label {
			return d
		}
	}
	return nil
}

func failedResult(r *trading.Route, txHash string, terr *trading.Error) *trading.TradeResult {
	return &trading.TradeResult{
		Success:   false,
		TxHash:    txHash,
		AmountIn:  r.AmountIn,
		Route:     r,
		Timestamp: time.Now(),
		Error:     terr,
	}
}
