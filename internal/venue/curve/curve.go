// Package curve implements the bonding-curve trading venue: quoting against
// the sale manager's linear curve and executing buy/sell against it.
package curve

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/chain"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/pricing"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/trading"
)

// Fixed submission gas heuristic; the curve buy/sell path is not simulated.
const executeGasEstimate = 180_000

const venueName = "bonding-curve"

type saleContract interface {
	Address() common.Address
	SaleOf(ctx context.Context, token common.Address) (chain.SaleRecord, error)
	Constants(ctx context.Context) (chain.CurveConstants, error)
	TokensOut(ctx context.Context, token common.Address, coreIn *big.Int) (*big.Int, error)
	CoreOut(ctx context.Context, token common.Address, tokenAmount *big.Int) (*big.Int, error)
	PackBuy(token common.Address, minTokens *big.Int) ([]byte, error)
	PackSell(token common.Address, tokenAmount, minCore *big.Int) ([]byte, error)
	ParsePurchase(logs []*gethtypes.Log) (*big.Int, bool)
	ParseSale(logs []*gethtypes.Log) (*big.Int, bool)
}

type Config struct {
	GasLimit       uint64
	MaxGasPriceWei *big.Int // nil = no ceiling
	MEVEnabled     bool
	PriorityFeeWei *big.Int
}

// Quote is the curve-side intermediate quote feeding Route construction.
type Quote struct {
	AmountIn          *big.Int
	AmountOut         *big.Int
	Fee               *big.Int // same unit as AmountIn
	Sold              *big.Int
	Constants         chain.CurveConstants
	WillTriggerLaunch bool
}

type Trader struct {
	log     *zap.Logger
	sale    saleContract
	backend chain.Backend
	cfg     Config
}

func New(log *zap.Logger, sale saleContract, backend chain.Backend, cfg Config) *Trader {
	return &Trader{log: log, sale: sale, backend: backend, cfg: cfg}
}

func (t *Trader) Name() string { return venueName }

// GetQuote reads the sale record and converts through the contract's pure
// conversion functions. The platform fee is taken off the input before
// conversion and reported in the input unit.
func (t *Trader) GetQuote(ctx context.Context, p *trading.TradeParams) (*Quote, error) {
	if t.sale == nil {
		return nil, trading.NewError(trading.ErrTokenNotTradeable, "bonding curve not configured")
	}
	amount, err := trading.ParseAmount(p.Amount)
	if err != nil {
		return nil, err
	}
	rec, err := t.sale.SaleOf(ctx, p.Token)
	if err != nil {
		return nil, trading.WrapError(trading.ErrRouteNotFound, "sale record read failed", err)
	}
	if !rec.Open {
		return nil, trading.Errorf(trading.ErrTokenNotTradeable, "sale for %s is not open", p.Token.Hex())
	}
	cc, err := t.sale.Constants(ctx)
	if err != nil {
		return nil, trading.WrapError(trading.ErrRouteNotFound, "curve constants read failed", err)
	}

	fee := pricing.FeeAmount(amount, cc.PlatformFeeBps)
	net := new(big.Int).Sub(amount, fee)

	q := &Quote{AmountIn: amount, Fee: fee, Sold: rec.Sold, Constants: cc}
	switch p.Side {
	case trading.Buy:
		out, err := t.sale.TokensOut(ctx, p.Token, net)
		if err != nil {
			return nil, trading.WrapError(trading.ErrRouteNotFound, "tokens-out conversion failed", err)
		}
		q.AmountOut = out
		newSold := new(big.Int).Add(rec.Sold, out)
		q.WillTriggerLaunch = newSold.Cmp(cc.TargetSupply) >= 0
	case trading.Sell:
		out, err := t.sale.CoreOut(ctx, p.Token, net)
		if err != nil {
			return nil, trading.WrapError(trading.ErrRouteNotFound, "core-out conversion failed", err)
		}
		q.AmountOut = out
	default:
		return nil, trading.Errorf(trading.ErrUnknown, "bad side %q", p.Side)
	}
	if q.AmountOut.Sign() <= 0 {
		return nil, trading.NewError(trading.ErrInsufficientLiquidity, "curve quote returned zero output")
	}
	return q, nil
}

// Routes wraps the quote into the single curve route. The curve is the only
// venue for its phase, so quote failures raise instead of degrading.
func (t *Trader) Routes(ctx context.Context, p *trading.TradeParams, _ *trading.TokenState) ([]*trading.Route, error) {
	q, err := t.GetQuote(ctx, p)
	if err != nil {
		return nil, err
	}

	curveMath := pricing.Curve{
		Target:  q.Constants.TargetSupply,
		Initial: q.Constants.InitialPrice,
		Final:   q.Constants.FinalPrice,
	}
	spot := curveMath.PricePerToken(q.Sold)

	r := &trading.Route{
		Kind:              trading.RouteBondingCurve,
		Venue:             venueName,
		Path:              []common.Address{p.Token},
		AmountIn:          q.AmountIn,
		AmountOut:         q.AmountOut,
		Fee:               q.Fee,
		EstimatedGas:      executeGasEstimate,
		WillTriggerLaunch: q.WillTriggerLaunch,
	}
	switch p.Side {
	case trading.Buy:
		r.ExecutionPrice = pricing.Price(q.AmountIn, q.AmountOut)
		r.PriceImpactPct = pricing.CurveImpactPct(q.AmountIn, spot, q.Constants.TargetSupply)
	case trading.Sell:
		r.ExecutionPrice = pricing.Price(q.AmountOut, q.AmountIn)
		r.PriceImpactPct = pricing.SupplySharePct(q.AmountIn, q.Constants.TargetSupply)
	}
	if p.MinOut != nil {
		r.MinimumOut = p.MinOut
	} else {
		r.MinimumOut = pricing.MinOut(q.AmountOut, p.SlippagePct)
	}
	return []*trading.Route{r}, nil
}

// Execute submits the buy/sell transaction and awaits confirmation.
// Preconditions raise before submission; execution failures are folded into
// the result.
func (t *Trader) Execute(ctx context.Context, p *trading.TradeParams, r *trading.Route, signer *chain.Signer) (*trading.TradeResult, error) {
	if t.sale == nil {
		return nil, trading.NewError(trading.ErrTokenNotTradeable, "bonding curve not configured")
	}
	rec, err := t.sale.SaleOf(ctx, p.Token)
	if err != nil {
		return nil, trading.WrapError(trading.ErrTokenNotTradeable, "sale record read failed", err)
	}
	if !rec.Open {
		return nil, trading.Errorf(trading.ErrTokenNotTradeable, "sale for %s is not open", p.Token.Hex())
	}
	if rec.Launched {
		return nil, trading.Errorf(trading.ErrTokenNotTradeable, "token %s has graduated to DEX", p.Token.Hex())
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

	req := chain.TxRequest{To: t.sale.Address(), GasLimit: t.cfg.GasLimit, TipCap: tip}
	switch p.Side {
	case trading.Buy:
		req.Value = r.AmountIn
		req.Data, err = t.sale.PackBuy(p.Token, r.MinimumOut)
	case trading.Sell:
		req.Data, err = t.sale.PackSell(p.Token, r.AmountIn, r.MinimumOut)
	default:
		return nil, trading.Errorf(trading.ErrUnknown, "bad side %q", p.Side)
	}
	if err != nil {
		return nil, trading.WrapError(trading.ErrUnknown, "pack calldata", err)
	}

	rcpt, txHash, err := chain.SendAndWait(ctx, t.backend, signer, req)
	if err != nil {
		return failedResult(r, txHash, trading.WrapError(trading.ErrTransactionFailed, "submission failed", err)), nil
	}
	if rcpt.Status != gethtypes.ReceiptStatusSuccessful {
		return failedResult(r, txHash, trading.NewError(trading.ErrTransactionFailed, "execution reverted")), nil
	}

	amountOut := r.AmountOut
	var filled *big.Int
	var ok bool
	if p.Side == trading.Buy {
		filled, ok = t.sale.ParsePurchase(rcpt.Logs)
	} else {
		filled, ok = t.sale.ParseSale(rcpt.Logs)
	}
	if ok {
		amountOut = filled
	} else {
		t.log.Debug("fill event missing, falling back to quoted amount", zap.String("tx", txHash))
	}

	res := &trading.TradeResult{
		Success:        true,
		TxHash:         txHash,
		AmountIn:       r.AmountIn,
		AmountOut:      amountOut,
		PriceImpactPct: r.PriceImpactPct,
		Route:          r,
		GasUsed:        rcpt.GasUsed,
		Timestamp:      time.Now(),
	}
	if p.Side == trading.Buy {
		res.ExecutionPrice = pricing.Price(r.AmountIn, amountOut)
	} else {
		res.ExecutionPrice = pricing.Price(amountOut, r.AmountIn)
	}
	if rcpt.EffectiveGasPrice != nil {
		res.GasCost = new(big.Int).Mul(rcpt.EffectiveGasPrice, new(big.Int).SetUint64(rcpt.GasUsed))
	}
	return res, nil
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
