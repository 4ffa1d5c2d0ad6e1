// Package router is the unified entry point for token trades: it resolves the
// token's phase, quotes every venue, picks the best route and executes it with
// MEV mitigations and bounded retries.
package router

import (
	"context"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/chain"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/metrics"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/notify"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/trading"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/venue"
)

type stateReader interface {
	AnalyzeToken(ctx context.Context, token common.Address) *trading.TokenState
}

type protector interface {
	DetectThreat(ctx context.Context, p *trading.TradeParams, r *trading.Route) *trading.MEVThreat
	ProtectTransaction(ctx context.Context, p *trading.TradeParams) *big.Int
}

type nativeReader interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type tokenReader interface {
	BalanceOf(ctx context.Context, token, account common.Address) (*big.Int, error)
}

type Config struct {
	MaxSlippagePct float64
	MaxRetries     int // retries after the first attempt
	RetryDelay     time.Duration
	Exponential    bool
}

// Router dispatches trades across the bonding curve and the configured DEXes.
// Either venue may be nil when not configured; phase resolution decides which
// one a token trades on.
type Router struct {
	log     *zap.Logger
	cfg     Config
	state   stateReader
	curve   venue.Venue // nil = no bonding curve deployed
	dex     venue.Venue // nil = no DEX configured
	protect protector   // nil = MEV checks disabled
	native  nativeReader
	tokens  tokenReader
	signer  *chain.Signer
	events  notify.Notifier

	sleep func(time.Duration)
	now   func() time.Time
}

func New(log *zap.Logger, cfg Config, state stateReader, curve, dex venue.Venue,
	protect protector, native nativeReader, tokens tokenReader,
	signer *chain.Signer, events notify.Notifier) *Router {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	return &Router{
		log:     log,
		cfg:     cfg,
		state:   state,
		curve:   curve,
		dex:     dex,
		protect: protect,
		native:  native,
		tokens:  tokens,
		signer:  signer,
		events:  events,
		sleep:   time.Sleep,
		now:     time.Now,
	}
}

// GetTokenState exposes the analyzer's view; nil means unknown.
func (r *Router) GetTokenState(ctx context.Context, token common.Address) *trading.TokenState {
	return r.state.AnalyzeToken(ctx, token)
}

// GetQuote resolves the best route for the trade. BUY prefers the lowest
// core-per-token execution price, SELL the highest; ties go to the cheaper
// gas estimate.
func (r *Router) GetQuote(ctx context.Context, p *trading.TradeParams) (*trading.Route, error) {
	routes, err := r.GetAllRoutes(ctx, p)
	if err != nil {
		return nil, err
	}
	return routes[0], nil
}

// GetAllRoutes returns every viable route, best first. Errors follow the
// venue duality: the curve raises, DEX candidates degrade to skips.
func (r *Router) GetAllRoutes(ctx context.Context, p *trading.TradeParams) ([]*trading.Route, error) {
	start := r.now()
	metrics.QuotesTotal.Inc()

	if err := r.validate(p); err != nil {
		metrics.QuoteErrors.Inc()
		return nil, err
	}
	r.emit(ctx, trading.Event{Type: trading.EventTradeInitiated, Token: p.Token, Side: p.Side, Detail: p.Amount})

	st := r.state.AnalyzeToken(ctx, p.Token)
	if st == nil {
		metrics.QuoteErrors.Inc()
		return nil, trading.Errorf(trading.ErrTokenNotTradeable, "token %s state could not be resolved", p.Token.Hex())
	}

	routes, err := r.collectRoutes(ctx, p, st)
	if err != nil {
		metrics.QuoteErrors.Inc()
		return nil, err
	}
	if len(routes) == 0 {
		metrics.QuoteErrors.Inc()
		return nil, trading.Errorf(trading.ErrRouteNotFound, "no viable route for %s %s", p.Side, p.Token.Hex())
	}

	sortRoutes(routes, p.Side)
	best := routes[0]
	metrics.QuoteLatency.Observe(r.now().Sub(start).Seconds())

	r.emit(ctx, trading.Event{Type: trading.EventTradeRouted, Token: p.Token, Side: p.Side, Route: best})
	if best.PriceImpactPct > p.SlippagePct {
		// advisory only, MinimumOut still protects the fill
		r.emit(ctx, trading.Event{
			Type: trading.EventSlippageWarning, Token: p.Token, Side: p.Side, Route: best,
			Detail: "quoted impact exceeds slippage tolerance",
		})
	}
	return routes, nil
}

func (r *Router) collectRoutes(ctx context.Context, p *trading.TradeParams, st *trading.TokenState) ([]*trading.Route, error) {
	if st.Phase == trading.PhaseBondingCurve {
		if p.Side == trading.Sell && !st.Open {
			return nil, trading.Errorf(trading.ErrTokenNotTradeable, "sale for %s is closed", p.Token.Hex())
		}
		if r.curve == nil {
			return nil, trading.NewError(trading.ErrTokenNotTradeable, "bonding curve not configured")
		}
		return r.curve.Routes(ctx, p, st)
	}
	if r.dex == nil {
		return nil, trading.NewError(trading.ErrRouteNotFound, "no DEX configured")
	}
	return r.dex.Routes(ctx, p, st)
}

func (r *Router) validate(p *trading.TradeParams) error {
	if p.Side != trading.Buy && p.Side != trading.Sell {
		return trading.Errorf(trading.ErrUnknown, "bad side %q", p.Side)
	}
	if _, err := trading.ParseAmount(p.Amount); err != nil {
		return err
	}
	if p.SlippagePct < 0 {
		return trading.Errorf(trading.ErrExcessiveSlippage, "negative slippage %.2f", p.SlippagePct)
	}
	if p.SlippagePct > 100 {
		return trading.Errorf(trading.ErrExcessiveSlippage, "slippage %.2f%% exceeds 100%%", p.SlippagePct)
	}
	if r.cfg.MaxSlippagePct > 0 && p.SlippagePct > r.cfg.MaxSlippagePct {
		return trading.Errorf(trading.ErrExcessiveSlippage,
			"slippage %.2f%% exceeds maximum %.2f%%", p.SlippagePct, r.cfg.MaxSlippagePct)
	}
	if p.Deadline != 0 && p.Deadline <= r.now().Unix() {
		return trading.Errorf(trading.ErrDeadlineExceeded, "deadline %d is in the past", p.Deadline)
	}
	return nil
}

// ExecuteTrade quotes, checks preconditions, applies MEV mitigations and
// submits along the best route. Transient submission failures are retried
// with backoff; reverts and precondition violations are not.
func (r *Router) ExecuteTrade(ctx context.Context, p *trading.TradeParams) (*trading.TradeResult, error) {
	route, err := r.GetQuote(ctx, p)
	if err != nil {
		return nil, err
	}

	if r.protect != nil {
		if threat := r.protect.DetectThreat(ctx, p, route); threat != nil {
			metrics.MEVDetected.Inc()
			r.emit(ctx, trading.Event{Type: trading.EventMEVDetected, Token: p.Token, Side: p.Side, Route: route, Threat: threat})
			r.log.Warn("mev threat detected, proceeding",
				zap.String("token", p.Token.Hex()),
				zap.String("type", string(threat.Type)),
				zap.String("severity", string(threat.Severity)))
		}
	}

	if err := r.checkBalance(ctx, p, route); err != nil {
		r.emitFailure(ctx, p, route, err)
		return nil, err
	}

	exec := *p
	if r.protect != nil {
		if tip := r.protect.ProtectTransaction(ctx, &exec); tip != nil && exec.PriorityFee == nil {
			exec.PriorityFee = tip
		}
	}

	v := r.venueFor(route.Kind)
	if v == nil {
		err := trading.Errorf(trading.ErrRouteNotFound, "no venue for route kind %s", route.Kind)
		r.emitFailure(ctx, p, route, err)
		return nil, err
	}

	delay := r.cfg.RetryDelay
	for attempt := 0; ; attempt++ {
		r.emit(ctx, trading.Event{Type: trading.EventTradeSubmitted, Token: p.Token, Side: p.Side, Route: route})

		res, err := v.Execute(ctx, &exec, route, r.signer)
		if err != nil {
			r.emitFailure(ctx, p, route, err)
			return nil, err
		}
		if res.Success {
			metrics.TradesTotal.WithLabelValues("success").Inc()
			r.emit(ctx, trading.Event{Type: trading.EventTradeConfirmed, Token: p.Token, Side: p.Side, Route: route, Result: res})
			return res, nil
		}

		if attempt < r.cfg.MaxRetries && IsTransient(res.Error) && ctx.Err() == nil {
			metrics.TradeRetries.Inc()
			r.log.Warn("transient execution failure, retrying",
				zap.String("token", p.Token.Hex()),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(res.Error))
			r.sleep(delay)
			if r.cfg.Exponential {
				delay *= 2
			}
			continue
		}

		metrics.TradesTotal.WithLabelValues("failure").Inc()
		r.emit(ctx, trading.Event{Type: trading.EventTradeFailed, Token: p.Token, Side: p.Side, Route: route, Result: res})
		return res, nil
	}
}

// checkBalance verifies the funding side before any chain write. BUY spends
// native core, SELL spends the token itself.
func (r *Router) checkBalance(ctx context.Context, p *trading.TradeParams, route *trading.Route) error {
	if r.signer == nil {
		return trading.NewError(trading.ErrUnknown, "no signer configured")
	}
	var (
		have *big.Int
		err  error
	)
	if p.Side == trading.Buy {
		if r.native == nil {
			return nil
		}
		have, err = r.native.BalanceAt(ctx, r.signer.Address(), nil)
	} else {
		if r.tokens == nil {
			return nil
		}
		have, err = r.tokens.BalanceOf(ctx, p.Token, r.signer.Address())
	}
	if err != nil {
		return trading.WrapError(trading.ErrTransactionFailed, "balance read failed", err)
	}
	if have.Cmp(route.AmountIn) < 0 {
		return trading.Errorf(trading.ErrInsufficientBalance,
			"have %s, need %s", have, route.AmountIn)
	}
	return nil
}

func (r *Router) venueFor(kind trading.RouteKind) venue.Venue {
	if kind == trading.RouteBondingCurve {
		return r.curve
	}
	return r.dex
}

func (r *Router) emit(ctx context.Context, ev trading.Event) {
	if r.events == nil {
		return
	}
	ev.Ts = r.now()
	r.events.Notify(ctx, ev)
}

func (r *Router) emitFailure(ctx context.Context, p *trading.TradeParams, route *trading.Route, err error) {
	metrics.TradesTotal.WithLabelValues("rejected").Inc()
	r.emit(ctx, trading.Event{
		Type: trading.EventTradeFailed, Token: p.Token, Side: p.Side, Route: route,
		Detail: err.Error(),
	})
}

// sortRoutes orders candidates best first: BUY by ascending execution price,
// SELL by descending, gas estimate as the tiebreak.
func sortRoutes(routes []*trading.Route, side trading.Side) {
	sort.SliceStable(routes, func(i, j int) bool {
		return better(routes[i], routes[j], side)
	})
}

func better(a, b *trading.Route, side trading.Side) bool {
	cmp := a.ExecutionPrice.Cmp(b.ExecutionPrice)
	if cmp != 0 {
		if side == trading.Buy {
			return cmp < 0
		}
		return cmp > 0
	}
	return a.EstimatedGas < b.EstimatedGas
}
