// Package analyzer derives a token's trading phase and market metadata from
// chain state, behind a short TTL cache.
package analyzer

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/chain"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/pricing"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/trading"
)

type curveSource interface {
	SaleOf(ctx context.Context, token common.Address) (chain.SaleRecord, error)
	Constants(ctx context.Context) (chain.CurveConstants, error)
}

type PairSource interface {
	Label() string
	Pair(ctx context.Context, tokenA, tokenB common.Address) (common.Address, error)
	Reserves(ctx context.Context, pair common.Address) (r0, r1 *big.Int, token0 common.Address, err error)
}

type tokenSource interface {
	TotalSupply(ctx context.Context, token common.Address) (*big.Int, error)
	Symbol(ctx context.Context, token common.Address) (string, error)
	Decimals(ctx context.Context, token common.Address) (int, error)
}

type cacheEntry struct {
	state     *trading.TokenState
	fetchedAt time.Time
}

// Analyzer resolves TokenState with a read-through TTL cache keyed by
// lowercase address. Concurrent refreshes may duplicate an RPC read; the
// last write wins, which is fine because entries are never mutated in place.
type Analyzer struct {
	log   *zap.Logger
	curve curveSource // nil when no curve manager is configured
	dexes []PairSource
	erc20 tokenSource
	base  common.Address
	ttl   time.Duration
	now   func() time.Time

	mu       sync.RWMutex
	cache    map[string]cacheEntry
	launched map[string]bool // one-way phase latch, process lifetime
}

func New(log *zap.Logger, curve curveSource, dexes []PairSource, erc20 tokenSource, base common.Address, ttl time.Duration) *Analyzer {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Analyzer{
		log:      log,
		curve:    curve,
		dexes:    dexes,
		erc20:    erc20,
		base:     base,
		ttl:      ttl,
		now:      time.Now,
		cache:    make(map[string]cacheEntry),
		launched: make(map[string]bool),
	}
}

// SetNow swaps the clock, for deterministic TTL tests.
func (a *Analyzer) SetNow(now func() time.Time) { a.now = now }

// AnalyzeToken returns the token's state, or nil when it cannot be derived.
// nil means "unknown", never a fatal condition; errors are logged, not thrown.
func (a *Analyzer) AnalyzeToken(ctx context.Context, token common.Address) *trading.TokenState {
	key := strings.ToLower(token.Hex())

	a.mu.RLock()
	ent, ok := a.cache[key]
	a.mu.RUnlock()
	if ok && a.now().Sub(ent.fetchedAt) <= a.ttl {
		return ent.state
	}

	st := a.derive(ctx, token, key)
	if st == nil {
		return nil
	}

	a.mu.Lock()
	a.cache[key] = cacheEntry{state: st, fetchedAt: a.now()}
	if st.Phase == trading.PhaseDEX {
		a.launched[key] = true
	}
	a.mu.Unlock()
	return st
}

func (a *Analyzer) derive(ctx context.Context, token common.Address, key string) *trading.TokenState {
	if a.curve != nil {
		rec, err := a.curve.SaleOf(ctx, token)
		if err == nil && isPlatformSale(rec) {
			return a.derivePlatform(ctx, token, key, rec)
		}
		if err != nil {
			a.log.Debug("curve sale read failed, treating as external", zap.String("token", token.Hex()), zap.Error(err))
		}
	}
	return a.deriveExternal(ctx, token)
}

func isPlatformSale(rec chain.SaleRecord) bool {
	return rec.Open || rec.Launched ||
		(rec.Sold != nil && rec.Sold.Sign() > 0) ||
		(rec.Raised != nil && rec.Raised.Sign() > 0)
}

func (a *Analyzer) derivePlatform(ctx context.Context, token common.Address, key string, rec chain.SaleRecord) *trading.TokenState {
	cc, err := a.curve.Constants(ctx)
	if err != nil {
		a.log.Warn("curve constants read failed", zap.Error(err))
		return nil
	}
	curve := pricing.Curve{Target: cc.TargetSupply, Initial: cc.InitialPrice, Final: cc.FinalPrice}

	a.mu.RLock()
	latched := a.launched[key]
	a.mu.RUnlock()

	phase := trading.PhaseBondingCurve
	if rec.Launched || latched {
		phase = trading.PhaseDEX
	}

	st := &trading.TokenState{
		Address:       token,
		Phase:         phase,
		PlatformToken: true,
		Launched:      rec.Launched || latched,
		Open:          rec.Open,
		Sold:          rec.Sold,
		Raised:        rec.Raised,
		CurrentPrice:  curve.PricePerToken(rec.Sold),
		ProgressPct:   curve.ProgressPct(rec.Sold),
		CanSell:       phase == trading.PhaseDEX,
		Liquidity:     big.NewInt(0),
		FetchedAt:     a.now(),
	}

	if supply, err := a.erc20.TotalSupply(ctx, token); err == nil {
		st.TotalSupply = supply
		st.MarketCap = st.CurrentPrice.Mul(decimalFromBig(supply))
	}
	a.fillMetadata(ctx, token, st)
	if phase == trading.PhaseDEX {
		liq, price := a.poolView(ctx, token)
		st.Liquidity = liq
		if !price.IsZero() {
			st.CurrentPrice = price
		}
	}
	return st
}

func (a *Analyzer) deriveExternal(ctx context.Context, token common.Address) *trading.TokenState {
	supply, err := a.erc20.TotalSupply(ctx, token)
	if err != nil {
		a.log.Debug("token metadata read failed", zap.String("token", token.Hex()), zap.Error(err))
		return nil
	}
	liq, price := a.poolView(ctx, token)
	st := &trading.TokenState{
		Address:      token,
		Phase:        trading.PhaseDEX,
		Launched:     true,
		Open:         true,
		CanSell:      true,
		TotalSupply:  supply,
		Liquidity:    liq,
		CurrentPrice: price,
		Sold:         big.NewInt(0),
		Raised:       big.NewInt(0),
		FetchedAt:    a.now(),
	}
	if !price.IsZero() {
		st.MarketCap = price.Mul(decimalFromBig(supply))
	}
	a.fillMetadata(ctx, token, st)
	return st
}

// fillMetadata is best-effort: tokens without symbol/decimals stay tradeable.
func (a *Analyzer) fillMetadata(ctx context.Context, token common.Address, st *trading.TokenState) {
	if sym, err := a.erc20.Symbol(ctx, token); err == nil {
		st.Symbol = sym
	}
	if dec, err := a.erc20.Decimals(ctx, token); err == nil {
		st.Decimals = dec
	}
}

// poolView probes every configured factory for a (base, token) pair, sums the
// base-asset reserves as liquidity and takes the price from the first pool
// with nonzero reserves. No liquidity-weighted aggregation; first pool wins.
func (a *Analyzer) poolView(ctx context.Context, token common.Address) (*big.Int, decimal.Decimal) {
	liquidity := big.NewInt(0)
	price := decimal.Zero
	for _, dex := range a.dexes {
		pair, err := dex.Pair(ctx, a.base, token)
		if err != nil || pair == (common.Address{}) {
			continue
		}
		r0, r1, token0, err := dex.Reserves(ctx, pair)
		if err != nil {
			a.log.Debug("reserves read failed", zap.String("dex", dex.Label()), zap.Error(err))
			continue
		}
		baseR, tokenR := r0, r1
		if token0 != a.base {
			baseR, tokenR = r1, r0
		}
		liquidity.Add(liquidity, baseR)
		if price.IsZero() && baseR.Sign() > 0 && tokenR.Sign() > 0 {
			price = pricing.Price(baseR, tokenR)
		}
	}
	return liquidity, price
}

func decimalFromBig(v *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(v, 0)
}
