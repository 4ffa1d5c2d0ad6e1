package pricing

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Curve is the linear bonding curve used by the sale manager:
//
//	price(sold) = initial + (final-initial) * min(sold,target) / target
//
// Buy cost is the integral of price over the sold interval, tokens-out the
// quadratic inversion of that integral. These mirror the contract's pure
// conversion functions exactly and back the fakes and tests; the live trader
// asks the contract itself.
type Curve struct {
	Target  *big.Int // token units at which the sale graduates
	Initial *big.Int // core units per token unit at sold=0
	Final   *big.Int // core units per token unit at sold=target
}

func (c Curve) delta() *big.Int { return new(big.Int).Sub(c.Final, c.Initial) }

// PricePerToken is the marginal price at the given sold amount.
func (c Curve) PricePerToken(sold *big.Int) decimal.Decimal {
	s := sold
	if s.Cmp(c.Target) > 0 {
		s = c.Target
	}
	d := decimal.NewFromBigInt(c.delta(), 0).
		Mul(decimal.NewFromBigInt(s, 0)).
		Div(decimal.NewFromBigInt(c.Target, 0))
	return decimal.NewFromBigInt(c.Initial, 0).Add(d)
}

// BuyCost is the exact core cost of buying tokenAmount starting at sold:
// (2*T*p0*q + d*q*(2s+q)) / (2T), floored.
func (c Curve) BuyCost(tokenAmount, sold *big.Int) *big.Int {
	q := tokenAmount
	t2 := new(big.Int).Lsh(c.Target, 1) // 2T
	lin := new(big.Int).Mul(t2, new(big.Int).Mul(c.Initial, q))
	quad := new(big.Int).Mul(c.delta(), q)
	quad.Mul(quad, new(big.Int).Add(new(big.Int).Lsh(sold, 1), q))
	sum := new(big.Int).Add(lin, quad)
	return sum.Div(sum, t2)
}

// TokensOut inverts BuyCost: the token amount coreIn buys starting at sold,
// capped at the remaining supply below target. Floor semantics keep the
// result monotonically non-decreasing in coreIn.
func (c Curve) TokensOut(coreIn, sold *big.Int) *big.Int {
	remaining := new(big.Int).Sub(c.Target, sold)
	if remaining.Sign() <= 0 || coreIn.Sign() <= 0 {
		return big.NewInt(0)
	}
	d := c.delta()
	var q *big.Int
	if d.Sign() == 0 {
		q = new(big.Int).Div(coreIn, c.Initial)
	} else {
		// q = (sqrt(b^2 + 2*d*T*coreIn) - b) / d,  b = p0*T + d*s
		b := new(big.Int).Mul(c.Initial, c.Target)
		b.Add(b, new(big.Int).Mul(d, sold))
		disc := new(big.Int).Mul(b, b)
		grow := new(big.Int).Mul(d, c.Target)
		grow.Mul(grow, coreIn)
		disc.Add(disc, new(big.Int).Lsh(grow, 1))
		q = new(big.Int).Sqrt(disc)
		q.Sub(q, b)
		q.Div(q, d)
	}
	if q.Cmp(remaining) > 0 {
		q = remaining
	}
	return q
}

// CoreOut is the core returned for selling tokenAmount back at sold:
// the same integral taken downward, (2*T*p0*q + d*q*(2s-q)) / (2T), floored.
func (c Curve) CoreOut(tokenAmount, sold *big.Int) *big.Int {
	q := tokenAmount
	if q.Cmp(sold) > 0 {
		q = sold
	}
	if q.Sign() <= 0 {
		return big.NewInt(0)
	}
	t2 := new(big.Int).Lsh(c.Target, 1)
	lin := new(big.Int).Mul(t2, new(big.Int).Mul(c.Initial, q))
	quad := new(big.Int).Mul(c.delta(), q)
	quad.Mul(quad, new(big.Int).Sub(new(big.Int).Lsh(sold, 1), q))
	sum := new(big.Int).Add(lin, quad)
	return sum.Div(sum, t2)
}

// ProgressPct is sold/target*100, clamped to [0,100].
func (c Curve) ProgressPct(sold *big.Int) float64 {
	if c.Target.Sign() == 0 {
		return 0
	}
	pct := decimal.NewFromBigInt(sold, 0).
		Div(decimal.NewFromBigInt(c.Target, 0)).
		Mul(hundred)
	return clampPct(pct)
}
