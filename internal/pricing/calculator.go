// Package pricing holds the stateless arithmetic shared by the traders and
// the router: price impact, slippage bounds and gas-price tiers. All monetary
// math runs on arbitrary-precision decimals and truncates toward zero only at
// the final output.
package pricing

import (
	"math/big"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CurveImpactPct approximates bonding-curve impact: new-sold is estimated as
// amount/currentPrice and reported as a % of the target supply. This is an
// approximation, not the curve integral.
func CurveImpactPct(amount *big.Int, currentPrice decimal.Decimal, target *big.Int) float64 {
	if target == nil || target.Sign() == 0 || currentPrice.IsZero() {
		return 100
	}
	approxTokens := decimal.NewFromBigInt(amount, 0).Div(currentPrice)
	pct := approxTokens.Div(decimal.NewFromBigInt(target, 0)).Mul(hundred)
	return clampPct(pct)
}

// DexImpactPct reports tradeSize/liquidity*100, and 100 when the pool is dry.
func DexImpactPct(tradeSize, liquidity *big.Int) float64 {
	if liquidity == nil || liquidity.Sign() == 0 {
		return 100
	}
	pct := decimal.NewFromBigInt(tradeSize, 0).
		Div(decimal.NewFromBigInt(liquidity, 0)).
		Mul(hundred)
	return clampPct(pct)
}

// ExecutionImpactPct is the deviation between the spot and the realized
// execution price: |spot-exec|/spot*100, clamped to [0,100].
func ExecutionImpactPct(spot, exec decimal.Decimal) float64 {
	if spot.IsZero() {
		return 100
	}
	pct := spot.Sub(exec).Abs().Div(spot).Mul(hundred)
	return clampPct(pct)
}

// MinOut returns expected*(1-slippage/100), truncated toward zero and floored
// at zero. A negative bound would not survive uint256 packing.
func MinOut(expected *big.Int, slippagePct float64) *big.Int {
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(slippagePct).Div(hundred))
	if factor.IsNegative() {
		return big.NewInt(0)
	}
	out := decimal.NewFromBigInt(expected, 0).Mul(factor)
	if out.IsNegative() {
		return big.NewInt(0)
	}
	return out.BigInt()
}

// MaxIn returns expected*(1+slippage/100), truncated toward zero.
func MaxIn(expected *big.Int, slippagePct float64) *big.Int {
	factor := decimal.NewFromInt(1).Add(decimal.NewFromFloat(slippagePct).Div(hundred))
	out := decimal.NewFromBigInt(expected, 0).Mul(factor)
	return out.BigInt()
}

// Price returns core-per-token: coreAmount/tokenAmount. Zero token amount
// yields zero rather than a division error.
func Price(coreAmount, tokenAmount *big.Int) decimal.Decimal {
	if tokenAmount == nil || tokenAmount.Sign() == 0 {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(coreAmount, 0).Div(decimal.NewFromBigInt(tokenAmount, 0))
}

// GasTiers derives the slow/normal/fast gas prices from the current base fee:
// 90%, 100% and 120%.
func GasTiers(baseFee *big.Int) (slow, normal, fast *big.Int) {
	base := decimal.NewFromBigInt(baseFee, 0)
	slow = base.Mul(decimal.NewFromFloat(0.9)).BigInt()
	normal = new(big.Int).Set(baseFee)
	fast = base.Mul(decimal.NewFromFloat(1.2)).BigInt()
	return slow, normal, fast
}

// SupplySharePct reports a token amount as a % of the curve target supply,
// clamped to [0,100].
func SupplySharePct(amount, target *big.Int) float64 {
	return DexImpactPct(amount, target)
}

// FeeAmount is amount*bps/10000, floored, in the unit of amount.
func FeeAmount(amount *big.Int, bps int64) *big.Int {
	fee := new(big.Int).Mul(amount, big.NewInt(bps))
	return fee.Div(fee, big.NewInt(10_000))
}

func clampPct(pct decimal.Decimal) float64 {
	if pct.IsNegative() {
		return 0
	}
	if pct.GreaterThan(hundred) {
		return 100
	}
	f, _ := pct.Float64()
	return f
}
