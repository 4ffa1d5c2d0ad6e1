package pricing

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCurve() Curve {
	return Curve{
		Target:  big.NewInt(1_000_000),
		Initial: big.NewInt(100),
		Final:   big.NewInt(200),
	}
}

func TestPricePerToken_Endpoints(t *testing.T) {
	c := testCurve()

	assert.True(t, c.PricePerToken(big.NewInt(0)).Equal(decimalInt(100)))
	assert.True(t, c.PricePerToken(big.NewInt(500_000)).Equal(decimalInt(150)))
	assert.True(t, c.PricePerToken(big.NewInt(1_000_000)).Equal(decimalInt(200)))
	// past target the price stays pinned at final
	assert.True(t, c.PricePerToken(big.NewInt(2_000_000)).Equal(decimalInt(200)))
}

func TestTokensOut_HalfSupplyScenario(t *testing.T) {
	c := testCurve()

	// 62.5M core at sold=0 buys exactly half the target supply
	out := c.TokensOut(big.NewInt(62_500_000), big.NewInt(0))
	assert.Equal(t, int64(500_000), out.Int64())
}

func TestBuyCost_InvertsTokensOut(t *testing.T) {
	c := testCurve()

	cost := c.BuyCost(big.NewInt(500_000), big.NewInt(0))
	assert.Equal(t, int64(62_500_000), cost.Int64())

	// cost from the midpoint is dearer than from zero
	costMid := c.BuyCost(big.NewInt(100_000), big.NewInt(500_000))
	costZero := c.BuyCost(big.NewInt(100_000), big.NewInt(0))
	assert.Equal(t, 1, costMid.Cmp(costZero))
}

func TestCoreOut_RoundTrip(t *testing.T) {
	c := testCurve()

	coreIn := big.NewInt(62_500_000)
	bought := c.TokensOut(coreIn, big.NewInt(0))
	back := c.CoreOut(bought, bought)

	// selling everything back at the new sold point returns at most what
	// went in; here the conversion is exact
	require.True(t, back.Cmp(coreIn) <= 0)
	assert.Equal(t, coreIn.Int64(), back.Int64())
}

func TestTokensOut_MonotoneInCoreIn(t *testing.T) {
	c := testCurve()
	sold := big.NewInt(250_000)

	prev := big.NewInt(-1)
	for _, in := range []int64{0, 1, 99, 100, 101, 1_000, 50_000, 10_000_000, 200_000_000} {
		out := c.TokensOut(big.NewInt(in), sold)
		require.True(t, out.Cmp(prev) >= 0, "output regressed at coreIn=%d", in)
		prev = out
	}
}

func TestTokensOut_CappedAtRemaining(t *testing.T) {
	c := testCurve()

	out := c.TokensOut(big.NewInt(1_000_000_000_000), big.NewInt(900_000))
	assert.Equal(t, int64(100_000), out.Int64())

	// sold-out curve sells nothing
	out = c.TokensOut(big.NewInt(1_000_000), big.NewInt(1_000_000))
	assert.Equal(t, int64(0), out.Int64())
}

func TestTokensOut_FlatCurve(t *testing.T) {
	flat := Curve{Target: big.NewInt(1_000_000), Initial: big.NewInt(50), Final: big.NewInt(50)}

	out := flat.TokensOut(big.NewInt(5_000), big.NewInt(0))
	assert.Equal(t, int64(100), out.Int64())
}

func TestCoreOut_ClampsToSold(t *testing.T) {
	c := testCurve()

	// cannot sell more than the curve has sold
	full := c.CoreOut(big.NewInt(300_000), big.NewInt(200_000))
	clamped := c.CoreOut(big.NewInt(200_000), big.NewInt(200_000))
	assert.Equal(t, clamped.Int64(), full.Int64())

	assert.Equal(t, int64(0), c.CoreOut(big.NewInt(0), big.NewInt(100)).Int64())
}

func TestProgressPct(t *testing.T) {
	c := testCurve()

	assert.Equal(t, 0.0, c.ProgressPct(big.NewInt(0)))
	assert.Equal(t, 50.0, c.ProgressPct(big.NewInt(500_000)))
	assert.Equal(t, 100.0, c.ProgressPct(big.NewInt(1_000_000)))
	assert.Equal(t, 100.0, c.ProgressPct(big.NewInt(5_000_000)))
}
