package curve

import (
	"context"
	"errors"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/chain"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/pricing"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/trading"
)

var testToken = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func decimal125() decimal.Decimal { return decimal.NewFromInt(125) }

// fakeSale backs the contract interface with the closed-form curve math.
type fakeSale struct {
	rec     chain.SaleRecord
	cc      chain.CurveConstants
	saleErr error
	fill    *big.Int // non-nil = fill event present in receipt logs
}

func (f *fakeSale) Address() common.Address { return common.HexToAddress("0xbeef") }

func (f *fakeSale) SaleOf(context.Context, common.Address) (chain.SaleRecord, error) {
	return f.rec, f.saleErr
}

func (f *fakeSale) Constants(context.Context) (chain.CurveConstants, error) {
	return f.cc, nil
}

func (f *fakeSale) curve() pricing.Curve {
	return pricing.Curve{Target: f.cc.TargetSupply, Initial: f.cc.InitialPrice, Final: f.cc.FinalPrice}
}

func (f *fakeSale) TokensOut(_ context.Context, _ common.Address, coreIn *big.Int) (*big.Int, error) {
	return f.curve().TokensOut(coreIn, f.rec.Sold), nil
}

func (f *fakeSale) CoreOut(_ context.Context, _ common.Address, tokenAmount *big.Int) (*big.Int, error) {
	return f.curve().CoreOut(tokenAmount, f.rec.Sold), nil
}

func (f *fakeSale) PackBuy(common.Address, *big.Int) ([]byte, error) { return []byte{1}, nil }

func (f *fakeSale) PackSell(common.Address, *big.Int, *big.Int) ([]byte, error) {
	return []byte{2}, nil
}

func (f *fakeSale) ParsePurchase([]*gethtypes.Log) (*big.Int, bool) { return f.fill, f.fill != nil }
func (f *fakeSale) ParseSale([]*gethtypes.Log) (*big.Int, bool)     { return f.fill, f.fill != nil }

func newFakeSale() *fakeSale {
	return &fakeSale{
		rec: chain.SaleRecord{Sold: big.NewInt(0), Raised: big.NewInt(0), Open: true},
		cc: chain.CurveConstants{
			TargetSupply: big.NewInt(1_000_000),
			InitialPrice: big.NewInt(100),
			FinalPrice:   big.NewInt(200),
		},
	}
}

func newTrader(sale *fakeSale) *Trader {
	return New(zap.NewNop(), sale, nil, Config{GasLimit: 350_000})
}

func buyParams(amount string) *trading.TradeParams {
	return &trading.TradeParams{Token: testToken, Side: trading.Buy, Amount: amount, SlippagePct: 1}
}

func TestGetQuote_BuyNoFee(t *testing.T) {
	tr := newTrader(newFakeSale())

	q, err := tr.GetQuote(context.Background(), buyParams("62500000"))
	require.NoError(t, err)

	assert.Equal(t, int64(500_000), q.AmountOut.Int64())
	assert.Equal(t, int64(0), q.Fee.Int64())
	assert.False(t, q.WillTriggerLaunch)
}

func TestGetQuote_PlatformFeeOffInput(t *testing.T) {
	sale := newFakeSale()
	sale.cc.PlatformFeeBps = 250 // 2.5%
	tr := newTrader(sale)

	q, err := tr.GetQuote(context.Background(), buyParams("10000"))
	require.NoError(t, err)

	// fee is charged in the input unit before conversion
	assert.Equal(t, int64(250), q.Fee.Int64())
	net := sale.curve().TokensOut(big.NewInt(9_750), big.NewInt(0))
	assert.Equal(t, net.Int64(), q.AmountOut.Int64())
}

func TestGetQuote_WillTriggerLaunch(t *testing.T) {
	sale := newFakeSale()
	sale.rec.Sold = big.NewInt(999_999)
	tr := newTrader(sale)

	q, err := tr.GetQuote(context.Background(), buyParams("1000"))
	require.NoError(t, err)
	assert.True(t, q.WillTriggerLaunch)
}

func TestGetQuote_ClosedSale(t *testing.T) {
	sale := newFakeSale()
	sale.rec.Open = false
	tr := newTrader(sale)

	_, err := tr.GetQuote(context.Background(), buyParams("1000"))
	assert.Equal(t, trading.ErrTokenNotTradeable, trading.CodeOf(err))
}

func TestGetQuote_SaleReadFailure(t *testing.T) {
	sale := newFakeSale()
	sale.saleErr = errors.New("rpc down")
	tr := newTrader(sale)

	_, err := tr.GetQuote(context.Background(), buyParams("1000"))
	assert.Equal(t, trading.ErrRouteNotFound, trading.CodeOf(err))
}

func TestGetQuote_DustBuy(t *testing.T) {
	tr := newTrader(newFakeSale())

	// below the marginal price, zero tokens out
	_, err := tr.GetQuote(context.Background(), buyParams("99"))
	assert.Equal(t, trading.ErrInsufficientLiquidity, trading.CodeOf(err))
}

func TestGetQuote_BadAmount(t *testing.T) {
	tr := newTrader(newFakeSale())

	for _, amt := range []string{"", "0", "-5", "1.5", "abc"} {
		_, err := tr.GetQuote(context.Background(), buyParams(amt))
		assert.Error(t, err, "amount %q", amt)
	}
}

func TestRoutes_BuyShape(t *testing.T) {
	tr := newTrader(newFakeSale())

	routes, err := tr.Routes(context.Background(), buyParams("62500000"), nil)
	require.NoError(t, err)
	require.Len(t, routes, 1)

	r := routes[0]
	assert.Equal(t, trading.RouteBondingCurve, r.Kind)
	assert.Equal(t, "bonding-curve", r.Venue)
	assert.Equal(t, int64(62_500_000), r.AmountIn.Int64())
	assert.Equal(t, int64(500_000), r.AmountOut.Int64())
	// 62.5M core for 500k tokens = 125 core per token
	assert.True(t, r.ExecutionPrice.Equal(decimal125()))
	// 1% slippage off the quoted output
	assert.Equal(t, int64(495_000), r.MinimumOut.Int64())
	assert.Equal(t, uint64(executeGasEstimate), r.EstimatedGas)
}

func TestRoutes_SellUsesCoreOut(t *testing.T) {
	sale := newFakeSale()
	sale.rec.Sold = big.NewInt(500_000)
	tr := newTrader(sale)

	p := &trading.TradeParams{Token: testToken, Side: trading.Sell, Amount: "500000", SlippagePct: 1}
	routes, err := tr.Routes(context.Background(), p, nil)
	require.NoError(t, err)
	require.Len(t, routes, 1)

	r := routes[0]
	assert.Equal(t, int64(62_500_000), r.AmountOut.Int64())
	// SELL execution price is proceeds per token
	assert.True(t, r.ExecutionPrice.Equal(decimal125()))
}

func TestRoutes_ExplicitMinOutWins(t *testing.T) {
	tr := newTrader(newFakeSale())

	p := buyParams("62500000")
	p.MinOut = big.NewInt(123)
	routes, err := tr.Routes(context.Background(), p, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(123), routes[0].MinimumOut.Int64())
}

// fakeBackend records submitted transactions and serves receipts from a
// queue, falling back to a successful default.
type fakeBackend struct {
	sent     []*gethtypes.Transaction
	receipts []*gethtypes.Receipt
	sendErr  error
}

func (f *fakeBackend) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return nil, errors.New("not wired")
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) { return big.NewInt(1116), nil }

func (f *fakeBackend) HeaderByNumber(context.Context, *big.Int) (*gethtypes.Header, error) {
	return &gethtypes.Header{BaseFee: big.NewInt(1_000_000_000)}, nil
}

func (f *fakeBackend) SuggestGasTipCap(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *gethtypes.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*gethtypes.Receipt, error) {
	if len(f.receipts) > 0 {
		r := f.receipts[0]
		f.receipts = f.receipts[1:]
		return r, nil
	}
	return &gethtypes.Receipt{
		Status:            gethtypes.ReceiptStatusSuccessful,
		GasUsed:           90_000,
		EffectiveGasPrice: big.NewInt(2_000_000_000),
	}, nil
}

func (f *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return big.NewInt(0), nil
}

func testSigner(t *testing.T) *chain.Signer {
	t.Helper()
	s, err := chain.NewSignerFromHex("0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d")
	require.NoError(t, err)
	return s
}

func execTrader(sale *fakeSale, backend *fakeBackend) *Trader {
	return New(zap.NewNop(), sale, backend, Config{GasLimit: 350_000})
}

func quotedRoute(t *testing.T, tr *Trader, p *trading.TradeParams) *trading.Route {
	t.Helper()
	routes, err := tr.Routes(context.Background(), p, nil)
	require.NoError(t, err)
	return routes[0]
}

func TestExecute_BuySendsValueAndReportsFill(t *testing.T) {
	sale := newFakeSale()
	sale.fill = big.NewInt(499_000)
	backend := &fakeBackend{}
	tr := execTrader(sale, backend)

	p := buyParams("62500000")
	r := quotedRoute(t, tr, p)

	res, err := tr.Execute(context.Background(), p, r, testSigner(t))
	require.NoError(t, err)

	require.True(t, res.Success)
	assert.NotEmpty(t, res.TxHash)
	// fill event wins over the quoted amount
	assert.Equal(t, int64(499_000), res.AmountOut.Int64())
	require.Len(t, backend.sent, 1)
	assert.Equal(t, int64(62_500_000), backend.sent[0].Value().Int64())
	assert.Equal(t, []byte{1}, backend.sent[0].Data())
}

func TestExecute_MissingFillFallsBackToQuote(t *testing.T) {
	backend := &fakeBackend{}
	tr := execTrader(newFakeSale(), backend)

	p := buyParams("62500000")
	r := quotedRoute(t, tr, p)

	res, err := tr.Execute(context.Background(), p, r, testSigner(t))
	require.NoError(t, err)

	require.True(t, res.Success)
	assert.Equal(t, r.AmountOut.Int64(), res.AmountOut.Int64())
	assert.Equal(t, uint64(90_000), res.GasUsed)
	// 90k gas at the effective 2 gwei
	assert.Equal(t, int64(180_000_000_000_000), res.GasCost.Int64())
}

func TestExecute_SellSendsNoValue(t *testing.T) {
	sale := newFakeSale()
	sale.rec.Sold = big.NewInt(500_000)
	backend := &fakeBackend{}
	tr := execTrader(sale, backend)

	p := &trading.TradeParams{Token: testToken, Side: trading.Sell, Amount: "500000", SlippagePct: 1}
	r := quotedRoute(t, tr, p)

	res, err := tr.Execute(context.Background(), p, r, testSigner(t))
	require.NoError(t, err)

	require.True(t, res.Success)
	require.Len(t, backend.sent, 1)
	assert.Equal(t, 0, backend.sent[0].Value().Sign())
	assert.Equal(t, []byte{2}, backend.sent[0].Data())
}

func TestExecute_RevertFoldsIntoResult(t *testing.T) {
	backend := &fakeBackend{
		receipts: []*gethtypes.Receipt{{Status: gethtypes.ReceiptStatusFailed, GasUsed: 50_000}},
	}
	tr := execTrader(newFakeSale(), backend)

	p := buyParams("62500000")
	r := quotedRoute(t, tr, p)

	res, err := tr.Execute(context.Background(), p, r, testSigner(t))
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.NotEmpty(t, res.TxHash)
	require.NotNil(t, res.Error)
	assert.Equal(t, trading.ErrTransactionFailed, res.Error.Code)
	assert.Contains(t, res.Error.Error(), "execution reverted")
}

func TestExecute_SendErrorFoldsIntoResult(t *testing.T) {
	backend := &fakeBackend{sendErr: errors.New("connection refused")}
	tr := execTrader(newFakeSale(), backend)

	p := buyParams("62500000")
	r := quotedRoute(t, tr, p)

	res, err := tr.Execute(context.Background(), p, r, testSigner(t))
	require.NoError(t, err)

	assert.False(t, res.Success)
	require.NotNil(t, res.Error)
	assert.Equal(t, trading.ErrTransactionFailed, res.Error.Code)
	assert.Empty(t, backend.sent)
}

func TestExecute_ClosedSaleRaisesBeforeSubmission(t *testing.T) {
	sale := newFakeSale()
	backend := &fakeBackend{}
	tr := execTrader(sale, backend)

	p := buyParams("62500000")
	r := quotedRoute(t, tr, p)

	sale.rec.Open = false
	_, err := tr.Execute(context.Background(), p, r, testSigner(t))
	assert.Equal(t, trading.ErrTokenNotTradeable, trading.CodeOf(err))
	assert.Empty(t, backend.sent)
}

func TestExecute_GraduatedTokenRaises(t *testing.T) {
	sale := newFakeSale()
	backend := &fakeBackend{}
	tr := execTrader(sale, backend)

	p := buyParams("62500000")
	r := quotedRoute(t, tr, p)

	sale.rec.Launched = true
	_, err := tr.Execute(context.Background(), p, r, testSigner(t))
	assert.Equal(t, trading.ErrTokenNotTradeable, trading.CodeOf(err))
	assert.Empty(t, backend.sent)
}

func TestExecute_GasCeilingRaises(t *testing.T) {
	sale := newFakeSale()
	backend := &fakeBackend{}
	tr := New(zap.NewNop(), sale, backend, Config{GasLimit: 350_000, MaxGasPriceWei: big.NewInt(1)})

	p := buyParams("62500000")
	r := quotedRoute(t, tr, p)

	_, err := tr.Execute(context.Background(), p, r, testSigner(t))
	assert.Equal(t, trading.ErrGasPriceTooHigh, trading.CodeOf(err))
	assert.Empty(t, backend.sent)
}
