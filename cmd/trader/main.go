package main

import (
	"context"
	"flag"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/analyzer"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/chain"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/config"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/metrics"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/mev"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/multicall"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/notify"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/router"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/trading"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/venue"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/venue/amm"
	curvevenue "github.com/Blockchain-Oracle/Core.Fun-sub002/internal/venue/curve"
)

func newLogger() (*zap.Logger, error) {
	cfg := zap.Config{
		Level:    zap.NewAtomicLevelAt(zap.DebugLevel),
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			MessageKey:     "msg",
			CallerKey:      "caller",
			StacktraceKey:  "stack",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.RFC3339TimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}
	return cfg.Build()
}

func gweiToWei(g int64) *big.Int {
	if g <= 0 {
		return nil
	}
	return new(big.Int).Mul(big.NewInt(g), big.NewInt(1_000_000_000))
}

func main() {
	var (
		cfgPath  = flag.String("config", "./config.yaml", "path to config file")
		token    = flag.String("token", "", "token address to trade")
		side     = flag.String("side", "BUY", "BUY or SELL")
		amount   = flag.String("amount", "", "amount in smallest units of the input asset")
		slippage = flag.Float64("slippage", 1.0, "slippage tolerance in percent")
		deadline = flag.Int64("deadline", 0, "unix deadline, 0 = default")
		execute  = flag.Bool("execute", false, "submit the trade (quote-only otherwise)")
		allRts   = flag.Bool("routes", false, "print every candidate route, not just the best")
	)
	flag.Parse()

	logger, err := newLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}
	if *token == "" || !common.IsHexAddress(*token) {
		logger.Fatal("a valid -token address is required")
	}
	if *amount == "" {
		logger.Fatal("-amount is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Warn("signal received, shutting down")
		cancel()
	}()

	if cfg.Metrics.ListenAddr != "" {
		metrics.Serve(ctx, cfg.Metrics.ListenAddr, metrics.Registry(), logger)
	}

	ec, err := chain.Dial(cfg.RPCHTTP)
	if err != nil {
		logger.Fatal("rpc dial failed", zap.Error(err))
	}
	defer ec.Close()

	base := common.HexToAddress(cfg.BaseAsset)
	erc20 := chain.NewERC20(ec)
	maxGas := gweiToWei(cfg.Trade.MaxGasPriceGwei)
	prioFee := big.NewInt(cfg.PriorityFeeWei())
	if prioFee.Sign() == 0 {
		prioFee = nil
	}

	var (
		sale   *chain.CurveSale
		curveV venue.Venue
	)
	if cfg.Curve.Manager != "" {
		sale = chain.NewCurveSale(ec, common.HexToAddress(cfg.Curve.Manager))
		if cfg.Multicall != "" {
			mc, err := multicall.New(ec, common.HexToAddress(cfg.Multicall))
			if err != nil {
				logger.Fatal("multicall init failed", zap.Error(err))
			}
			sale = sale.WithAggregator(mc)
		}
		curveV = curvevenue.New(logger, sale, ec, curvevenue.Config{
			GasLimit:       cfg.Curve.GasLimit,
			MaxGasPriceWei: maxGas,
			MEVEnabled:     cfg.MEV.Enabled,
			PriorityFeeWei: prioFee,
		})
	}

	var (
		dexes []amm.Dex
		pairs []analyzer.PairSource
	)
	for _, v := range cfg.DEX.Venues {
		d := chain.NewAMM(ec, v.Name, common.HexToAddress(v.Router), common.HexToAddress(v.Factory))
		dexes = append(dexes, d)
		pairs = append(pairs, d)
	}
	var dexV venue.Venue
	if len(dexes) > 0 {
		mids := make([]common.Address, 0, len(cfg.DEX.Intermediates))
		for _, a := range cfg.DEX.Intermediates {
			mids = append(mids, common.HexToAddress(a))
		}
		dexV = amm.New(logger, dexes, erc20, ec, amm.Config{
			Base:            base,
			Intermediates:   mids,
			MultiHop:        cfg.DEX.MultiHop,
			DefaultDeadline: cfg.DefaultDeadline(),
			GasLimit:        cfg.Trade.GasLimitSwap,
			MaxGasPriceWei:  maxGas,
			MEVEnabled:      cfg.MEV.Enabled,
			PriorityFeeWei:  prioFee,
		})
	}

	var state *analyzer.Analyzer
	if sale != nil {
		state = analyzer.New(logger, sale, pairs, erc20, base, cfg.CacheTTL())
	} else {
		state = analyzer.New(logger, nil, pairs, erc20, base, cfg.CacheTTL())
	}

	var scanner mev.Scanner
	if cfg.MEV.MempoolScan {
		if rc, err := rpc.DialContext(ctx, cfg.RPCHTTP); err == nil {
			scanner = mev.NewTxPoolScanner(logger, rc)
		} else {
			logger.Warn("mempool scanner unavailable", zap.Error(err))
		}
	}
	protect := mev.New(logger, scanner, mev.Config{
		Enabled:            cfg.MEV.Enabled,
		PriorityFeeWei:     prioFee,
		FrontrunProtection: cfg.MEV.FrontrunProtection,
		MaxJitter:          time.Duration(cfg.MEV.MaxJitterMs) * time.Millisecond,
	})

	sinks := notify.Multi{notify.NewLogNotifier(logger)}
	if cfg.Redis.Addr != "" {
		rn := notify.NewRedisNotifier(logger, notify.RedisOptions{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			Stream:   cfg.Redis.Stream,
		})
		defer rn.Close()
		sinks = append(sinks, rn)
	}

	var signer *chain.Signer
	if *execute {
		signer, err = chain.NewSignerFromHex(os.Getenv("PRIVATE_KEY"))
		if err != nil {
			logger.Fatal("PRIVATE_KEY is required with -execute", zap.Error(err))
		}
	}

	rt := router.New(logger, router.Config{
		MaxSlippagePct: cfg.Trade.MaxSlippagePct,
		MaxRetries:     cfg.Retry.MaxRetries,
		RetryDelay:     cfg.RetryDelay(),
		Exponential:    cfg.Retry.Exponential,
	}, state, curveV, dexV, protect, ec, erc20, signer, sinks)

	params := &trading.TradeParams{
		Token:       common.HexToAddress(*token),
		Side:        trading.Side(*side),
		Amount:      *amount,
		SlippagePct: *slippage,
		Deadline:    *deadline,
	}

	switch {
	case *execute:
		res, err := rt.ExecuteTrade(ctx, params)
		if err != nil {
			logger.Fatal("trade rejected", zap.Error(err))
		}
		if !res.Success {
			logger.Fatal("trade failed", zap.String("tx", res.TxHash), zap.Error(res.Error))
		}
		logger.Info("trade confirmed",
			zap.String("tx", res.TxHash),
			zap.String("amount_in", res.AmountIn.String()),
			zap.String("amount_out", res.AmountOut.String()),
			zap.String("exec_price", res.ExecutionPrice.String()),
			zap.Uint64("gas_used", res.GasUsed))
	case *allRts:
		routes, err := rt.GetAllRoutes(ctx, params)
		if err != nil {
			logger.Fatal("no routes", zap.Error(err))
		}
		for i, r := range routes {
			logger.Info("route",
				zap.Int("rank", i),
				zap.String("venue", r.Venue),
				zap.String("kind", string(r.Kind)),
				zap.String("amount_out", r.AmountOut.String()),
				zap.String("min_out", r.MinimumOut.String()),
				zap.Float64("impact_pct", r.PriceImpactPct),
				zap.Uint64("gas", r.EstimatedGas))
		}
	default:
		r, err := rt.GetQuote(ctx, params)
		if err != nil {
			logger.Fatal("quote failed", zap.Error(err))
		}
		logger.Info("best route",
			zap.String("venue", r.Venue),
			zap.String("kind", string(r.Kind)),
			zap.String("amount_in", r.AmountIn.String()),
			zap.String("amount_out", r.AmountOut.String()),
			zap.String("min_out", r.MinimumOut.String()),
			zap.String("exec_price", r.ExecutionPrice.String()),
			zap.Float64("impact_pct", r.PriceImpactPct),
			zap.Bool("will_launch", r.WillTriggerLaunch))
	}
}
