package trading

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

type Phase string

const (
	PhaseBondingCurve Phase = "BONDING_CURVE"
	PhaseDEX          Phase = "DEX"
)

type RouteKind string

const (
	RouteBondingCurve RouteKind = "BONDING_CURVE"
	RouteDexV2        RouteKind = "DEX_V2"
	RouteDexV3        RouteKind = "DEX_V3"
	RouteMultiHop     RouteKind = "MULTI_HOP"
)

// TradeParams describes a single requested trade. Amount is an integer string
// in the smallest unit of the input asset (core wei for BUY, token units for
// SELL); floats never enter the monetary path.
type TradeParams struct {
	Token       common.Address
	Side        Side
	Amount      string
	SlippagePct float64

	// Optional overrides.
	Deadline    int64    // unix seconds, 0 = default
	MinOut      *big.Int // nil = derive from slippage
	MaxIn       *big.Int
	PriorityFee *big.Int // wei, nil = config default
	Private     bool     // reserved: private relay submission
}

// TokenState is the analyzer's view of a token. Cached per lowercase address.
type TokenState struct {
	Address       common.Address
	Symbol        string // empty when the token does not expose one
	Decimals      int
	Phase         Phase
	PlatformToken bool
	Launched      bool
	Open          bool

	Sold        *big.Int
	Raised      *big.Int
	TotalSupply *big.Int
	Liquidity   *big.Int // base-asset units across found pools

	CurrentPrice decimal.Decimal // core units per token unit
	MarketCap    decimal.Decimal
	ProgressPct  float64
	CanSell      bool

	FetchedAt time.Time
}

// Route is one concrete quoted execution path.
type Route struct {
	Kind  RouteKind
	Venue string

	Path  []common.Address
	Pools []common.Address

	AmountIn       *big.Int
	AmountOut      *big.Int
	MinimumOut     *big.Int
	Fee            *big.Int // same unit as AmountIn
	EstimatedGas   uint64
	PriceImpactPct float64
	ExecutionPrice decimal.Decimal // core units per token unit

	WillTriggerLaunch bool
}

// TradeResult is what execution returns. Post-submission failures are folded
// into Success=false; callers branch on the flag, not on panics.
type TradeResult struct {
	Success        bool
	TxHash         string
	AmountIn       *big.Int
	AmountOut      *big.Int
	ExecutionPrice decimal.Decimal
	PriceImpactPct float64
	Route          *Route
	GasUsed        uint64
	GasCost        *big.Int
	Timestamp      time.Time
	Error          *Error
}

type ThreatType string

const (
	ThreatSandwich ThreatType = "sandwich"
	ThreatFrontrun ThreatType = "frontrun"
	ThreatBackrun  ThreatType = "backrun"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// MEVThreat is advisory only: the router reports it and proceeds.
type MEVThreat struct {
	Type        ThreatType
	Severity    Severity
	Description string
	Mitigation  string
}
