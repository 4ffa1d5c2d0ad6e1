// Package mev scores transaction-ordering threats with fixed heuristics and
// applies the best-effort submission mitigations. Detection is advisory: the
// router reports threats and proceeds.
package mev

import (
	"context"
	"math/big"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/trading"
)

const (
	sandwichSlippagePct = 5.0 // strictly above
	sandwichImpactPct   = 3.0 // strictly above
	crowdedMempoolTxs   = 5   // strictly above
	crowdedGasRatio     = 1.5 // strictly above
)

type Config struct {
	Enabled            bool
	PriorityFeeWei     *big.Int
	FrontrunProtection bool
	MaxJitter          time.Duration
}

type Protection struct {
	log     *zap.Logger
	scanner Scanner // nil = no mempool view configured
	cfg     Config

	// seams for deterministic tests
	sleep  func(time.Duration)
	jitter func(time.Duration) time.Duration
}

func New(log *zap.Logger, scanner Scanner, cfg Config) *Protection {
	if cfg.MaxJitter <= 0 {
		cfg.MaxJitter = time.Second
	}
	return &Protection{
		log:     log,
		scanner: scanner,
		cfg:     cfg,
		sleep:   time.Sleep,
		jitter:  func(max time.Duration) time.Duration { return time.Duration(rand.Int63n(int64(max))) },
	}
}

// DetectThreat applies the rule table and returns the single highest-severity
// threat, or nil. Ties break on rule order. All comparisons are strict.
func (p *Protection) DetectThreat(ctx context.Context, params *trading.TradeParams, route *trading.Route) *trading.MEVThreat {
	if !p.cfg.Enabled {
		return nil
	}

	var candidates []*trading.MEVThreat

	if params.SlippagePct > sandwichSlippagePct || (route != nil && route.PriceImpactPct > sandwichImpactPct) {
		candidates = append(candidates, &trading.MEVThreat{
			Type:        trading.ThreatSandwich,
			Severity:    trading.SeverityHigh,
			Description: "wide slippage tolerance or high price impact leaves room for a sandwich",
			Mitigation:  "tighten slippage or split the trade",
		})
	}

	if params.Deadline == 0 || params.PriorityFee == nil {
		candidates = append(candidates, &trading.MEVThreat{
			Type:        trading.ThreatFrontrun,
			Severity:    trading.SeverityMedium,
			Description: "no deadline or explicit priority fee set",
			Mitigation:  "set a deadline and priority fee",
		})
	}

	if p.scanner != nil {
		st := p.scanner.Scan(ctx, params.Token)
		if !st.Scanned {
			// indistinguishable from a quiet pool; no signal, not "safe"
			p.log.Debug("mempool scan unavailable, skipping signal", zap.String("token", params.Token.Hex()))
		} else if st.TokenTxs > crowdedMempoolTxs || st.GasRatio > crowdedGasRatio {
			candidates = append(candidates, &trading.MEVThreat{
				Type:        trading.ThreatSandwich,
				Severity:    trading.SeverityHigh,
				Description: "crowded mempool activity on the same token",
				Mitigation:  "use private submission or delay the trade",
			})
		} else if st.TokenTxs >= 1 {
			candidates = append(candidates, &trading.MEVThreat{
				Type:        trading.ThreatFrontrun,
				Severity:    trading.SeverityMedium,
				Description: "pending transactions already target this token",
				Mitigation:  "raise the priority fee",
			})
		}
	}

	var best *trading.MEVThreat
	for _, c := range candidates {
		if best == nil || c.Severity.Rank() > best.Severity.Rank() {
			best = c
		}
	}
	return best
}

// ProtectTransaction applies the active mitigations before broadcast: the
// configured max/priority fee, and a random jitter when front-run protection
// is on. The private-relay flag is reserved; it falls back to normal
// submission.
func (p *Protection) ProtectTransaction(ctx context.Context, params *trading.TradeParams) *big.Int {
	if !p.cfg.Enabled {
		return nil
	}
	if params.Private {
		p.log.Warn("private relay submission not wired, falling back to public broadcast",
			zap.String("token", params.Token.Hex()))
	}
	if p.cfg.FrontrunProtection {
		d := p.jitter(p.cfg.MaxJitter)
		select {
		case <-ctx.Done():
		default:
			p.sleep(d)
		}
	}
	return p.cfg.PriorityFeeWei
}
