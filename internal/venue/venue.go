// Package venue defines the closed set of trading venues the router
// dispatches across: the optional bonding-curve sale plus the configured
// AMMs. Dispatch is polymorphic over this interface, never a string switch.
package venue

import (
	"context"

	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/chain"
	"github.com/Blockchain-Oracle/Core.Fun-sub002/internal/trading"
)

type Venue interface {
	Name() string

	// Routes quotes candidate routes for the trade. Per-venue quote failures
	// are best-effort skips for multi-pool venues; a single-venue
	// implementation returns its error outright.
	Routes(ctx context.Context, p *trading.TradeParams, st *trading.TokenState) ([]*trading.Route, error)

	// Execute submits the trade along a previously quoted route. Precondition
	// violations return an error before any chain write; post-submission
	// failures come back inside TradeResult with Success=false.
	Execute(ctx context.Context, p *trading.TradeParams, r *trading.Route, signer *chain.Signer) (*trading.TradeResult, error)
}
