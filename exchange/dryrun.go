package exchange

import (
	"context"

	"github.com/shopspring/decimal"
)

// DryRun trades on paper against live market data: prices and symbol
// rules come from a real feed, fills and balances from the simulator.
type DryRun struct {
	*Sim
	feed Port
}

// NewDryRun wraps a live port for market data and seeds the simulated
// account with quoteBalance.
func NewDryRun(feed Port, base, quote string, quoteBalance decimal.Decimal) *DryRun {
	return &DryRun{
		Sim:  NewSim(base, quote, quoteBalance, SymbolRules{}),
		feed: feed,
	}
}

// GetPrice reads the live price and latches it into the simulator so
// paper fills execute at the real market level.
func (d *DryRun) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	p, err := d.feed.GetPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	d.Sim.SetPrice(p)
	return p, nil
}

// Rules come from the live venue so paper trading honors the same
// lot and notional constraints as a real run.
func (d *DryRun) Rules(ctx context.Context, symbol string) (SymbolRules, error) {
	return d.feed.Rules(ctx, symbol)
}
