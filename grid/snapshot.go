package grid

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is a point-in-time copy of an instance, safe to hand to
// display and persistence code without holding the instance lock.
type Snapshot struct {
	ID           string
	Label        string
	Symbol       string
	Status       Status
	LowerBound   decimal.Decimal
	UpperBound   decimal.Decimal
	StepCount    int
	CurrentLevel int
	Positions    []PositionEntry
	RealizedPnL  decimal.Decimal
	BuyCount     int
	SellCount    int
	LastPrice    decimal.Decimal
	CreatedAt    time.Time
	Deadline     time.Time
}

// UnrealizedPnL values the open positions at the snapshot's last price.
func (s Snapshot) UnrealizedPnL() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.Positions {
		total = total.Add(p.Quantity.Mul(s.LastPrice.Sub(p.EntryPrice)))
	}
	return total
}

// Snapshot copies the instance state under its lock.
func (g *Instance) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	b := g.mapper.Bounds()
	return Snapshot{
		ID:           g.ID,
		Label:        g.Label,
		Symbol:       g.cfg.Symbol,
		Status:       g.status,
		LowerBound:   b.Lower,
		UpperBound:   b.Upper,
		StepCount:    b.StepCount,
		CurrentLevel: int(g.mapper.Prev()),
		Positions:    g.ledger.Entries(),
		RealizedPnL:  g.realizedPnL,
		BuyCount:     g.buyCount,
		SellCount:    g.sellCount,
		LastPrice:    g.lastPrice,
		CreatedAt:    g.createdAt,
		Deadline:     g.deadline,
	}
}
