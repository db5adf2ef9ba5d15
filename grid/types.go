// Package grid implements the discrete price-level grid state machine:
// level mapping, the crossing transition rules, the per-level position
// ledger and capital sizing. It performs no I/O of its own; order
// execution goes through the exchange port owned by the instance.
package grid

import (
	"time"

	"github.com/shopspring/decimal"
)

// Level is a discrete index in [0, StepCount]. Level 0 and StepCount
// are the boundary ("kill") levels.
type Level int

// Side of an intent.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Reason explains why an intent was emitted.
type Reason string

const (
	ReasonStart     Reason = "start"      // opening unit at the start level
	ReasonUpCross   Reason = "up_cross"   // rolling the position up one level
	ReasonDownCross Reason = "down_cross" // accumulating on the way down
	ReasonRollDown  Reason = "roll_down"  // selling the previous level on a down-cross (rolldown policy)
	ReasonBoundary  Reason = "boundary"   // flattening because a kill level was hit
	ReasonStop      Reason = "stop"       // flattening because of an external stop/timeout
)

// Intent is an instruction to the execution port. It is not a trade:
// only the externally reported fill quantity mutates the ledger.
// For buys the quote amount is resolved by the sizer at execution time;
// for sells the base quantity is re-read from the ledger at execution
// time, never carried from plan time.
type Intent struct {
	Side   Side
	Level  Level
	Reason Reason
}

// Bounds is the price range of one grid, split into StepCount equal bands.
type Bounds struct {
	Lower     decimal.Decimal
	Upper     decimal.Decimal
	StepCount int
}

// BoundsAround derives symmetric bounds from a center price and a
// percentage range: lower = center*(1-pct), upper = center*(1+pct).
func BoundsAround(center, pct decimal.Decimal, stepCount int) Bounds {
	one := decimal.NewFromInt(1)
	return Bounds{
		Lower:     center.Mul(one.Sub(pct)),
		Upper:     center.Mul(one.Add(pct)),
		StepCount: stepCount,
	}
}

// Step returns the price width of one band.
func (b Bounds) Step() decimal.Decimal {
	return b.Upper.Sub(b.Lower).Div(decimal.NewFromInt(int64(b.StepCount)))
}

// LevelPrice returns the theoretical price of a level.
func (b Bounds) LevelPrice(lv Level) decimal.Decimal {
	return b.Lower.Add(b.Step().Mul(decimal.NewFromInt(int64(lv))))
}

// PositionEntry is one held unit at a level. At most one entry per
// level exists at any time.
type PositionEntry struct {
	Level      Level
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
	OpenedAt   time.Time
}

// Status is the lifecycle state of a grid instance.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
	// StatusFlattenUnconfirmed marks an instance whose flatten sells
	// could not all be confirmed; ledger and exchange state may
	// disagree and need manual reconciliation.
	StatusFlattenUnconfirmed Status = "flatten_unconfirmed"
)

// Rounding selects how an interior price maps to a level. It is fixed
// for the lifetime of an instance; mixing policies within one grid is
// a correctness bug.
type Rounding int

const (
	RoundFloor Rounding = iota
	RoundNearest
)

// DownCrossPolicy controls whether a down-cross ever sells.
type DownCrossPolicy int

const (
	// Accumulate buys unheld levels on the way down and sells nothing;
	// positions are unwound by the up-cross rule on recovery.
	Accumulate DownCrossPolicy = iota
	// RollDown additionally sells the level being left on every
	// down-cross, mirroring the up-cross roll.
	RollDown
)
