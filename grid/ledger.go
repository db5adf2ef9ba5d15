package grid

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionLedger holds at most one open unit per level. It is the
// single source of truth for what the grid believes it owns; entries
// change only on confirmed fills, never on intent emission.
//
// The ledger is not safe for concurrent use; the owning instance
// serializes access.
type PositionLedger struct {
	slots []*PositionEntry // index == level
}

func NewPositionLedger(stepCount int) *PositionLedger {
	return &PositionLedger{slots: make([]*PositionEntry, stepCount+1)}
}

// Open records a confirmed buy fill at a level.
func (l *PositionLedger) Open(lv Level, qty, entryPrice decimal.Decimal) error {
	if l.slots[lv] != nil {
		return ErrLevelAlreadyOpen
	}
	l.slots[lv] = &PositionEntry{
		Level:      lv,
		Quantity:   qty,
		EntryPrice: entryPrice,
		OpenedAt:   time.Now(),
	}
	return nil
}

// Close removes the entry at a level and returns it.
func (l *PositionLedger) Close(lv Level) (PositionEntry, error) {
	e := l.slots[lv]
	if e == nil {
		return PositionEntry{}, ErrLevelEmpty
	}
	l.slots[lv] = nil
	return *e, nil
}

// Reduce shrinks the entry at a level by a confirmed sell fill
// quantity. The quantity is the externally reported one, not the
// requested one. Reducing to zero or below drops the entry; the
// remainder never goes negative.
func (l *PositionLedger) Reduce(lv Level, qty decimal.Decimal) error {
	e := l.slots[lv]
	if e == nil {
		return ErrLevelEmpty
	}
	e.Quantity = e.Quantity.Sub(qty)
	if e.Quantity.LessThanOrEqual(decimal.Zero) {
		l.slots[lv] = nil
	}
	return nil
}

// Drop discards the entry at a level without a fill, used for dust
// that is below the exchange minimum and cannot be sold.
func (l *PositionLedger) Drop(lv Level) {
	l.slots[lv] = nil
}

// HasPosition reports whether a level holds an open unit.
func (l *PositionLedger) HasPosition(lv Level) bool {
	return int(lv) >= 0 && int(lv) < len(l.slots) && l.slots[lv] != nil
}

// Entry returns a copy of the entry at a level.
func (l *PositionLedger) Entry(lv Level) (PositionEntry, bool) {
	if !l.HasPosition(lv) {
		return PositionEntry{}, false
	}
	return *l.slots[lv], true
}

// HeldLevels returns all open levels in descending order, the order a
// flatten sells them in.
func (l *PositionLedger) HeldLevels() []Level {
	var out []Level
	for i := len(l.slots) - 1; i >= 0; i-- {
		if l.slots[i] != nil {
			out = append(out, Level(i))
		}
	}
	return out
}

// Count returns the number of open levels.
func (l *PositionLedger) Count() int {
	n := 0
	for _, e := range l.slots {
		if e != nil {
			n++
		}
	}
	return n
}

// TotalQuantity sums the base quantity across all open levels.
func (l *PositionLedger) TotalQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, e := range l.slots {
		if e != nil {
			total = total.Add(e.Quantity)
		}
	}
	return total
}

// TotalCost sums quantity*entryPrice across all open levels.
func (l *PositionLedger) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, e := range l.slots {
		if e != nil {
			total = total.Add(e.Quantity.Mul(e.EntryPrice))
		}
	}
	return total
}

// Entries returns copies of all open entries in ascending level order.
func (l *PositionLedger) Entries() []PositionEntry {
	var out []PositionEntry
	for _, e := range l.slots {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out
}
