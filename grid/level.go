package grid

import "github.com/shopspring/decimal"

// LevelMapper maps continuous prices onto discrete levels and tracks
// the previously observed level so crossings can be derived.
type LevelMapper struct {
	bounds   Bounds
	rounding Rounding
	prev     Level
}

// NewLevelMapper places the mapper at the given start level without
// any price observation. The first Observe call compares against it.
func NewLevelMapper(bounds Bounds, rounding Rounding, start Level) *LevelMapper {
	return &LevelMapper{bounds: bounds, rounding: rounding, prev: start}
}

// Bounds returns the mapper's price range.
func (m *LevelMapper) Bounds() Bounds { return m.bounds }

// Prev returns the level of the last observed price.
func (m *LevelMapper) Prev() Level { return m.prev }

// LevelFor maps a price to a level. Prices at or below the lower bound
// clamp to 0 and prices at or above the upper bound clamp to
// StepCount, regardless of rounding policy. Interior prices follow the
// configured rounding: floor takes the band the price sits in, nearest
// snaps to the closest level line.
func (m *LevelMapper) LevelFor(price decimal.Decimal) Level {
	if price.LessThanOrEqual(m.bounds.Lower) {
		return 0
	}
	if price.GreaterThanOrEqual(m.bounds.Upper) {
		return Level(m.bounds.StepCount)
	}
	offset := price.Sub(m.bounds.Lower).Div(m.bounds.Step())
	var lv int64
	switch m.rounding {
	case RoundNearest:
		lv = offset.Round(0).IntPart()
	default:
		lv = offset.Floor().IntPart()
	}
	if lv < 0 {
		lv = 0
	}
	if lv > int64(m.bounds.StepCount) {
		lv = int64(m.bounds.StepCount)
	}
	return Level(lv)
}

// Observe maps the price, returns the crossing from the previous level
// to the new one, and latches the new level. A price that stays within
// the previous band yields from == to.
func (m *LevelMapper) Observe(price decimal.Decimal) (from, to Level) {
	from = m.prev
	to = m.LevelFor(price)
	m.prev = to
	return from, to
}

// IsBoundary reports whether lv is a kill level.
func (m *LevelMapper) IsBoundary(lv Level) bool {
	return lv == 0 || lv == Level(m.bounds.StepCount)
}
