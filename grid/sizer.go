package grid

import "github.com/shopspring/decimal"

// SizerMode selects how the per-buy quote amount is derived.
type SizerMode int

const (
	// SizeFixed spends a fixed quote amount per buy.
	SizeFixed SizerMode = iota
	// SizePercent spends a percentage of the currently free quote
	// balance per buy, so unit size shrinks as capital is deployed.
	SizePercent
)

// CapitalSizer resolves buy amounts and truncates quantities to the
// exchange lot step. Amounts below the minimum notional are rejected,
// never rounded up: topping a too-small order up to the minimum would
// spend capital the operator did not allocate.
type CapitalSizer struct {
	mode        SizerMode
	fixedAmount decimal.Decimal
	balancePct  decimal.Decimal
	minNotional decimal.Decimal
}

func NewCapitalSizer(mode SizerMode, fixedAmount, balancePct, minNotional decimal.Decimal) *CapitalSizer {
	return &CapitalSizer{
		mode:        mode,
		fixedAmount: fixedAmount,
		balancePct:  balancePct,
		minNotional: minNotional,
	}
}

// QuoteAmount returns the quote currency to spend on one buy, given
// the free balance at execution time. The amount is capped at the
// free balance. ErrInsufficientCapital when the result is below the
// minimum notional.
func (s *CapitalSizer) QuoteAmount(freeBalance decimal.Decimal) (decimal.Decimal, error) {
	var amount decimal.Decimal
	switch s.mode {
	case SizePercent:
		amount = freeBalance.Mul(s.balancePct)
	default:
		amount = s.fixedAmount
	}
	if amount.GreaterThan(freeBalance) {
		amount = freeBalance
	}
	if amount.LessThan(s.minNotional) {
		return decimal.Zero, ErrInsufficientCapital
	}
	return amount, nil
}

// MinNotional returns the configured exchange minimum order value.
func (s *CapitalSizer) MinNotional() decimal.Decimal { return s.minNotional }

// TruncateQuantity floors a base quantity to a whole multiple of the
// lot step. Truncating down can only shrink an order, which is always
// safe; rounding up could sell base the ledger does not hold.
func TruncateQuantity(qty, lotStep decimal.Decimal) decimal.Decimal {
	if lotStep.IsZero() {
		return qty
	}
	return qty.Div(lotStep).Floor().Mul(lotStep)
}

// IsDust reports whether a quantity is too small to trade: below one
// lot step, or worth less than the minimum notional at the given price.
func (s *CapitalSizer) IsDust(qty, price, lotStep decimal.Decimal) bool {
	if TruncateQuantity(qty, lotStep).IsZero() {
		return true
	}
	return qty.Mul(price).LessThan(s.minNotional)
}
