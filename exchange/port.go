// Package exchange abstracts the trading venue behind a small port
// interface. The grid logic never talks to an exchange SDK directly;
// it places market orders through a Port and trusts only the fill
// quantities the port reports back.
package exchange

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrPriceUnavailable means the venue could not produce a price
	// sample. Callers skip the tick and try again.
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrOrderRejected means the venue refused the order outright.
	ErrOrderRejected = errors.New("order rejected")

	// ErrOrderTimeout means the order was submitted but its fill
	// could not be confirmed within the allowed window.
	ErrOrderTimeout = errors.New("order fill confirmation timed out")
)

// Side of an order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// SymbolRules are the venue's trading constraints for one symbol.
type SymbolRules struct {
	MinNotional decimal.Decimal // minimum order value in quote currency
	LotStep     decimal.Decimal // base quantity granularity
	TickSize    decimal.Decimal // price granularity
}

// OrderRequest describes one market order. Buys are denominated in
// quote currency (QuoteAmount), sells in base quantity (Quantity);
// the unused field is zero.
type OrderRequest struct {
	Symbol      string
	Side        Side
	Quantity    decimal.Decimal
	QuoteAmount decimal.Decimal
}

// Port is the venue-side surface the grid needs. All calls honor the
// context deadline. The fill quantity returned by FilledQuantity is
// authoritative: partial fills, fees taken in base and venue-side
// rounding all show up there, and the ledger records exactly that.
type Port interface {
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	GetAvailableBalance(ctx context.Context, asset string) (decimal.Decimal, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (orderID string, err error)
	FilledQuantity(ctx context.Context, symbol, orderID string) (decimal.Decimal, error)
	CancelOrder(ctx context.Context, symbol, orderID string) error
	Rules(ctx context.Context, symbol string) (SymbolRules, error)
}
