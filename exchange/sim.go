package exchange

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Sim is an in-memory venue for dry runs and tests. Market orders fill
// immediately and fully at the last set price; balances move
// accordingly. Fill behavior can be degraded through RejectOrders and
// WithholdFills to exercise failure paths.
type Sim struct {
	mu       sync.Mutex
	price    decimal.Decimal
	balances map[string]decimal.Decimal
	rules    SymbolRules
	base     string
	quote    string

	orders  map[string]decimal.Decimal // orderID -> filled base qty
	nextID  int64
	history []OrderRequest

	// RejectOrders makes every PlaceOrder fail with ErrOrderRejected.
	RejectOrders bool
	// FillRatio scales every fill, simulating partial execution.
	// Zero means fill in full.
	FillRatio decimal.Decimal
	// WithholdFills makes FilledQuantity report ErrOrderTimeout for
	// orders placed while it is set.
	WithholdFills bool
	withheld      map[string]bool
}

// NewSim creates a simulator trading base against quote with the given
// starting quote balance and symbol rules.
func NewSim(base, quote string, quoteBalance decimal.Decimal, rules SymbolRules) *Sim {
	return &Sim{
		balances: map[string]decimal.Decimal{quote: quoteBalance},
		rules:    rules,
		base:     base,
		quote:    quote,
		orders:   make(map[string]decimal.Decimal),
		withheld: make(map[string]bool),
	}
}

// SetPrice sets the price every subsequent call observes.
func (s *Sim) SetPrice(p decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.price = p
}

// Orders returns every request placed so far, in order.
func (s *Sim) Orders() []OrderRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OrderRequest, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Sim) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.price.IsZero() {
		return decimal.Zero, ErrPriceUnavailable
	}
	return s.price, nil
}

func (s *Sim) GetAvailableBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances[asset], nil
}

func (s *Sim) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RejectOrders {
		return "", ErrOrderRejected
	}
	if s.price.IsZero() {
		return "", fmt.Errorf("%w: no price", ErrOrderRejected)
	}
	ratio := decimal.NewFromInt(1)
	if !s.FillRatio.IsZero() {
		ratio = s.FillRatio
	}
	var filled decimal.Decimal
	switch req.Side {
	case Buy:
		if req.QuoteAmount.GreaterThan(s.balances[s.quote]) {
			return "", fmt.Errorf("%w: insufficient %s", ErrOrderRejected, s.quote)
		}
		filled = req.QuoteAmount.Div(s.price).Mul(ratio)
		if !s.rules.LotStep.IsZero() {
			filled = filled.Div(s.rules.LotStep).Floor().Mul(s.rules.LotStep)
		}
		s.balances[s.quote] = s.balances[s.quote].Sub(filled.Mul(s.price))
		s.balances[s.base] = s.balances[s.base].Add(filled)
	case Sell:
		if req.Quantity.GreaterThan(s.balances[s.base]) {
			return "", fmt.Errorf("%w: insufficient %s", ErrOrderRejected, s.base)
		}
		filled = req.Quantity.Mul(ratio)
		s.balances[s.base] = s.balances[s.base].Sub(filled)
		s.balances[s.quote] = s.balances[s.quote].Add(filled.Mul(s.price))
	default:
		return "", fmt.Errorf("%w: unknown side %q", ErrOrderRejected, req.Side)
	}
	s.nextID++
	id := fmt.Sprintf("sim-%d", s.nextID)
	s.orders[id] = filled
	s.history = append(s.history, req)
	if s.WithholdFills {
		s.withheld[id] = true
	}
	return id, nil
}

func (s *Sim) FilledQuantity(ctx context.Context, symbol, orderID string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.withheld[orderID] {
		return decimal.Zero, ErrOrderTimeout
	}
	filled, ok := s.orders[orderID]
	if !ok {
		return decimal.Zero, fmt.Errorf("unknown order %s", orderID)
	}
	return filled, nil
}

func (s *Sim) CancelOrder(ctx context.Context, symbol, orderID string) error {
	return nil
}

func (s *Sim) Rules(ctx context.Context, symbol string) (SymbolRules, error) {
	return s.rules, nil
}
