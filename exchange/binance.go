package exchange

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"gridbot/logger"
)

// BinanceSpot adapts the Binance spot REST API to the Port interface.
// Orders are plain market orders; buys use quoteOrderQty so the venue
// resolves the base quantity at the executed price.
type BinanceSpot struct {
	client *binance.Client
}

func NewBinanceSpot(apiKey, apiSecret string) *BinanceSpot {
	return &BinanceSpot{client: binance.NewClient(apiKey, apiSecret)}
}

func (b *BinanceSpot) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	if len(prices) == 0 {
		return decimal.Zero, fmt.Errorf("%w: no ticker for %s", ErrPriceUnavailable, symbol)
	}
	p, err := decimal.NewFromString(prices[0].Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: bad ticker %q", ErrPriceUnavailable, prices[0].Price)
	}
	return p, nil
}

func (b *BinanceSpot) GetAvailableBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	account, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get account: %w", err)
	}
	for _, bal := range account.Balances {
		if bal.Asset == asset {
			free, err := decimal.NewFromString(bal.Free)
			if err != nil {
				return decimal.Zero, fmt.Errorf("bad balance %q for %s", bal.Free, asset)
			}
			return free, nil
		}
	}
	return decimal.Zero, nil
}

func (b *BinanceSpot) PlaceOrder(ctx context.Context, req OrderRequest) (string, error) {
	svc := b.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Type(binance.OrderTypeMarket)
	switch req.Side {
	case Buy:
		svc = svc.Side(binance.SideTypeBuy).QuoteOrderQty(req.QuoteAmount.String())
	case Sell:
		svc = svc.Side(binance.SideTypeSell).Quantity(req.Quantity.String())
	default:
		return "", fmt.Errorf("%w: unknown side %q", ErrOrderRejected, req.Side)
	}
	resp, err := svc.Do(ctx)
	if err != nil {
		logger.Log.Errorf("[Exchange] %s %s order rejected: %v", req.Side, req.Symbol, err)
		return "", fmt.Errorf("%w: %v", ErrOrderRejected, err)
	}
	return strconv.FormatInt(resp.OrderID, 10), nil
}

func (b *BinanceSpot) FilledQuantity(ctx context.Context, symbol, orderID string) (decimal.Decimal, error) {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad order id %q", orderID)
	}
	order, err := b.client.NewGetOrderService().Symbol(symbol).OrderID(id).Do(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get order %s: %w", orderID, err)
	}
	switch order.Status {
	case binance.OrderStatusTypeFilled, binance.OrderStatusTypePartiallyFilled,
		binance.OrderStatusTypeCanceled, binance.OrderStatusTypeExpired:
		filled, err := decimal.NewFromString(order.ExecutedQuantity)
		if err != nil {
			return decimal.Zero, fmt.Errorf("bad executed quantity %q", order.ExecutedQuantity)
		}
		return filled, nil
	default:
		return decimal.Zero, ErrOrderTimeout
	}
}

func (b *BinanceSpot) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad order id %q", orderID)
	}
	if _, err := b.client.NewCancelOrderService().Symbol(symbol).OrderID(id).Do(ctx); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}

func (b *BinanceSpot) Rules(ctx context.Context, symbol string) (SymbolRules, error) {
	info, err := b.client.NewExchangeInfoService().Symbol(symbol).Do(ctx)
	if err != nil {
		return SymbolRules{}, fmt.Errorf("exchange info: %w", err)
	}
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		rules := SymbolRules{}
		if f := s.LotSizeFilter(); f != nil {
			if rules.LotStep, err = decimal.NewFromString(f.StepSize); err != nil {
				return SymbolRules{}, fmt.Errorf("bad lot step %q", f.StepSize)
			}
		}
		if f := s.PriceFilter(); f != nil {
			if rules.TickSize, err = decimal.NewFromString(f.TickSize); err != nil {
				return SymbolRules{}, fmt.Errorf("bad tick size %q", f.TickSize)
			}
		}
		if f := s.NotionalFilter(); f != nil {
			if rules.MinNotional, err = decimal.NewFromString(f.MinNotional); err != nil {
				return SymbolRules{}, fmt.Errorf("bad min notional %q", f.MinNotional)
			}
		}
		return rules, nil
	}
	return SymbolRules{}, fmt.Errorf("symbol %s not listed", symbol)
}
