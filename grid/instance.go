package grid

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gridbot/exchange"
	"gridbot/logger"
)

// Event is emitted on fills and lifecycle changes so the caller can
// persist or display them.
type Event struct {
	InstanceID string
	Label      string
	Type       string
	Level      int
	Side       string
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	PnL        decimal.Decimal
	Message    string
	At         time.Time
}

const (
	EventOpen               = "open"
	EventBuyFill            = "buy_fill"
	EventSellFill           = "sell_fill"
	EventBuySkipped         = "buy_skipped"
	EventDustDrop           = "dust_drop"
	EventClose              = "close"
	EventFlattenUnconfirmed = "flatten_unconfirmed"
)

// EventSink receives instance events. A nil sink is allowed.
type EventSink func(Event)

// InstanceConfig carries everything one grid needs at spawn time.
type InstanceConfig struct {
	Symbol     string
	BaseAsset  string
	QuoteAsset string

	RangePct   decimal.Decimal
	StepCount  int
	StartLevel Level
	Rounding   Rounding
	DownCross  DownCrossPolicy

	Sizer           *CapitalSizer
	OrderTimeout    time.Duration
	MaxOrderRetries int
	MaxLifetime     time.Duration
}

// Instance is one live grid: a price range anchored at its spawn
// price, a ledger of held levels and the transition rules that move
// between them. All public methods are safe for concurrent use; the
// internal lock serializes transitions so fills from one crossing are
// recorded before the next crossing is planned.
type Instance struct {
	ID    string
	Label string

	cfg    InstanceConfig
	port   exchange.Port
	rules  exchange.SymbolRules
	sink   EventSink
	mapper *LevelMapper
	ledger *PositionLedger
	engine *TransitionEngine

	mu          sync.Mutex // held across port calls so transitions serialize
	status      Status
	realizedPnL decimal.Decimal
	buyCount    int
	sellCount   int
	createdAt   time.Time
	deadline    time.Time
	lastPrice   decimal.Decimal
}

// NewInstance spawns a grid anchored at the current market price and
// opens the starting unit at the configured start level. A spawn whose
// starting buy cannot meet the minimum notional fails with
// ErrInsufficientCapital and leaves no position behind.
func NewInstance(ctx context.Context, label string, cfg InstanceConfig, port exchange.Port, sink EventSink) (*Instance, error) {
	price, err := port.GetPrice(ctx, cfg.Symbol)
	if err != nil {
		return nil, err
	}
	rules, err := port.Rules(ctx, cfg.Symbol)
	if err != nil {
		return nil, err
	}
	bounds := BoundsAround(price, cfg.RangePct, cfg.StepCount)
	inst := &Instance{
		ID:        uuid.NewString(),
		Label:     label,
		cfg:       cfg,
		port:      port,
		rules:     rules,
		sink:      sink,
		mapper:    NewLevelMapper(bounds, cfg.Rounding, cfg.StartLevel),
		ledger:    NewPositionLedger(cfg.StepCount),
		engine:    NewTransitionEngine(cfg.StepCount, cfg.DownCross),
		status:    StatusActive,
		createdAt: time.Now(),
		lastPrice: price,
	}
	if cfg.MaxLifetime > 0 {
		inst.deadline = inst.createdAt.Add(cfg.MaxLifetime)
	}
	if err := inst.executeIntent(ctx, price, Intent{Side: SideBuy, Level: cfg.StartLevel, Reason: ReasonStart}); err != nil {
		return nil, err
	}
	if !inst.ledger.HasPosition(cfg.StartLevel) {
		return nil, ErrInsufficientCapital
	}
	logger.Log.Infof("[Grid %s] opened %s range [%s, %s] start level %d",
		label, cfg.Symbol, bounds.Lower.StringFixed(4), bounds.Upper.StringFixed(4), cfg.StartLevel)
	inst.emit(Event{Type: EventOpen, Level: int(cfg.StartLevel), Price: price, At: time.Now(),
		Message: "grid opened at " + price.String()})
	return inst, nil
}

func (g *Instance) emit(ev Event) {
	if g.sink == nil {
		return
	}
	ev.InstanceID = g.ID
	ev.Label = g.Label
	g.sink(ev)
}

// Status returns the current lifecycle state.
func (g *Instance) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Expired reports whether the instance has outlived its maximum
// lifetime.
func (g *Instance) Expired(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.deadline.IsZero() && now.After(g.deadline)
}

// OnPrice feeds one price sample through the transition rules. Errors
// from individual intents are joined and returned; the remaining
// intents of the transition still run, so one failed rung does not
// strand the rest of a walk.
func (g *Instance) OnPrice(ctx context.Context, price decimal.Decimal) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != StatusActive {
		return ErrInstanceClosed
	}
	g.lastPrice = price
	from, to := g.mapper.Observe(price)
	if from == to {
		return nil
	}
	plan := g.engine.Transition(from, to, g.ledger)
	logger.Log.Debugf("[Grid %s] crossed %d -> %d, %d intents", g.Label, from, to, len(plan.Intents))
	err := g.executePlan(ctx, price, plan)
	if plan.Terminal {
		g.finish(price, ReasonBoundary)
	}
	return err
}

// Flatten sells every held level and closes the instance. It is
// idempotent: flattening a closed instance is a no-op.
func (g *Instance) Flatten(ctx context.Context, reason Reason) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.status != StatusActive {
		return nil
	}
	price, err := g.port.GetPrice(ctx, g.cfg.Symbol)
	if err != nil {
		// no price sample, sell at the last known one
		price = g.lastPrice
	}
	plan := g.engine.FlattenAll(g.ledger, reason)
	execErr := g.executePlan(ctx, price, plan)
	g.finish(price, reason)
	return execErr
}

// finish settles the terminal status. Any level still held after the
// flatten sells means a fill went unconfirmed; the instance is parked
// as FlattenUnconfirmed instead of being reported clean.
func (g *Instance) finish(price decimal.Decimal, reason Reason) {
	if g.ledger.Count() > 0 {
		g.status = StatusFlattenUnconfirmed
		logger.Log.Errorf("[Grid %s] flatten left %d levels unconfirmed, manual reconciliation required",
			g.Label, g.ledger.Count())
		g.emit(Event{Type: EventFlattenUnconfirmed, Price: price, PnL: g.realizedPnL, At: time.Now(),
			Message: string(reason)})
		return
	}
	g.status = StatusClosed
	logger.Log.Infof("[Grid %s] closed (%s), realized pnl %s %s",
		g.Label, reason, g.realizedPnL.StringFixed(4), g.cfg.QuoteAsset)
	g.emit(Event{Type: EventClose, Price: price, PnL: g.realizedPnL, At: time.Now(), Message: string(reason)})
}

func (g *Instance) executePlan(ctx context.Context, price decimal.Decimal, plan Plan) error {
	var errs []error
	for _, intent := range plan.Intents {
		if err := g.executeIntent(ctx, price, intent); err != nil {
			errs = append(errs, &TransitionError{Intent: intent, Err: err})
		}
	}
	return errors.Join(errs...)
}

func (g *Instance) executeIntent(ctx context.Context, price decimal.Decimal, intent Intent) error {
	switch intent.Side {
	case SideBuy:
		return g.executeBuy(ctx, price, intent)
	case SideSell:
		return g.executeSell(ctx, price, intent)
	}
	return nil
}

func (g *Instance) executeBuy(ctx context.Context, price decimal.Decimal, intent Intent) error {
	if g.ledger.HasPosition(intent.Level) {
		return ErrLevelAlreadyOpen
	}
	balance, err := g.port.GetAvailableBalance(ctx, g.cfg.QuoteAsset)
	if err != nil {
		return err
	}
	amount, err := g.cfg.Sizer.QuoteAmount(balance)
	if errors.Is(err, ErrInsufficientCapital) {
		logger.Log.Warnf("[Grid %s] skipping buy at L%d: balance %s below minimum notional",
			g.Label, intent.Level, balance.StringFixed(4))
		g.emit(Event{Type: EventBuySkipped, Level: int(intent.Level), Price: price, At: time.Now(),
			Message: "insufficient capital"})
		return nil
	}
	if err != nil {
		return err
	}
	filled, err := g.submit(ctx, exchange.OrderRequest{
		Symbol:      g.cfg.Symbol,
		Side:        exchange.Buy,
		QuoteAmount: amount,
	})
	if err != nil {
		return err
	}
	if filled.IsZero() {
		return exchange.ErrOrderRejected
	}
	if err := g.ledger.Open(intent.Level, filled, price); err != nil {
		return err
	}
	g.buyCount++
	logger.Log.Infof("[Grid %s] bought %s %s at L%d (%s, %s %s)",
		g.Label, filled.String(), g.cfg.BaseAsset, intent.Level, intent.Reason, amount.StringFixed(4), g.cfg.QuoteAsset)
	g.emit(Event{Type: EventBuyFill, Level: int(intent.Level), Side: string(SideBuy),
		Quantity: filled, Price: price, At: time.Now(), Message: string(intent.Reason)})
	return nil
}

func (g *Instance) executeSell(ctx context.Context, price decimal.Decimal, intent Intent) error {
	entry, ok := g.ledger.Entry(intent.Level)
	if !ok {
		return ErrLevelEmpty
	}
	qty := TruncateQuantity(entry.Quantity, g.rules.LotStep)
	if g.cfg.Sizer.IsDust(entry.Quantity, price, g.rules.LotStep) {
		g.ledger.Drop(intent.Level)
		logger.Log.Warnf("[Grid %s] dropping dust at L%d: %s %s below exchange minimum",
			g.Label, intent.Level, entry.Quantity.String(), g.cfg.BaseAsset)
		g.emit(Event{Type: EventDustDrop, Level: int(intent.Level), Quantity: entry.Quantity,
			Price: price, At: time.Now(), Message: string(intent.Reason)})
		return nil
	}
	filled, err := g.submit(ctx, exchange.OrderRequest{
		Symbol:   g.cfg.Symbol,
		Side:     exchange.Sell,
		Quantity: qty,
	})
	if err != nil {
		return err
	}
	if err := g.ledger.Reduce(intent.Level, filled); err != nil {
		return err
	}
	pnl := filled.Mul(price.Sub(entry.EntryPrice))
	g.realizedPnL = g.realizedPnL.Add(pnl)
	g.sellCount++
	logger.Log.Infof("[Grid %s] sold %s %s at L%d (%s, pnl %s %s)",
		g.Label, filled.String(), g.cfg.BaseAsset, intent.Level, intent.Reason, pnl.StringFixed(4), g.cfg.QuoteAsset)
	g.emit(Event{Type: EventSellFill, Level: int(intent.Level), Side: string(SideSell),
		Quantity: filled, Price: price, PnL: pnl, At: time.Now(), Message: string(intent.Reason)})
	return nil
}

// submit places an order with bounded retries and waits for the fill
// quantity to be confirmed. Each attempt gets its own deadline.
func (g *Instance) submit(ctx context.Context, req exchange.OrderRequest) (decimal.Decimal, error) {
	retries := g.cfg.MaxOrderRetries
	if retries < 1 {
		retries = 1
	}
	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		octx, cancel := g.orderContext(ctx)
		orderID, err := g.port.PlaceOrder(octx, req)
		if err != nil {
			cancel()
			lastErr = err
			logger.Log.Warnf("[Grid %s] %s order attempt %d/%d failed: %v",
				g.Label, req.Side, attempt, retries, err)
			continue
		}
		filled, err := g.awaitFill(octx, req.Symbol, orderID)
		cancel()
		if err != nil {
			return decimal.Zero, err
		}
		return filled, nil
	}
	return decimal.Zero, lastErr
}

func (g *Instance) orderContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.cfg.OrderTimeout > 0 {
		return context.WithTimeout(ctx, g.cfg.OrderTimeout)
	}
	return context.WithCancel(ctx)
}

func (g *Instance) awaitFill(ctx context.Context, symbol, orderID string) (decimal.Decimal, error) {
	for {
		filled, err := g.port.FilledQuantity(ctx, symbol, orderID)
		if err == nil {
			return filled, nil
		}
		if !errors.Is(err, exchange.ErrOrderTimeout) {
			return decimal.Zero, err
		}
		select {
		case <-ctx.Done():
			return decimal.Zero, exchange.ErrOrderTimeout
		case <-time.After(200 * time.Millisecond):
		}
	}
}
