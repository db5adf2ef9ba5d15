package grid

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridbot/exchange"
)

func testRules() exchange.SymbolRules {
	return exchange.SymbolRules{
		MinNotional: d("5"),
		LotStep:     d("0.0001"),
		TickSize:    d("0.01"),
	}
}

func testConfig() InstanceConfig {
	return InstanceConfig{
		Symbol:          "SOLUSDT",
		BaseAsset:       "SOL",
		QuoteAsset:      "USDT",
		RangePct:        d("0.05"),
		StepCount:       10,
		StartLevel:      5,
		Rounding:        RoundFloor,
		DownCross:       Accumulate,
		Sizer:           NewCapitalSizer(SizeFixed, d("10"), decimal.Zero, d("5")),
		OrderTimeout:    100 * time.Millisecond,
		MaxOrderRetries: 2,
	}
}

func newTestSim(quoteBalance string) *exchange.Sim {
	sim := exchange.NewSim("SOL", "USDT", d(quoteBalance), testRules())
	sim.SetPrice(d("100"))
	return sim
}

func TestInstanceScenarioFullLifecycle(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim("1000")

	inst, err := NewInstance(ctx, "A", testConfig(), sim, nil)
	require.NoError(t, err)
	require.Equal(t, StatusActive, inst.Status())

	// spawn at 100 opens one unit at the start level
	snap := inst.Snapshot()
	require.True(t, snap.LowerBound.Equal(d("95")))
	require.True(t, snap.UpperBound.Equal(d("105")))
	require.Len(t, snap.Positions, 1)
	require.Equal(t, Level(5), snap.Positions[0].Level)

	// rise to 102 (level 7) rolls the unit up rung by rung
	sim.SetPrice(d("102"))
	require.NoError(t, inst.OnPrice(ctx, d("102")))
	snap = inst.Snapshot()
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, Level(7), snap.Positions[0].Level)
	assert.Equal(t, 7, snap.CurrentLevel)

	// drop to 97 (level 2) accumulates every unheld rung on the way
	sim.SetPrice(d("97"))
	require.NoError(t, inst.OnPrice(ctx, d("97")))
	snap = inst.Snapshot()
	held := make([]Level, 0, len(snap.Positions))
	for _, p := range snap.Positions {
		held = append(held, p.Level)
	}
	assert.Equal(t, []Level{2, 3, 4, 5, 6, 7}, held)

	// hitting the lower bound flattens everything and closes
	sim.SetPrice(d("95"))
	require.NoError(t, inst.OnPrice(ctx, d("95")))
	require.Equal(t, StatusClosed, inst.Status())
	snap = inst.Snapshot()
	assert.Empty(t, snap.Positions)

	// flatten sells ran highest level first
	orders := sim.Orders()
	sells := orders[len(orders)-6:]
	for _, o := range sells {
		require.Equal(t, exchange.Sell, o.Side)
		require.True(t, o.Quantity.GreaterThan(decimal.Zero))
	}

	// closed instances reject further price samples
	err = inst.OnPrice(ctx, d("100"))
	require.ErrorIs(t, err, ErrInstanceClosed)
}

func TestInstanceNoDoubleOpen(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim("1000")

	inst, err := NewInstance(ctx, "A", testConfig(), sim, nil)
	require.NoError(t, err)

	// oscillate across the same lines repeatedly
	for _, p := range []string{"100.5", "101.5", "100.5", "101.5", "99.5", "100.5"} {
		sim.SetPrice(d(p))
		require.NoError(t, inst.OnPrice(ctx, d(p)))
		seen := map[Level]bool{}
		for _, pos := range inst.Snapshot().Positions {
			require.False(t, seen[pos.Level], "duplicate entry at level %d", pos.Level)
			seen[pos.Level] = true
		}
	}
}

func TestInstanceSpawnInsufficientCapital(t *testing.T) {
	sim := newTestSim("3")
	_, err := NewInstance(context.Background(), "A", testConfig(), sim, nil)
	require.ErrorIs(t, err, ErrInsufficientCapital)
	assert.Empty(t, sim.Orders())
}

func TestInstanceSkipsBuyWhenCapitalRunsOut(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim("15")
	cfg := testConfig()
	cfg.Sizer = NewCapitalSizer(SizeFixed, d("10"), decimal.Zero, d("6"))

	var events []Event
	inst, err := NewInstance(ctx, "A", cfg, sim, func(ev Event) { events = append(events, ev) })
	require.NoError(t, err)

	// ~5 USDT left, below the 6 USDT minimum: the buy is skipped but
	// the sell half of the crossing still runs
	sim.SetPrice(d("101.5"))
	require.NoError(t, inst.OnPrice(ctx, d("101.5")))

	snap := inst.Snapshot()
	assert.Empty(t, snap.Positions)
	assert.Equal(t, StatusActive, inst.Status())

	var skipped bool
	for _, ev := range events {
		if ev.Type == EventBuySkipped {
			skipped = true
		}
	}
	assert.True(t, skipped, "expected a buy_skipped event")
}

func TestInstanceDustDroppedOnFlatten(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim("1000")

	var events []Event
	inst, err := NewInstance(ctx, "A", testConfig(), sim, func(ev Event) { events = append(events, ev) })
	require.NoError(t, err)
	buys := len(sim.Orders())

	// at 40 the held 0.1 unit is worth 4, under the 5 minimum notional
	sim.SetPrice(d("40"))
	require.NoError(t, inst.OnPrice(ctx, d("40")))

	require.Equal(t, StatusClosed, inst.Status())
	assert.Len(t, sim.Orders(), buys, "dust must not produce a sell order")

	var dropped bool
	for _, ev := range events {
		if ev.Type == EventDustDrop {
			dropped = true
		}
	}
	assert.True(t, dropped, "expected a dust_drop event")
}

func TestInstanceFlattenUnconfirmed(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim("1000")

	inst, err := NewInstance(ctx, "A", testConfig(), sim, nil)
	require.NoError(t, err)

	sim.WithholdFills = true
	err = inst.Flatten(ctx, ReasonStop)
	require.Error(t, err)
	require.Equal(t, StatusFlattenUnconfirmed, inst.Status())
	assert.NotEmpty(t, inst.Snapshot().Positions, "unconfirmed levels stay on the ledger")

	// terminal state is sticky
	require.NoError(t, inst.Flatten(ctx, ReasonStop))
	require.Equal(t, StatusFlattenUnconfirmed, inst.Status())
}

func TestInstanceFlattenIdempotent(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim("1000")

	inst, err := NewInstance(ctx, "A", testConfig(), sim, nil)
	require.NoError(t, err)

	require.NoError(t, inst.Flatten(ctx, ReasonStop))
	require.Equal(t, StatusClosed, inst.Status())
	orders := len(sim.Orders())

	require.NoError(t, inst.Flatten(ctx, ReasonStop))
	assert.Len(t, sim.Orders(), orders, "second flatten must not trade")
}

func TestInstanceOrderRejectionSurfacesTransitionError(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim("1000")

	inst, err := NewInstance(ctx, "A", testConfig(), sim, nil)
	require.NoError(t, err)

	sim.RejectOrders = true
	sim.SetPrice(d("101.5"))
	err = inst.OnPrice(ctx, d("101.5"))
	require.Error(t, err)
	require.ErrorIs(t, err, exchange.ErrOrderRejected)

	var terr *TransitionError
	require.True(t, errors.As(err, &terr))

	// the failed buy and sell left the ledger untouched
	snap := inst.Snapshot()
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, Level(5), snap.Positions[0].Level)
	assert.Equal(t, StatusActive, inst.Status())
}

func TestInstanceExpired(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim("1000")
	cfg := testConfig()
	cfg.MaxLifetime = time.Hour

	inst, err := NewInstance(ctx, "A", cfg, sim, nil)
	require.NoError(t, err)

	assert.False(t, inst.Expired(time.Now()))
	assert.True(t, inst.Expired(time.Now().Add(2*time.Hour)))
}

func TestInstanceRealizedPnL(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim("1000")

	inst, err := NewInstance(ctx, "A", testConfig(), sim, nil)
	require.NoError(t, err)

	// entry at 100, rolled up at 101.5: profit on the start unit
	sim.SetPrice(d("101.5"))
	require.NoError(t, inst.OnPrice(ctx, d("101.5")))

	snap := inst.Snapshot()
	assert.True(t, snap.RealizedPnL.GreaterThan(decimal.Zero),
		"selling above entry must realize profit, got %s", snap.RealizedPnL)
	assert.Equal(t, 2, snap.BuyCount)
	assert.Equal(t, 1, snap.SellCount)
}

func TestInstancePartialSellFillLeavesRemainder(t *testing.T) {
	ctx := context.Background()
	sim := newTestSim("1000")

	inst, err := NewInstance(ctx, "A", testConfig(), sim, nil)
	require.NoError(t, err)

	// the venue fills only half of the roll-up sell; the ledger must
	// keep the unfilled remainder at the old level
	sim.FillRatio = d("0.5")
	sim.SetPrice(d("101.5"))
	require.NoError(t, inst.OnPrice(ctx, d("101.5")))

	snap := inst.Snapshot()
	byLevel := map[Level]decimal.Decimal{}
	for _, p := range snap.Positions {
		byLevel[p.Level] = p.Quantity
	}
	require.Contains(t, byLevel, Level(5))
	assert.True(t, byLevel[Level(5)].Equal(d("0.05")),
		"half of the 0.1 unit stays at level 5, got %s", byLevel[Level(5)])
	require.Contains(t, byLevel, Level(6))
}
