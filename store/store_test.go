package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridbot/grid"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSnapshot() grid.Snapshot {
	return grid.Snapshot{
		ID:           "inst-1",
		Label:        "A",
		Symbol:       "SOLUSDT",
		Status:       grid.StatusActive,
		LowerBound:   decimal.NewFromInt(95),
		UpperBound:   decimal.NewFromInt(105),
		StepCount:    10,
		CurrentLevel: 6,
		Positions: []grid.PositionEntry{
			{Level: 6, Quantity: decimal.RequireFromString("0.1"), EntryPrice: decimal.NewFromInt(101), OpenedAt: time.Now()},
			{Level: 4, Quantity: decimal.RequireFromString("0.1"), EntryPrice: decimal.NewFromInt(99), OpenedAt: time.Now()},
		},
		RealizedPnL: decimal.RequireFromString("1.25"),
		BuyCount:    3,
		SellCount:   1,
		LastPrice:   decimal.RequireFromString("101.5"),
		CreatedAt:   time.Now(),
	}
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveSnapshot(sampleSnapshot()))

	model, levels, err := s.GetInstance("inst-1")
	require.NoError(t, err)
	assert.Equal(t, "A", model.Label)
	assert.Equal(t, "active", model.Status)
	assert.InDelta(t, 1.25, model.RealizedPnL, 1e-9)
	require.Len(t, levels, 2)
	assert.Equal(t, 6, levels[0].Level, "levels ordered descending")
	assert.Equal(t, 4, levels[1].Level)
}

func TestSaveSnapshotReplacesLevels(t *testing.T) {
	s := newTestStore(t)

	snap := sampleSnapshot()
	require.NoError(t, s.SaveSnapshot(snap))

	snap.Positions = snap.Positions[:1]
	snap.Status = grid.StatusClosed
	require.NoError(t, s.SaveSnapshot(snap))

	model, levels, err := s.GetInstance("inst-1")
	require.NoError(t, err)
	assert.Equal(t, "closed", model.Status)
	assert.Len(t, levels, 1)
}

func TestRecordAndListEvents(t *testing.T) {
	s := newTestStore(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordEvent(grid.Event{
			InstanceID: "inst-1",
			Label:      "A",
			Type:       grid.EventBuyFill,
			Level:      5 + i,
			Side:       "BUY",
			Quantity:   decimal.RequireFromString("0.1"),
			Price:      decimal.NewFromInt(int64(100 + i)),
			At:         time.Now(),
		}))
	}

	events, err := s.ListEvents("inst-1", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 7, events[0].Level, "newest first")
}

func TestGetStatistics(t *testing.T) {
	s := newTestStore(t)

	open := sampleSnapshot()
	require.NoError(t, s.SaveSnapshot(open))

	closed := sampleSnapshot()
	closed.ID = "inst-2"
	closed.Label = "B"
	closed.Status = grid.StatusClosed
	closed.RealizedPnL = decimal.RequireFromString("2.75")
	require.NoError(t, s.SaveSnapshot(closed))

	require.NoError(t, s.RecordEvent(grid.Event{InstanceID: "inst-1", Type: grid.EventBuyFill, At: time.Now()}))
	require.NoError(t, s.RecordEvent(grid.Event{InstanceID: "inst-1", Type: grid.EventSellFill, At: time.Now()}))
	require.NoError(t, s.RecordEvent(grid.Event{InstanceID: "inst-1", Type: grid.EventDustDrop, At: time.Now()}))

	stats, err := s.GetStatistics()
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.TotalGrids)
	assert.EqualValues(t, 1, stats.ActiveGrids)
	assert.EqualValues(t, 1, stats.ClosedGrids)
	assert.InDelta(t, 4.0, stats.TotalPnL, 1e-9)
	assert.EqualValues(t, 2, stats.TotalTrades, "dust drops are not trades")
}

func TestListInstances(t *testing.T) {
	s := newTestStore(t)

	first := sampleSnapshot()
	first.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, s.SaveSnapshot(first))

	second := sampleSnapshot()
	second.ID = "inst-2"
	second.CreatedAt = time.Now()
	require.NoError(t, s.SaveSnapshot(second))

	list, err := s.ListInstances()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "inst-2", list[0].ID, "newest first")
}
