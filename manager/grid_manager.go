// Package manager owns the set of live grid instances: spawning on the
// minute schedule, fanning price samples out, reaping finished grids
// and enforcing the concurrency cap.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"gridbot/config"
	"gridbot/exchange"
	"gridbot/grid"
	"gridbot/logger"
)

var (
	// ErrCapitalUnavailable means the balance cannot fund a new
	// grid's starting unit. The spawn is skipped, not fatal.
	ErrCapitalUnavailable = errors.New("capital unavailable for new grid")

	// ErrMaxGridsReached means the active-instance cap is hit.
	ErrMaxGridsReached = errors.New("maximum active grids reached")

	// ErrInstanceNotFound for stop/lookup on an unknown id.
	ErrInstanceNotFound = errors.New("grid instance not found")
)

// Manager coordinates grid instances. The lock guards only the
// instance collection; each instance serializes its own transitions.
type Manager struct {
	cfg  *config.Config
	port exchange.Port
	sink grid.EventSink

	mu            sync.RWMutex
	instances     map[string]*grid.Instance
	finished      []grid.Snapshot
	spawnCount    int
	lastSpawnSlot string
	totalPnL      decimal.Decimal
	closedCount   int
}

func New(cfg *config.Config, port exchange.Port, sink grid.EventSink) *Manager {
	return &Manager{
		cfg:       cfg,
		port:      port,
		sink:      sink,
		instances: make(map[string]*grid.Instance),
	}
}

// labelFor turns a spawn ordinal into A, B, ..., Z, AA, AB, ...
func labelFor(n int) string {
	label := ""
	for {
		label = string(rune('A'+n%26)) + label
		n = n/26 - 1
		if n < 0 {
			return label
		}
	}
}

func (m *Manager) instanceConfig() grid.InstanceConfig {
	rounding := grid.RoundFloor
	if m.cfg.Grid.Rounding == "nearest" {
		rounding = grid.RoundNearest
	}
	downCross := grid.Accumulate
	if m.cfg.Grid.DownCross == "rolldown" {
		downCross = grid.RollDown
	}
	mode := grid.SizePercent
	if m.cfg.Sizer.Mode == "fixed" {
		mode = grid.SizeFixed
	}
	return grid.InstanceConfig{
		Symbol:          m.cfg.Symbol,
		BaseAsset:       m.cfg.BaseAsset,
		QuoteAsset:      m.cfg.QuoteAsset,
		RangePct:        m.cfg.Grid.RangePct,
		StepCount:       m.cfg.Grid.StepCount,
		StartLevel:      grid.Level(m.cfg.Grid.StartLevel),
		Rounding:        rounding,
		DownCross:       downCross,
		Sizer:           grid.NewCapitalSizer(mode, m.cfg.Sizer.FixedAmount, m.cfg.Sizer.BalancePct, m.cfg.Sizer.MinNotional),
		OrderTimeout:    m.cfg.OrderTimeout,
		MaxOrderRetries: m.cfg.MaxOrderRetries,
		MaxLifetime:     m.cfg.GridMaxLifetime,
	}
}

// Spawn opens a new grid anchored at the current price. Fails with
// ErrMaxGridsReached at the cap and ErrCapitalUnavailable when the
// starting unit cannot be funded.
func (m *Manager) Spawn(ctx context.Context) (*grid.Instance, error) {
	m.mu.Lock()
	if m.cfg.MaxActiveGrids > 0 && len(m.instances) >= m.cfg.MaxActiveGrids {
		m.mu.Unlock()
		return nil, ErrMaxGridsReached
	}
	label := labelFor(m.spawnCount)
	m.spawnCount++
	m.mu.Unlock()

	inst, err := grid.NewInstance(ctx, label, m.instanceConfig(), m.port, m.sink)
	if err != nil {
		if errors.Is(err, grid.ErrInsufficientCapital) {
			return nil, fmt.Errorf("%w: %v", ErrCapitalUnavailable, err)
		}
		return nil, err
	}

	m.mu.Lock()
	m.instances[inst.ID] = inst
	active := len(m.instances)
	m.mu.Unlock()
	logger.Log.Infof("[Manager] spawned grid %s (%s), %d active", label, inst.ID, active)
	return inst, nil
}

// MaybeSpawn spawns when the wall clock enters a configured minute.
// The slot latch makes each minute fire at most once no matter how
// often the poll loop ticks.
func (m *Manager) MaybeSpawn(ctx context.Context, now time.Time) {
	minute := now.Minute()
	hit := false
	for _, sm := range m.cfg.SpawnMinutes {
		if sm == minute {
			hit = true
			break
		}
	}
	if !hit {
		return
	}
	slot := now.Format("2006-01-02 15:04")
	m.mu.Lock()
	if m.lastSpawnSlot == slot {
		m.mu.Unlock()
		return
	}
	m.lastSpawnSlot = slot
	m.mu.Unlock()

	if _, err := m.Spawn(ctx); err != nil {
		switch {
		case errors.Is(err, ErrMaxGridsReached):
			logger.Log.Infof("[Manager] spawn skipped: %v", err)
		case errors.Is(err, ErrCapitalUnavailable):
			logger.Log.Warnf("[Manager] spawn skipped: %v", err)
		default:
			logger.Log.Errorf("[Manager] spawn failed: %v", err)
		}
	}
}

// DispatchPrice feeds one sample to every active instance, flattens
// the ones past their lifetime and reaps terminal ones. Instance
// errors are logged, never propagated: one sick grid must not stall
// the rest.
func (m *Manager) DispatchPrice(ctx context.Context, price decimal.Decimal) {
	now := time.Now()
	for _, inst := range m.active() {
		if inst.Expired(now) {
			logger.Log.Infof("[Manager] grid %s hit max lifetime, flattening", inst.Label)
			if err := inst.Flatten(ctx, grid.ReasonStop); err != nil {
				logger.Log.Errorf("[Manager] grid %s lifetime flatten: %v", inst.Label, err)
			}
		} else if err := inst.OnPrice(ctx, price); err != nil && !errors.Is(err, grid.ErrInstanceClosed) {
			logger.Log.Errorf("[Manager] grid %s transition: %v", inst.Label, err)
		}
		if inst.Status() != grid.StatusActive {
			m.reap(inst)
		}
	}
}

func (m *Manager) active() []*grid.Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*grid.Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		out = append(out, inst)
	}
	return out
}

func (m *Manager) reap(inst *grid.Instance) {
	snap := inst.Snapshot()
	m.mu.Lock()
	if _, ok := m.instances[inst.ID]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.instances, inst.ID)
	m.finished = append(m.finished, snap)
	m.closedCount++
	m.totalPnL = m.totalPnL.Add(snap.RealizedPnL)
	m.mu.Unlock()
	logger.Log.Infof("[Manager] reaped grid %s, status %s, pnl %s", snap.Label, snap.Status, snap.RealizedPnL.StringFixed(4))
}

// StopInstance flattens one grid by id and removes it.
func (m *Manager) StopInstance(ctx context.Context, id string) error {
	m.mu.RLock()
	inst, ok := m.instances[id]
	m.mu.RUnlock()
	if !ok {
		return ErrInstanceNotFound
	}
	err := inst.Flatten(ctx, grid.ReasonStop)
	m.reap(inst)
	return err
}

// StopAll flattens every active grid, used at shutdown.
func (m *Manager) StopAll(ctx context.Context) {
	for _, inst := range m.active() {
		if err := inst.Flatten(ctx, grid.ReasonStop); err != nil {
			logger.Log.Errorf("[Manager] grid %s shutdown flatten: %v", inst.Label, err)
		}
		m.reap(inst)
	}
}

// Get returns the live instance with the given id.
func (m *Manager) Get(id string) (*grid.Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[id]
	return inst, ok
}

// ActiveCount returns the number of live instances.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.instances)
}

// Snapshots returns point-in-time copies of all active instances
// sorted by label, followed by finished ones.
func (m *Manager) Snapshots() []grid.Snapshot {
	active := m.active()
	out := make([]grid.Snapshot, 0, len(active))
	for _, inst := range active {
		out = append(out, inst.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	m.mu.RLock()
	out = append(out, m.finished...)
	m.mu.RUnlock()
	return out
}

// Stats summarizes lifetime results across closed grids.
func (m *Manager) Stats() (closed int, totalPnL decimal.Decimal) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closedCount, m.totalPnL
}

// StatusLine renders a one-line summary for the periodic console log.
func (m *Manager) StatusLine() string {
	snaps := m.Snapshots()
	var parts []string
	for _, s := range snaps {
		if s.Status != grid.StatusActive {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s:L%d(%d pos, pnl %s)",
			s.Label, s.CurrentLevel, len(s.Positions), s.RealizedPnL.StringFixed(2)))
	}
	closed, pnl := m.Stats()
	if len(parts) == 0 {
		return fmt.Sprintf("no active grids | closed %d | total pnl %s", closed, pnl.StringFixed(4))
	}
	return fmt.Sprintf("%s | closed %d | total pnl %s", strings.Join(parts, "  "), closed, pnl.StringFixed(4))
}
