// Package store persists grid instances, their open levels and the
// trade event log to SQLite. All database access goes through this
// package.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gridbot/grid"
	"gridbot/logger"
)

type Store struct {
	db *gorm.DB
}

// New opens (or creates) the SQLite database at dbPath and migrates
// the schema.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&GridInstanceModel{}, &GridLevelModel{}, &GridEventModel{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	logger.Log.Infof("[Store] database ready at %s", dbPath)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveSnapshot upserts the instance row and replaces its level rows.
func (s *Store) SaveSnapshot(snap grid.Snapshot) error {
	model := GridInstanceModel{
		ID:           snap.ID,
		Label:        snap.Label,
		Symbol:       snap.Symbol,
		Status:       string(snap.Status),
		LowerPrice:   snap.LowerBound.InexactFloat64(),
		UpperPrice:   snap.UpperBound.InexactFloat64(),
		StepCount:    snap.StepCount,
		CurrentLevel: snap.CurrentLevel,
		RealizedPnL:  snap.RealizedPnL.InexactFloat64(),
		BuyCount:     snap.BuyCount,
		SellCount:    snap.SellCount,
		LastPrice:    snap.LastPrice.InexactFloat64(),
		CreatedAt:    snap.CreatedAt,
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&model).Error; err != nil {
			return err
		}
		if err := tx.Where("instance_id = ?", snap.ID).Delete(&GridLevelModel{}).Error; err != nil {
			return err
		}
		for _, p := range snap.Positions {
			row := GridLevelModel{
				InstanceID: snap.ID,
				Level:      int(p.Level),
				Quantity:   p.Quantity.InexactFloat64(),
				EntryPrice: p.EntryPrice.InexactFloat64(),
				OpenedAt:   p.OpenedAt,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// RecordEvent appends one row to the event log.
func (s *Store) RecordEvent(ev grid.Event) error {
	row := GridEventModel{
		InstanceID: ev.InstanceID,
		Label:      ev.Label,
		Type:       ev.Type,
		Level:      ev.Level,
		Side:       ev.Side,
		Quantity:   ev.Quantity.InexactFloat64(),
		Price:      ev.Price.InexactFloat64(),
		PnL:        ev.PnL.InexactFloat64(),
		Message:    ev.Message,
		CreatedAt:  ev.At,
	}
	return s.db.Create(&row).Error
}

// ListInstances returns all persisted instances, newest first.
func (s *Store) ListInstances() ([]GridInstanceModel, error) {
	var out []GridInstanceModel
	err := s.db.Order("created_at DESC").Find(&out).Error
	return out, err
}

// GetInstance returns one instance with its open levels.
func (s *Store) GetInstance(id string) (*GridInstanceModel, []GridLevelModel, error) {
	var model GridInstanceModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		return nil, nil, err
	}
	var levels []GridLevelModel
	if err := s.db.Where("instance_id = ?", id).Order("level DESC").Find(&levels).Error; err != nil {
		return nil, nil, err
	}
	return &model, levels, nil
}

// ListEvents returns the most recent events for one instance.
func (s *Store) ListEvents(instanceID string, limit int) ([]GridEventModel, error) {
	var out []GridEventModel
	q := s.db.Where("instance_id = ?", instanceID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// Statistics aggregates lifetime results across all persisted grids.
type Statistics struct {
	TotalGrids  int64   `json:"total_grids"`
	ActiveGrids int64   `json:"active_grids"`
	ClosedGrids int64   `json:"closed_grids"`
	TotalPnL    float64 `json:"total_pnl"`
	TotalTrades int64   `json:"total_trades"`
}

func (s *Store) GetStatistics() (*Statistics, error) {
	var stats Statistics
	if err := s.db.Model(&GridInstanceModel{}).Count(&stats.TotalGrids).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&GridInstanceModel{}).Where("status = ?", "active").Count(&stats.ActiveGrids).Error; err != nil {
		return nil, err
	}
	if err := s.db.Model(&GridInstanceModel{}).Where("status = ?", "closed").Count(&stats.ClosedGrids).Error; err != nil {
		return nil, err
	}
	var pnl sql.NullFloat64
	if err := s.db.Model(&GridInstanceModel{}).Select("COALESCE(SUM(realized_pnl), 0)").Scan(&pnl).Error; err != nil {
		return nil, err
	}
	stats.TotalPnL = pnl.Float64
	if err := s.db.Model(&GridEventModel{}).Where("type IN ?", []string{"buy_fill", "sell_fill"}).
		Count(&stats.TotalTrades).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}
