package store

import "time"

// GridInstanceModel GORM model for the grid_instances table. Prices
// and quantities are stored as floats at the persistence boundary
// only; all arithmetic happens on decimals upstream.
type GridInstanceModel struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	Label        string    `json:"label" gorm:"index"`
	Symbol       string    `json:"symbol" gorm:"not null"`
	Status       string    `json:"status" gorm:"index"`
	LowerPrice   float64   `json:"lower_price"`
	UpperPrice   float64   `json:"upper_price"`
	StepCount    int       `json:"step_count"`
	CurrentLevel int       `json:"current_level"`
	RealizedPnL  float64   `json:"realized_pnl" gorm:"column:realized_pnl"`
	BuyCount     int       `json:"buy_count"`
	SellCount    int       `json:"sell_count"`
	LastPrice    float64   `json:"last_price"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (GridInstanceModel) TableName() string {
	return "grid_instances"
}

// GridLevelModel GORM model for the grid_levels table, one row per
// open position of an instance.
type GridLevelModel struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	InstanceID string    `json:"instance_id" gorm:"index;not null"`
	Level      int       `json:"level"`
	Quantity   float64   `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	OpenedAt   time.Time `json:"opened_at"`
}

func (GridLevelModel) TableName() string {
	return "grid_levels"
}

// GridEventModel GORM model for the grid_events table, the append-only
// trade and lifecycle log.
type GridEventModel struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	InstanceID string    `json:"instance_id" gorm:"index;not null"`
	Label      string    `json:"label"`
	Type       string    `json:"type" gorm:"index"`
	Level      int       `json:"level"`
	Side       string    `json:"side"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	PnL        float64   `json:"pnl"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

func (GridEventModel) TableName() string {
	return "grid_events"
}
