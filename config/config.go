// Package config loads process configuration from the environment.
// The resulting struct is passed explicitly into the components that
// need it; credentials never appear anywhere else.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds everything the bot needs at startup.
type Config struct {
	// Exchange access
	APIKey    string
	APISecret string
	DryRun    bool
	// Paper quote balance the dry-run fill simulator starts with.
	DryRunBalance decimal.Decimal

	// Instrument
	Symbol     string // e.g. SOLUSDT
	BaseAsset  string // e.g. SOL
	QuoteAsset string // e.g. USDT

	Grid  GridConfig
	Sizer SizerConfig

	// Manager / lifecycle
	SpawnMinutes    []int         // wall-clock minutes that trigger a new grid
	MaxActiveGrids  int           // cap on concurrently running grids
	GridMaxLifetime time.Duration // flatten and close after this long (0 = unlimited)
	PollInterval    time.Duration

	// Order execution
	OrderTimeout    time.Duration
	MaxOrderRetries int

	// Storage / API
	DBPath        string
	APIServerPort int

	LogLevel string
}

// GridConfig describes one grid's shape. Bounds are derived from the
// center price at spawn time: lower = center*(1-RangePct), upper =
// center*(1+RangePct).
type GridConfig struct {
	RangePct   decimal.Decimal // e.g. 0.003 for ±0.3%
	StepCount  int             // N; levels run 0..N
	StartLevel int             // conventionally the midpoint
	Rounding   string          // "floor" or "nearest"
	DownCross  string          // "accumulate" or "rolldown"
}

// SizerConfig selects how one unit purchase is funded.
type SizerConfig struct {
	Mode        string          // "fixed" or "percent"
	FixedAmount decimal.Decimal // quote currency, fixed mode
	BalancePct  decimal.Decimal // fraction of available balance, percent mode
	MinNotional decimal.Decimal // exchange minimum order value
}

// Load reads configuration from environment variables, applying the
// defaults the strategy has always run with.
func Load() (*Config, error) {
	cfg := &Config{
		APIKey:    os.Getenv("BINANCE_API_KEY"),
		APISecret: os.Getenv("BINANCE_API_SECRET"),
		DryRun:    envBool("DRY_RUN", true),

		DryRunBalance: envDecimal("DRY_RUN_BALANCE", "1000"),

		Symbol:     envStr("SYMBOL", "SOLUSDT"),
		BaseAsset:  envStr("BASE_ASSET", "SOL"),
		QuoteAsset: envStr("QUOTE_ASSET", "USDT"),

		Grid: GridConfig{
			RangePct:   envDecimal("GRID_RANGE_PCT", "0.003"),
			StepCount:  envInt("GRID_STEP_COUNT", 10),
			StartLevel: envInt("GRID_START_LEVEL", 5),
			Rounding:   envStr("GRID_ROUNDING", "floor"),
			DownCross:  envStr("GRID_DOWN_CROSS", "accumulate"),
		},
		Sizer: SizerConfig{
			Mode:        envStr("SIZER_MODE", "percent"),
			FixedAmount: envDecimal("SIZER_FIXED_AMOUNT", "10"),
			BalancePct:  envDecimal("SIZER_BALANCE_PCT", "0.1"),
			MinNotional: envDecimal("SIZER_MIN_NOTIONAL", "5"),
		},

		SpawnMinutes:    envMinutes("SPAWN_MINUTES", []int{0, 15, 30, 45}),
		MaxActiveGrids:  envInt("MAX_ACTIVE_GRIDS", 6),
		GridMaxLifetime: envDuration("GRID_MAX_LIFETIME", 60*time.Minute),
		PollInterval:    envDuration("POLL_INTERVAL", 2*time.Second),

		OrderTimeout:    envDuration("ORDER_TIMEOUT", 10*time.Second),
		MaxOrderRetries: envInt("MAX_ORDER_RETRIES", 3),

		DBPath:        envStr("DB_PATH", "data/gridbot.db"),
		APIServerPort: envInt("API_SERVER_PORT", 8080),

		LogLevel: envStr("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate catches configuration errors at startup; these are the only
// fatal errors in the system.
func (c *Config) validate() error {
	if !c.DryRun && (c.APIKey == "" || c.APISecret == "") {
		return fmt.Errorf("BINANCE_API_KEY and BINANCE_API_SECRET are required unless DRY_RUN=true")
	}
	if c.Grid.StepCount < 2 {
		return fmt.Errorf("GRID_STEP_COUNT must be at least 2, got %d", c.Grid.StepCount)
	}
	if c.Grid.StartLevel <= 0 || c.Grid.StartLevel >= c.Grid.StepCount {
		return fmt.Errorf("GRID_START_LEVEL must be an interior level in (0,%d), got %d",
			c.Grid.StepCount, c.Grid.StartLevel)
	}
	if c.Grid.RangePct.Sign() <= 0 {
		return fmt.Errorf("GRID_RANGE_PCT must be positive, got %s", c.Grid.RangePct)
	}
	switch c.Grid.Rounding {
	case "floor", "nearest":
	default:
		return fmt.Errorf("GRID_ROUNDING must be floor or nearest, got %q", c.Grid.Rounding)
	}
	switch c.Grid.DownCross {
	case "accumulate", "rolldown":
	default:
		return fmt.Errorf("GRID_DOWN_CROSS must be accumulate or rolldown, got %q", c.Grid.DownCross)
	}
	switch c.Sizer.Mode {
	case "fixed", "percent":
	default:
		return fmt.Errorf("SIZER_MODE must be fixed or percent, got %q", c.Sizer.Mode)
	}
	if c.MaxActiveGrids <= 0 {
		return fmt.Errorf("MAX_ACTIVE_GRIDS must be positive, got %d", c.MaxActiveGrids)
	}
	return nil
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.ToLower(v) == "true" || v == "1"
	}
	return def
}

func envDecimal(key, def string) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	d, _ := decimal.NewFromString(def)
	return d
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// envMinutes parses a comma list like "0,15,30,45".
func envMinutes(key string, def []int) []int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil && n >= 0 && n < 60 {
			out = append(out, n)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
