package logger

// Config holds logger settings
type Config struct {
	Level string `json:"level"` // debug, info, warn, error (default: info)
}

// SetDefaults fills in default values
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}
