package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/marketsim/market"
)

// Config represents the complete simulator configuration
type Config struct {
	Market     MarketConfig     `json:"market" yaml:"market"`
	History    HistoryConfig    `json:"history" yaml:"history"`
	Engine     EngineConfig     `json:"engine" yaml:"engine"`
	Journal    JournalConfig    `json:"journal" yaml:"journal"`
	Oanda      OandaConfig      `json:"oanda" yaml:"oanda"`
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
}

// MarketConfig names the instrument and the calendar alignment used when
// flooring timestamps to candle boundaries.
type MarketConfig struct {
	Instrument          string `json:"instrument" yaml:"instrument"`
	TradingDayStartHour int    `json:"trading_day_start_hour" yaml:"trading_day_start_hour"`
}

func (m MarketConfig) Alignment() market.Alignment {
	return market.Alignment{DayStartHour: m.TradingDayStartHour, WeekStart: time.Monday}
}

// HistoryConfig controls the local candle store and bulk archives.
type HistoryConfig struct {
	DBPath     string    `json:"db_path" yaml:"db_path"`
	ArchiveDir string    `json:"archive_dir" yaml:"archive_dir"`
	BatchSize  int       `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	Throttle   string    `json:"throttle,omitempty" yaml:"throttle,omitempty"` // e.g. "2s"
	Bootstrap  time.Time `json:"bootstrap,omitempty" yaml:"bootstrap,omitempty"`
}

// ParseThrottle converts the throttle string to time.Duration.
func (h HistoryConfig) ParseThrottle() (time.Duration, error) {
	if h.Throttle == "" {
		return 0, nil
	}
	return time.ParseDuration(h.Throttle)
}

// EngineConfig contains order matching parameters
type EngineConfig struct {
	ExpireWhileClosed bool `json:"expire_while_closed" yaml:"expire_while_closed"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type          string `json:"type" yaml:"type"` // "csv" or "sqlite"
	OrdersFile    string `json:"orders_file,omitempty" yaml:"orders_file,omitempty"`
	SnapshotsFile string `json:"snapshots_file,omitempty" yaml:"snapshots_file,omitempty"`
	DBPath        string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// OandaConfig points at the candle API. The access token is never written to
// config files; it comes from the OANDA_API_KEY environment variable.
type OandaConfig struct {
	BaseURL string `json:"base_url" yaml:"base_url"`
}

// SimulationConfig bounds a simulation run
type SimulationConfig struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
	Tick  string    `json:"tick,omitempty" yaml:"tick,omitempty"` // clock step, e.g. "1m"
}

// ParseTick converts the tick string to time.Duration.
func (s SimulationConfig) ParseTick() (time.Duration, error) {
	if s.Tick == "" {
		return time.Minute, nil
	}
	return time.ParseDuration(s.Tick)
}

// Default returns a runnable configuration for EUR_USD.
func Default() *Config {
	return &Config{
		Market: MarketConfig{
			Instrument:          "EUR_USD",
			TradingDayStartHour: 17,
		},
		History: HistoryConfig{
			DBPath:     "candles.db",
			ArchiveDir: "archives",
			BatchSize:  5000,
			Throttle:   "2s",
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "journal.db",
		},
		Oanda: OandaConfig{
			BaseURL: "https://api-fxpractice.oanda.com",
		},
		Simulation: SimulationConfig{
			Tick: "1m",
		},
	}
}

// LoadFromFile loads configuration from a file (JSON or YAML based on content)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (JSON or YAML based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Market.Instrument == "" {
		return fmt.Errorf("market.instrument is required")
	}
	if !market.KnownInstrument(c.Market.Instrument) {
		return fmt.Errorf("unknown instrument: %s", c.Market.Instrument)
	}
	if c.Market.TradingDayStartHour < 0 || c.Market.TradingDayStartHour > 23 {
		return fmt.Errorf("market.trading_day_start_hour must be 0-23")
	}
	if c.History.DBPath == "" {
		return fmt.Errorf("history.db_path is required")
	}
	if c.History.BatchSize < 0 {
		return fmt.Errorf("history.batch_size must not be negative")
	}
	if _, err := c.History.ParseThrottle(); err != nil {
		return fmt.Errorf("history.throttle: %w", err)
	}
	if c.Journal.Type != "csv" && c.Journal.Type != "sqlite" {
		return fmt.Errorf("journal.type must be 'csv' or 'sqlite'")
	}
	if c.Journal.Type == "csv" && (c.Journal.OrdersFile == "" || c.Journal.SnapshotsFile == "") {
		return fmt.Errorf("journal orders_file and snapshots_file required for CSV type")
	}
	if c.Journal.Type == "sqlite" && c.Journal.DBPath == "" {
		return fmt.Errorf("journal db_path required for sqlite type")
	}
	if _, err := c.Simulation.ParseTick(); err != nil {
		return fmt.Errorf("simulation.tick: %w", err)
	}
	if !c.Simulation.Start.IsZero() && !c.Simulation.End.IsZero() && c.Simulation.End.Before(c.Simulation.Start) {
		return fmt.Errorf("simulation.end must not precede simulation.start")
	}
	return nil
}
