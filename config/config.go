package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Account   AccountConfig   `json:"account" yaml:"account"`
	Broker    BrokerConfig    `json:"broker" yaml:"broker"`
	Payout    PayoutConfig    `json:"payout" yaml:"payout"`
	CopyTrade CopyTradeConfig `json:"copy_trade" yaml:"copy_trade"`
	Reconcile ReconcileConfig `json:"reconcile" yaml:"reconcile"`
	Journal   JournalConfig   `json:"journal" yaml:"journal"`
	Log       LogConfig       `json:"log" yaml:"log"`
}

// AccountConfig contains default account parameters
type AccountConfig struct {
	Name     string `json:"name" yaml:"name"`
	Currency string `json:"currency" yaml:"currency"`
}

// BrokerConfig contains broker API connection parameters
type BrokerConfig struct {
	URL     string `json:"url" yaml:"url"`
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"` // e.g. "30s"
}

// ParseTimeout converts the timeout string to time.Duration. Empty means use
// the client default.
func (b BrokerConfig) ParseTimeout() (time.Duration, error) {
	if b.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(b.Timeout)
}

// PayoutConfig contains payout workflow parameters
type PayoutConfig struct {
	FeeRate string `json:"fee_rate" yaml:"fee_rate"` // e.g. "0.01" for 1%
}

// CopyTradeConfig contains relay parameters
type CopyTradeConfig struct {
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// ReconcileConfig contains balance reconciler parameters
type ReconcileConfig struct {
	Interval  string `json:"interval" yaml:"interval"`   // e.g. "5m"
	Tolerance string `json:"tolerance" yaml:"tolerance"` // e.g. "0.01"
}

// ParseInterval converts the sweep interval string to time.Duration. Empty
// means use the reconciler default.
func (r ReconcileConfig) ParseInterval() (time.Duration, error) {
	if r.Interval == "" {
		return 0, nil
	}
	return time.ParseDuration(r.Interval)
}

// JournalConfig contains transaction journal parameters
type JournalConfig struct {
	Type   string `json:"type" yaml:"type"` // "memory" or "sqlite"
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LogConfig contains logging parameters
type LogConfig struct {
	Level string `json:"level" yaml:"level"` // logrus level name
}

// LoadFromFile loads configuration from a file (JSON or YAML based on extension)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	// The API key rarely belongs in a config file; the environment wins when
	// both are set.
	if v := os.Getenv("BROKER_API_KEY"); v != "" {
		cfg.Broker.APIKey = v
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

	if (len(path) > 5 && path[len(path)-5:] == ".yaml") || (len(path) > 4 && path[len(path)-4:] == ".yml") {
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
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Broker.URL == "" {
		return fmt.Errorf("broker.url is required")
	}
	if _, err := c.Broker.ParseTimeout(); err != nil {
		return fmt.Errorf("broker.timeout: %w", err)
	}
	if c.Payout.FeeRate != "" {
		var rate float64
		if _, err := fmt.Sscanf(c.Payout.FeeRate, "%f", &rate); err != nil {
			return fmt.Errorf("payout.fee_rate must be a decimal number")
		}
		if rate < 0 || rate >= 1 {
			return fmt.Errorf("payout.fee_rate must be in [0, 1)")
		}
	}
	if c.CopyTrade.MaxRetries < 0 {
		return fmt.Errorf("copy_trade.max_retries must not be negative")
	}
	if _, err := c.Reconcile.ParseInterval(); err != nil {
		return fmt.Errorf("reconcile.interval: %w", err)
	}
	if c.Journal.Type != "memory" && c.Journal.Type != "sqlite" {
		return fmt.Errorf("journal.type must be 'memory' or 'sqlite'")
	}
	if c.Journal.Type == "sqlite" && c.Journal.DBPath == "" {
		return fmt.Errorf("journal db_path required for SQLite type")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{
			Name:     "primary",
			Currency: "USD",
		},
		Broker: BrokerConfig{
			URL:     "http://localhost:8080",
			Timeout: "30s",
		},
		Payout: PayoutConfig{
			FeeRate: "0.01",
		},
		CopyTrade: CopyTradeConfig{
			MaxRetries: 3,
		},
		Reconcile: ReconcileConfig{
			Interval:  "5m",
			Tolerance: "0.01",
		},
		Journal: JournalConfig{
			Type:   "sqlite",
			DBPath: "./copyledger.sqlite",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
