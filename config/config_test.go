package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()
	require.NoError(t, Default().Validate())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
account:
  name: alice
  currency: EUR
broker:
  url: https://broker.example.com
  timeout: 10s
payout:
  fee_rate: "0.02"
copy_trade:
  max_retries: 5
reconcile:
  interval: 1m
  tolerance: "0.05"
journal:
  type: memory
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "alice", cfg.Account.Name)
	assert.Equal(t, "EUR", cfg.Account.Currency)
	assert.Equal(t, "https://broker.example.com", cfg.Broker.URL)
	assert.Equal(t, 5, cfg.CopyTrade.MaxRetries)
	assert.Equal(t, "memory", cfg.Journal.Type)

	timeout, err := cfg.Broker.ParseTimeout()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, timeout)

	interval, err := cfg.Reconcile.ParseInterval()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, interval)
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{
  "account": {"name": "bob", "currency": "USD"},
  "broker": {"url": "https://broker.example.com"},
  "journal": {"type": "sqlite", "db_path": "./ledger.sqlite"}
}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bob", cfg.Account.Name)
	assert.Equal(t, "./ledger.sqlite", cfg.Journal.DBPath)
	// Sections the file omits keep their defaults.
	assert.Equal(t, "0.01", cfg.Payout.FeeRate)
}

func TestAPIKeyFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
account: {currency: USD}
broker: {url: "https://broker.example.com", api_key: from-file}
journal: {type: memory}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	t.Setenv("BROKER_API_KEY", "from-env")
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Broker.APIKey)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing currency", func(c *Config) { c.Account.Currency = "" }},
		{"missing broker url", func(c *Config) { c.Broker.URL = "" }},
		{"bad timeout", func(c *Config) { c.Broker.Timeout = "soon" }},
		{"fee rate too high", func(c *Config) { c.Payout.FeeRate = "1.5" }},
		{"fee rate not a number", func(c *Config) { c.Payout.FeeRate = "one percent" }},
		{"negative retries", func(c *Config) { c.CopyTrade.MaxRetries = -1 }},
		{"bad interval", func(c *Config) { c.Reconcile.Interval = "every hour" }},
		{"unknown journal type", func(c *Config) { c.Journal.Type = "csv" }},
		{"sqlite without path", func(c *Config) { c.Journal.DBPath = "" }},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"config.yaml", "config.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Default().SaveToFile(path))

		cfg, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	}
}
