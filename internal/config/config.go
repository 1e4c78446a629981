// Package config defines configuration for both binaries: the live DTC
// bridge and the historical data service. Config is loaded from a YAML
// file with sensitive fields overridable via DTC_* environment variables.
// Each binary's main binds only a few CLI flags via spf13/pflag (--config,
// plus --port for the bridge and --no-pump for the historical service);
// every other setting comes from the file or the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// BridgeConfig is the live DTC<->exchange bridge configuration.
type BridgeConfig struct {
	Port             int           `mapstructure:"port"`
	UpdateClientSpan time.Duration `mapstructure:"update_client_span"`
	Heartbeat        time.Duration `mapstructure:"heartbeat"`
	Timeout          time.Duration `mapstructure:"timeout"`
	TLS              bool          `mapstructure:"tls"`
	CertFile         string        `mapstructure:"cert_file"`
	KeyFile          string        `mapstructure:"key_file"`
	Daemon           bool          `mapstructure:"daemon"`
	PidFile          string        `mapstructure:"pid_file"`

	Exchange ExchangeConfig `mapstructure:"exchange"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ExchangeConfig holds the upstream exchange's REST/WS endpoints and the
// stored API key/secret pair used for L2 HMAC auth.
type ExchangeConfig struct {
	RestBaseURL string `mapstructure:"rest_base_url"`
	WSURL       string `mapstructure:"ws_url"`
	APIKey      string `mapstructure:"api_key"`
	APISecret   string `mapstructure:"api_secret"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the /metrics and /healthz HTTP endpoints.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HistoricalConfig is the historical ingestion/query service configuration.
type HistoricalConfig struct {
	DryRun    bool          `mapstructure:"dry_run"`
	NoPump    bool          `mapstructure:"no_pump"`
	StartDate string        `mapstructure:"start_date"` // RFC3339 date; defaults to genesis
	Port      int           `mapstructure:"port"`
	Daemon    bool          `mapstructure:"daemon"`
	DataDir   string        `mapstructure:"data_dir"`
	PidFile   string        `mapstructure:"pid_file"`
	Symbols   []string      `mapstructure:"symbols"`

	Exchange ExchangeConfig `mapstructure:"exchange"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// LoadBridge reads the live-bridge config from a YAML file with env overrides.
func LoadBridge(path string) (*BridgeConfig, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg BridgeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyExchangeEnv(&cfg.Exchange)
	return &cfg, nil
}

// LoadHistorical reads the historical-service config from a YAML file with
// env overrides.
func LoadHistorical(path string) (*HistoricalConfig, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg HistoricalConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyExchangeEnv(&cfg.Exchange)
	return &cfg, nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("DTC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func applyExchangeEnv(ex *ExchangeConfig) {
	if key := os.Getenv("DTC_API_KEY"); key != "" {
		ex.APIKey = key
	}
	if secret := os.Getenv("DTC_API_SECRET"); secret != "" {
		ex.APISecret = secret
	}
}

// Validate checks required fields on the live bridge config.
func (c *BridgeConfig) Validate() error {
	if c.Port <= 0 {
		return fmt.Errorf("port is required")
	}
	if c.Exchange.RestBaseURL == "" {
		return fmt.Errorf("exchange.rest_base_url is required")
	}
	if c.Exchange.WSURL == "" {
		return fmt.Errorf("exchange.ws_url is required")
	}
	if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
		return fmt.Errorf("exchange api key/secret required (set DTC_API_KEY / DTC_API_SECRET)")
	}
	if c.TLS && (c.CertFile == "" || c.KeyFile == "") {
		return fmt.Errorf("cert_file and key_file are required when tls is enabled")
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = 20 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.UpdateClientSpan <= 0 {
		c.UpdateClientSpan = 30 * time.Second
	}
	return nil
}

// Validate checks required fields on the historical service config.
func (c *HistoricalConfig) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Exchange.RestBaseURL == "" {
		return fmt.Errorf("exchange.rest_base_url is required")
	}
	if !c.NoPump && len(c.Symbols) == 0 {
		return fmt.Errorf("symbols is required unless no_pump is set")
	}
	return nil
}
