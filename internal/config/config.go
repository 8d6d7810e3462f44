// Package config loads the marketstream YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the marketstream binary.
type Config struct {
	Gateway       GatewayConfig        `yaml:"gateway"`
	Auth          AuthConfig           `yaml:"auth"`
	Stream        StreamConfig         `yaml:"stream"`
	Cache         CacheConfig          `yaml:"cache"`
	Subscriptions []SubscriptionConfig `yaml:"subscriptions"`
	Seeder        SeederConfig         `yaml:"seeder"`
	Relay         RelayConfig          `yaml:"relay"`
	HTTP          HTTPConfig           `yaml:"http"`
	Log           LogConfig            `yaml:"log"`
}

// GatewayConfig locates the platform gateway.
type GatewayConfig struct {
	WSURL      string        `yaml:"ws_url"`
	RestURL    string        `yaml:"rest_url"`
	StreamPath string        `yaml:"stream_path"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// AuthConfig supplies the bearer credential. Token wins over TokenFile.
type AuthConfig struct {
	Token     string `yaml:"token"`
	TokenFile string `yaml:"token_file"`
}

// StreamConfig tunes the stream connection and its reconnect policy.
type StreamConfig struct {
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	ReconnectBaseDelay   time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay    time.Duration `yaml:"reconnect_max_delay"`
	ManualReconnectDelay time.Duration `yaml:"manual_reconnect_delay"`
	HandshakeTimeout     time.Duration `yaml:"handshake_timeout"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	PingTimeout          time.Duration `yaml:"ping_timeout"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	BufferSize           int           `yaml:"buffer_size"`
}

// CacheConfig bounds the local market cache.
type CacheConfig struct {
	KlineLimit int `yaml:"kline_limit"`
	TradeLimit int `yaml:"trade_limit"`
}

// SubscriptionConfig is a subscription applied at startup. Symbol may be empty
// for channel-wide streams.
type SubscriptionConfig struct {
	Channel string `yaml:"channel"`
	Symbol  string `yaml:"symbol"`
}

// SeederConfig controls REST snapshot seeding of the cache.
type SeederConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Interval       time.Duration `yaml:"interval"`
	Concurrency    int           `yaml:"concurrency"`
	Symbols        []string      `yaml:"symbols"`
	KlineInterval  string        `yaml:"kline_interval"`
	OrderBookLimit int           `yaml:"orderbook_limit"`
	TradeLimit     int           `yaml:"trade_limit"`
	KlineLimit     int           `yaml:"kline_limit"`
}

// RelayConfig controls republishing routed messages to NATS.
type RelayConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
	Name          string `yaml:"name"`
}

// HTTPConfig controls the local state API.
type HTTPConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig selects the zap logger flavour.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// Load reads a YAML file, expanding ${VAR} references from the environment.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// LoadWithDefaults is Load followed by applyDefaults.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads, applies defaults and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Default returns a configuration with every default applied, for binaries
// started without a config file.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
