package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultWSURL                = "ws://localhost:8080"
	DefaultRestURL              = "http://localhost:8080"
	DefaultStreamPath           = "/ws/market-data/stream"
	DefaultAPITimeout           = 10 * time.Second
	DefaultMaxRetries           = 3
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxDelay    = 30 * time.Second
	DefaultManualReconnectDelay = 1 * time.Second
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultPingInterval         = 30 * time.Second
	DefaultPingTimeout          = 90 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultBufferSize           = 1000
	DefaultKlineLimit           = 500
	DefaultTradeLimit           = 100
	DefaultSeedInterval         = 5 * time.Minute
	DefaultSeedConcurrency      = 4
	DefaultSeedKlineInterval    = "1m"
	DefaultSeedOrderBookLimit   = 20
	DefaultSeedTradeLimit       = 50
	DefaultSeedKlineLimit       = 500
	DefaultRelayURL             = "nats://127.0.0.1:4222"
	DefaultRelaySubjectPrefix   = "marketdata"
	DefaultRelayName            = "marketstream"
	DefaultHTTPAddr             = ":8090"
	DefaultShutdownTimeout      = 5 * time.Second
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "json"
)

func (c *Config) applyDefaults() {
	// Gateway
	if c.Gateway.WSURL == "" {
		c.Gateway.WSURL = DefaultWSURL
	}
	if c.Gateway.RestURL == "" {
		c.Gateway.RestURL = DefaultRestURL
	}
	if c.Gateway.StreamPath == "" {
		c.Gateway.StreamPath = DefaultStreamPath
	}
	if c.Gateway.Timeout == 0 {
		c.Gateway.Timeout = DefaultAPITimeout
	}
	if c.Gateway.MaxRetries == 0 {
		c.Gateway.MaxRetries = DefaultMaxRetries
	}

	// Stream
	if c.Stream.MaxReconnectAttempts == 0 {
		c.Stream.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.ManualReconnectDelay == 0 {
		c.Stream.ManualReconnectDelay = DefaultManualReconnectDelay
	}
	if c.Stream.HandshakeTimeout == 0 {
		c.Stream.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.PingTimeout == 0 {
		c.Stream.PingTimeout = DefaultPingTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultBufferSize
	}

	// Cache
	if c.Cache.KlineLimit == 0 {
		c.Cache.KlineLimit = DefaultKlineLimit
	}
	if c.Cache.TradeLimit == 0 {
		c.Cache.TradeLimit = DefaultTradeLimit
	}

	// Seeder
	if c.Seeder.Interval == 0 {
		c.Seeder.Interval = DefaultSeedInterval
	}
	if c.Seeder.Concurrency == 0 {
		c.Seeder.Concurrency = DefaultSeedConcurrency
	}
	if c.Seeder.KlineInterval == "" {
		c.Seeder.KlineInterval = DefaultSeedKlineInterval
	}
	if c.Seeder.OrderBookLimit == 0 {
		c.Seeder.OrderBookLimit = DefaultSeedOrderBookLimit
	}
	if c.Seeder.TradeLimit == 0 {
		c.Seeder.TradeLimit = DefaultSeedTradeLimit
	}
	if c.Seeder.KlineLimit == 0 {
		c.Seeder.KlineLimit = DefaultSeedKlineLimit
	}

	// Relay
	if c.Relay.URL == "" {
		c.Relay.URL = DefaultRelayURL
	}
	if c.Relay.SubjectPrefix == "" {
		c.Relay.SubjectPrefix = DefaultRelaySubjectPrefix
	}
	if c.Relay.Name == "" {
		c.Relay.Name = DefaultRelayName
	}

	// HTTP
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = DefaultShutdownTimeout
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
