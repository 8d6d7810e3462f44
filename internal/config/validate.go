package config

import (
	"errors"
	"fmt"
	"net/url"

	"go.uber.org/zap/zapcore"

	"github.com/quantnexus/marketstream/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if err := validateURL("gateway.ws_url", c.Gateway.WSURL, "ws", "wss"); err != nil {
		return err
	}
	if err := validateURL("gateway.rest_url", c.Gateway.RestURL, "http", "https"); err != nil {
		return err
	}
	if c.Gateway.MaxRetries < 0 {
		return errors.New("gateway.max_retries must be >= 0")
	}

	if c.Stream.MaxReconnectAttempts < 1 {
		return errors.New("stream.max_reconnect_attempts must be >= 1")
	}
	if c.Stream.ReconnectBaseDelay > c.Stream.ReconnectMaxDelay {
		return fmt.Errorf("stream.reconnect_base_delay (%s) cannot exceed reconnect_max_delay (%s)",
			c.Stream.ReconnectBaseDelay, c.Stream.ReconnectMaxDelay)
	}
	if c.Stream.PingTimeout <= c.Stream.PingInterval {
		return fmt.Errorf("stream.ping_timeout (%s) must exceed ping_interval (%s)",
			c.Stream.PingTimeout, c.Stream.PingInterval)
	}
	if c.Stream.BufferSize < 1 {
		return errors.New("stream.buffer_size must be >= 1")
	}

	if c.Cache.KlineLimit < 1 {
		return errors.New("cache.kline_limit must be >= 1")
	}
	if c.Cache.TradeLimit < 1 {
		return errors.New("cache.trade_limit must be >= 1")
	}

	for i, sub := range c.Subscriptions {
		if !model.IsChannel(sub.Channel) {
			return fmt.Errorf("subscriptions[%d].channel %q is not one of %v", i, sub.Channel, model.Channels)
		}
	}

	if c.Seeder.Enabled {
		if c.Seeder.Concurrency < 1 {
			return errors.New("seeder.concurrency must be >= 1")
		}
		if c.Seeder.Interval < 0 {
			return errors.New("seeder.interval must be >= 0")
		}
	}

	if c.Relay.Enabled {
		if err := validateURL("relay.url", c.Relay.URL, "nats", "tls"); err != nil {
			return err
		}
	}

	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		return errors.New("http.addr is required when http is enabled")
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}

	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("%s must use one of %v, got %q", field, schemes, u.Scheme)
}
