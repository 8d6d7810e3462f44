package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantnexus/marketstream/internal/auth"
	"github.com/quantnexus/marketstream/internal/config"
	"github.com/quantnexus/marketstream/internal/connection"
	"github.com/quantnexus/marketstream/internal/subscription"
)

func TestManagerConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Gateway.WSURL = "wss://gw.example.com"

	mc := managerConfig(cfg)
	assert.Equal(t, "wss://gw.example.com", mc.URL)
	assert.Equal(t, config.DefaultStreamPath, mc.StreamPath)
	assert.Equal(t, config.DefaultMaxReconnectAttempts, mc.MaxReconnectAttempts)
	assert.Equal(t, config.DefaultReconnectBaseDelay, mc.ReconnectBaseDelay)
	assert.Equal(t, config.DefaultReconnectMaxDelay, mc.ReconnectMaxDelay)
	assert.Equal(t, config.DefaultPingInterval, mc.Client.PingInterval)
	assert.Equal(t, config.DefaultBufferSize, mc.Client.BufferSize)
}

func TestWatchedSymbols(t *testing.T) {
	registry := subscription.NewRegistry()
	registry.Put(subscription.Subscription{Channel: "ticker"})
	registry.Put(subscription.Subscription{Channel: "trade", Symbol: "ETHUSDT"})
	registry.Put(subscription.Subscription{Channel: "orderbook", Symbol: "BTCUSDT"})

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, watchedSymbols(registry))
}

func TestConfiguredStream_ReconnectRestoresSubscriptions(t *testing.T) {
	registry := subscription.NewRegistry()
	manager := connection.NewManager(connection.ManagerConfig{
		URL:                  "ws://127.0.0.1:1",
		ManualReconnectDelay: time.Hour,
	}, auth.NewSession("token"), registry, nil)
	t.Cleanup(func() { manager.Close() })

	stream := &configuredStream{
		Manager: manager,
		subs: []config.SubscriptionConfig{
			{Channel: "ticker", Symbol: "btc/usdt"},
			{Channel: "trade"},
		},
		logger: zap.NewNop(),
	}
	require.NoError(t, stream.apply())
	require.NoError(t, manager.Subscribe("kline", "ETHUSDT", nil))
	require.Equal(t, 3, registry.Len())

	require.NoError(t, stream.Reconnect())

	assert.Equal(t, 2, registry.Len())
	_, ok := registry.Get(subscription.Key("ticker", "BTCUSDT"))
	assert.True(t, ok)
	_, ok = registry.Get(subscription.Key("trade", ""))
	assert.True(t, ok)
	_, ok = registry.Get(subscription.Key("kline", "ETHUSDT"))
	assert.False(t, ok)
}

func TestConfiguredStream_ReconnectAfterClose(t *testing.T) {
	registry := subscription.NewRegistry()
	manager := connection.NewManager(connection.ManagerConfig{URL: "ws://127.0.0.1:1"}, auth.NewSession("token"), registry, nil)
	require.NoError(t, manager.Close())

	stream := &configuredStream{
		Manager: manager,
		subs:    []config.SubscriptionConfig{{Channel: "ticker", Symbol: "BTCUSDT"}},
		logger:  zap.NewNop(),
	}
	assert.ErrorIs(t, stream.Reconnect(), connection.ErrManagerClosed)
	assert.Zero(t, registry.Len())
}
