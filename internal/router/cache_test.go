package router

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantnexus/marketstream/internal/model"
)

func TestCache_KlineOutOfOrderInsert(t *testing.T) {
	c := newCache(3, 10)

	for _, ot := range []int64{300, 100, 200, 400, 250} {
		c.upsertKline(model.Kline{Symbol: "BTCUSDT", Interval: "1m", OpenTime: ot}, SourceStream)
	}

	series := c.Klines("BTCUSDT", "1m")
	require.Len(t, series, 3)
	assert.Equal(t, []int64{250, 300, 400}, []int64{series[0].OpenTime, series[1].OpenTime, series[2].OpenTime})
}

func TestCache_KlineOlderThanWindowIsDropped(t *testing.T) {
	c := newCache(2, 10)
	c.upsertKline(model.Kline{Symbol: "X", Interval: "1m", OpenTime: 200}, SourceStream)
	c.upsertKline(model.Kline{Symbol: "X", Interval: "1m", OpenTime: 300}, SourceStream)
	c.upsertKline(model.Kline{Symbol: "X", Interval: "1m", OpenTime: 100}, SourceStream)

	series := c.Klines("X", "1m")
	require.Len(t, series, 2)
	assert.Equal(t, int64(200), series[0].OpenTime)
}

func TestCache_ReadersGetCopies(t *testing.T) {
	c := newCache(10, 10)
	c.pushTrade(model.Trade{Symbol: "BTCUSDT", ID: 1}, SourceStream)
	c.upsertKline(model.Kline{Symbol: "BTCUSDT", Interval: "1m", OpenTime: 1}, SourceStream)
	c.setOrderBook(model.OrderBook{Symbol: "BTCUSDT", Bids: []model.PriceLevel{{Price: decimal.NewFromInt(1)}}}, SourceStream)

	trades := c.Trades("BTCUSDT")
	trades[0].ID = 99
	klines := c.Klines("BTCUSDT", "1m")
	klines[0].OpenTime = 99
	ob, _ := c.OrderBook("BTCUSDT")
	ob.Bids[0].Price = decimal.NewFromInt(99)

	assert.Equal(t, int64(1), c.Trades("BTCUSDT")[0].ID)
	assert.Equal(t, int64(1), c.Klines("BTCUSDT", "1m")[0].OpenTime)
	ob, _ = c.OrderBook("BTCUSDT")
	assert.Equal(t, "1", ob.Bids[0].Price.String())
}

func TestCache_MissingEntries(t *testing.T) {
	c := newCache(10, 10)
	_, ok := c.Ticker("NOPE")
	assert.False(t, ok)
	_, ok = c.OrderBook("NOPE")
	assert.False(t, ok)
	assert.Nil(t, c.Klines("NOPE", "1m"))
	assert.Nil(t, c.Trades("NOPE"))
	assert.Empty(t, c.Tickers())
}

func TestCache_OnUpdate(t *testing.T) {
	c := newCache(10, 10)
	var updates []Update
	unsub := c.OnUpdate(func(u Update) { updates = append(updates, u) })

	c.setTicker(model.Ticker{Symbol: "BTCUSDT"}, SourceStream)
	c.upsertKline(model.Kline{Symbol: "BTCUSDT", Interval: "5m"}, SourceSeed)
	unsub()
	c.pushTrade(model.Trade{Symbol: "BTCUSDT"}, SourceStream)

	assert.Equal(t, []Update{
		{Type: model.ChannelTicker, Symbol: "BTCUSDT", Source: SourceStream},
		{Type: model.ChannelKline, Symbol: "BTCUSDT", Interval: "5m", Source: SourceSeed},
	}, updates)
}

func TestCache_ReplaceTradesCaps(t *testing.T) {
	c := newCache(10, 2)
	c.replaceTrades("BTCUSDT", []model.Trade{{ID: 1, Time: 1}, {ID: 2, Time: 2}, {ID: 3, Time: 3}}, SourceSeed)

	trades := c.Trades("BTCUSDT")
	require.Len(t, trades, 2)
	assert.Equal(t, int64(3), trades[0].ID)
	assert.Equal(t, int64(2), trades[1].ID)
}

func TestCache_MarketStats(t *testing.T) {
	c := newCache(10, 10)
	for _, tk := range []model.Ticker{
		{Symbol: "AAA", PriceChangePercent: decimal.RequireFromString("5.5"), QuoteVolume: decimal.NewFromInt(100)},
		{Symbol: "BBB", PriceChangePercent: decimal.RequireFromString("12"), QuoteVolume: decimal.NewFromInt(50)},
		{Symbol: "CCC", PriceChangePercent: decimal.RequireFromString("-3"), QuoteVolume: decimal.NewFromInt(300)},
		{Symbol: "DDD", PriceChangePercent: decimal.Zero, QuoteVolume: decimal.NewFromInt(1)},
	} {
		c.setTicker(tk, SourceSeed)
	}

	stats := c.MarketStats()
	assert.Equal(t, 2, stats.Gainers)
	assert.Equal(t, 1, stats.Losers)
	assert.Equal(t, 1, stats.Unchanged)
	assert.Equal(t, 4, stats.Symbols)
	assert.Equal(t, "451", stats.TotalVolume24h.String())

	gainers := c.TopGainers(10)
	require.Len(t, gainers, 2)
	assert.Equal(t, "BBB", gainers[0].Symbol)

	losers := c.TopLosers(10)
	require.Len(t, losers, 1)
	assert.Equal(t, "CCC", losers[0].Symbol)

	vol := c.TopVolume(2)
	require.Len(t, vol, 2)
	assert.Equal(t, []string{"CCC", "AAA"}, []string{vol[0].Symbol, vol[1].Symbol})

	assert.Nil(t, c.TopVolume(0))
}
