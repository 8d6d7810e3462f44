package router

import (
	"sort"
	"sync"

	"github.com/quantnexus/marketstream/internal/model"
	"github.com/quantnexus/marketstream/internal/notify"
)

// Cache is the local market state built from routed messages and REST seeds.
// Readers get copies; writes happen only through the Router.
type Cache struct {
	klineLimit int
	tradeLimit int

	mu         sync.RWMutex
	symbols    []model.Symbol
	tickers    map[string]model.Ticker
	orderBooks map[string]model.OrderBook
	klines     map[string][]model.Kline // key: symbol:interval
	trades     map[string][]model.Trade // newest first

	updates notify.Hub[Update]
}

func newCache(klineLimit, tradeLimit int) *Cache {
	if klineLimit < 1 {
		klineLimit = DefaultConfig().KlineLimit
	}
	if tradeLimit < 1 {
		tradeLimit = DefaultConfig().TradeLimit
	}
	return &Cache{
		klineLimit: klineLimit,
		tradeLimit: tradeLimit,
		tickers:    make(map[string]model.Ticker),
		orderBooks: make(map[string]model.OrderBook),
		klines:     make(map[string][]model.Kline),
		trades:     make(map[string][]model.Trade),
	}
}

func klineKey(symbol, interval string) string {
	return symbol + ":" + interval
}

// OnUpdate registers l for every cache mutation. Listeners run synchronously
// after the write lock is released.
func (c *Cache) OnUpdate(l func(Update)) (unsubscribe func()) {
	return c.updates.Subscribe(l)
}

// Ticker returns the latest ticker for symbol.
func (c *Cache) Ticker(symbol string) (model.Ticker, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tickers[symbol]
	return t, ok
}

// Tickers returns every cached ticker sorted by symbol.
func (c *Cache) Tickers() []model.Ticker {
	c.mu.RLock()
	out := make([]model.Ticker, 0, len(c.tickers))
	for _, t := range c.tickers {
		out = append(out, t)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// OrderBook returns the latest book for symbol.
func (c *Cache) OrderBook(symbol string) (model.OrderBook, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ob, ok := c.orderBooks[symbol]
	if !ok {
		return model.OrderBook{}, false
	}
	return ob.Clone(), true
}

// Klines returns the series for (symbol, interval), oldest first.
func (c *Cache) Klines(symbol, interval string) []model.Kline {
	c.mu.RLock()
	defer c.mu.RUnlock()
	series := c.klines[klineKey(symbol, interval)]
	if len(series) == 0 {
		return nil
	}
	return append([]model.Kline(nil), series...)
}

// KlineIntervals returns the intervals cached for symbol, sorted.
func (c *Cache) KlineIntervals(symbol string) []string {
	prefix := symbol + ":"
	c.mu.RLock()
	var out []string
	for key := range c.klines {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			out = append(out, key[len(prefix):])
		}
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Trades returns recent trades for symbol, newest first.
func (c *Cache) Trades(symbol string) []model.Trade {
	c.mu.RLock()
	defer c.mu.RUnlock()
	trades := c.trades[symbol]
	if len(trades) == 0 {
		return nil
	}
	return append([]model.Trade(nil), trades...)
}

// Symbols returns the exchange symbol list from the last seed.
func (c *Cache) Symbols() []model.Symbol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Symbol(nil), c.symbols...)
}

// -----------------------------------------------------------------------------
// Mutation (Router only)
// -----------------------------------------------------------------------------

func (c *Cache) setTicker(t model.Ticker, source string) {
	c.mu.Lock()
	c.tickers[t.Symbol] = t
	c.mu.Unlock()
	c.updates.Publish(Update{Type: model.ChannelTicker, Symbol: t.Symbol, Source: source})
}

func (c *Cache) setOrderBook(ob model.OrderBook, source string) {
	c.mu.Lock()
	c.orderBooks[ob.Symbol] = ob.Clone()
	c.mu.Unlock()
	c.updates.Publish(Update{Type: model.ChannelOrderBook, Symbol: ob.Symbol, Source: source})
}

// upsertKline inserts k in open-time order. An existing candle with the same
// open time is replaced in place; past the limit the oldest candles go.
func (c *Cache) upsertKline(k model.Kline, source string) {
	key := klineKey(k.Symbol, k.Interval)

	c.mu.Lock()
	c.klines[key] = c.insertKlineLocked(c.klines[key], k)
	c.mu.Unlock()

	c.updates.Publish(Update{Type: model.ChannelKline, Symbol: k.Symbol, Interval: k.Interval, Source: source})
}

// upsertKlines merges a batch into one series and publishes a single update.
func (c *Cache) upsertKlines(symbol, interval string, klines []model.Kline, source string) {
	if len(klines) == 0 {
		return
	}
	key := klineKey(symbol, interval)

	c.mu.Lock()
	series := c.klines[key]
	for _, k := range klines {
		series = c.insertKlineLocked(series, k)
	}
	c.klines[key] = series
	c.mu.Unlock()

	c.updates.Publish(Update{Type: model.ChannelKline, Symbol: symbol, Interval: interval, Source: source})
}

func (c *Cache) insertKlineLocked(series []model.Kline, k model.Kline) []model.Kline {
	i := sort.Search(len(series), func(i int) bool { return series[i].OpenTime >= k.OpenTime })
	if i < len(series) && series[i].OpenTime == k.OpenTime {
		series[i] = k
		return series
	}

	series = append(series, model.Kline{})
	copy(series[i+1:], series[i:])
	series[i] = k

	if over := len(series) - c.klineLimit; over > 0 {
		copy(series, series[over:])
		clear(series[len(series)-over:])
		series = series[:len(series)-over]
	}
	return series
}

// pushTrade prepends t; past the limit the oldest trades fall off the tail.
func (c *Cache) pushTrade(t model.Trade, source string) {
	c.mu.Lock()
	trades := append(c.trades[t.Symbol], model.Trade{})
	copy(trades[1:], trades)
	trades[0] = t
	if len(trades) > c.tradeLimit {
		trades = trades[:c.tradeLimit]
	}
	c.trades[t.Symbol] = trades
	c.mu.Unlock()

	c.updates.Publish(Update{Type: model.ChannelTrade, Symbol: t.Symbol, Source: source})
}

// replaceTrades installs a REST snapshot, newest first, capped.
func (c *Cache) replaceTrades(symbol string, trades []model.Trade, source string) {
	sorted := append([]model.Trade(nil), trades...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time > sorted[j].Time })
	if len(sorted) > c.tradeLimit {
		sorted = sorted[:c.tradeLimit]
	}

	c.mu.Lock()
	c.trades[symbol] = sorted
	c.mu.Unlock()

	c.updates.Publish(Update{Type: model.ChannelTrade, Symbol: symbol, Source: source})
}

func (c *Cache) setSymbols(symbols []model.Symbol) {
	c.mu.Lock()
	c.symbols = append([]model.Symbol(nil), symbols...)
	c.mu.Unlock()
	c.updates.Publish(Update{Type: "symbols", Source: SourceSeed})
}
