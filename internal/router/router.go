package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/quantnexus/marketstream/internal/model"
	"github.com/quantnexus/marketstream/internal/notify"
	"github.com/quantnexus/marketstream/internal/subscription"
)

var errUnknownType = errors.New("unknown message type")

// Router dispatches inbound stream messages to registered callbacks and keeps
// the Cache current.
type Router struct {
	cfg      Config
	registry *subscription.Registry
	cache    *Cache
	logger   *zap.Logger

	routed notify.Hub[model.MarketMessage]

	mu    sync.Mutex
	stats Stats
}

// NewRouter creates a Router that resolves callbacks from registry.
func NewRouter(cfg Config, registry *subscription.Registry, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = subscription.NewRegistry()
	}

	return &Router{
		cfg:      cfg,
		registry: registry,
		cache:    newCache(cfg.KlineLimit, cfg.TradeLimit),
		logger:   logger.With(zap.String("component", "router")),
	}
}

// Cache returns the local market cache.
func (r *Router) Cache() *Cache {
	return r.cache
}

// Registry returns the registry callbacks are resolved from.
func (r *Router) Registry() *subscription.Registry {
	return r.registry
}

// OnMessage registers l for every routed message, after callback dispatch and
// cache update. The relay hangs off this.
func (r *Router) OnMessage(l func(model.MarketMessage)) (unsubscribe func()) {
	return r.routed.Subscribe(l)
}

// Stats returns current statistics.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Route handles one decoded stream message. The registered callback (if any)
// gets the raw payload; the cache is updated regardless.
func (r *Router) Route(msg model.MarketMessage) {
	r.count(func(s *Stats) { s.MessagesReceived++ })

	r.dispatch(msg)

	if err := r.apply(msg, SourceStream); err != nil {
		if errors.Is(err, errUnknownType) {
			r.count(func(s *Stats) { s.UnknownMessages++ })
			r.logger.Debug("skipping message type", zap.String("type", msg.Type), zap.String("symbol", msg.Symbol))
		} else {
			r.count(func(s *Stats) { s.ParseErrors++ })
			r.logger.Warn("failed to decode payload",
				zap.String("type", msg.Type),
				zap.String("symbol", msg.Symbol),
				zap.Error(err),
			)
		}
	} else {
		r.count(func(s *Stats) { s.CacheUpdates++ })
	}

	r.routed.Publish(msg)
}

// dispatch looks up "type:symbol", falling back to a channel-wide entry.
func (r *Router) dispatch(msg model.MarketMessage) {
	sub, ok := r.registry.Get(subscription.Key(msg.Type, msg.Symbol))
	if !ok && msg.Symbol != "" {
		sub, ok = r.registry.Get(subscription.Key(msg.Type, ""))
	}
	if !ok || sub.Callback == nil {
		return
	}
	r.invoke(sub, msg.Data)
}

func (r *Router) invoke(sub subscription.Subscription, payload json.RawMessage) {
	defer func() {
		if rec := recover(); rec != nil {
			r.count(func(s *Stats) { s.CallbackPanics++ })
			r.logger.Error("subscription callback panicked",
				zap.String("key", sub.Key()),
				zap.Any("panic", rec),
			)
		}
	}()

	r.count(func(s *Stats) { s.CallbacksInvoked++ })
	sub.Callback(payload)
}

// apply decodes the payload by message type and writes it to the cache.
// The envelope symbol always wins so the cache key matches the callback key;
// the payload symbol is used only for channel-wide messages. Timestamps fall
// back to the envelope when the payload omits them.
func (r *Router) apply(msg model.MarketMessage, source string) error {
	switch msg.Type {
	case model.ChannelTicker:
		var t model.Ticker
		if err := decodePayload(msg.Data, &t); err != nil {
			return err
		}
		t.Symbol = symbolOf(msg, t.Symbol)
		if t.Timestamp == 0 {
			t.Timestamp = msg.Timestamp
		}
		r.cache.setTicker(t, source)

	case model.ChannelOrderBook:
		var ob model.OrderBook
		if err := decodePayload(msg.Data, &ob); err != nil {
			return err
		}
		ob.Symbol = symbolOf(msg, ob.Symbol)
		if ob.Timestamp == 0 {
			ob.Timestamp = msg.Timestamp
		}
		r.cache.setOrderBook(ob, source)

	case model.ChannelKline:
		var k model.Kline
		if err := decodePayload(msg.Data, &k); err != nil {
			return err
		}
		k.Symbol = symbolOf(msg, k.Symbol)
		if k.Interval == "" {
			return errors.New("kline payload has no interval")
		}
		r.cache.upsertKline(k, source)

	case model.ChannelTrade:
		var t model.Trade
		if err := decodePayload(msg.Data, &t); err != nil {
			return err
		}
		t.Symbol = symbolOf(msg, t.Symbol)
		if t.Time == 0 {
			t.Time = msg.Timestamp
		}
		r.cache.pushTrade(t, source)

	default:
		return fmt.Errorf("%w: %q", errUnknownType, msg.Type)
	}
	return nil
}

// symbolOf returns the envelope symbol, or the normalized payload symbol when
// the envelope carries none.
func symbolOf(msg model.MarketMessage, payload string) string {
	if msg.Symbol != "" {
		return msg.Symbol
	}
	return model.NormalizeSymbol(payload)
}

func decodePayload(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return errors.New("empty payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

func (r *Router) count(fn func(*Stats)) {
	r.mu.Lock()
	fn(&r.stats)
	r.mu.Unlock()
}

// -----------------------------------------------------------------------------
// Seeding from REST snapshots. Same caps and ordering as live messages.
// -----------------------------------------------------------------------------

// SeedSymbols replaces the exchange symbol list.
func (r *Router) SeedSymbols(symbols []model.Symbol) {
	r.cache.setSymbols(symbols)
}

// SeedTickers writes a batch of tickers.
func (r *Router) SeedTickers(tickers []model.Ticker) {
	for _, t := range tickers {
		if t.Symbol == "" {
			continue
		}
		r.cache.setTicker(t, SourceSeed)
	}
}

// SeedOrderBook replaces the book for ob.Symbol.
func (r *Router) SeedOrderBook(ob model.OrderBook) {
	if ob.Symbol == "" {
		return
	}
	r.cache.setOrderBook(ob, SourceSeed)
}

// SeedTrades replaces the recent trades for symbol.
func (r *Router) SeedTrades(symbol string, trades []model.Trade) {
	for i := range trades {
		if trades[i].Symbol == "" {
			trades[i].Symbol = symbol
		}
	}
	r.cache.replaceTrades(symbol, trades, SourceSeed)
}

// SeedKlines merges candles into the (symbol, interval) series.
func (r *Router) SeedKlines(symbol, interval string, klines []model.Kline) {
	for i := range klines {
		klines[i].Symbol = symbol
		klines[i].Interval = interval
	}
	r.cache.upsertKlines(symbol, interval, klines, SourceSeed)
}
