// Package seeder fills the market cache from REST snapshots so readers have
// data before the first live push and after gaps in the stream.
package seeder

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quantnexus/marketstream/internal/model"
)

// Source fetches market snapshots. *api.Client satisfies it.
type Source interface {
	GetSymbols(ctx context.Context) ([]model.Symbol, error)
	GetTickers(ctx context.Context) ([]model.Ticker, error)
	GetOrderBook(ctx context.Context, symbol string, limit int) (*model.OrderBook, error)
	GetTrades(ctx context.Context, symbol string, limit int) ([]model.Trade, error)
	GetKlines(ctx context.Context, symbol, interval string, limit int) ([]model.Kline, error)
}

// Sink receives snapshots. *router.Router satisfies it.
type Sink interface {
	SeedSymbols(symbols []model.Symbol)
	SeedTickers(tickers []model.Ticker)
	SeedOrderBook(ob model.OrderBook)
	SeedTrades(symbol string, trades []model.Trade)
	SeedKlines(symbol, interval string, klines []model.Kline)
}

// Config holds seeder configuration.
type Config struct {
	Interval       time.Duration // Refresh interval (default: 5m)
	Concurrency    int           // Max symbols fetched at once (default: 4)
	Timeout        time.Duration // Per-symbol timeout (default: 30s)
	Symbols        []string      // Fixed watchlist; when empty the Watchlist option decides
	KlineInterval  string
	OrderBookLimit int
	TradeLimit     int
	KlineLimit     int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:       5 * time.Minute,
		Concurrency:    4,
		Timeout:        30 * time.Second,
		KlineInterval:  "1m",
		OrderBookLimit: 20,
		TradeLimit:     50,
		KlineLimit:     500,
	}
}

// Stats summarises seeding activity.
type Stats struct {
	Cycles      int64     `json:"cycles"`
	Symbols     int64     `json:"symbols"`
	Errors      int64     `json:"errors"`
	LastCycleAt time.Time `json:"lastCycleAt"`
}

// Option configures a Seeder.
type Option func(*Seeder)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Seeder) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithWatchlist supplies the symbols to seed in depth when Config.Symbols is
// empty, typically the symbols of the active subscriptions.
func WithWatchlist(f func() []string) Option {
	return func(s *Seeder) {
		s.watchlist = f
	}
}

// Seeder periodically loads REST snapshots into the cache.
type Seeder struct {
	cfg       Config
	source    Source
	sink      Sink
	watchlist func() []string
	logger    *zap.Logger

	cycles      atomic.Int64
	symbols     atomic.Int64
	errors      atomic.Int64
	lastCycleAt atomic.Int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Seeder.
func New(cfg Config, source Source, sink Sink, opts ...Option) *Seeder {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.KlineInterval == "" {
		cfg.KlineInterval = def.KlineInterval
	}

	s := &Seeder{
		cfg:    cfg,
		source: source,
		sink:   sink,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "seeder"))
	return s
}

// Start begins the seeding loop. The first cycle runs immediately.
func (s *Seeder) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("snapshot seeder started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("concurrency", s.cfg.Concurrency),
	)
	return nil
}

// Stop cancels the loop and waits for the running cycle to finish.
func (s *Seeder) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("snapshot seeder stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of seeding counters.
func (s *Seeder) Stats() Stats {
	st := Stats{
		Cycles:  s.cycles.Load(),
		Symbols: s.symbols.Load(),
		Errors:  s.errors.Load(),
	}
	if ns := s.lastCycleAt.Load(); ns > 0 {
		st.LastCycleAt = time.Unix(0, ns)
	}
	return st
}

func (s *Seeder) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.SeedOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SeedOnce(ctx)
		}
	}
}

// SeedOnce runs one full cycle: market-wide lists first, then per-symbol
// depth for the watchlist. Failures are logged and counted; the returned
// error joins them for callers that seed synchronously.
func (s *Seeder) SeedOnce(ctx context.Context) error {
	start := time.Now()
	var errs []error

	if symbols, err := s.source.GetSymbols(ctx); err != nil {
		errs = append(errs, fmt.Errorf("symbols: %w", err))
	} else {
		s.sink.SeedSymbols(symbols)
	}

	if tickers, err := s.source.GetTickers(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tickers: %w", err))
	} else {
		s.sink.SeedTickers(tickers)
	}

	watch := s.watched()

	var mu sync.Mutex
	var fetched atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, symbol := range watch {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := s.seedSymbol(gctx, symbol); err != nil {
				s.logger.Warn("failed to seed symbol", zap.String("symbol", symbol), zap.Error(err))
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return nil
			}
			fetched.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if !errors.Is(err, context.Canceled) {
			s.logger.Debug("seed error", zap.Error(err))
		}
	}

	s.cycles.Add(1)
	s.symbols.Add(fetched.Load())
	s.errors.Add(int64(len(errs)))
	s.lastCycleAt.Store(time.Now().UnixNano())

	s.logger.Info("seed cycle complete",
		zap.Int("symbols", len(watch)),
		zap.Int64("fetched", fetched.Load()),
		zap.Int("errors", len(errs)),
		zap.Duration("duration", time.Since(start)),
	)

	return errors.Join(errs...)
}

// seedSymbol fetches order book, trades and klines for one symbol. Partial
// results are still written.
func (s *Seeder) seedSymbol(ctx context.Context, symbol string) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var errs []error

	ob, err := s.source.GetOrderBook(ctx, symbol, s.cfg.OrderBookLimit)
	if err != nil {
		errs = append(errs, fmt.Errorf("%s orderbook: %w", symbol, err))
	} else {
		ob.Symbol = symbol
		s.sink.SeedOrderBook(*ob)
	}

	trades, err := s.source.GetTrades(ctx, symbol, s.cfg.TradeLimit)
	if err != nil {
		errs = append(errs, fmt.Errorf("%s trades: %w", symbol, err))
	} else {
		s.sink.SeedTrades(symbol, trades)
	}

	klines, err := s.source.GetKlines(ctx, symbol, s.cfg.KlineInterval, s.cfg.KlineLimit)
	if err != nil {
		errs = append(errs, fmt.Errorf("%s klines: %w", symbol, err))
	} else {
		s.sink.SeedKlines(symbol, s.cfg.KlineInterval, klines)
	}

	return errors.Join(errs...)
}

// watched returns the deduplicated, normalized watchlist.
func (s *Seeder) watched() []string {
	list := s.cfg.Symbols
	if len(list) == 0 && s.watchlist != nil {
		list = s.watchlist()
	}

	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, sym := range list {
		sym = model.NormalizeSymbol(sym)
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
