package seeder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantnexus/marketstream/internal/api"
	"github.com/quantnexus/marketstream/internal/model"
	"github.com/quantnexus/marketstream/internal/router"
	"github.com/quantnexus/marketstream/internal/subscription"
)

func gatewayHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/market-data")
		switch {
		case path == "/symbols":
			fmt.Fprint(w, `[{"symbol":"BTCUSDT"},{"symbol":"ETHUSDT"}]`)
		case path == "/tickers":
			fmt.Fprint(w, `{"success":true,"data":[{"symbol":"BTCUSDT","price":"50000"},{"symbol":"ETHUSDT","price":"3000"}]}`)
		case strings.HasPrefix(path, "/orderbook/"):
			fmt.Fprint(w, `{"bids":[{"price":"1","quantity":"1"}],"asks":[{"price":"2","quantity":"1"}]}`)
		case strings.HasPrefix(path, "/trades/"):
			fmt.Fprint(w, `[{"id":1,"price":"1","quantity":"1","time":1},{"id":2,"price":"1","quantity":"1","time":2}]`)
		case strings.HasPrefix(path, "/klines/"):
			assert.Equal(t, "5m", r.URL.Query().Get("interval"))
			fmt.Fprint(w, `[{"openTime":0},{"openTime":300000}]`)
		default:
			http.NotFound(w, r)
		}
	}
}

func TestSeeder_SeedOnce(t *testing.T) {
	server := httptest.NewServer(gatewayHandler(t))
	defer server.Close()

	client := api.NewClient(server.URL, nil, api.WithTimeout(5*time.Second))
	rt := router.NewRouter(router.DefaultConfig(), subscription.NewRegistry(), nil)

	cfg := DefaultConfig()
	cfg.Symbols = []string{"btc/usdt", "BTCUSDT"}
	cfg.KlineInterval = "5m"
	s := New(cfg, client, rt)

	require.NoError(t, s.SeedOnce(context.Background()))

	cache := rt.Cache()
	assert.Len(t, cache.Symbols(), 2)
	assert.Len(t, cache.Tickers(), 2)

	ob, ok := cache.OrderBook("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, "BTCUSDT", ob.Symbol)

	trades := cache.Trades("BTCUSDT")
	require.Len(t, trades, 2)
	assert.Equal(t, int64(2), trades[0].ID, "newest first")

	assert.Len(t, cache.Klines("BTCUSDT", "5m"), 2)

	_, ok = cache.OrderBook("ETHUSDT")
	assert.False(t, ok, "only watched symbols get depth")

	st := s.Stats()
	assert.Equal(t, int64(1), st.Cycles)
	assert.Equal(t, int64(1), st.Symbols)
	assert.Zero(t, st.Errors)
	assert.False(t, st.LastCycleAt.IsZero())
}

func TestSeeder_StartStop(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	client := api.NewClient(server.URL, nil)
	rt := router.NewRouter(router.DefaultConfig(), subscription.NewRegistry(), nil)

	s := New(Config{Interval: 50 * time.Millisecond}, client, rt)
	require.NoError(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return s.Stats().Cycles >= 2 }, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))

	assert.Positive(t, calls.Load())
}

// fakeSource records in-flight depth requests and can fail per symbol.
type fakeSource struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	failSymbol  string
}

func (f *fakeSource) GetSymbols(context.Context) ([]model.Symbol, error) { return nil, nil }
func (f *fakeSource) GetTickers(context.Context) ([]model.Ticker, error) {
	return nil, errors.New("tickers down")
}

func (f *fakeSource) GetOrderBook(ctx context.Context, symbol string, _ int) (*model.OrderBook, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()

	if symbol == f.failSymbol {
		return nil, errors.New("boom")
	}
	return &model.OrderBook{}, nil
}

func (f *fakeSource) GetTrades(context.Context, string, int) ([]model.Trade, error) { return nil, nil }
func (f *fakeSource) GetKlines(context.Context, string, string, int) ([]model.Kline, error) {
	return nil, nil
}

type countingSink struct {
	books atomic.Int32
}

func (c *countingSink) SeedSymbols([]model.Symbol)                {}
func (c *countingSink) SeedTickers([]model.Ticker)                {}
func (c *countingSink) SeedOrderBook(model.OrderBook)             { c.books.Add(1) }
func (c *countingSink) SeedTrades(string, []model.Trade)          {}
func (c *countingSink) SeedKlines(string, string, []model.Kline) {}

func TestSeeder_ConcurrencyAndErrors(t *testing.T) {
	src := &fakeSource{failSymbol: "SYM07"}
	sink := &countingSink{}

	var watch []string
	for i := 0; i < 20; i++ {
		watch = append(watch, fmt.Sprintf("sym%02d", i))
	}

	s := New(Config{Concurrency: 3}, src, sink, WithWatchlist(func() []string { return watch }))
	err := s.SeedOnce(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "tickers down")
	assert.Contains(t, err.Error(), "SYM07 orderbook")

	assert.LessOrEqual(t, src.maxInFlight, 3)
	assert.Equal(t, int32(19), sink.books.Load())

	st := s.Stats()
	assert.Equal(t, int64(2), st.Errors)
	assert.Equal(t, int64(19), st.Symbols)
}

func TestSeeder_Watched(t *testing.T) {
	s := New(Config{}, &fakeSource{}, &countingSink{}, WithWatchlist(func() []string {
		return []string{"eth/usdt", " BTCUSDT ", "", "ETHUSDT"}
	}))
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, s.watched())

	fixed := New(Config{Symbols: []string{"SOLUSDT"}}, &fakeSource{}, &countingSink{}, WithWatchlist(func() []string {
		return []string{"IGNORED"}
	}))
	assert.Equal(t, []string{"SOLUSDT"}, fixed.watched())
}
