// Package httpapi exposes the live market state and stream controls over
// HTTP for UI consumption.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/quantnexus/marketstream/internal/connection"
	"github.com/quantnexus/marketstream/internal/model"
	"github.com/quantnexus/marketstream/internal/router"
	"github.com/quantnexus/marketstream/internal/subscription"
)

// Stream is the connection surface the API drives. *connection.Manager
// satisfies it.
type Stream interface {
	Stats() connection.Stats
	Registry() *subscription.Registry
	Subscribe(channel, symbol string, cb subscription.Callback) error
	Unsubscribe(channel, symbol string) error
	UnsubscribeAll() error
	Reconnect() error
}

// Market is the read side of the cache. *router.Cache satisfies it.
type Market interface {
	Ticker(symbol string) (model.Ticker, bool)
	Tickers() []model.Ticker
	OrderBook(symbol string) (model.OrderBook, bool)
	Klines(symbol, interval string) []model.Kline
	KlineIntervals(symbol string) []string
	Trades(symbol string) []model.Trade
	Symbols() []model.Symbol
	MarketStats() model.MarketStats
	TopGainers(n int) []model.Ticker
	TopLosers(n int) []model.Ticker
	TopVolume(n int) []model.Ticker
}

// Config describes the server and its dependencies.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	Stream          Stream
	Market          Market
	RouterStats     func() router.Stats
	// Extra adds named sections to /api/v1/status, e.g. seeder or relay stats.
	Extra  map[string]func() any
	Logger *zap.Logger
}

// Server serves the state API.
type Server struct {
	cfg    Config
	engine *gin.Engine
	logger *zap.Logger
}

// NewServer builds the gin engine and registers routes.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Stream == nil || cfg.Market == nil {
		return nil, errors.New("httpapi: stream and market are required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8090"
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "httpapi"))

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{cfg: cfg, engine: engine, logger: logger}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
