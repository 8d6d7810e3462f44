// marketstream keeps a live local cache of gateway market data and serves it
// over HTTP, optionally republishing every message to NATS.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/quantnexus/marketstream/internal/api"
	"github.com/quantnexus/marketstream/internal/auth"
	"github.com/quantnexus/marketstream/internal/config"
	"github.com/quantnexus/marketstream/internal/connection"
	"github.com/quantnexus/marketstream/internal/httpapi"
	"github.com/quantnexus/marketstream/internal/logging"
	"github.com/quantnexus/marketstream/internal/model"
	"github.com/quantnexus/marketstream/internal/relay"
	"github.com/quantnexus/marketstream/internal/router"
	"github.com/quantnexus/marketstream/internal/seeder"
	"github.com/quantnexus/marketstream/internal/subscription"
	"github.com/quantnexus/marketstream/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/marketstream.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting marketstream",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("config", *configPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("marketstream failed", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("marketstream stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	session, err := auth.LoadSession(cfg.Auth.Token, cfg.Auth.TokenFile)
	if err != nil {
		// Keep running unauthenticated: the manager reports the error state and
		// the HTTP surface still serves seeded snapshots.
		logger.Warn("no gateway credential", zap.Error(err))
		session = auth.NewSession("")
	}

	apiClient := api.NewClient(cfg.Gateway.RestURL, session,
		api.WithLogger(logger),
		api.WithTimeout(cfg.Gateway.Timeout),
		api.WithRetries(cfg.Gateway.MaxRetries, api.DefaultRetryBackoff),
	)
	if health, err := apiClient.GetGatewayHealth(ctx); err != nil {
		logger.Warn("gateway health check failed", zap.Error(err))
	} else {
		logger.Info("gateway health", zap.String("status", health.Status))
	}

	registry := subscription.NewRegistry()
	rt := router.NewRouter(router.Config{
		KlineLimit: cfg.Cache.KlineLimit,
		TradeLimit: cfg.Cache.TradeLimit,
	}, registry, logger)

	manager := connection.NewManager(managerConfig(cfg), session, registry, rt, connection.WithLogger(logger))
	defer manager.Close()

	manager.OnStateChange(func(s connection.State) {
		logger.Info("stream state", zap.Stringer("state", s))
	})

	stream := &configuredStream{Manager: manager, subs: cfg.Subscriptions, logger: logger}
	if err := stream.apply(); err != nil {
		return err
	}

	extra := map[string]func() any{}

	var rel *relay.Relay
	if cfg.Relay.Enabled {
		rcfg := relay.Config{
			URL:           cfg.Relay.URL,
			Name:          cfg.Relay.Name,
			SubjectPrefix: cfg.Relay.SubjectPrefix,
		}
		nc, err := relay.Dial(rcfg, logger)
		if err != nil {
			return err
		}
		defer nc.Close()

		rel = relay.New(rcfg, nc, logger)
		if err := rel.Start(); err != nil {
			return err
		}
		unsubscribe := rt.OnMessage(rel.Handle)
		defer func() {
			unsubscribe()
			if err := rel.Close(cfg.HTTP.ShutdownTimeout); err != nil {
				logger.Warn("relay close", zap.Error(err))
			}
		}()
		extra["relay"] = func() any { return rel.Stats() }
	}

	var seed *seeder.Seeder
	if cfg.Seeder.Enabled {
		seed = seeder.New(seeder.Config{
			Interval:       cfg.Seeder.Interval,
			Concurrency:    cfg.Seeder.Concurrency,
			Symbols:        cfg.Seeder.Symbols,
			KlineInterval:  cfg.Seeder.KlineInterval,
			OrderBookLimit: cfg.Seeder.OrderBookLimit,
			TradeLimit:     cfg.Seeder.TradeLimit,
			KlineLimit:     cfg.Seeder.KlineLimit,
		}, apiClient, rt, seeder.WithLogger(logger), seeder.WithWatchlist(func() []string {
			return watchedSymbols(registry)
		}))
		if err := seed.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := seed.Stop(stopCtx); err != nil {
				logger.Warn("seeder stop", zap.Error(err))
			}
		}()
		extra["seeder"] = func() any { return seed.Stats() }
	}

	if err := manager.Connect(ctx, cfg.Gateway.WSURL); err != nil {
		logger.Warn("initial connect failed", zap.Error(err))
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.HTTP.Enabled {
		srv, err := httpapi.NewServer(httpapi.Config{
			Addr:            cfg.HTTP.Addr,
			ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
			Stream:          stream,
			Market:          rt.Cache(),
			RouterStats:     rt.Stats,
			Extra:           extra,
			Logger:          logger,
		})
		if err != nil {
			return err
		}
		g.Go(func() error { return srv.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	logger.Info("marketstream running",
		zap.String("gateway", cfg.Gateway.WSURL),
		zap.Int("subscriptions", registry.Len()),
		zap.Bool("relay", rel != nil),
		zap.Bool("seeder", seed != nil),
		zap.Bool("http", cfg.HTTP.Enabled),
	)

	err = g.Wait()
	logger.Info("shutting down")
	return err
}

// configuredStream restores the configured subscriptions after a manual
// reconnect, which clears the registry. They are replayed on the next open.
type configuredStream struct {
	*connection.Manager
	subs   []config.SubscriptionConfig
	logger *zap.Logger
}

func (s *configuredStream) Reconnect() error {
	if err := s.Manager.Reconnect(); err != nil {
		return err
	}
	return s.apply()
}

func (s *configuredStream) apply() error {
	for _, sub := range s.subs {
		channel, symbol := sub.Channel, model.NormalizeSymbol(sub.Symbol)
		cb := func(payload json.RawMessage) {
			s.logger.Debug("update", zap.String("channel", channel), zap.String("symbol", symbol), zap.Int("bytes", len(payload)))
		}
		if err := s.Subscribe(channel, symbol, cb); err != nil && !errors.Is(err, connection.ErrNotConnected) {
			return fmt.Errorf("subscribe %s: %w", subscription.Key(channel, symbol), err)
		}
	}
	return nil
}

func managerConfig(cfg *config.Config) connection.ManagerConfig {
	return connection.ManagerConfig{
		URL:                  cfg.Gateway.WSURL,
		StreamPath:           cfg.Gateway.StreamPath,
		MaxReconnectAttempts: cfg.Stream.MaxReconnectAttempts,
		ReconnectBaseDelay:   cfg.Stream.ReconnectBaseDelay,
		ReconnectMaxDelay:    cfg.Stream.ReconnectMaxDelay,
		ManualReconnectDelay: cfg.Stream.ManualReconnectDelay,
		Client: connection.ClientConfig{
			HandshakeTimeout: cfg.Stream.HandshakeTimeout,
			PingInterval:     cfg.Stream.PingInterval,
			PingTimeout:      cfg.Stream.PingTimeout,
			WriteTimeout:     cfg.Stream.WriteTimeout,
			BufferSize:       cfg.Stream.BufferSize,
		},
	}
}

// watchedSymbols returns the symbols named by active subscriptions.
func watchedSymbols(registry *subscription.Registry) []string {
	var out []string
	for _, sub := range registry.Entries() {
		if sub.Symbol != "" {
			out = append(out, sub.Symbol)
		}
	}
	return out
}
