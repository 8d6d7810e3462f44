// streamtest connects to the gateway stream and prints routed messages to the
// console.
// Usage: go run ./cmd/streamtest --config configs/marketstream.yaml --symbol BTCUSDT
//
// The credential comes from auth.token / auth.token_file in the config, which
// may reference ${MARKETSTREAM_TOKEN}.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/quantnexus/marketstream/internal/auth"
	"github.com/quantnexus/marketstream/internal/config"
	"github.com/quantnexus/marketstream/internal/connection"
	"github.com/quantnexus/marketstream/internal/logging"
	"github.com/quantnexus/marketstream/internal/model"
	"github.com/quantnexus/marketstream/internal/router"
	"github.com/quantnexus/marketstream/internal/subscription"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults when empty)")
	symbol := flag.String("symbol", "BTCUSDT", "symbol to subscribe to")
	channels := flag.String("channels", strings.Join(model.Channels, ","), "comma-separated channels")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadAndValidate(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.Log.Format = "console"

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	session, err := auth.LoadSession(cfg.Auth.Token, cfg.Auth.TokenFile)
	if err != nil {
		logger.Fatal("credential required for the stream", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := subscription.NewRegistry()
	rtr := router.NewRouter(router.Config{KlineLimit: cfg.Cache.KlineLimit, TradeLimit: cfg.Cache.TradeLimit}, registry, logger)
	rtr.OnMessage(func(msg model.MarketMessage) {
		printMessage(msg, *verbose)
	})

	mgrCfg := connection.DefaultManagerConfig()
	mgrCfg.URL = cfg.Gateway.WSURL
	mgrCfg.StreamPath = cfg.Gateway.StreamPath
	mgr := connection.NewManager(mgrCfg, session, registry, rtr, connection.WithLogger(logger))
	defer mgr.Close()

	mgr.OnStateChange(func(s connection.State) {
		logger.Info("state", zap.Stringer("state", s), zap.String("last_error", mgr.LastError()))
	})

	sym := model.NormalizeSymbol(*symbol)
	for _, ch := range strings.Split(*channels, ",") {
		ch = strings.TrimSpace(ch)
		if !model.IsChannel(ch) {
			logger.Fatal("unknown channel", zap.String("channel", ch))
		}
		// Callbacks are not needed; OnMessage prints everything routed.
		_ = mgr.Subscribe(ch, sym, nil)
	}

	if err := mgr.Connect(ctx, ""); err != nil {
		logger.Fatal("connect failed", zap.Error(err))
	}

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cs := mgr.Stats()
				rs := rtr.Stats()
				logger.Info("stats",
					zap.Stringer("state", cs.State),
					zap.Int64("received", cs.MessagesReceived),
					zap.Int64("callbacks", rs.CallbacksInvoked),
					zap.Int64("parse_errors", rs.ParseErrors+cs.ParseErrors),
					zap.Int64("unknown", rs.UnknownMessages),
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop", zap.String("symbol", sym))
	<-ctx.Done()
	logger.Info("shutdown complete")
}

func printMessage(msg model.MarketMessage, verbose bool) {
	if verbose {
		data, _ := json.MarshalIndent(msg, "", "  ")
		fmt.Printf("[%s] %s\n", strings.ToUpper(msg.Type), data)
		return
	}
	fmt.Printf("[%s] %s %s (%d bytes)\n",
		strings.ToUpper(msg.Type), msg.Symbol, time.UnixMilli(msg.Timestamp).Format(time.RFC3339), len(msg.Data))
}
