// Command costbook tracks a trading account's cost basis per pair and
// reconciles locally persisted position state against exchange-reported
// closed-order history. It serves the resulting books over a read-only
// JSON API.
//
// Usage:
//
//	costbook --config config.yaml
//	costbook setup   (interactive configuration wizard)
//	costbook         (uses CLI arguments)
//
// Required environment variables:
//
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mkovtun/costbook/config"
	"github.com/mkovtun/costbook/internal"
	"github.com/mkovtun/costbook/internal/clients"
	"github.com/mkovtun/costbook/internal/manager"
	"github.com/mkovtun/costbook/internal/setup"
	"github.com/mkovtun/costbook/internal/storage/fills"
	"github.com/mkovtun/costbook/internal/storage/positionstate"
	"github.com/mkovtun/costbook/internal/web"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		os.Args = []string{os.Args[0], "--config", "config.gen.yaml"}
	}

	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	var client any
	switch cfg.Platform {
	case "binance":
		apiKey := os.Getenv("BINANCE_API_KEY")
		apiSecret := os.Getenv("BINANCE_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			logger.Fatal("BINANCE_API_KEY and BINANCE_API_SECRET environment variables must be set")
		}
		client = clients.NewBinanceClient(apiKey, apiSecret)
	case "bybit":
		apiKey := os.Getenv("BYBIT_API_KEY")
		apiSecret := os.Getenv("BYBIT_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			logger.Fatal("BYBIT_API_KEY and BYBIT_API_SECRET environment variables must be set")
		}
		client = clients.NewBybitClient(apiKey, apiSecret)
	default:
		logger.Fatal("unsupported platform", zap.String("platform", cfg.Platform))
	}

	store, err := positionstate.NewStore(cfg.StateFile)
	if err != nil {
		logger.Fatal("failed to open position state store", zap.Error(err))
	}

	journal, err := fills.NewJournal(cfg.WalDir)
	if err != nil {
		logger.Fatal("failed to open fills journal", zap.Error(err))
	}
	defer journal.Close()

	mgr, err := manager.New(logger, store, journal)
	if err != nil {
		logger.Fatal("failed to initialize position manager", zap.Error(err))
	}

	tracker, err := internal.NewTracker(cfg, client, mgr, logger)
	if err != nil {
		logger.Fatal("failed to initialize tracker", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := web.NewServer(cfg.ListenAddr, mgr, journal, logger)
	go func() {
		if err := server.Start(ctx); err != nil {
			logger.Error("web server stopped", zap.Error(err))
		}
	}()

	logger.Info("costbook started",
		zap.String("platform", cfg.Platform),
		zap.Int("pairs", len(cfg.Pairs)),
		zap.String("listen", cfg.ListenAddr))

	if err := tracker.Run(ctx); err != nil {
		logger.Fatal("tracker stopped", zap.Error(err))
	}
}
