// Drbot - Defining Range breakout bot for MES futures
//
// The bot measures a defining range over each session's formation window,
// waits for a closing breakout confirmation during the trading window, and
// enters on a retrace into the inner range with a fixed stop and a one
// standard deviation target. Position management takes 75% at target and
// trails the rest.
//
// Sessions (exchange time):
//	ODR  formation 03:00-03:55  trading 04:00-08:00
//	RDR  formation 09:30-10:25  trading 10:30-16:00
//	ADR  formation 19:30-20:25  trading 20:30-01:00
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/qxcapital/drbot/internal/broker"
	"github.com/qxcapital/drbot/internal/config"
	"github.com/qxcapital/drbot/internal/engine"
	"github.com/qxcapital/drbot/internal/feed"
	"github.com/qxcapital/drbot/internal/market"
	"github.com/qxcapital/drbot/internal/metrics"
	"github.com/qxcapital/drbot/internal/notify"
	"github.com/qxcapital/drbot/internal/risk"
	"github.com/qxcapital/drbot/internal/storage"
)

const version = "1.2.0"

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("version", version).
		Str("contract", cfg.ContractName).
		Bool("live", cfg.LiveTrading).
		Msg("📐 Drbot starting...")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Trade journal
	journal, err := storage.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open trade journal")
	}

	// Broker and market data. Live trading and bar history both come from
	// the REST client; paper mode still needs it for bars.
	restClient, err := broker.NewRESTClient(ctx, broker.RESTConfig{
		BaseURL:      cfg.BrokerBaseURL,
		Token:        cfg.BrokerToken,
		AccountName:  cfg.AccountName,
		ContractName: cfg.ContractName,
		BarMinutes:   cfg.BarMinutes,
		BarLimit:     cfg.BarLimit,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize broker client")
	}

	var orderBroker broker.Broker = restClient
	if !cfg.LiveTrading {
		orderBroker = broker.NewPaperBroker()
		log.Warn().Msg("📝 Paper trading mode, orders are simulated")
	}

	var barSource market.BarSource = restClient

	// Risk manager
	riskManager := risk.NewManager(cfg.Risk)

	// Trading engine
	eng := engine.New(cfg.Engine, barSource, orderBroker, riskManager)
	eng.SetJournal(journal)
	eng.SetPaperMode(!cfg.LiveTrading)

	// Optional live quote feed for tighter exit management
	var quoteStream *feed.Stream
	if cfg.FeedURL != "" {
		quoteStream = feed.NewStream(cfg.FeedURL, cfg.FeedSymbol)
		quoteStream.Start()
		eng.SetQuotes(quoteStream)
	}

	// Optional Telegram notifier
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		notifier, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Telegram disabled")
		} else {
			eng.SetNotifier(notifier)
		}
	}

	// Optional metrics endpoint
	if cfg.MetricsPort > 0 {
		metrics.Serve(cfg.MetricsPort)
		log.Info().Int("port", cfg.MetricsPort).Msg("📊 Metrics endpoint up")
	}

	go eng.Run(ctx)

	log.Info().Msg("✅ All systems online")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("🛑 Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("🛑 Context cancelled")
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down...")

	eng.Stop()
	if quoteStream != nil {
		quoteStream.Stop()
	}

	log.Info().Msg("👋 Goodbye!")
}
