package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"crypto-portal/internal/articles"
	"crypto-portal/internal/bot"
	"crypto-portal/internal/brief"
	"crypto-portal/internal/cache"
	"crypto-portal/internal/coingecko"
	"crypto-portal/internal/config"
	"crypto-portal/internal/logger"
	"crypto-portal/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger settings come from config, so fall back to defaults here.
		log := logger.New(logger.Config{Level: "info"})
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting crypto portal")

	market := newMarketClient(cfg, log)

	store, err := articles.Load(cfg.ArticlesFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.ArticlesFile).Msg("Failed to load articles")
	}
	log.Info().Int("count", store.Len()).Msg("Articles loaded")

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		StaticDir: cfg.StaticDir,
		Market:    market,
		Articles:  store,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	if cfg.Telegram.Enabled() {
		startBot(ctx, cfg, market, log)
	} else {
		log.Info().Msg("TELEGRAM_BOT_TOKEN not set, bot disabled")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Stopped")
}

func newMarketClient(cfg *config.Config, log zerolog.Logger) *coingecko.Client {
	opts := []coingecko.Option{
		coingecko.WithBaseURL(cfg.CoinGecko.BaseURL),
		coingecko.WithAPIKey(cfg.CoinGecko.APIKey),
		coingecko.WithHTTPClient(&http.Client{Timeout: cfg.CoinGecko.Timeout}),
		coingecko.WithCache(cache.New(cache.DefaultTTL, cache.SystemClock)),
	}
	if cfg.CoinGecko.SingleFlight {
		opts = append(opts, coingecko.WithSingleFlight())
	}
	return coingecko.NewClient(log, opts...)
}

func startBot(ctx context.Context, cfg *config.Config, market bot.MarketData, log zerolog.Logger) {
	var writer bot.BriefWriter
	if cfg.OpenAI.Enabled() {
		writer = brief.NewWriter(cfg.OpenAI.APIKey, cfg.OpenAI.Model, log)
	}

	b, err := bot.New(cfg.Telegram.Token, market, writer, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to start Telegram bot, continuing without it")
		return
	}

	go b.Start(ctx)
}
