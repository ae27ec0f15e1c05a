package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crmbot/internal/apiclient"
	"crmbot/internal/bot"
	"crmbot/internal/cache"
	"crmbot/internal/config"
	"crmbot/internal/httpserver"
	"crmbot/internal/journal"
	"crmbot/internal/logging"
	"crmbot/internal/metrics"
	"crmbot/internal/session"
	"crmbot/internal/telegram"
	"crmbot/internal/wa"
	"crmbot/migrations"

	"github.com/joho/godotenv"
)

// transport is a chat frontend that blocks until ctx is cancelled.
type transport interface {
	Run(ctx context.Context) error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateBot(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting crm bot", "env", cfg.AppEnv, "transport", cfg.BotTransport, "facade", cfg.FacadeBaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricRegistry := metrics.Registry(cfg.MetricsNamespace)

	jrnl, err := journal.Open(ctx, cfg.JournalDSN, logger)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer jrnl.Close()

	if err := jrnl.RunMigrations(ctx, migrations.Files); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	checks := []httpserver.Check{{Name: "journal", Pinger: jrnl}}

	var sessions session.Store[bot.State]
	if cfg.RedisAddr != "" {
		redisClient := cache.New(cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			UseTLS:   cfg.RedisTLS,
		}, logger)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("failed closing redis", "error", err)
			}
		}()
		if err := redisClient.Ping(ctx); err != nil {
			logger.Warn("redis ping failed", "error", err)
		}
		sessions = session.NewRedis[bot.State](redisClient, "", cfg.SessionTTL)
		checks = append(checks, httpserver.Check{Name: "redis", Pinger: redisClient})
		logger.Info("sessions stored in redis", "addr", cfg.RedisAddr, "ttl", cfg.SessionTTL)
	} else {
		sessions = session.NewMemory[bot.State]()
		logger.Info("sessions stored in memory")
	}

	api := apiclient.New(apiclient.Config{
		BaseURL: cfg.FacadeBaseURL,
		Timeout: cfg.FacadeTimeout,
	}, logger, metricRegistry)

	engine := bot.NewEngine(bot.Config{
		API:       api,
		Sessions:  sessions,
		Journal:   jrnl,
		Metrics:   metricRegistry,
		Transport: cfg.BotTransport,
	}, logger)

	frontend, err := newTransport(ctx, cfg, engine, logger)
	if err != nil {
		return err
	}

	httpSrv := httpserver.New(cfg.BotHTTPListenAddr, logger, metricRegistry, httpserver.Handlers{}, cfg.PublicBasePath, checks...)

	errCh := make(chan error, 2)
	go func() {
		if err := httpSrv.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()
	go func() {
		if err := frontend.Run(ctx); err != nil {
			errCh <- fmt.Errorf("%s transport stopped: %w", cfg.BotTransport, err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	return runErr
}

func newTransport(ctx context.Context, cfg *config.Config, engine *bot.Engine, logger *slog.Logger) (transport, error) {
	switch cfg.BotTransport {
	case config.TransportWhatsApp:
		client, err := wa.New(ctx, wa.Config{
			StorePath: cfg.WhatsAppStore,
			LogLevel:  cfg.WhatsAppLogLevel,
		}, engine, logger)
		if err != nil {
			return nil, fmt.Errorf("init whatsapp client: %w", err)
		}
		return client, nil
	default:
		client, err := telegram.New(cfg.BotToken, engine, logger)
		if err != nil {
			return nil, fmt.Errorf("init telegram client: %w", err)
		}
		return client, nil
	}
}
