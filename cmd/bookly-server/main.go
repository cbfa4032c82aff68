package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bookly/internal/config"
	"bookly/internal/notify"
	"bookly/internal/service/booking"
	"bookly/internal/store/postgres"
	"bookly/internal/sweeper"
	bookingHTTP "bookly/internal/transport/http"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", "bookly-server"),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", "bookly-server"),
	)
	slog.SetDefault(log)

	httpAddr := fmt.Sprintf("%s:%d", cfg.HTTPHost, cfg.HTTPPort)
	log.Info("starting", slog.String("http_addr", httpAddr), slog.String("log_level", cfg.LogLevel))

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		os.Exit(1)
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	var dispatcher notify.Dispatcher = notify.NopDispatcher{}
	if brokers := notify.SplitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		kd := notify.NewKafkaDispatcher(cfg.KafkaBrokers, log)
		defer func() {
			if err := kd.Close(); err != nil {
				log.Warn("kafka writer close failed", slog.Any("err", err))
			}
		}()
		dispatcher = kd
		log.Info("notification dispatch enabled", slog.Int("brokers", len(brokers)))
	} else {
		log.Info("notification dispatch disabled (no kafka brokers configured)")
	}

	repo := postgres.NewScheduleRepo(db)
	svc := booking.NewService(repo, dispatcher)

	holdSweeper := sweeper.New(repo, log, cfg.PendingHoldTTL, cfg.PendingSweepEvery)
	holdSweeper.Start()
	defer holdSweeper.Stop()

	server := &http.Server{
		Addr:              httpAddr,
		Handler:           bookingHTTP.WithRequestTimeout(bookingHTTP.NewBookingServer(svc, db, log).Router(), cfg.RequestTimeout),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	log.Info("http server started", slog.String("http_addr", httpAddr))

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdown(log, server, cfg.ShutdownTimeout)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped with error", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func shutdown(log *slog.Logger, s *http.Server, timeout time.Duration) {
	log.Info("shutting down http server", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown timed out; forcing close", slog.Any("err", err))
		_ = s.Close()
		return
	}
	log.Info("http server stopped")
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
