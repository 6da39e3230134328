package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/V4T54L/safewatch/internal/adapter/api"
	"github.com/V4T54L/safewatch/internal/adapter/api/handler"
	"github.com/V4T54L/safewatch/internal/adapter/api/middleware"
	"github.com/V4T54L/safewatch/internal/adapter/metrics"
	"github.com/V4T54L/safewatch/internal/adapter/pii"
	"github.com/V4T54L/safewatch/internal/adapter/repository/filestore"
	"github.com/V4T54L/safewatch/internal/adapter/repository/postgres"
	"github.com/V4T54L/safewatch/internal/adapter/repository/redis"
	"github.com/V4T54L/safewatch/internal/adapter/watcher"
	"github.com/V4T54L/safewatch/internal/domain"
	"github.com/V4T54L/safewatch/internal/pkg/config"
	"github.com/V4T54L/safewatch/internal/pkg/logger"
	"github.com/V4T54L/safewatch/internal/usecase"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	m := metrics.NewNotifierMetrics(prometheus.DefaultRegisterer)

	// --- Start Admin and Metrics Server ---
	adminMux := http.NewServeMux()
	adminMux.Handle("/metrics", promhttp.Handler())
	adminMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	adminServer := &http.Server{
		Addr:              cfg.AdminAddr,
		Handler:           adminMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting admin & metrics server", "addr", adminServer.Addr)
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin & metrics server failed", "error", err)
		}
	}()

	// --- Graceful Shutdown Context ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Event Notifier ---
	broker := handler.NewSSEBroker(logger, cfg.SubscriberBuffer, m)

	// --- Publish Endpoint Auth ---
	var notifyAuth domain.APIKeyValidator
	switch cfg.NotifyAuth {
	case config.AuthStatic:
		notifyAuth = middleware.StaticKey(cfg.NotifyAPIKey)
	case config.AuthPostgres:
		db, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			logger.Error("failed to connect to key store", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		keys := postgres.NewNotifyKeyStore(db, logger, cfg.APIKeyCacheTTL, m)
		if err := keys.EnsureSchema(ctx); err != nil {
			logger.Error("failed to initialize notify key store", "error", err)
			os.Exit(1)
		}
		notifyAuth = keys
	}

	// --- Cross-process Events ---
	if cfg.RedisURL != "" {
		redisOpts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("failed to parse redis url", "error", err)
			os.Exit(1)
		}
		redisClient := goredis.NewClient(redisOpts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("could not connect to redis, relayed events unavailable until it recovers", "error", err)
		}

		relay := redis.NewEventRelay(redisClient, cfg.EventsChannel, logger)
		go runRelay(ctx, relay, broker, logger)
	}

	// --- Directory Tailers ---
	store := filestore.NewStore(cfg.AnalyzedDataDir, logger)
	startTail(ctx, cfg.AnalyzedDataDir, cfg.TailSettleDelay, usecase.NewAnalysisTail(broker, logger), logger)
	startTail(ctx, cfg.ScrapedPostsDir, cfg.TailSettleDelay, usecase.NewScrapeTail(broker, logger), logger)

	// --- Dashboard Server ---
	notifyHandler := handler.NewNotifyHandler(broker, logger, m, cfg.MaxNotifySize).
		WithRedactor(pii.NewRedactor(cfg.RedactFields, logger))
	router := api.NewRouter(api.RouterDeps{
		Broker:      broker,
		Notify:      notifyHandler,
		Analysis:    handler.NewAnalysisHandler(store, logger, portOf(cfg.ServerAddr)),
		NotifyAuth:  notifyAuth,
		CORSOrigins: cfg.CORSOrigins,
	}, logger)

	// No write timeout: the notification stream is long-lived.
	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting dashboard server", "addr", server.Addr, "notify_auth", cfg.NotifyAuth)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("dashboard server failed", "error", err)
			stop() // Trigger shutdown on server error
		}
	}()

	// --- Wait for shutdown signal ---
	<-ctx.Done()
	logger.Info("shutting down servers...")

	// Ends every open notification stream so Shutdown does not wait on them.
	broker.Close()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("admin server shutdown failed", "error", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("dashboard server shutdown failed", "error", err)
	}

	logger.Info("servers shut down gracefully")
}

func startTail(ctx context.Context, dir string, settle time.Duration, tail *usecase.DirectoryTail, logger *slog.Logger) {
	obs, err := watcher.New(dir, settle, logger)
	if err != nil {
		logger.Error("directory tail disabled", "dir", dir, "error", err)
		return
	}
	go func() {
		if err := obs.Run(ctx); err != nil {
			logger.Error("directory watcher stopped", "dir", dir, "error", err)
		}
	}()
	go tail.Run(ctx, obs)
}

// runRelay forwards events from other processes into the local broker,
// resubscribing after a dropped connection.
func runRelay(ctx context.Context, relay *redis.EventRelay, broker *handler.SSEBroker, logger *slog.Logger) {
	for {
		err := relay.Run(ctx, broker)
		if ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("event relay stopped, retrying", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(5 * time.Second):
		}
	}
}

func portOf(addr string) string {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return port
}
