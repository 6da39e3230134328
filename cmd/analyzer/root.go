package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/V4T54L/safewatch/internal/adapter/classifier"
	"github.com/V4T54L/safewatch/internal/adapter/metrics"
	"github.com/V4T54L/safewatch/internal/adapter/notify"
	"github.com/V4T54L/safewatch/internal/adapter/repository/filestore"
	"github.com/V4T54L/safewatch/internal/adapter/repository/postgres"
	"github.com/V4T54L/safewatch/internal/adapter/repository/redis"
	"github.com/V4T54L/safewatch/internal/domain"
	"github.com/V4T54L/safewatch/internal/pkg/config"
	"github.com/V4T54L/safewatch/internal/pkg/logger"
	"github.com/V4T54L/safewatch/internal/usecase"
)

// skipSetup marks commands that run without configuration.
const skipSetup = "skip-setup"

// app holds the wired pipeline for one invocation.
type app struct {
	cfg          *config.Analyzer
	logger       *slog.Logger
	analyzer     *usecase.AnalyzePostUseCase
	orchestrator *usecase.Orchestrator
	closers      []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newRootCmd builds the command tree. The returned cleanup releases whatever
// setup opened and is safe to call when setup never ran.
func newRootCmd() (*cobra.Command, func()) {
	var a *app

	rootCmd := &cobra.Command{
		Use:           "analyzer",
		Short:         "Classify scraped posts and retain serious-harm findings",
		Long:          "analyzer runs scraped social media posts through the risk classifier and keeps only records that clear the retention policy.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipSetup] != "" {
				return nil
			}
			cfg, err := config.LoadAnalyzer()
			if err != nil {
				return err
			}
			a, err = newApp(cmd.Context(), cfg)
			return err
		},
	}
	cleanup := func() {
		if a != nil {
			a.close()
			a = nil
		}
	}

	appFn := func() *app { return a }
	rootCmd.AddCommand(newBatchCmd(appFn))
	rootCmd.AddCommand(newWatchCmd(appFn))
	rootCmd.AddCommand(newSingleCmd(appFn))
	rootCmd.AddCommand(newTestCmd(appFn))
	rootCmd.AddCommand(newTestFilterCmd())

	return rootCmd, cleanup
}

func newApp(ctx context.Context, cfg *config.Analyzer) (*app, error) {
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)
	a := &app{cfg: cfg, logger: log}

	m := metrics.NewPipelineMetrics(prometheus.DefaultRegisterer)
	if cfg.MetricsAddr != "" {
		a.startMetrics(cfg.MetricsAddr)
	}

	var index domain.AnalysisIndex
	if cfg.PostgresURL != "" {
		db, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			log.Warn("analysis index disabled", "error", err)
		} else {
			idx := postgres.NewAnalysisIndex(db, log)
			if err := idx.EnsureSchema(ctx); err != nil {
				db.Close()
				return nil, err
			}
			index = idx
			a.closers = append(a.closers, func() { db.Close() })
		}
	}

	publisher, err := a.newPublisher(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	client := classifier.NewClient(classifier.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.ClassifierBaseURL,
		Model:   cfg.ClassifierModel,
		Timeout: cfg.ClassifierTimeout,
	}, log)

	a.analyzer = usecase.NewAnalyzePostUseCase(
		client,
		usecase.NewRecordBuilder(client.Model()),
		usecase.DefaultRetentionPolicy(),
		filestore.NewStore(cfg.AnalyzedDataDir, log),
		index,
		m,
		log,
	)
	a.orchestrator = usecase.NewOrchestrator(a.analyzer, usecase.NewQueue(cfg.BatchItemDelay), publisher, m, log)
	return a, nil
}

func (a *app) newPublisher(ctx context.Context) (domain.EventPublisher, error) {
	switch a.cfg.EventsTransport {
	case config.TransportHTTP:
		return notify.NewClient(a.cfg.NotifyURL, a.cfg.NotifyAPIKey, a.cfg.NotifyTimeout, a.logger), nil
	case config.TransportRedis:
		opts, err := goredis.ParseURL(a.cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		client := goredis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			a.logger.Warn("could not connect to redis, events will be dropped until it recovers", "error", err)
		}
		relay := redis.NewEventRelay(client, a.cfg.EventsChannel, a.logger)
		hcCtx, cancel := context.WithCancel(ctx)
		go relay.StartHealthCheck(hcCtx, 5*time.Second)
		a.closers = append(a.closers, func() {
			cancel()
			client.Close()
		})
		return relay, nil
	default:
		return nil, nil
	}
}

func (a *app) startMetrics(addr string) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("starting metrics server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", "error", err)
		}
	}()
	a.closers = append(a.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
}
