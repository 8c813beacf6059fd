package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ledgersync/cdnsync/pkg/cdnsync"
	"github.com/ledgersync/cdnsync/pkg/clickhouse"
	"github.com/ledgersync/cdnsync/pkg/data/clickhouse/blockrepo"
	"github.com/ledgersync/cdnsync/pkg/metrics"
	"github.com/ledgersync/cdnsync/pkg/queue"
	"github.com/ledgersync/cdnsync/pkg/utils"
	"github.com/ledgersync/cdnsync/pkg/wire"
)

const (
	flushTimeoutOnClose = 15 * time.Second
	watchdogReadTimeout = 5 * time.Second
)

func run(c *cli.Context) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	sugar, err := utils.NewSugaredLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	sugar.Infow("config",
		"verbose", cfg.Verbose,
		"baseURL", cfg.BaseURL,
		"networkID", cfg.NetworkID,
		"start", cfg.Start,
		"end", cfg.End,
		"blocksPerFile", cfg.BlocksPerFile,
		"concurrency", cfg.Concurrency,
		"maxPending", cfg.MaxPending,
		"safetyMargin", cfg.SafetyMargin,
		"kafkaTopic", cfg.KafkaTopic,
		"blocksTableName", cfg.BlocksTableName,
		"metricsHost", cfg.MetricsHost,
		"metricsPort", cfg.MetricsPort,
		"environment", cfg.Environment,
		"region", cfg.Region,
		"stallWatchdogInterval", cfg.StallWatchdogInterval,
		"clickhouseCluster", cfg.ClickHouse.Cluster,
		"clickhouseDatabase", cfg.ClickHouse.Database,
	)

	if cfg.Start == 0 {
		sugar.Info("start height: not specified, will resume from the ledger height")
	} else {
		sugar.Infof("start height: %d", cfg.Start)
	}
	if cfg.End == 0 {
		sugar.Info("end height: not specified, will sync up to the CDN height")
	} else {
		sugar.Infof("end height: %d", cfg.End)
	}

	// Initialize Prometheus metrics with labels for multi-instance filtering
	registry := prometheus.NewRegistry()
	m, err := metrics.NewWithLabels(registry, metrics.Labels{
		NetworkID:   cfg.NetworkID,
		Environment: cfg.Environment,
		Region:      cfg.Region,
	})
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	metricsServer := metrics.NewServer(cfg.MetricsAddr(), registry)
	metricsErrCh := metricsServer.Start()
	if cfg.MetricsHost == "" {
		sugar.Infof("metrics server listening on http://0.0.0.0:%d/metrics", cfg.MetricsPort)
	} else {
		sugar.Infof("metrics server listening on http://%s/metrics", cfg.MetricsAddr())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chClient, err := clickhouse.New(cfg.ClickHouse, sugar)
	if err != nil {
		return fmt.Errorf("failed to create ClickHouse client: %w", err)
	}
	defer chClient.Close()

	sugar.Info("ClickHouse client created successfully")

	repo, err := blockrepo.NewRepository(chClient, cfg.ClickHouse.Cluster, cfg.ClickHouse.Database, cfg.BlocksTableName)
	if err != nil {
		return fmt.Errorf("failed to create block repository: %w", err)
	}
	if err := repo.CreateTableIfNotExists(ctx); err != nil {
		return fmt.Errorf("failed to check existence or create blocks table: %w", err)
	}

	var ledger cdnsync.Ledger = repo
	var publisher *queue.KafkaPublisher
	if cfg.PublishEnabled() {
		publisher, err = queue.NewKafkaPublisher(ctx, cfg.KafkaProducerConfig(), sugar)
		if err != nil {
			return fmt.Errorf("failed to create kafka publisher: %w", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), flushTimeoutOnClose)
			defer cancel()
			publisher.Close(closeCtx)
		}()
		ledger = &publishingLedger{Ledger: repo, publisher: publisher, topic: cfg.KafkaTopic}
	}

	syncCfg := cdnsync.Config{
		NetworkID:          cfg.NetworkID,
		BlocksPerFile:      cfg.BlocksPerFile,
		ConcurrentRequests: cfg.Concurrency,
		MaxPendingBlocks:   cfg.MaxPending,
		SafetyMargin:       cfg.SafetyMargin,
		Decode:             wire.DecodeBundle,
		Metrics:            m,
	}

	g, gctx := errgroup.WithContext(ctx)
	syncDone := make(chan struct{})
	g.Go(func() error {
		defer close(syncDone)
		var completed uint64
		var serr error
		if cfg.Start == 0 {
			completed, serr = cdnsync.Sync(gctx, cfg.BaseURL, ledger, syncCfg, sugar)
		} else {
			var end *uint64
			if cfg.End != 0 {
				end = &cfg.End
			}
			completed, serr = cdnsync.LoadRange(gctx, cfg.BaseURL, cfg.Start, end, syncCfg, sugar, ledger.Advance)
		}
		if serr != nil {
			return fmt.Errorf("sync stopped at height %d: %w", completed, serr)
		}
		sugar.Infow("sync complete", "height", completed)
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-syncDone:
			return nil
		case err := <-metricsErrCh:
			if err != nil {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		}
	})
	if publisher != nil {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-syncDone:
				return nil
			case err := <-publisher.Errors():
				return err
			}
		})
	}

	if cfg.StallWatchdogInterval > 0 {
		go cdnsync.StartStallWatchdog(gctx, sugar, func() uint64 {
			hctx, cancel := context.WithTimeout(gctx, watchdogReadTimeout)
			defer cancel()
			h, herr := repo.LatestHeight(hctx)
			if herr != nil {
				sugar.Warnw("stall watchdog failed to read ledger height", "error", herr)
				return 0
			}
			return h
		}, cfg.StallWatchdogInterval)
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		sugar.Infow("exiting due to context cancellation")
		err = nil
	} else if err != nil {
		sugar.Errorw("run failed", "error", err)
	}

	// Gracefully shutdown metrics server
	sugar.Info("shutting down metrics server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := metricsServer.Shutdown(shutdownCtx); serr != nil {
		sugar.Warnw("metrics server shutdown error", "error", serr)
	}

	sugar.Info("shutdown complete")
	return err
}
