package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/node"
	"github.com/Adithya-Monish-Kumar-K/searchcore/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/resilience"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const snapshotInterval = time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a node fed by Kafka until SIGINT or SIGTERM",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slog.Info("starting searchcore node",
		"node", cfg.Node.Name,
		"indices", len(cfg.Indices),
		"kafka", cfg.Kafka.Enabled,
		"redis", cfg.Redis.Enabled,
		"postgres", cfg.Postgres.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	checker := health.NewChecker()
	stats := analytics.NewAggregator()
	opts := []node.Option{node.WithMetrics(m)}
	retry := resilience.RetryPolicy{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
	}

	if cfg.Redis.Enabled {
		var redisClient *pkgredis.Client
		err := resilience.Retry(ctx, "redis-connect", retry, func(ctx context.Context) error {
			c, err := pkgredis.NewClient(ctx, cfg.Redis)
			redisClient = c
			return err
		})
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			breaker := resilience.NewBreaker("redis-cache", resilience.BreakerConfig{
				FailureThreshold: cfg.Breaker.FailureThreshold,
				ResetTimeout:     cfg.Breaker.ResetTimeout,
				OnStateChange: func(name string, s resilience.State) {
					m.CircuitBreakerState.WithLabelValues(name).Set(float64(s))
				},
			})
			opts = append(opts, node.WithCache(cache.New(redisClient, cfg.Redis.CacheTTL, breaker, m)))
			checker.Register("redis", health.Ping(redisClient.Ping, health.StatusDegraded))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var (
		results   publisher.ResultStore
		snapshots *aggregator.Store
	)
	if cfg.Postgres.Enabled {
		var db *postgres.Client
		err := resilience.Retry(ctx, "postgres-connect", retry, func(ctx context.Context) error {
			c, err := postgres.New(ctx, cfg.Postgres)
			db = c
			return err
		})
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		results = publisher.NewPostgresStore(db)
		snapshots = aggregator.NewStore(db, cfg.Node.Name)
		if prev, err := snapshots.LatestSnapshot(ctx); err != nil {
			slog.Warn("loading previous analytics snapshot failed", "error", err)
		} else if prev != nil {
			slog.Info("previous analytics snapshot",
				"total_searches", prev.TotalSearches,
				"docs_accepted", prev.DocsAccepted,
			)
		}
		checker.Register("postgres", health.Ping(db.Ping, health.StatusDown))
		slog.Info("ingest results recorded in postgres", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	}

	var (
		events      publisher.EventPublisher
		searchReply *kafka.Producer
		statsFeed   *kafka.Consumer
	)
	if cfg.Kafka.Enabled {
		ingestReply := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IngestResults)
		defer ingestReply.Close()
		events = ingestReply
		searchReply = kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchResults)
		defer searchReply.Close()

		analyticsOut := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.Analytics)
		defer analyticsOut.Close()
		collector := analytics.NewCollector(analyticsOut, 10000)
		collector.Start(ctx)
		defer collector.Close()
		opts = append(opts, node.WithTracker(collector))

		// every node aggregates the events of all nodes on the topic
		statsCfg := cfg.Kafka
		statsCfg.ConsumerGroup = fmt.Sprintf("%s-analytics-%s", cfg.Kafka.ConsumerGroup, cfg.Node.Name)
		statsFeed = kafka.NewConsumer(statsCfg, cfg.Kafka.Topics.Analytics, analytics.HandleEvent(stats), kafka.WithRetry(retry))
		slog.Info("analytics collector started", "topic", cfg.Kafka.Topics.Analytics)
	} else {
		opts = append(opts, node.WithTracker(stats))
	}

	var failures consumer.FailureRecorder
	if results != nil || events != nil {
		pub := publisher.New(results, events, publisher.WithRetry(retry))
		opts = append(opts, node.WithRecorder(pub))
		failures = pub
	}

	n, err := node.Open(cfg, opts...)
	if err != nil {
		return err
	}
	defer n.Close()
	if snapshots != nil {
		snapCtx, cancelSnapshots := context.WithCancel(ctx)
		snapshots.StartPeriodicSave(snapCtx, stats, snapshotInterval)
		defer func() {
			cancelSnapshots()
			snapshots.Wait()
		}()
	}
	checker.Register("node", func(context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d indices", len(n.Indices())),
		}
	})

	if cfg.Metrics.Enabled {
		shutdown := metrics.StartServer(cfg.Metrics.Port, reg, map[string]http.Handler{
			"/health/live":  checker.LiveHandler(),
			"/health/ready": checker.ReadyHandler(),
			"/stats":        analytics.NewHandler(stats),
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Node.ShutdownTimeout)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Kafka.Enabled {
		bulk := consumer.New(kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.BulkIngest,
			consumer.HandleBulk(consumer.BulkFunc(n.BulkAddBatch), failures), kafka.WithRetry(retry)))
		search := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SearchRequests,
			consumer.HandleSearch(n, searchReply), kafka.WithRetry(retry))
		g.Go(func() error { return bulk.Start(gctx) })
		g.Go(func() error { return search.Start(gctx) })
		g.Go(func() error { return statsFeed.Start(gctx) })
		slog.Info("node ready, consuming from kafka",
			"bulk_topic", cfg.Kafka.Topics.BulkIngest,
			"search_topic", cfg.Kafka.Topics.SearchRequests,
			"group", cfg.Kafka.ConsumerGroup,
		)
	} else {
		g.Go(func() error {
			<-gctx.Done()
			return nil
		})
		slog.Info("node ready, kafka disabled")
	}

	if err := g.Wait(); err != nil {
		slog.Error("node stopped with error", "error", err)
		return err
	}
	slog.Info("searchcore node stopped")
	return nil
}
