// Package main wires together the crawl worker service: queue consumers,
// stores, the retrieval engine, and the HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/kevinalyk/campaign-portal/internal/api"
	"github.com/kevinalyk/campaign-portal/internal/config"
	"github.com/kevinalyk/campaign-portal/internal/crawler"
	"github.com/kevinalyk/campaign-portal/internal/extract"
	headlessfetcher "github.com/kevinalyk/campaign-portal/internal/fetcher/headless"
	simplefetcher "github.com/kevinalyk/campaign-portal/internal/fetcher/simple"
	"github.com/kevinalyk/campaign-portal/internal/logging"
	"github.com/kevinalyk/campaign-portal/internal/metrics"
	"github.com/kevinalyk/campaign-portal/internal/queue"
	queueMemory "github.com/kevinalyk/campaign-portal/internal/queue/memory"
	queuePubsub "github.com/kevinalyk/campaign-portal/internal/queue/pubsub"
	"github.com/kevinalyk/campaign-portal/internal/retrieval"
	"github.com/kevinalyk/campaign-portal/internal/storage/archive"
	memoryStorage "github.com/kevinalyk/campaign-portal/internal/storage/memory"
	"github.com/kevinalyk/campaign-portal/internal/storage/postgres"
	"github.com/kevinalyk/campaign-portal/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New("crawlworker", cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := crawler.SystemClock{}

	siteMaps, resources, pageCache, closeStores, err := buildStores(ctx, cfg, clock)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer closeStores()

	jobQueue, closeQueue, err := buildQueue(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("queue init failed", zap.Error(err))
	}
	defer closeQueue()

	pageArchive, err := buildArchive(ctx, cfg)
	if err != nil {
		logger.Fatal("archive init failed", zap.Error(err))
	}

	fetcher, err := buildFetcher(cfg, logger)
	if err != nil {
		logger.Fatal("fetcher init failed", zap.Error(err))
	}
	extractor := extract.New()

	frontier := crawler.NewFrontier(
		fetcher,
		extractor,
		siteMaps,
		pageArchive,
		clock,
		crawler.FrontierConfig{
			MaxPages:     cfg.Crawler.MaxPages,
			FlushEvery:   cfg.Crawler.FlushEvery,
			MinDelay:     time.Duration(cfg.Crawler.MinDelayMs) * time.Millisecond,
			MaxDelay:     time.Duration(cfg.Crawler.MaxDelayMs) * time.Millisecond,
			ArchivePages: cfg.Crawler.ArchivePages,
		},
		logger.Named("frontier"),
	)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Crawler.Workers; i++ {
		w := worker.New(
			jobQueue,
			resources,
			siteMaps,
			frontier,
			worker.Config{MaxPages: cfg.Crawler.MaxPages},
			logger.Named("worker").With(zap.Int("index", i)),
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}

	producer := queue.NewProducer(jobQueue, resources, clock, logger.Named("producer"))
	engine := retrieval.NewEngine(
		siteMaps,
		resources,
		pageCache,
		fetcher,
		extractor,
		clock,
		retrieval.Config{CacheTTL: cfg.CacheTTL()},
		logger.Named("retrieval"),
	)

	apiServer := api.NewServer(producer, resources, siteMaps, engine, api.Options{
		AuthEnabled: cfg.Auth.Enabled,
		APIKey:      cfg.Auth.APIKey,
	}, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	wg.Wait()
	logger.Info("shutdown complete")
}

func buildStores(ctx context.Context, cfg config.Config, clock crawler.Clock) (
	crawler.SiteMapStore, crawler.ResourceStore, crawler.PageCache, func(), error,
) {
	if cfg.DB.DSN == "" {
		return memoryStorage.NewSiteMapStore(clock),
			memoryStorage.NewResourceStore(clock),
			memoryStorage.NewPageCache(clock),
			func() {}, nil
	}
	pool, err := postgres.NewPool(ctx, postgres.PoolConfig{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return nil, nil, nil, nil, err
	}
	siteMaps, err := postgres.NewSiteMapStore(pool, clock)
	if err != nil {
		pool.Close()
		return nil, nil, nil, nil, err
	}
	resources, err := postgres.NewResourceStore(pool, clock)
	if err != nil {
		pool.Close()
		return nil, nil, nil, nil, err
	}
	pageCache, err := postgres.NewPageCache(pool, clock)
	if err != nil {
		pool.Close()
		return nil, nil, nil, nil, err
	}
	return siteMaps, resources, pageCache, pool.Close, nil
}

func buildQueue(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawler.Queue, func(), error) {
	switch cfg.Queue.Provider {
	case "pubsub":
		q, err := queuePubsub.New(ctx, queuePubsub.Config{
			ProjectID:      cfg.Queue.ProjectID,
			TopicID:        cfg.Queue.TopicID,
			SubscriptionID: cfg.Queue.SubscriptionID,
		}, logger.Named("pubsub"))
		if err != nil {
			return nil, nil, err
		}
		return q, func() {
			if closeErr := q.Close(); closeErr != nil {
				logger.Warn("pubsub close failed", zap.Error(closeErr))
			}
		}, nil
	default:
		q := queueMemory.NewQueue(cfg.Queue.Depth, 0)
		return q, q.Close, nil
	}
}

func buildArchive(ctx context.Context, cfg config.Config) (crawler.Archive, error) {
	switch cfg.Archive.Provider {
	case "gcs":
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		return archive.NewGCS(client, cfg.Archive.GCSBucket)
	case "local":
		return archive.NewLocal(cfg.Archive.LocalDir)
	default:
		return archive.NewMemory(), nil
	}
}

func buildFetcher(cfg config.Config, logger *zap.Logger) (crawler.Fetcher, error) {
	switch cfg.Fetcher.Strategy {
	case "headless":
		return headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			NavigationTimeout: time.Duration(cfg.Headless.NavTimeoutSec) * time.Second,
		})
	default:
		return simplefetcher.New(simplefetcher.Config{
			Timeout: cfg.FetchTimeout(),
		}, logger.Named("fetcher")), nil
	}
}
