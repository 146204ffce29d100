package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"panoguess/internal/cache"
	"panoguess/internal/catalog"
	"panoguess/internal/config"
	"panoguess/internal/game"
	"panoguess/internal/logging"
	"panoguess/internal/observability"
	"panoguess/internal/rng"
	"panoguess/internal/round"
	"panoguess/internal/storage"
	"panoguess/pkg/geo"
	"panoguess/pkg/graceful"
	"panoguess/pkg/kafkaclient"
	"panoguess/pkg/mapillary"
)

func main() {
	config.LoadEnv()
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, cancel := graceful.Context(context.Background())
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error(ctx, "panoguess stopped", logging.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger logging.Logger) error {
	var closers []graceful.Closer
	defer func() {
		if err := graceful.Shutdown(5*time.Second, closers...); err != nil {
			logger.Warn(context.Background(), "shutdown incomplete", logging.Err(err))
		}
	}()

	regions, err := loadCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info(ctx, "catalog loaded", logging.String("source", cfg.CatalogSource), logging.Int("regions", regions.Len()))

	metrics, err := observability.NewCacheCollector(nil)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, metrics.Handler(), logger)
		closers = append(closers, srv.Shutdown)
	}

	src := rng.NewRandom()
	limiter, err := geo.NewLimiter(cfg.AreaLimit, cfg.BBoxPrecision, src)
	if err != nil {
		return err
	}
	images := mapillary.NewClient(mapillary.Config{
		AccessToken: cfg.MapillaryToken,
		BaseURL:     cfg.MapillaryBaseURL,
		ResultLimit: cfg.QueryLimit,
		MinInterval: cfg.QueryInterval,
		HTTPClient:  &http.Client{Timeout: cfg.HTTPTimeout},
		Rand:        src,
	})
	sampler := catalog.NewSampler(regions, src)
	builder := round.NewBuilder(sampler, limiter, images, round.NewAssembler(sampler, src), logger)

	rounds, err := cache.New(builder, cfg.Cache(), logger, metrics)
	if err != nil {
		return err
	}
	closers = append(closers, graceful.Func(rounds.Close))

	var events game.Publisher
	if cfg.KafkaBroker != "" {
		publisher := kafkaclient.NewPublisher(cfg.KafkaTopic, cfg.KafkaBroker)
		publisher.Start(ctx)
		closers = append(closers, graceful.Func(publisher.Stop))
		events = publisher
		logger.Info(ctx, "publishing game events", logging.String("broker", cfg.KafkaBroker), logging.String("topic", cfg.KafkaTopic))
	}

	session := game.NewSession(rounds, regions, events, logger)
	return play(ctx, session, os.Stdin, os.Stdout)
}

// loadCatalog reads the region catalog from the configured source.
func loadCatalog(ctx context.Context, cfg config.Config) (*catalog.Catalog, error) {
	switch cfg.CatalogSource {
	case config.SourceFile:
		return catalog.LoadFile(cfg.CatalogPath)
	case config.SourceS3:
		s3, err := storage.NewS3Service(cfg.MinIO)
		if err != nil {
			return nil, err
		}
		return s3.GetCatalog(ctx, cfg.CatalogBucket, cfg.CatalogObject)
	case config.SourcePostgres:
		store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.LoadCatalog(ctx)
	default:
		return catalog.Default()
	}
}

func serveMetrics(addr string, handler http.Handler, logger logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info(context.Background(), "serving metrics", logging.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "metrics server failed", logging.Err(err))
		}
	}()
	return srv
}
