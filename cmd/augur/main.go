package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/augurworld/augur/internal/adapter/cache"
	"github.com/augurworld/augur/internal/adapter/gridstore"
	"github.com/augurworld/augur/internal/adapter/httpadapter"
	kafkaadapter "github.com/augurworld/augur/internal/adapter/kafka"
	"github.com/augurworld/augur/internal/adapter/mapbox"
	"github.com/augurworld/augur/internal/adapter/rediscache"
	"github.com/augurworld/augur/internal/config"
	"github.com/augurworld/augur/internal/domain"
	"github.com/augurworld/augur/internal/locator"
	"github.com/augurworld/augur/internal/observability"
)

func main() {
	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	os.Exit(run(cfg))
}

// run serves until a signal arrives and returns the process exit code.
func run(cfg *config.Config) int {

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	schema, err := domain.NewSchema(cfg.Grid.Years, cfg.Grid.Periods)
	if err != nil {
		logger.Error("invalid grid schema", "error", err)
		return 1
	}

	db, err := gridstore.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open grid database", "error", err)
		return 1
	}
	defer db.Close()

	store, err := gridstore.NewStore(db, cfg.GridTable, cfg.MaxSnap, logger)
	if err != nil {
		logger.Error("failed to create grid store", "error", err)
		return 1
	}

	// Refuse to serve a grid whose columns do not match the configured enumerations.
	columns, err := store.Columns(ctx)
	if err != nil {
		logger.Error("failed to read grid columns", "error", err)
		return 1
	}
	if err := schema.Validate(columns); err != nil {
		logger.Error("grid schema mismatch", "table", cfg.GridTable, "error", err)
		return 1
	}

	opts := []locator.Option{}
	if cfg.RedisAddr != "" {
		reports := rediscache.NewReports(rediscache.Open(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), cfg.ReportCacheTTL, logger)
		defer reports.Close()
		if err := reports.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, lookups will fall through to the database", "addr", cfg.RedisAddr, "error", err)
		}
		opts = append(opts, locator.WithCache(reports))
		logger.Info("report cache: redis", "addr", cfg.RedisAddr, "ttl", cfg.ReportCacheTTL)
	} else {
		opts = append(opts, locator.WithCache(cache.NewReports(cfg.ReportCacheSize)))
		logger.Info("report cache: in-memory", "size", cfg.ReportCacheSize)
	}

	var publisher *kafkaadapter.Publisher
	if cfg.LookupEventsEnabled {
		publisher = kafkaadapter.NewPublisher(cfg, metrics, logger)
		opts = append(opts, locator.WithEvents(publisher))
		logger.Info("lookup events enabled", "topic", cfg.LookupEventsTopic, "brokers", cfg.KafkaBrokers)
	}

	// Initialize geocoder (feature-flagged via MAPBOX_ENABLED / MAPBOX_TOKEN).
	var geocoder domain.Geocoder
	if cfg.MapboxEnabled {
		client := mapbox.NewClient(cfg.MapboxToken, cfg.MapboxTimeout, metrics, logger)
		geocoder = mapbox.NewCachedGeocoder(client, cfg.MapboxCacheSize, metrics)
		metrics.GeocodeEnabled.Set(1)
		logger.Info("mapbox geocoding enabled", "cache_size", cfg.MapboxCacheSize, "timeout", cfg.MapboxTimeout)
	} else {
		logger.Info("mapbox geocoding disabled")
	}

	svc := locator.New(store, schema, metrics, logger, opts...)

	srv, err := httpadapter.NewServer(cfg, svc, geocoder, metrics, logger)
	if err != nil {
		logger.Error("failed to create http server", "error", err)
		return 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	exitCode := 0
	if err := g.Wait(); err != nil {
		logger.Error("http server error", "error", err)
		exitCode = 1
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return exitCode
}
