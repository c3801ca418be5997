package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	httpapi "github.com/i474232898/basin-data-api/internal/api/http"
	"github.com/i474232898/basin-data-api/internal/basin"
	"github.com/i474232898/basin-data-api/internal/basin/ons"
	"github.com/i474232898/basin-data-api/internal/config"
	"github.com/i474232898/basin-data-api/internal/forecast"
	"github.com/i474232898/basin-data-api/internal/logging"
	"github.com/i474232898/basin-data-api/internal/metrics"
	"github.com/i474232898/basin-data-api/internal/reservoir"
	"github.com/i474232898/basin-data-api/internal/scheduler"
	"github.com/i474232898/basin-data-api/internal/store"
	"github.com/i474232898/basin-data-api/internal/warehouse"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.LogJSON)
	log := logging.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Shared HTTP client for the ONS portal and the model server.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	blobs, closeBlobs, err := store.Open(ctx, store.Options{
		Backend: cfg.StorageBackend,
		Bucket:  cfg.GCSBucket,
		Dir:     cfg.LocalDataDir,
	})
	if err != nil {
		log.Error("failed to open blob store", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	defer closeBlobs()
	partitions := store.NewPartitions(blobs)

	// ONS locator + client with resilience (backoff + circuit breaker).
	locator := ons.NewLocator(httpClient, cfg.ONSAPIURL, cfg.ONSPackageID)
	onsClient := ons.NewClient(httpClient, locator)

	recorder := metrics.New()
	serviceOpts := []basin.Option{
		basin.WithRecorder(recorder),
		basin.WithWorkers(cfg.IngestWorkers),
	}

	var db *sql.DB
	if cfg.QueryBackend == "clickhouse" {
		db, err = warehouse.Open(ctx, warehouse.Options{
			Addr:     cfg.ClickHouse.Addr,
			Database: cfg.ClickHouse.Database,
			Username: cfg.ClickHouse.User,
			Password: cfg.ClickHouse.Password,
		})
		if err != nil {
			log.Error("failed to connect to clickhouse", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		table, err := warehouse.NewBasinTable(db, cfg.ClickHouse.Table)
		if err != nil {
			log.Error("invalid clickhouse table", "error", err)
			os.Exit(1)
		}
		serviceOpts = append(serviceOpts, basin.WithPageSource(table))
	}

	// Core service orchestrating the ONS client and the partition store.
	service := basin.NewService(partitions, onsClient, serviceOpts...)

	// Reservoir EAR data: one flat Parquet object per year.
	reservoirService := reservoir.NewService(
		store.NewYearFiles[reservoir.RawRow](blobs, store.YearlyKey("reservoir_data")),
		ons.NewReservoirClient(httpClient, cfg.ONSAPIURL, cfg.ReservoirPackageID),
		reservoir.WithRecorder(recorder),
		reservoir.WithWorkers(cfg.IngestWorkers),
	)

	deps := httpapi.Deps{
		Basin:        service,
		Reservoir:    reservoirService,
		Observer:     recorder,
		DefaultBasin: cfg.ForecastBasin,
	}
	if fc, err := buildForecaster(cfg, httpClient, partitions, db); err != nil {
		log.Warn("forecasting disabled", "error", err)
	} else {
		deps.Forecaster = fc
	}

	if cfg.SchedulerEnabled {
		sched := scheduler.New(service, cfg.SchedulerAt)
		if err := sched.Start(); err != nil {
			log.Error("failed to start scheduler", "error", err)
			os.Exit(1)
		}
		defer sched.Stop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "basin-data-api",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Ingesting many years and long forecasts take a while.
		WriteTimeout: 5 * time.Minute,
		ErrorHandler: httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to the Basin Data API. See /docs for more information.",
		})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "basin-data-api",
			"uptime":  time.Since(cfg.StartedAt).Round(time.Second).String(),
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(recorder.Handler()))

	// API routes.
	httpapi.RegisterRoutes(app, deps)

	go func() {
		log.Info("listening", "port", cfg.Port, "storage", cfg.StorageBackend, "query", cfg.QueryBackend)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
}

// buildForecaster loads the model artifact and picks the inference backend.
// Forecast runs are persisted only when the warehouse is connected.
func buildForecaster(cfg *config.AppConfig, client *http.Client, partitions basin.PartitionStore, db *sql.DB) (*forecast.Forecaster, error) {
	artifact, err := forecast.LoadArtifact(cfg.ModelArtifact)
	if err != nil {
		return nil, err
	}
	scaler, err := artifact.Scaler()
	if err != nil {
		return nil, err
	}

	var model forecast.Model
	if cfg.ModelEndpoint != "" {
		model = forecast.NewRemoteModel(client, cfg.ModelEndpoint)
	} else {
		linear, err := artifact.LinearModel()
		if err != nil {
			return nil, err
		}
		model = linear
	}

	opts := []forecast.Option{
		forecast.WithWindow(cfg.ForecastWindow),
		forecast.WithHorizon(cfg.ForecastHorizon),
	}
	if db != nil && cfg.ForecastTable != "" {
		sink, err := warehouse.NewForecastTable(db, cfg.ForecastTable)
		if err != nil {
			return nil, err
		}
		opts = append(opts, forecast.WithSink(sink))
	}

	return forecast.NewForecaster(forecast.NewPartitionHistory(partitions), scaler, model, opts...)
}
