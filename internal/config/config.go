package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

type AppConfig struct {
	Port      string
	LogLevel  string
	LogJSON   bool
	StartedAt time.Time

	// HTTPTimeout bounds every outbound request (ONS portal, model server).
	HTTPTimeout time.Duration

	ONSAPIURL    string
	ONSPackageID string
	// ReservoirPackageID selects the reservoir EAR package.
	ReservoirPackageID string

	// StorageBackend is one of gcs, local or memory.
	StorageBackend string
	GCSBucket      string
	LocalDataDir   string
	IngestWorkers  int

	// QueryBackend is scan (read partitions) or clickhouse (delegated).
	QueryBackend string
	ClickHouse   ClickHouseConfig

	SchedulerEnabled bool
	SchedulerAt      string

	ForecastBasin   string
	ForecastWindow  int
	ForecastHorizon int
	ForecastTable   string
	ModelArtifact   string
	ModelEndpoint   string
}

type ClickHouseConfig struct {
	Addr     string
	Database string
	User     string
	Password string
	Table    string
}

// Load reads configuration from environment with sensible defaults. Every
// invalid setting is reported, not just the first.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file loaded", "error", err)
	}

	var errs *multierror.Error
	cfg := &AppConfig{StartedAt: time.Now()}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogJSON = strings.EqualFold(getenvDefault("LOG_FORMAT", "text"), "json")

	timeout, err := time.ParseDuration(getenvDefault("HTTP_TIMEOUT", "40s"))
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("invalid HTTP_TIMEOUT: %w", err))
	}
	cfg.HTTPTimeout = timeout

	cfg.ONSAPIURL = os.Getenv("ONS_API_URL")
	cfg.ONSPackageID = os.Getenv("ONS_PACKAGE_ID")
	cfg.ReservoirPackageID = os.Getenv("ONS_RESERVOIR_PACKAGE_ID")

	cfg.StorageBackend = strings.ToLower(getenvDefault("STORAGE_BACKEND", "local"))
	cfg.GCSBucket = os.Getenv("GCS_BUCKET_NAME")
	cfg.LocalDataDir = getenvDefault("LOCAL_DATA_DIR", "./data")
	cfg.IngestWorkers = getenvInt("INGEST_WORKERS", 5)

	cfg.QueryBackend = strings.ToLower(getenvDefault("QUERY_BACKEND", "scan"))
	cfg.ClickHouse = ClickHouseConfig{
		Addr:     getenvDefault("CLICKHOUSE_ADDR", "localhost:9000"),
		Database: getenvDefault("CLICKHOUSE_DATABASE", "ons_silver"),
		User:     getenvDefault("CLICKHOUSE_USER", "default"),
		Password: os.Getenv("CLICKHOUSE_PASSWORD"),
		Table:    getenvDefault("CLICKHOUSE_TABLE", "ena_basin_silver"),
	}

	cfg.SchedulerEnabled = getenvBool("SCHEDULER_ENABLED", false)
	cfg.SchedulerAt = getenvDefault("SCHEDULER_AT", "06:00")

	cfg.ForecastBasin = getenvDefault("FORECAST_BASIN", "PARANAPANEMA")
	cfg.ForecastWindow = getenvInt("FORECAST_WINDOW", 180)
	cfg.ForecastHorizon = getenvInt("FORECAST_HORIZON", 180)
	cfg.ForecastTable = getenvDefault("FORECAST_TABLE", "previsoes_ena")
	cfg.ModelArtifact = getenvDefault("MODEL_ARTIFACT", "model/ena_model.yaml")
	cfg.ModelEndpoint = os.Getenv("MODEL_ENDPOINT")

	if err := cfg.validate(); err != nil {
		errs = multierror.Append(errs, err)
	}
	return cfg, errs.ErrorOrNil()
}

func (c *AppConfig) validate() error {
	var errs *multierror.Error

	switch c.StorageBackend {
	case "gcs":
		if c.GCSBucket == "" {
			errs = multierror.Append(errs, errors.New("GCS_BUCKET_NAME is required when STORAGE_BACKEND=gcs"))
		}
	case "local":
		if c.LocalDataDir == "" {
			errs = multierror.Append(errs, errors.New("LOCAL_DATA_DIR must not be empty"))
		}
	case "memory":
	default:
		errs = multierror.Append(errs, fmt.Errorf("invalid STORAGE_BACKEND %q: use gcs, local or memory", c.StorageBackend))
	}

	switch c.QueryBackend {
	case "scan", "clickhouse":
	default:
		errs = multierror.Append(errs, fmt.Errorf("invalid QUERY_BACKEND %q: use scan or clickhouse", c.QueryBackend))
	}

	if c.IngestWorkers < 1 || c.IngestWorkers > 5 {
		errs = multierror.Append(errs, fmt.Errorf("INGEST_WORKERS must be between 1 and 5, got %d", c.IngestWorkers))
	}
	if _, err := time.Parse("15:04", c.SchedulerAt); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("invalid SCHEDULER_AT %q: use HH:MM", c.SchedulerAt))
	}
	if c.ForecastWindow < 1 {
		errs = multierror.Append(errs, fmt.Errorf("FORECAST_WINDOW must be positive, got %d", c.ForecastWindow))
	}
	if c.ForecastHorizon < 1 || c.ForecastHorizon > 365 {
		errs = multierror.Append(errs, fmt.Errorf("FORECAST_HORIZON must be between 1 and 365, got %d", c.ForecastHorizon))
	}
	return errs.ErrorOrNil()
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}
