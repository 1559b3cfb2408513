package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Supported DB_DRIVER values.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Kafka ingest trigger. Disabled unless KAFKA_ENABLED=true.
	KafkaEnabled      bool
	KafkaBrokers      []string
	KafkaRequestTopic string
	KafkaSummaryTopic string
	KafkaGroupID      string

	DBDriver   string
	DBDSN      string
	SQLitePath string

	// Model output discovery.
	MeshOutputDir            string
	MapFileSuffix            string
	ClassificationFileSuffix string
	HistoryFileSuffix        string
	MinWaterDepth            float64

	// ModelScript is the external model executable. Empty disables model runs.
	ModelScript string

	// Cached query results expire after QueryCacheTTL so writes made by
	// other processes become visible.
	QueryCacheSize int
	QueryCacheTTL  time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	minDepth, err := parseMinWaterDepth()
	if err != nil {
		return nil, err
	}

	cacheTTL, err := parseQueryCacheTTL()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		KafkaEnabled:      os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:      sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaRequestTopic: sharedcfg.EnvOrDefault("KAFKA_REQUEST_TOPIC", "mesh-ingest-requests"),
		KafkaSummaryTopic: sharedcfg.EnvOrDefault("KAFKA_SUMMARY_TOPIC", "mesh-ingest-summaries"),
		KafkaGroupID:      sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "flood-mesh-etl"),

		DBDriver:   sharedcfg.EnvOrDefault("DB_DRIVER", DriverSQLite),
		DBDSN:      os.Getenv("DB_DSN"),
		SQLitePath: sharedcfg.EnvOrDefault("SQLITE_PATH", "data/flood.db"),

		MeshOutputDir:            sharedcfg.EnvOrDefault("MESH_OUTPUT_DIR", "storage/output"),
		MapFileSuffix:            sharedcfg.EnvOrDefault("MAP_FILE_SUFFIX", "_map.nc"),
		ClassificationFileSuffix: sharedcfg.EnvOrDefault("CLASSIFICATION_FILE_SUFFIX", "_clm.nc"),
		HistoryFileSuffix:        sharedcfg.EnvOrDefault("HISTORY_FILE_SUFFIX", "_his.nc"),
		MinWaterDepth:            minDepth,

		ModelScript:    os.Getenv("MODEL_SCRIPT"),
		QueryCacheSize: parseQueryCacheSize(),
		QueryCacheTTL:  cacheTTL,
	}

	if cfg.KafkaEnabled {
		if len(cfg.KafkaBrokers) == 0 {
			return nil, errors.New("KAFKA_BROKERS is required")
		}
		if cfg.KafkaRequestTopic == "" {
			return nil, errors.New("KAFKA_REQUEST_TOPIC is required")
		}
		if cfg.KafkaSummaryTopic == "" {
			return nil, errors.New("KAFKA_SUMMARY_TOPIC is required")
		}
	}

	switch cfg.DBDriver {
	case DriverSQLite:
		if cfg.DBDSN == "" && cfg.SQLitePath == "" {
			return nil, errors.New("SQLITE_PATH is required")
		}
	case DriverPostgres:
		if cfg.DBDSN == "" {
			return nil, errors.New("DB_DSN is required when DB_DRIVER is postgres")
		}
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q: must be sqlite or postgres", cfg.DBDriver)
	}

	return cfg, nil
}

// DSN returns the connection string for the configured driver. SQLite falls
// back to SQLITE_PATH when DB_DSN is unset.
func (c *Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	return c.SQLitePath
}

func parseMinWaterDepth() (float64, error) {
	s := os.Getenv("MIN_WATER_DEPTH")
	if s == "" {
		return 0.01, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, errors.New("invalid MIN_WATER_DEPTH: must be a non-negative number")
	}
	return v, nil
}

func parseQueryCacheSize() int {
	if s := os.Getenv("QUERY_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return n
		}
	}
	return 256
}

func parseQueryCacheTTL() (time.Duration, error) {
	s := os.Getenv("QUERY_CACHE_TTL")
	if s == "" {
		return 30 * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, errors.New("invalid QUERY_CACHE_TTL: must be a positive duration")
	}
	return d, nil
}
