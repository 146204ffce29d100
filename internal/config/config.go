// Package config reads the process configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"panoguess/internal/cache"
	"panoguess/internal/models"
	"panoguess/internal/storage"
	"panoguess/pkg/mapillary"
)

const (
	SourceEmbedded = "embedded"
	SourceFile     = "file"
	SourceS3       = "s3"
	SourcePostgres = "postgres"
)

type Config struct {
	MapillaryToken   string
	MapillaryBaseURL string

	CacheMax      int
	CacheLowWater int
	MaxFailures   int

	QueryInterval time.Duration
	QueryLimit    int
	AreaLimit     float64
	BBoxPrecision int
	HTTPTimeout   time.Duration

	CatalogSource string
	CatalogPath   string
	CatalogBucket string
	CatalogObject string
	DatabaseURL   string
	MinIO         storage.S3Config

	KafkaBroker string
	KafkaTopic  string

	MetricsAddr string
	LogLevel    string
	LogFormat   string
}

func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, assuming environment variables are set directly.")
	}
}

func MustGetEnv(key string) string {
	val, ok := os.LookupEnv(key)
	if !ok {
		log.Fatalf("Environment variable %s not set", key)
	}
	return val
}

// FromEnv builds a Config from the environment and validates it. All
// problems are reported together, each wrapping models.ErrConfiguration.
func FromEnv() (Config, error) {
	r := &reader{}
	cfg := Config{
		MapillaryToken:   r.str("MAPILLARY_TOKEN", ""),
		MapillaryBaseURL: r.str("MAPILLARY_BASE_URL", mapillary.DefaultBaseURL),

		CacheMax:      r.integer("CACHE_MAX", 5),
		CacheLowWater: r.integer("CACHE_LOW_WATER", 2),
		MaxFailures:   r.integer("MAX_CONSECUTIVE_FAILURES", 10),

		QueryInterval: r.duration("QUERY_INTERVAL", mapillary.DefaultMinInterval),
		QueryLimit:    r.integer("QUERY_LIMIT", mapillary.DefaultResultLimit),
		AreaLimit:     r.float("AREA_LIMIT", 0.001),
		BBoxPrecision: r.integer("BBOX_PRECISION", 4),
		HTTPTimeout:   r.duration("HTTP_TIMEOUT", 10*time.Second),

		CatalogSource: strings.ToLower(r.str("CATALOG_SOURCE", SourceEmbedded)),
		CatalogPath:   r.str("CATALOG_PATH", ""),
		CatalogBucket: r.str("CATALOG_BUCKET", "panoguess"),
		CatalogObject: r.str("CATALOG_OBJECT", "regions.json"),
		DatabaseURL:   r.str("DATABASE_URL", ""),
		MinIO: storage.S3Config{
			Endpoint:  r.str("MINIO_ENDPOINT", ""),
			AccessKey: r.str("MINIO_ACCESS_KEY", ""),
			SecretKey: r.str("MINIO_SECRET_KEY", ""),
			UseSSL:    r.boolean("MINIO_USE_SSL", false),
		},

		KafkaBroker: r.str("KAFKA_BROKER", ""),
		KafkaTopic:  r.str("KAFKA_TOPIC", "panoguess-events"),

		MetricsAddr: r.str("METRICS_ADDR", ""),
		LogLevel:    r.str("LOG_LEVEL", "info"),
		LogFormat:   r.str("LOG_FORMAT", "text"),
	}
	r.errs = append(r.errs, cfg.validate()...)
	if len(r.errs) > 0 {
		return Config{}, errors.Join(r.errs...)
	}
	return cfg, nil
}

func (c Config) validate() []error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{models.ErrConfiguration}, args...)...))
	}

	if c.MapillaryToken == "" {
		bad("MAPILLARY_TOKEN is required")
	}
	if c.QueryLimit < 1 {
		bad("QUERY_LIMIT must be positive, got %d", c.QueryLimit)
	}
	if c.AreaLimit <= 0 {
		bad("AREA_LIMIT must be positive, got %g", c.AreaLimit)
	}
	if c.BBoxPrecision < 0 || c.BBoxPrecision > 10 {
		bad("BBOX_PRECISION must be within [0, 10], got %d", c.BBoxPrecision)
	}
	if c.QueryInterval <= 0 {
		bad("QUERY_INTERVAL must be positive, got %v", c.QueryInterval)
	}
	if c.HTTPTimeout <= 0 {
		bad("HTTP_TIMEOUT must be positive, got %v", c.HTTPTimeout)
	}

	switch c.CatalogSource {
	case SourceEmbedded:
	case SourceFile:
		if c.CatalogPath == "" {
			bad("CATALOG_PATH is required for the file catalog source")
		}
	case SourceS3:
		if c.MinIO.Endpoint == "" || c.MinIO.AccessKey == "" || c.MinIO.SecretKey == "" {
			bad("MINIO_ENDPOINT, MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required for the s3 catalog source")
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			bad("DATABASE_URL is required for the postgres catalog source")
		}
	default:
		bad("unknown CATALOG_SOURCE %q", c.CatalogSource)
	}
	return errs
}

// Cache returns the round cache settings. They are validated by cache.New.
func (c Config) Cache() cache.Config {
	return cache.Config{MaxRounds: c.CacheMax, LowWater: c.CacheLowWater, MaxFailures: c.MaxFailures}
}

// reader collects parse errors so that they can be reported at once.
type reader struct {
	errs []error
}

func (r *reader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *reader) integer(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%w: %s: %v", models.ErrConfiguration, key, err))
		return def
	}
	return n
}

func (r *reader) float(key string, def float64) float64 {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%w: %s: %v", models.ErrConfiguration, key, err))
		return def
	}
	return f
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%w: %s: %v", models.ErrConfiguration, key, err))
		return def
	}
	return d
}

func (r *reader) boolean(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%w: %s: %v", models.ErrConfiguration, key, err))
		return def
	}
	return b
}
