package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"panoguess/internal/models"
)

var configKeys = []string{
	"MAPILLARY_TOKEN", "MAPILLARY_BASE_URL", "CACHE_MAX", "CACHE_LOW_WATER",
	"MAX_CONSECUTIVE_FAILURES", "QUERY_INTERVAL", "QUERY_LIMIT", "AREA_LIMIT",
	"BBOX_PRECISION", "HTTP_TIMEOUT", "CATALOG_SOURCE", "CATALOG_PATH",
	"CATALOG_BUCKET", "CATALOG_OBJECT", "DATABASE_URL", "MINIO_ENDPOINT",
	"MINIO_ACCESS_KEY", "MINIO_SECRET_KEY", "MINIO_USE_SSL", "KAFKA_BROKER",
	"KAFKA_TOPIC", "METRICS_ADDR", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv blanks every key so that the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAPILLARY_TOKEN", "MLY|123")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.MapillaryToken != "MLY|123" || cfg.MapillaryBaseURL != "https://graph.mapillary.com" {
		t.Errorf("mapillary settings = %q %q", cfg.MapillaryToken, cfg.MapillaryBaseURL)
	}
	cc := cfg.Cache()
	if cc.MaxRounds != 5 || cc.LowWater != 2 || cc.MaxFailures != 10 {
		t.Errorf("cache config = %+v", cc)
	}
	if cfg.QueryInterval != 500*time.Millisecond || cfg.QueryLimit != 10 || cfg.HTTPTimeout != 10*time.Second {
		t.Errorf("query settings = %v %d %v", cfg.QueryInterval, cfg.QueryLimit, cfg.HTTPTimeout)
	}
	if cfg.AreaLimit != 0.001 || cfg.BBoxPrecision != 4 {
		t.Errorf("area settings = %g %d", cfg.AreaLimit, cfg.BBoxPrecision)
	}
	if cfg.CatalogSource != SourceEmbedded || cfg.KafkaBroker != "" || cfg.KafkaTopic != "panoguess-events" {
		t.Errorf("catalog/kafka settings = %q %q %q", cfg.CatalogSource, cfg.KafkaBroker, cfg.KafkaTopic)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAPILLARY_TOKEN", "tok")
	t.Setenv("CACHE_MAX", "8")
	t.Setenv("CACHE_LOW_WATER", "3")
	t.Setenv("QUERY_INTERVAL", "1s")
	t.Setenv("AREA_LIMIT", "0.0005")
	t.Setenv("CATALOG_SOURCE", "S3")
	t.Setenv("MINIO_ENDPOINT", "localhost:9000")
	t.Setenv("MINIO_ACCESS_KEY", "minio")
	t.Setenv("MINIO_SECRET_KEY", "minio123")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.CacheMax != 8 || cfg.CacheLowWater != 3 || cfg.QueryInterval != time.Second || cfg.AreaLimit != 0.0005 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.CatalogSource != SourceS3 || !cfg.MinIO.UseSSL || cfg.MinIO.Endpoint != "localhost:9000" {
		t.Errorf("minio settings = %q %+v", cfg.CatalogSource, cfg.MinIO)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantMsg string
	}{
		{name: "missing token", env: map[string]string{}, wantMsg: "MAPILLARY_TOKEN"},
		{name: "bad integer", env: map[string]string{"MAPILLARY_TOKEN": "t", "CACHE_MAX": "five"}, wantMsg: "CACHE_MAX"},
		{name: "bad duration", env: map[string]string{"MAPILLARY_TOKEN": "t", "QUERY_INTERVAL": "soon"}, wantMsg: "QUERY_INTERVAL"},
		{name: "zero interval", env: map[string]string{"MAPILLARY_TOKEN": "t", "QUERY_INTERVAL": "0s"}, wantMsg: "QUERY_INTERVAL"},
		{name: "negative timeout", env: map[string]string{"MAPILLARY_TOKEN": "t", "HTTP_TIMEOUT": "-1s"}, wantMsg: "HTTP_TIMEOUT"},
		{name: "zero area", env: map[string]string{"MAPILLARY_TOKEN": "t", "AREA_LIMIT": "0"}, wantMsg: "AREA_LIMIT"},
		{name: "bad bool", env: map[string]string{"MAPILLARY_TOKEN": "t", "MINIO_USE_SSL": "maybe"}, wantMsg: "MINIO_USE_SSL"},
		{name: "unknown source", env: map[string]string{"MAPILLARY_TOKEN": "t", "CATALOG_SOURCE": "ftp"}, wantMsg: "CATALOG_SOURCE"},
		{name: "file without path", env: map[string]string{"MAPILLARY_TOKEN": "t", "CATALOG_SOURCE": "file"}, wantMsg: "CATALOG_PATH"},
		{name: "postgres without url", env: map[string]string{"MAPILLARY_TOKEN": "t", "CATALOG_SOURCE": "postgres"}, wantMsg: "DATABASE_URL"},
		{name: "s3 without credentials", env: map[string]string{"MAPILLARY_TOKEN": "t", "CATALOG_SOURCE": "s3"}, wantMsg: "MINIO_ENDPOINT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			if !errors.Is(err, models.ErrConfiguration) {
				t.Fatalf("err = %v; want ErrConfiguration", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("err = %v; want mention of %s", err, tt.wantMsg)
			}
		})
	}
}

func TestFromEnv_ReportsAllProblems(t *testing.T) {
	clearEnv(t)
	t.Setenv("QUERY_LIMIT", "x")
	_, err := FromEnv()
	if err == nil || !strings.Contains(err.Error(), "QUERY_LIMIT") || !strings.Contains(err.Error(), "MAPILLARY_TOKEN") {
		t.Fatalf("err = %v; want both problems", err)
	}
}
