package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"panoguess/internal/catalog"
	"panoguess/internal/models"
	"panoguess/pkg/geo"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const (
	createRegionsTable = `
CREATE TABLE IF NOT EXISTS regions (
	code       TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	min_lon    DOUBLE PRECISION NOT NULL,
	min_lat    DOUBLE PRECISION NOT NULL,
	max_lon    DOUBLE PRECISION NOT NULL,
	max_lat    DOUBLE PRECISION NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

	upsertRegion = `
INSERT INTO regions (code, name, min_lon, min_lat, max_lon, max_lat, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, now())
ON CONFLICT (code) DO UPDATE SET
	name = EXCLUDED.name,
	min_lon = EXCLUDED.min_lon,
	min_lat = EXCLUDED.min_lat,
	max_lon = EXCLUDED.max_lon,
	max_lat = EXCLUDED.max_lat,
	updated_at = now()`

	selectRegions = `SELECT code, name, min_lon, min_lat, max_lon, max_lat FROM regions ORDER BY code`
)

// PostgresStore keeps the region catalog in a Postgres table.
type PostgresStore struct {
	db   DB
	pool *pgxpool.Pool
}

// NewPostgresStore opens a connection pool for databaseURL and pings it.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("%w: DATABASE_URL is not set", models.ErrConfiguration)
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create Postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach Postgres: %w", err)
	}
	return &PostgresStore{db: pool, pool: pool}, nil
}

// NewPostgresStoreWithDB wraps an existing connection or pool.
func NewPostgresStoreWithDB(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createRegionsTable); err != nil {
		return fmt.Errorf("creating regions table: %w", err)
	}
	return nil
}

// SaveRegions upserts every region of c in a single batch.
func (s *PostgresStore) SaveRegions(ctx context.Context, c *catalog.Catalog) error {
	regions := c.Regions()
	batch := &pgx.Batch{}
	for _, r := range regions {
		batch.Queue(upsertRegion, r.Code, r.Name, r.BBox.MinLon, r.BBox.MinLat, r.BBox.MaxLon, r.BBox.MaxLat)
	}

	results := s.db.SendBatch(ctx, batch)
	for _, r := range regions {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("upserting region %s: %w", r.Code, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing batch: %w", err)
	}

	log.Printf("Saved %d regions to Postgres", len(regions))
	return nil
}

// LoadCatalog reads every stored region and validates them as a catalog.
func (s *PostgresStore) LoadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	rows, err := s.db.Query(ctx, selectRegions)
	if err != nil {
		return nil, fmt.Errorf("querying regions: %w", err)
	}
	regions, err := pgx.CollectRows(rows, scanRegion)
	if err != nil {
		return nil, fmt.Errorf("reading regions: %w", err)
	}
	return catalog.New(regions)
}

func scanRegion(row pgx.CollectableRow) (models.Region, error) {
	var (
		r                              models.Region
		minLon, minLat, maxLon, maxLat float64
	)
	if err := row.Scan(&r.Code, &r.Name, &minLon, &minLat, &maxLon, &maxLat); err != nil {
		return models.Region{}, err
	}
	r.BBox = geo.NewBoundingBox(minLon, minLat, maxLon, maxLat)
	return r, nil
}
