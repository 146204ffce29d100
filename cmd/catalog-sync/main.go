// Command catalog-sync uploads a region catalog to object storage and/or
// Postgres so that game instances can load it with CATALOG_SOURCE=s3 or
// CATALOG_SOURCE=postgres.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"panoguess/internal/catalog"
	"panoguess/internal/config"
	"panoguess/internal/storage"
	"panoguess/pkg/graceful"
)

func main() {
	var (
		file     = flag.String("file", "", "catalog JSON file to upload (default: the embedded catalog)")
		toS3     = flag.Bool("s3", false, "upload to MinIO (MINIO_* variables)")
		toPG     = flag.Bool("postgres", false, "upsert into Postgres (DATABASE_URL)")
		bucket   = flag.String("bucket", "panoguess", "target bucket")
		object   = flag.String("object", "regions.json", "target object key")
		location = flag.String("location", "", "bucket region when the bucket has to be created")
	)
	flag.Parse()
	config.LoadEnv()

	if !*toS3 && !*toPG {
		log.Fatal("Nothing to do: pass -s3 and/or -postgres")
	}

	ctx, cancel := graceful.Context(context.Background())
	defer cancel()
	start := time.Now()

	c, err := loadSource(*file)
	if err != nil {
		log.Fatalf("Failed to load catalog: %v", err)
	}
	log.Printf("Loaded %d regions", c.Len())

	if *toS3 {
		s3Service, err := storage.NewS3Service(storage.S3Config{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
			SecretKey: os.Getenv("MINIO_SECRET_KEY"),
			UseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
		})
		if err != nil {
			log.Fatal(err)
		}
		if _, err := s3Service.CreateBucket(ctx, *bucket, *location); err != nil {
			log.Fatal(err)
		}
		if err := s3Service.PutCatalog(ctx, *bucket, *object, c); err != nil {
			log.Fatal(err)
		}
	}

	if *toPG {
		store, err := storage.NewPostgresStore(ctx, config.MustGetEnv("DATABASE_URL"))
		if err != nil {
			log.Fatal(err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			log.Fatal(err)
		}
		if err := store.SaveRegions(ctx, c); err != nil {
			log.Fatal(err)
		}
	}

	log.Printf("Finished syncing catalog, took %s", time.Since(start))
}

func loadSource(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(path)
}
