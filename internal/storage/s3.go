package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"panoguess/internal/catalog"
	"panoguess/internal/models"
)

// S3Config holds the MinIO connection settings.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// Region skips the bucket location lookup when set.
	Region string
}

// S3Service stores region catalogs in S3-compatible storage.
type S3Service struct {
	client *minio.Client
}

// NewS3Service connects to the MinIO server described by cfg.
func NewS3Service(cfg S3Config) (*S3Service, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: missing one or more of MINIO_ENDPOINT, MINIO_ACCESS_KEY, MINIO_SECRET_KEY", models.ErrConfiguration)
	}

	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	log.Println("Using MinIO endpoint:", cfg.Endpoint)
	return &S3Service{client: minioClient}, nil
}

func (s *S3Service) CreateBucket(ctx context.Context, bucketName string, location string) (bool, error) {
	exists, err := s.client.BucketExists(ctx, bucketName)
	if err != nil {
		return false, fmt.Errorf("error checking bucket existence: %w", err)
	}
	if !exists {
		err = s.client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{Region: location})
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

// PutCatalog writes c as JSON under objectKey, replacing any previous version.
func (s *S3Service) PutCatalog(ctx context.Context, bucketName, objectKey string, c *catalog.Catalog) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal catalog to JSON: %w", err)
	}

	_, err = s.client.PutObject(
		ctx,
		bucketName,
		sanitizeKey(objectKey),
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	if err != nil {
		return fmt.Errorf("failed to store catalog in S3: %w", err)
	}

	log.Printf("Stored catalog of %d regions in bucket '%s' with key '%s'", c.Len(), bucketName, objectKey)
	return nil
}

// GetCatalog reads a catalog object from S3 and validates it.
func (s *S3Service) GetCatalog(ctx context.Context, bucketName, objectKey string) (*catalog.Catalog, error) {
	object, err := s.client.GetObject(ctx, bucketName, sanitizeKey(objectKey), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s/%s: %w", bucketName, objectKey, err)
	}
	c, err := catalog.Load(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("catalog %s/%s: %w", bucketName, objectKey, err)
	}

	log.Printf("Loaded catalog of %d regions from bucket '%s' with key '%s'", c.Len(), bucketName, objectKey)
	return c, nil
}

// sanitizeKey lowercases the key and replaces spaces with hyphens.
func sanitizeKey(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "/")
	s = strings.ReplaceAll(s, " ", "-")
	return strings.ToLower(s)
}
