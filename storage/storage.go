package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// ErrObjectNotFound is returned by Get and SignedURL for keys that do not exist.
var ErrObjectNotFound = errors.New("object not found")

// Storage is the durable blob-storage boundary. Raw uploads and normalized
// results live under separate prefixes keyed by record id, so a record id
// alone locates both blobs.
type Storage interface {
	// Put stores content under key and returns the storage URI.
	Put(ctx context.Context, key string, content []byte, contentType string) (string, error)

	// Get retrieves the content stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// SignedURL returns a time-limited unauthenticated access URL for key.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Delete removes the object under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

const (
	uploadsPrefix = "uploads/"
	resultsPrefix = "results/"
)

// UploadKey returns the storage key of a record's original PDF.
func UploadKey(recordID uuid.UUID) string {
	return uploadsPrefix + recordID.String() + ".pdf"
}

// ResultKey returns the storage key of a record's normalized JSON.
func ResultKey(recordID uuid.UUID) string {
	return resultsPrefix + recordID.String() + ".json"
}

// ResultsPrefix is the listing prefix for all normalized results.
func ResultsPrefix() string {
	return resultsPrefix
}

// StorageType represents the storage backend type
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// StorageConfig holds configuration for storage
type StorageConfig struct {
	Type         StorageType
	LocalPath    string // For local storage
	S3Bucket     string // For S3 storage
	S3Region     string // For S3 storage
	AWSAccessKey string
	AWSSecretKey string
}

// NewStorage creates a new storage instance based on configuration
func NewStorage(cfg StorageConfig) (Storage, error) {
	switch cfg.Type {
	case StorageTypeLocal:
		return NewLocalStorage(cfg.LocalPath)
	case StorageTypeS3:
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// NewStorageFromEnv creates a storage instance from environment variables
func NewStorageFromEnv() (Storage, error) {
	storageType := os.Getenv("STORAGE_TYPE")
	if storageType == "" {
		storageType = "local" // Default to local for development
	}

	cfg := StorageConfig{
		Type: StorageType(storageType),
	}

	switch StorageType(storageType) {
	case StorageTypeLocal:
		localPath := os.Getenv("STORAGE_LOCAL_PATH")
		if localPath == "" {
			localPath = "./storage/files" // Default local storage path
		}
		cfg.LocalPath = localPath
		return NewLocalStorage(cfg.LocalPath)

	case StorageTypeS3:
		cfg.S3Bucket = os.Getenv("AWS_S3_BUCKET")
		cfg.S3Region = os.Getenv("AWS_REGION")
		if cfg.S3Region == "" {
			cfg.S3Region = "us-east-1" // Default region
		}
		cfg.AWSAccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		cfg.AWSSecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")

		if cfg.S3Bucket == "" {
			return nil, errors.New("AWS_S3_BUCKET environment variable is required for S3 storage")
		}

		return NewS3Storage(cfg)

	default:
		return nil, fmt.Errorf("unknown storage type: %s", storageType)
	}
}
