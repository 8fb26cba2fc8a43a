package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LocalStorage implements Storage interface for local filesystem.
// Signed URLs from this backend are plain file URLs for development use.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	// Create base directory if it doesn't exist
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Put stores an object on the local filesystem
func (s *LocalStorage) Put(ctx context.Context, key string, content []byte, contentType string) (string, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))

	// Create directory structure
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return "file://" + fullPath, nil
}

// Get retrieves an object from local storage
func (s *LocalStorage) Get(ctx context.Context, key string) ([]byte, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))

	content, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return content, nil
}

// SignedURL returns a file URL; local storage has no real signing support
func (s *LocalStorage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))

	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return "", ErrObjectNotFound
		}
		return "", fmt.Errorf("failed to stat file: %w", err)
	}

	return fmt.Sprintf("file://%s?expires_in=%d", fullPath, int(ttl.Seconds())), nil
}

// Delete removes an object from local storage
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))

	err := os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// List returns the keys of all objects under the given prefix
func (s *LocalStorage) List(ctx context.Context, prefix string) ([]string, error) {
	root := filepath.Join(s.basePath, filepath.FromSlash(prefix))

	var keys []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	return keys, nil
}
