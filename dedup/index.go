// Package dedup maps content fingerprints to record ids so byte-identical
// uploads never trigger a second extraction call.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
)

// ErrNotIndexed is returned by Lookup when no record exists for a fingerprint.
var ErrNotIndexed = errors.New("fingerprint not indexed")

// Index is the duplicate-detection boundary. It is backed by an external
// keyed store; concurrent Register calls for the same fingerprint are not
// mutually exclusive and the last write wins.
type Index interface {
	// Lookup returns the record id registered for a fingerprint, or ErrNotIndexed.
	Lookup(ctx context.Context, fingerprint string) (uuid.UUID, error)

	// Register maps a fingerprint to a record id. Called once per new record,
	// after the normalized result is persisted.
	Register(ctx context.Context, fingerprint string, recordID uuid.UUID) error

	// Remove deletes a fingerprint entry. Removing a missing entry is not an error.
	Remove(ctx context.Context, fingerprint string) error
}

// Fingerprint computes the dedup key for uploaded bytes: the SHA-256 hex
// digest of the content, independent of filename or upload metadata.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// NewIndexFromEnv creates an index instance from environment variables.
// DEDUP_BACKEND selects redis, postgres or memory (default memory).
func NewIndexFromEnv(ctx context.Context) (Index, error) {
	backend := os.Getenv("DEDUP_BACKEND")
	if backend == "" {
		backend = "memory"
	}

	switch backend {
	case "memory":
		return NewMemoryIndex(), nil

	case "redis":
		addr := os.Getenv("REDIS_ADDR")
		if addr == "" {
			addr = "localhost:6379"
		}
		return NewRedisIndex(addr, os.Getenv("REDIS_PASSWORD")), nil

	case "postgres":
		connString := os.Getenv("DATABASE_URL")
		if connString == "" {
			return nil, errors.New("DATABASE_URL environment variable is required for postgres dedup backend")
		}
		return NewPostgresIndex(ctx, connString)

	default:
		return nil, fmt.Errorf("unknown dedup backend: %s", backend)
	}
}
