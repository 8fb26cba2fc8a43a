package dedup

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryIndex is an in-process Index for development and tests. It does not
// survive restarts; production deployments use the redis or postgres backend.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]uuid.UUID
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]uuid.UUID)}
}

// Lookup returns the record id registered for a fingerprint.
func (i *MemoryIndex) Lookup(ctx context.Context, fingerprint string) (uuid.UUID, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	recordID, ok := i.entries[fingerprint]
	if !ok {
		return uuid.Nil, ErrNotIndexed
	}
	return recordID, nil
}

// Register maps a fingerprint to a record id. Last write wins.
func (i *MemoryIndex) Register(ctx context.Context, fingerprint string, recordID uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.entries[fingerprint] = recordID
	return nil
}

// Remove deletes a fingerprint entry.
func (i *MemoryIndex) Remove(ctx context.Context, fingerprint string) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	delete(i.entries, fingerprint)
	return nil
}
