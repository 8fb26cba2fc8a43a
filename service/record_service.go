package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blsnider/invoice-parser/dedup"
	"github.com/blsnider/invoice-parser/models"
	"github.com/blsnider/invoice-parser/storage"
)

const (
	// DefaultListLimit and MaxListLimit bound record listing page sizes.
	DefaultListLimit = 100
	MaxListLimit     = 500

	// MaxPreviewTTL bounds caller-requested signed URL lifetimes.
	MaxPreviewTTL = 7 * 24 * time.Hour
)

// RecordService is the read path over persisted records, built atop the
// storage gateway.
type RecordService struct {
	storage storage.Storage
	index   dedup.Index
}

// RecordServiceOption is a functional option for RecordService
type RecordServiceOption func(*RecordService)

// RecordWithStorage sets the storage gateway
func RecordWithStorage(s storage.Storage) RecordServiceOption {
	return func(r *RecordService) {
		r.storage = s
	}
}

// RecordWithIndex sets the duplicate index
func RecordWithIndex(i dedup.Index) RecordServiceOption {
	return func(r *RecordService) {
		r.index = i
	}
}

// NewRecordService creates a new record service
func NewRecordService(opts ...RecordServiceOption) *RecordService {
	r := &RecordService{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get retrieves a persisted record by id.
func (r *RecordService) Get(ctx context.Context, recordID uuid.UUID) (*models.ParsedRecord, error) {
	if r.storage == nil {
		return nil, ErrStorageNotSet
	}

	content, err := r.storage.Get(ctx, storage.ResultKey(recordID))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, newError(CodeNotFound, fmt.Sprintf("record %s not found", recordID), ErrRecordNotFound)
		}
		return nil, newError(CodeStorageError, "failed to load record", err)
	}

	var record models.ParsedRecord
	if err := json.Unmarshal(content, &record); err != nil {
		return nil, newError(CodeStorageError, fmt.Sprintf("corrupt record %s", recordID), err)
	}
	return &record, nil
}

// ListResult is one page of records plus the total count.
type ListResult struct {
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Items  []*models.ParsedRecord `json:"items"`
}

// List returns records ordered by creation time (oldest first). Records
// that fail to load are skipped with a warning rather than failing the page.
func (r *RecordService) List(ctx context.Context, limit, offset int) (*ListResult, error) {
	if r.storage == nil {
		return nil, ErrStorageNotSet
	}

	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	keys, err := r.storage.List(ctx, storage.ResultsPrefix())
	if err != nil {
		return nil, newError(CodeStorageError, "failed to list records", err)
	}

	records := make([]*models.ParsedRecord, 0, len(keys))
	for _, key := range keys {
		if !strings.HasSuffix(key, ".json") {
			continue
		}
		content, err := r.storage.Get(ctx, key)
		if err != nil {
			log.Printf("Warning: failed to load record %s: %v", key, err)
			continue
		}
		var record models.ParsedRecord
		if err := json.Unmarshal(content, &record); err != nil {
			log.Printf("Warning: skipping corrupt record %s: %v", key, err)
			continue
		}
		records = append(records, &record)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].RecordID.String() < records[j].RecordID.String()
		}
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})

	result := &ListResult{
		Total:  len(records),
		Limit:  limit,
		Offset: offset,
		Items:  []*models.ParsedRecord{},
	}
	if offset < len(records) {
		end := offset + limit
		if end > len(records) {
			end = len(records)
		}
		result.Items = records[offset:end]
	}
	return result, nil
}

// PreviewURL returns a signed URL for a record's original PDF. The record is
// loaded first so unknown ids map to not-found regardless of the signing
// backend. The ttl is bounded to MaxPreviewTTL; zero selects the default.
func (r *RecordService) PreviewURL(ctx context.Context, recordID uuid.UUID, ttl time.Duration) (string, error) {
	if r.storage == nil {
		return "", ErrStorageNotSet
	}

	if _, err := r.Get(ctx, recordID); err != nil {
		return "", err
	}

	if ttl <= 0 {
		ttl = DefaultPreviewTTL
	}
	if ttl > MaxPreviewTTL {
		ttl = MaxPreviewTTL
	}

	url, err := r.storage.SignedURL(ctx, storage.UploadKey(recordID), ttl)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return "", newError(CodeNotFound, fmt.Sprintf("record %s not found", recordID), ErrRecordNotFound)
		}
		return "", newError(CodeStorageError, "failed to generate preview URL", err)
	}
	return url, nil
}

// Delete removes a record's blobs and its duplicate-index entry. The index
// entry is removed first so a partial failure never leaves the index
// pointing at deleted blobs.
func (r *RecordService) Delete(ctx context.Context, recordID uuid.UUID) error {
	if r.storage == nil {
		return ErrStorageNotSet
	}
	if r.index == nil {
		return ErrIndexNotSet
	}

	record, err := r.Get(ctx, recordID)
	if err != nil {
		return err
	}

	if record.Fingerprint != "" {
		if err := r.index.Remove(ctx, record.Fingerprint); err != nil {
			return newError(CodeStorageError, "failed to remove duplicate index entry", err)
		}
	}

	if err := r.storage.Delete(ctx, storage.ResultKey(recordID)); err != nil {
		return newError(CodeStorageError, "failed to delete record data", err)
	}
	if err := r.storage.Delete(ctx, storage.UploadKey(recordID)); err != nil {
		return newError(CodeStorageError, "failed to delete source file", err)
	}
	return nil
}
