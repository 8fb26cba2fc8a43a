package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/blsnider/invoice-parser/dedup"
	"github.com/blsnider/invoice-parser/extraction"
	"github.com/blsnider/invoice-parser/models"
	"github.com/blsnider/invoice-parser/normalize"
	"github.com/blsnider/invoice-parser/storage"
)

const (
	// DefaultMaxFileSize is the upload size ceiling (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024

	// DefaultBatchWorkers and MaxBatchWorkers bound batch concurrency so a
	// single batch cannot exhaust the extraction engine's quota.
	DefaultBatchWorkers = 5
	MaxBatchWorkers     = 10

	// MaxBatchFiles caps how many files one batch request may carry.
	MaxBatchFiles = 50

	// DefaultBatchBudget is the wall-clock budget for a whole batch. Items
	// not started before it expires are reported as BATCH_TIMEOUT.
	DefaultBatchBudget = 5 * time.Minute

	// DefaultPreviewTTL is the signed preview URL lifetime.
	DefaultPreviewTTL = 15 * time.Minute
)

var pdfMagic = []byte("%PDF")

// ParseService is the orchestration pipeline: one uploaded file in, one
// durable deduplicated ParsedRecord out.
type ParseService struct {
	storage     storage.Storage
	extractor   extraction.Extractor
	index       dedup.Index
	maxFileSize int64
	batchBudget time.Duration
}

// ParseServiceOption is a functional option for ParseService
type ParseServiceOption func(*ParseService)

// WithStorage sets the storage gateway
func WithStorage(s storage.Storage) ParseServiceOption {
	return func(p *ParseService) {
		p.storage = s
	}
}

// WithExtractor sets the extraction gateway
func WithExtractor(e extraction.Extractor) ParseServiceOption {
	return func(p *ParseService) {
		p.extractor = e
	}
}

// WithIndex sets the duplicate index
func WithIndex(i dedup.Index) ParseServiceOption {
	return func(p *ParseService) {
		p.index = i
	}
}

// WithMaxFileSize overrides the upload size ceiling
func WithMaxFileSize(size int64) ParseServiceOption {
	return func(p *ParseService) {
		p.maxFileSize = size
	}
}

// WithBatchBudget overrides the batch wall-clock budget
func WithBatchBudget(budget time.Duration) ParseServiceOption {
	return func(p *ParseService) {
		p.batchBudget = budget
	}
}

// NewParseService creates a new parse service
func NewParseService(opts ...ParseServiceOption) *ParseService {
	s := &ParseService{
		maxFileSize: DefaultMaxFileSize,
		batchBudget: DefaultBatchBudget,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseInput is one file to parse.
type ParseInput struct {
	Content  []byte
	Filename string
	Kind     models.DocumentKind
	Options  extraction.Options
}

// ParseResult is the outcome of parsing one file.
type ParseResult struct {
	Record     *models.ParsedRecord
	PreviewURL string
	// Duplicate is set when the record was served from the duplicate index
	// without calling the extraction engine.
	Duplicate      bool
	ProcessingTime float64
}

// ParseOne runs the full pipeline for a single file:
// validate, fingerprint, duplicate short-circuit, store raw bytes, extract,
// normalize, store normalized JSON, register fingerprint. The raw upload is
// persisted before extraction so the source survives extraction failures;
// index registration is last so a crash mid-pipeline never leaves an index
// entry pointing at a missing result.
func (s *ParseService) ParseOne(ctx context.Context, input ParseInput) (*ParseResult, error) {
	start := time.Now()

	if s.storage == nil {
		return nil, ErrStorageNotSet
	}
	if s.extractor == nil {
		return nil, ErrExtractorNotSet
	}
	if s.index == nil {
		return nil, ErrIndexNotSet
	}

	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	fingerprint := dedup.Fingerprint(input.Content)

	if existing := s.lookupDuplicate(ctx, fingerprint); existing != nil {
		existing.ProcessingTime = time.Since(start).Seconds()
		return existing, nil
	}

	recordID := uuid.New()
	uploadKey := storage.UploadKey(recordID)

	uploadURI, err := s.storage.Put(ctx, uploadKey, input.Content, "application/pdf")
	if err != nil {
		return nil, newError(CodeStorageError, "failed to store uploaded file", err)
	}
	log.Printf("stored upload %s at %s", recordID, uploadURI)

	raw, err := s.extractor.Extract(ctx, input.Content, input.Kind, input.Options)
	if err != nil {
		// The raw file stays in storage, recoverable but unindexed.
		return nil, classifyExtractionError(err)
	}

	record, err := normalize.Normalize(raw, input.Kind)
	if err != nil {
		return nil, newError(CodeParseError, "extraction produced no persistable fields", err)
	}

	record.RecordID = recordID
	record.Fingerprint = fingerprint
	record.Filename = sanitizeFilename(input.Filename)
	record.SourceURI = uploadKey
	record.ResultURI = storage.ResultKey(recordID)
	record.CreatedAt = time.Now().UTC()

	if err := s.persistRecord(ctx, record); err != nil {
		return nil, err
	}

	// Registration is intentionally the final step.
	if err := s.index.Register(ctx, fingerprint, recordID); err != nil {
		log.Printf("Warning: failed to register fingerprint %s: %v", fingerprint, err)
	}

	return &ParseResult{
		Record:         record,
		PreviewURL:     s.previewURL(ctx, recordID),
		ProcessingTime: time.Since(start).Seconds(),
	}, nil
}

func (s *ParseService) validateInput(input ParseInput) error {
	if len(input.Content) == 0 {
		return newError(CodeValidationError, "file is empty", nil)
	}
	if int64(len(input.Content)) > s.maxFileSize {
		return newError(CodeFileSizeExceeded,
			fmt.Sprintf("file size %d exceeds maximum of %d bytes", len(input.Content), s.maxFileSize), nil)
	}
	if !bytes.HasPrefix(input.Content, pdfMagic) {
		return newError(CodeInvalidFileType, "invalid file content, expected PDF", nil)
	}
	if input.Kind != "" && !input.Kind.Valid() {
		return newError(CodeValidationError,
			fmt.Sprintf("unknown document kind %q", input.Kind), nil)
	}
	return nil
}

// lookupDuplicate consults the duplicate index. Index failures degrade to
// not-found: re-parsing a file is cheaper than blocking uploads.
func (s *ParseService) lookupDuplicate(ctx context.Context, fingerprint string) *ParseResult {
	recordID, err := s.index.Lookup(ctx, fingerprint)
	if err != nil {
		if !errors.Is(err, dedup.ErrNotIndexed) {
			log.Printf("Warning: duplicate index lookup failed, treating as not found: %v", err)
		}
		return nil
	}

	record, err := s.loadRecord(ctx, recordID)
	if err != nil {
		log.Printf("Warning: index entry %s points at unreadable record %s: %v", fingerprint, recordID, err)
		return nil
	}

	return &ParseResult{
		Record:     record,
		PreviewURL: s.previewURL(ctx, recordID),
		Duplicate:  true,
	}
}

func (s *ParseService) persistRecord(ctx context.Context, record *models.ParsedRecord) error {
	content, err := json.Marshal(record)
	if err != nil {
		return newError(CodeParseError, "failed to encode normalized record", err)
	}

	if _, err := s.storage.Put(ctx, record.ResultURI, content, "application/json"); err != nil {
		return newError(CodeStorageError, "failed to store normalized record", err)
	}
	return nil
}

func (s *ParseService) loadRecord(ctx context.Context, recordID uuid.UUID) (*models.ParsedRecord, error) {
	content, err := s.storage.Get(ctx, storage.ResultKey(recordID))
	if err != nil {
		return nil, err
	}

	var record models.ParsedRecord
	if err := json.Unmarshal(content, &record); err != nil {
		return nil, fmt.Errorf("corrupt record %s: %w", recordID, err)
	}
	return &record, nil
}

// previewURL signs a preview link for the raw upload. Signing failure is
// never fatal: the record is already durable.
func (s *ParseService) previewURL(ctx context.Context, recordID uuid.UUID) string {
	url, err := s.storage.SignedURL(ctx, storage.UploadKey(recordID), DefaultPreviewTTL)
	if err != nil {
		log.Printf("Warning: failed to sign preview URL for %s: %v", recordID, err)
		return ""
	}
	return url
}

func classifyExtractionError(err error) *Error {
	switch {
	case errors.Is(err, extraction.ErrTimeout):
		return newError(CodeExtractionTimeout, "extraction timed out", err)
	case errors.Is(err, extraction.ErrQuotaExceeded):
		return newError(CodeQuotaExceeded, "extraction quota exceeded", err)
	default:
		return newError(CodeExtractionError, "document extraction failed", err)
	}
}

var reFilenameNoise = regexp.MustCompile(`[^\w\s\-.]`)
var reFilenameSpace = regexp.MustCompile(`\s+`)

// sanitizeFilename strips path components and unsafe characters from an
// uploaded filename before it is stored as record metadata.
func sanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	filename = reFilenameNoise.ReplaceAllString(filename, "")
	filename = reFilenameSpace.ReplaceAllString(filename, "_")
	if len(filename) > 255 {
		filename = filename[:255]
	}
	return strings.TrimPrefix(filename, ".")
}

// BatchItem is one slot of a batch outcome, at the same position as its input.
type BatchItem struct {
	Success        bool                 `json:"success"`
	RecordID       string               `json:"record_id,omitempty"`
	Data           *models.ParsedRecord `json:"data,omitempty"`
	PreviewURL     string               `json:"preview_url,omitempty"`
	Duplicate      bool                 `json:"duplicate,omitempty"`
	ErrorCode      string               `json:"error_code,omitempty"`
	ErrorMessage   string               `json:"error_message,omitempty"`
	ProcessingTime float64              `json:"processing_time"`
}

// BatchResult aggregates per-item outcomes; Results preserves input order.
type BatchResult struct {
	Total          int         `json:"total"`
	Succeeded      int         `json:"succeeded"`
	Failed         int         `json:"failed"`
	Results        []BatchItem `json:"results"`
	ProcessingTime float64     `json:"processing_time"`
}

// ParseBatch runs ParseOne over each item with bounded concurrency. Item
// failures fill their result slot and never abort sibling items. Items not
// started before the batch budget expires are reported as BATCH_TIMEOUT.
func (s *ParseService) ParseBatch(ctx context.Context, items []ParseInput, maxWorkers int) (*BatchResult, error) {
	start := time.Now()

	if len(items) == 0 {
		return nil, newError(CodeValidationError, "no files to process", nil)
	}
	if len(items) > MaxBatchFiles {
		return nil, newError(CodeBatchSizeExceeded,
			fmt.Sprintf("batch of %d files exceeds maximum of %d", len(items), MaxBatchFiles), nil)
	}

	if maxWorkers <= 0 {
		maxWorkers = DefaultBatchWorkers
	}
	if maxWorkers > MaxBatchWorkers {
		maxWorkers = MaxBatchWorkers
	}

	batchCtx, cancel := context.WithTimeout(ctx, s.batchBudget)
	defer cancel()

	sem := semaphore.NewWeighted(int64(maxWorkers))
	results := make([]BatchItem, len(items))

	var wg sync.WaitGroup
	for i := range items {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			if err := sem.Acquire(batchCtx, 1); err != nil {
				results[i] = BatchItem{
					ErrorCode:    CodeBatchTimeout,
					ErrorMessage: "batch budget exhausted before item started",
				}
				return
			}
			defer sem.Release(1)

			res, err := s.ParseOne(batchCtx, items[i])
			if err != nil {
				results[i] = BatchItem{
					ErrorCode:    ErrorCode(err),
					ErrorMessage: ErrorMessage(err),
				}
				return
			}

			results[i] = BatchItem{
				Success:        true,
				RecordID:       res.Record.RecordID.String(),
				Data:           res.Record,
				PreviewURL:     res.PreviewURL,
				Duplicate:      res.Duplicate,
				ProcessingTime: res.ProcessingTime,
			}
		}(i)
	}
	wg.Wait()

	batch := &BatchResult{
		Total:          len(items),
		Results:        results,
		ProcessingTime: time.Since(start).Seconds(),
	}
	for _, item := range results {
		if item.Success {
			batch.Succeeded++
		} else {
			batch.Failed++
		}
	}
	return batch, nil
}

// Reprocess re-runs extraction and normalization against a record's stored
// raw bytes, overwriting the normalized result in place. RecordID,
// SourceURI, Fingerprint and CreatedAt are preserved.
func (s *ParseService) Reprocess(ctx context.Context, recordID uuid.UUID, opts extraction.Options) (*ParseResult, error) {
	start := time.Now()

	if s.storage == nil {
		return nil, ErrStorageNotSet
	}
	if s.extractor == nil {
		return nil, ErrExtractorNotSet
	}

	existing, err := s.loadRecord(ctx, recordID)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, newError(CodeNotFound, fmt.Sprintf("record %s not found", recordID), ErrRecordNotFound)
		}
		return nil, newError(CodeStorageError, "failed to load record", err)
	}

	content, err := s.storage.Get(ctx, storage.UploadKey(recordID))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, newError(CodeNotFound, fmt.Sprintf("source file for record %s not found", recordID), ErrRecordNotFound)
		}
		return nil, newError(CodeStorageError, "failed to load source file", err)
	}

	raw, err := s.extractor.Extract(ctx, content, existing.SourceKind, opts)
	if err != nil {
		return nil, classifyExtractionError(err)
	}

	record, err := normalize.Normalize(raw, existing.SourceKind)
	if err != nil {
		return nil, newError(CodeParseError, "extraction produced no persistable fields", err)
	}

	record.RecordID = existing.RecordID
	record.Fingerprint = existing.Fingerprint
	record.Filename = existing.Filename
	record.SourceURI = existing.SourceURI
	record.ResultURI = existing.ResultURI
	record.CreatedAt = existing.CreatedAt

	if err := s.persistRecord(ctx, record); err != nil {
		return nil, err
	}

	return &ParseResult{
		Record:         record,
		PreviewURL:     s.previewURL(ctx, recordID),
		ProcessingTime: time.Since(start).Seconds(),
	}, nil
}
