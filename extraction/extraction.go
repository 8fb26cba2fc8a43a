// Package extraction wraps the external AI document-understanding service.
// The rest of the system only sees Extractor; everything upstream of it is
// an opaque, metered capability.
package extraction

import (
	"context"
	"errors"

	"github.com/blsnider/invoice-parser/models"
)

var (
	// ErrTimeout means the extraction call exceeded its deadline. Items are
	// reported failed; retries are the caller's responsibility.
	ErrTimeout = errors.New("extraction timed out")

	// ErrQuotaExceeded means the upstream service rejected the call for
	// rate or quota reasons.
	ErrQuotaExceeded = errors.New("extraction quota exceeded")

	// ErrMalformedResponse means the upstream service answered with
	// something that could not be interpreted as an extraction result.
	ErrMalformedResponse = errors.New("malformed extraction response")
)

// Options controls what the extraction engine is asked to return.
type Options struct {
	ExtractTables    bool
	ExtractLineItems bool
}

// DefaultOptions returns the options used when a request specifies none.
func DefaultOptions() Options {
	return Options{ExtractTables: true, ExtractLineItems: true}
}

// Extractor is the extraction-engine boundary: raw PDF bytes in, loosely
// typed field/table data with per-field confidence out.
type Extractor interface {
	Extract(ctx context.Context, content []byte, kind models.DocumentKind, opts Options) (*models.RawExtraction, error)
}
