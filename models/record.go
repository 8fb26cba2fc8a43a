package models

import (
	"time"

	"github.com/google/uuid"
)

// DocumentKind identifies the document type a record was parsed from.
type DocumentKind string

const (
	DocumentKindInvoice      DocumentKind = "invoice"
	DocumentKindBillOfLading DocumentKind = "bill_of_lading"
)

// Valid reports whether k is a supported document kind.
func (k DocumentKind) Valid() bool {
	return k == DocumentKindInvoice || k == DocumentKindBillOfLading
}

// FieldValue is a normalized field with the extraction confidence it arrived with.
type FieldValue struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// LineItem is one normalized row of an invoice or shipment table. Order is
// preserved as returned by extraction.
type LineItem struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity,omitempty"`
	UnitPrice   *Money   `json:"unit_price,omitempty"`
	Amount      Money    `json:"amount"`
}

// ParsedRecord is the normalized result of parsing one uploaded document.
// RecordID and Fingerprint are immutable once assigned; StructuredFields,
// LineItems, OverallConfidence and ResultURI are overwritten on reprocess.
type ParsedRecord struct {
	RecordID   uuid.UUID    `json:"record_id"`
	SourceKind DocumentKind `json:"source_kind"`

	IdentifyingFields map[string]string     `json:"identifying_fields"`
	StructuredFields  map[string]FieldValue `json:"structured_fields"`
	LineItems         []LineItem            `json:"line_items"`

	OverallConfidence  float64  `json:"overall_confidence"`
	DroppedRowCount    int      `json:"dropped_row_count"`
	ValidationWarnings []string `json:"validation_warnings,omitempty"`

	RawText string `json:"raw_text,omitempty"`

	SourceURI string `json:"source_uri"`
	ResultURI string `json:"result_uri"`

	Filename    string    `json:"filename,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}
