package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blsnider/invoice-parser/models"
)

func TestNormalizeInvoice(t *testing.T) {
	raw := &models.RawExtraction{
		Fields: map[string]models.RawField{
			"invoice_id":   {Value: "INV-001", Confidence: 0.98},
			"total_amount": {Value: "$1,100.00", Confidence: 0.95},
			"due_date":     {Value: "02/15/2024", Confidence: 0.91},
			"vendor_name":  {Value: "Acme Corp", Confidence: 0.97},
		},
		Tables: []models.RawTable{
			{
				Headers: []string{"Description", "Qty", "Unit Price", "Amount"},
				Rows: [][]string{
					{"Widget A", "10", "$50.00", "$500.00"},
					{"Widget B", "6", "$100.00", "$600.00"},
				},
			},
		},
		RawText: "Invoice INV-001 from Acme Corp",
	}

	rec, err := Normalize(raw, models.DocumentKindInvoice)
	require.NoError(t, err)

	assert.Equal(t, "INV-001", rec.StructuredFields["invoice_number"].Value)
	assert.Equal(t, "INV-001", rec.IdentifyingFields["invoice_number"])
	assert.Equal(t, "1100.00", rec.StructuredFields["total_amount"].Value)
	assert.Equal(t, "2024-02-15", rec.StructuredFields["due_date"].Value)
	assert.Equal(t, "Acme Corp", rec.StructuredFields["supplier_name"].Value)

	require.Len(t, rec.LineItems, 2)
	assert.Equal(t, "Widget A", rec.LineItems[0].Description)
	assert.Equal(t, models.Money(50000), rec.LineItems[0].Amount)
	require.NotNil(t, rec.LineItems[0].Quantity)
	assert.Equal(t, 10.0, *rec.LineItems[0].Quantity)
	require.NotNil(t, rec.LineItems[1].UnitPrice)
	assert.Equal(t, models.Money(10000), *rec.LineItems[1].UnitPrice)
	assert.Equal(t, 0, rec.DroppedRowCount)

	assert.GreaterOrEqual(t, rec.OverallConfidence, 0.95)
	assert.Equal(t, "Invoice INV-001 from Acme Corp", rec.RawText)
}

func TestNormalizeMissingRequiredCapsConfidence(t *testing.T) {
	raw := &models.RawExtraction{
		Fields: map[string]models.RawField{
			"invoice_number": {Value: "INV-002", Confidence: 0.99},
			"supplier_name":  {Value: "Acme Corp", Confidence: 0.99},
		},
	}

	rec, err := Normalize(raw, models.DocumentKindInvoice)
	require.NoError(t, err)

	_, hasTotal := rec.StructuredFields["total_amount"]
	assert.False(t, hasTotal)
	assert.LessOrEqual(t, rec.OverallConfidence, MissingRequiredCeiling)
	assert.Less(t, rec.OverallConfidence, ReviewThreshold)
}

func TestNormalizeCoercionFailureDropsOptionalField(t *testing.T) {
	raw := &models.RawExtraction{
		Fields: map[string]models.RawField{
			"total_amount": {Value: "250.00", Confidence: 0.9},
			"due_date":     {Value: "whenever", Confidence: 0.4},
			"currency":     {Value: "dollars", Confidence: 0.8},
		},
	}

	rec, err := Normalize(raw, models.DocumentKindInvoice)
	require.NoError(t, err)

	_, hasDue := rec.StructuredFields["due_date"]
	assert.False(t, hasDue)
	_, hasCurrency := rec.StructuredFields["currency"]
	assert.False(t, hasCurrency)
	assert.Equal(t, "250.00", rec.StructuredFields["total_amount"].Value)
	assert.Equal(t, 0.9, rec.OverallConfidence)
}

func TestNormalizeDropsMalformedRows(t *testing.T) {
	raw := &models.RawExtraction{
		Fields: map[string]models.RawField{
			"total_amount": {Value: "100.00", Confidence: 0.9},
		},
		Tables: []models.RawTable{
			{
				Headers: []string{"Description", "Amount"},
				Rows: [][]string{
					{"Valid row", "100.00"},
					{"", "50.00"},
					{"No amount", "n/a"},
				},
			},
		},
	}

	rec, err := Normalize(raw, models.DocumentKindInvoice)
	require.NoError(t, err)

	require.Len(t, rec.LineItems, 1)
	assert.Equal(t, "Valid row", rec.LineItems[0].Description)
	assert.Equal(t, 2, rec.DroppedRowCount)
}

func TestNormalizeUnpersistable(t *testing.T) {
	raw := &models.RawExtraction{
		Fields: map[string]models.RawField{
			"supplier_name": {Value: "Acme Corp", Confidence: 0.9},
		},
	}

	_, err := Normalize(raw, models.DocumentKindInvoice)
	assert.ErrorIs(t, err, ErrUnpersistable)

	_, err = Normalize(nil, models.DocumentKindInvoice)
	assert.ErrorIs(t, err, ErrUnpersistable)
}

func TestNormalizeCrossCheckWarnings(t *testing.T) {
	raw := &models.RawExtraction{
		Fields: map[string]models.RawField{
			"invoice_number": {Value: "INV-003", Confidence: 0.99},
			"subtotal":       {Value: "100.00", Confidence: 0.95},
			"tax_amount":     {Value: "10.00", Confidence: 0.95},
			"total_amount":   {Value: "115.00", Confidence: 0.95},
			"invoice_date":   {Value: "2024-03-01", Confidence: 0.95},
			"due_date":       {Value: "2024-02-01", Confidence: 0.95},
		},
		Tables: []models.RawTable{
			{
				Headers: []string{"Description", "Amount"},
				Rows:    [][]string{{"Service", "90.00"}},
			},
		},
	}

	rec, err := Normalize(raw, models.DocumentKindInvoice)
	require.NoError(t, err)

	assert.Len(t, rec.ValidationWarnings, 3)
	assert.Contains(t, rec.ValidationWarnings, "due_date is before invoice_date")
}

func TestNormalizeBillOfLading(t *testing.T) {
	raw := &models.RawExtraction{
		Fields: map[string]models.RawField{
			"bill_of_lading_number": {Value: "BOL-9001", Confidence: 0.93},
			"carrier":               {Value: "Fast Freight", Confidence: 0.88},
			"total_weight":          {Value: "1,250.5", Confidence: 0.9},
			"freight_charges":       {Value: "$430.00", Confidence: 0.85},
		},
	}

	rec, err := Normalize(raw, models.DocumentKindBillOfLading)
	require.NoError(t, err)

	assert.Equal(t, "BOL-9001", rec.StructuredFields["bol_number"].Value)
	assert.Equal(t, "BOL-9001", rec.IdentifyingFields["bol_number"])
	assert.Equal(t, "Fast Freight", rec.StructuredFields["carrier_name"].Value)
	assert.Equal(t, "1250.5", rec.StructuredFields["total_weight"].Value)
	assert.Equal(t, "430.00", rec.StructuredFields["freight_charges"].Value)
	assert.Equal(t, 0.93, rec.OverallConfidence)
}

func TestParseDateFormats(t *testing.T) {
	for _, in := range []string{"2024-02-15", "02/15/2024", "February 15, 2024", "Feb 15, 2024"} {
		d, err := parseDate(in)
		assert.NoError(t, err, in)
		assert.Equal(t, "2024-02-15", d.Format("2006-01-02"), in)
	}
}
