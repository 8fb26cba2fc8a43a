package normalize

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/blsnider/invoice-parser/models"
)

// ErrUnpersistable means normalization produced a record with no identifying
// fields and no required fields. Such a record is never persisted.
var ErrUnpersistable = errors.New("normalized record has no identifying or required fields")

var (
	reAmountNoise = regexp.MustCompile(`[^\d.,\-]`)
	reCurrency    = regexp.MustCompile(`^[A-Z]{3}$`)
)

// Date formats accepted for extracted date fields, tried in order.
var dateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"2006/01/02",
	"January 2, 2006",
	"Jan 2, 2006",
	"02-01-2006",
	"01-02-2006",
}

// Normalize converts a raw extraction response into a ParsedRecord. It is
// the single place raw values are coerced into the domain schema: coercion
// failure on an optional field drops the field, coercion failure or absence
// of a required field caps overall confidence at MissingRequiredCeiling.
// Malformed table rows are dropped and counted, never fatal.
//
// The returned record carries only normalization output; identity, storage
// URIs and timestamps are assigned by the orchestrator.
func Normalize(raw *models.RawExtraction, kind models.DocumentKind) (*models.ParsedRecord, error) {
	if raw == nil {
		return nil, ErrUnpersistable
	}

	rec := &models.ParsedRecord{
		SourceKind:        kind,
		IdentifyingFields: make(map[string]string),
		StructuredFields:  make(map[string]models.FieldValue),
		RawText:           raw.RawText,
	}

	specs := fieldsFor(kind)
	missingRequired := false

	for _, spec := range specs {
		rawField, ok := lookupField(raw.Fields, spec)
		if !ok {
			if spec.Required {
				missingRequired = true
			}
			continue
		}

		value, err := coerce(rawField.Value, spec.Type)
		if err != nil {
			log.Printf("dropping field %s: %v", spec.Name, err)
			if spec.Required {
				missingRequired = true
			}
			continue
		}

		rec.StructuredFields[spec.Name] = models.FieldValue{
			Value:      value,
			Confidence: clampConfidence(rawField.Confidence),
		}
		if spec.Identifying {
			rec.IdentifyingFields[spec.Name] = value
		}
	}

	rec.LineItems, rec.DroppedRowCount = normalizeLineItems(raw.Tables)
	rec.OverallConfidence = overallConfidence(rec.StructuredFields, specs, missingRequired)
	rec.ValidationWarnings = crossCheck(rec)

	if len(rec.IdentifyingFields) == 0 && !hasRequiredField(rec.StructuredFields, specs) {
		return nil, ErrUnpersistable
	}
	return rec, nil
}

// lookupField finds a raw field by canonical name or any known alias.
func lookupField(fields map[string]models.RawField, spec fieldSpec) (models.RawField, bool) {
	if f, ok := fields[spec.Name]; ok && strings.TrimSpace(f.Value) != "" {
		return f, true
	}
	for _, alias := range spec.Aliases {
		if f, ok := fields[alias]; ok && strings.TrimSpace(f.Value) != "" {
			return f, true
		}
	}
	return models.RawField{}, false
}

func coerce(value string, t fieldType) (string, error) {
	value = strings.TrimSpace(value)
	switch t {
	case fieldDate:
		d, err := parseDate(value)
		if err != nil {
			return "", err
		}
		return d.Format("2006-01-02"), nil
	case fieldAmount:
		m, err := parseAmount(value)
		if err != nil {
			return "", err
		}
		return m.String(), nil
	case fieldQuantity:
		q, err := parseQuantity(value)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(q, 'f', -1, 64), nil
	case fieldCurrency:
		code := strings.ToUpper(value)
		if !reCurrency.MatchString(code) {
			return "", fmt.Errorf("invalid currency code %q", value)
		}
		return code, nil
	default:
		return value, nil
	}
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateFormats {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseAmount strips currency symbols and thousands separators, then parses
// the remainder as a fixed two-decimal amount.
func parseAmount(s string) (models.Money, error) {
	cleaned := reAmountNoise.ReplaceAllString(s, "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	return models.ParseMoney(cleaned)
}

func parseQuantity(s string) (float64, error) {
	cleaned := reAmountNoise.ReplaceAllString(s, "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	q, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q", s)
	}
	return q, nil
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// overallConfidence is the minimum confidence among required fields. If any
// required field is missing the result is capped at MissingRequiredCeiling,
// so "missing required data" always ranks below "present but uncertain data".
func overallConfidence(fields map[string]models.FieldValue, specs []fieldSpec, missingRequired bool) float64 {
	overall := 1.0
	seen := false
	for _, spec := range specs {
		if !spec.Required {
			continue
		}
		fv, ok := fields[spec.Name]
		if !ok {
			continue
		}
		seen = true
		if fv.Confidence < overall {
			overall = fv.Confidence
		}
	}
	if !seen {
		overall = 0
	}
	if missingRequired && overall > MissingRequiredCeiling {
		overall = MissingRequiredCeiling
	}
	return overall
}

func hasRequiredField(fields map[string]models.FieldValue, specs []fieldSpec) bool {
	for _, spec := range specs {
		if spec.Required {
			if _, ok := fields[spec.Name]; ok {
				return true
			}
		}
	}
	return false
}

// Table header names recognized per line-item column.
var (
	descriptionHeaders = []string{"description", "item", "product", "service"}
	quantityHeaders    = []string{"quantity", "qty", "pieces"}
	unitPriceHeaders   = []string{"unit price", "unit_price", "price", "rate"}
	amountHeaders      = []string{"amount", "total", "line total", "charges"}
)

// normalizeLineItems converts extracted tables into ordered line items.
// Rows without a description or a parseable amount are dropped and counted.
func normalizeLineItems(tables []models.RawTable) ([]models.LineItem, int) {
	var items []models.LineItem
	dropped := 0

	for _, table := range tables {
		headers := make([]string, len(table.Headers))
		for i, h := range table.Headers {
			headers[i] = strings.ToLower(strings.TrimSpace(h))
		}

		for _, row := range table.Rows {
			cells := make(map[string]string, len(row))
			for i, cell := range row {
				if i < len(headers) {
					cells[headers[i]] = strings.TrimSpace(cell)
				}
			}

			item, ok := rowToLineItem(cells)
			if !ok {
				dropped++
				continue
			}
			items = append(items, item)
		}
	}
	return items, dropped
}

func rowToLineItem(cells map[string]string) (models.LineItem, bool) {
	description := firstCell(cells, descriptionHeaders)
	if description == "" {
		return models.LineItem{}, false
	}

	amountRaw := firstCell(cells, amountHeaders)
	amount, err := parseAmount(amountRaw)
	if err != nil {
		return models.LineItem{}, false
	}

	item := models.LineItem{
		Description: description,
		Amount:      amount,
	}
	if qtyRaw := firstCell(cells, quantityHeaders); qtyRaw != "" {
		if q, err := parseQuantity(qtyRaw); err == nil {
			item.Quantity = &q
		}
	}
	if priceRaw := firstCell(cells, unitPriceHeaders); priceRaw != "" {
		if p, err := parseAmount(priceRaw); err == nil {
			item.UnitPrice = &p
		}
	}
	return item, true
}

func firstCell(cells map[string]string, names []string) string {
	for _, name := range names {
		if v, ok := cells[name]; ok && v != "" {
			return v
		}
	}
	return ""
}

// crossCheck runs arithmetic consistency checks over the normalized record.
// Mismatches are diagnostics on a successful record, never failures.
func crossCheck(rec *models.ParsedRecord) []string {
	var warnings []string

	subtotal, hasSubtotal := amountField(rec, "subtotal")
	tax, hasTax := amountField(rec, "tax_amount")
	total, hasTotal := amountField(rec, "total_amount")

	if hasSubtotal && hasTax && hasTotal && subtotal+tax != total {
		warnings = append(warnings, fmt.Sprintf(
			"total_amount %s does not equal subtotal %s + tax_amount %s",
			total, subtotal, tax))
	}

	if hasSubtotal && len(rec.LineItems) > 0 {
		var sum models.Money
		for _, item := range rec.LineItems {
			sum += item.Amount
		}
		if sum != subtotal {
			warnings = append(warnings, fmt.Sprintf(
				"line items sum %s does not equal subtotal %s", sum, subtotal))
		}
	}

	if invDate, ok := dateField(rec, "invoice_date"); ok {
		if dueDate, ok := dateField(rec, "due_date"); ok && dueDate.Before(invDate) {
			warnings = append(warnings, "due_date is before invoice_date")
		}
	}
	return warnings
}

func amountField(rec *models.ParsedRecord, name string) (models.Money, bool) {
	fv, ok := rec.StructuredFields[name]
	if !ok {
		return 0, false
	}
	m, err := models.ParseMoney(fv.Value)
	if err != nil {
		return 0, false
	}
	return m, true
}

func dateField(rec *models.ParsedRecord, name string) (time.Time, bool) {
	fv, ok := rec.StructuredFields[name]
	if !ok {
		return time.Time{}, false
	}
	d, err := time.Parse("2006-01-02", fv.Value)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
