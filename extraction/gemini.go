package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/blsnider/invoice-parser/models"
)

const (
	defaultModel   = "gemini-2.0-flash"
	defaultTimeout = 120 * time.Second
)

// GeminiExtractor implements Extractor against the Gemini API, sending the
// PDF inline and requesting a structured JSON response.
type GeminiExtractor struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiExtractor creates an extractor backed by an existing Gemini client.
func NewGeminiExtractor(client *genai.Client) *GeminiExtractor {
	return &GeminiExtractor{
		client:  client,
		model:   defaultModel,
		timeout: defaultTimeout,
	}
}

// NewGeminiExtractorFromEnv creates the Gemini client from GEMINI_API_KEY
// and optional GEMINI_MODEL / EXTRACTION_TIMEOUT_SECONDS overrides.
func NewGeminiExtractorFromEnv(ctx context.Context) (*GeminiExtractor, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		log.Println("Warning: GEMINI_API_KEY not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	e := NewGeminiExtractor(client)
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		e.model = model
	}
	if secs := os.Getenv("EXTRACTION_TIMEOUT_SECONDS"); secs != "" {
		if d, err := time.ParseDuration(secs + "s"); err == nil && d > 0 {
			e.timeout = d
		}
	}
	return e, nil
}

// Extract sends the document to Gemini and decodes the structured response.
func (e *GeminiExtractor) Extract(ctx context.Context, content []byte, kind models.DocumentKind, opts Options) (*models.RawExtraction, error) {
	if e.client == nil {
		return nil, errors.New("gemini client not set")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	model := e.client.GenerativeModel(e.model)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx,
		genai.Blob{MIMEType: "application/pdf", Data: content},
		genai.Text(buildPrompt(kind, opts)),
	)
	if err != nil {
		return nil, classifyError(ctx, err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	var raw models.RawExtraction
	if err := json.Unmarshal([]byte(stripFences(text)), &raw); err != nil {
		log.Printf("failed to decode extraction response: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if raw.Fields == nil {
		return nil, fmt.Errorf("%w: missing fields object", ErrMalformedResponse)
	}
	return &raw, nil
}

// classifyError maps upstream failures onto the extraction error taxonomy.
// The ctx check catches transports that report deadline expiry as an opaque
// status error instead of wrapping context.DeadlineExceeded.
func classifyError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %v", ErrQuotaExceeded, err)
	}
	return err
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", ErrMalformedResponse)
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				builder.WriteString(string(text))
			}
		}
	}

	text := builder.String()
	if text == "" {
		return "", fmt.Errorf("%w: empty content", ErrMalformedResponse)
	}
	return text, nil
}

// stripFences removes a markdown code fence the model sometimes wraps JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

var invoicePromptFields = []string{
	"invoice_number", "invoice_date", "due_date", "supplier_name",
	"customer_name", "currency", "subtotal", "tax_amount", "total_amount",
	"amount_due", "payment_terms",
}

var bolPromptFields = []string{
	"bol_number", "pro_number", "scac_code", "ship_date", "delivery_date",
	"shipper_name", "consignee_name", "carrier_name", "freight_charge_terms",
	"total_weight", "total_pieces", "freight_charges", "total_charges",
}

func buildPrompt(kind models.DocumentKind, opts Options) string {
	fields := invoicePromptFields
	docName := "invoice"
	if kind == models.DocumentKindBillOfLading {
		fields = bolPromptFields
		docName = "bill of lading"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a document data extraction engine. Extract structured data from the attached %s PDF.\n\n", docName)
	b.WriteString("Return ONLY a JSON object with this exact shape:\n")
	b.WriteString(`{"fields": {"<field_name>": {"value": "<string>", "confidence": <0..1>}}, "tables": [{"headers": ["<col>"], "rows": [["<cell>"]]}], "raw_text": "<full document text>"}`)
	b.WriteString("\n\nExtract these fields when present (omit fields not found, never invent values):\n")
	for _, f := range fields {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	b.WriteString("\nValues are verbatim strings from the document. Confidence reflects how certain you are the value is correct.\n")
	if opts.ExtractTables || opts.ExtractLineItems {
		b.WriteString("Include every line-item table with its header row and body rows in \"tables\".\n")
	} else {
		b.WriteString("Omit \"tables\".\n")
	}
	b.WriteString("Include the full extracted document text in \"raw_text\".\n")
	return b.String()
}
