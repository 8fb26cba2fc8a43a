package normalize

import "github.com/blsnider/invoice-parser/models"

// fieldType tells the normalizer how to coerce a raw string value.
type fieldType int

const (
	fieldString fieldType = iota
	fieldDate
	fieldAmount
	fieldQuantity
	fieldCurrency
)

// fieldSpec describes one expected semantic field of a document kind.
type fieldSpec struct {
	Name        string
	Type        fieldType
	Required    bool
	Identifying bool
	// Aliases are alternate keys the extraction engine is known to emit
	// for this field, checked in order after the canonical name.
	Aliases []string
}

// Confidence policy shared by all document kinds.
const (
	// ReviewThreshold is the confidence below which callers should route a
	// record to manual review.
	ReviewThreshold = 0.5

	// MissingRequiredCeiling caps overall confidence whenever a required
	// field failed to normalize. It sits below ReviewThreshold so missing
	// required data always ranks under present-but-uncertain data.
	MissingRequiredCeiling = 0.25
)

var invoiceFields = []fieldSpec{
	{Name: "invoice_number", Type: fieldString, Identifying: true, Aliases: []string{"invoice_id"}},
	{Name: "invoice_date", Type: fieldDate},
	{Name: "due_date", Type: fieldDate},
	{Name: "supplier_name", Type: fieldString, Aliases: []string{"vendor_name"}},
	{Name: "customer_name", Type: fieldString, Aliases: []string{"receiver_name", "bill_to_name"}},
	{Name: "currency", Type: fieldCurrency, Aliases: []string{"currency_code"}},
	{Name: "subtotal", Type: fieldAmount, Aliases: []string{"net_amount"}},
	{Name: "tax_amount", Type: fieldAmount, Aliases: []string{"total_tax_amount"}},
	{Name: "total_amount", Type: fieldAmount, Required: true},
	{Name: "amount_due", Type: fieldAmount},
	{Name: "payment_terms", Type: fieldString},
}

var bolFields = []fieldSpec{
	{Name: "bol_number", Type: fieldString, Required: true, Identifying: true, Aliases: []string{"bill_of_lading_number"}},
	{Name: "pro_number", Type: fieldString, Aliases: []string{"tracking_number"}},
	{Name: "scac_code", Type: fieldString},
	{Name: "ship_date", Type: fieldDate, Aliases: []string{"shipment_date"}},
	{Name: "delivery_date", Type: fieldDate},
	{Name: "shipper_name", Type: fieldString, Aliases: []string{"shipper"}},
	{Name: "consignee_name", Type: fieldString, Aliases: []string{"consignee"}},
	{Name: "carrier_name", Type: fieldString, Aliases: []string{"carrier"}},
	{Name: "freight_charge_terms", Type: fieldString},
	{Name: "total_weight", Type: fieldQuantity},
	{Name: "total_pieces", Type: fieldQuantity},
	{Name: "freight_charges", Type: fieldAmount},
	{Name: "total_charges", Type: fieldAmount},
}

// fieldsFor returns the expected field set for a document kind.
func fieldsFor(kind models.DocumentKind) []fieldSpec {
	if kind == models.DocumentKindBillOfLading {
		return bolFields
	}
	return invoiceFields
}
