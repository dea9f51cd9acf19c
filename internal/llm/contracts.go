package llm

import (
	"context"

	"invoice-lens/internal/document"
)

// Party identifies one side of the invoice (seller or buyer).
type Party struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
	GSTIN   string `json:"gstin,omitempty"` // 15-character Indian GST identifier
}

// LineItem is one billed row of the invoice.
type LineItem struct {
	Description string  `json:"description,omitempty"`
	HSNCode     string  `json:"hsn_code,omitempty"`
	Quantity    float64 `json:"quantity,omitempty"`
	UnitPrice   float64 `json:"unit_price,omitempty"`
	TaxRate     float64 `json:"tax_rate,omitempty"` // percent
	Amount      float64 `json:"amount,omitempty"`   // line total
}

// TaxDetails maps GST tax kinds to amounts.
type TaxDetails struct {
	CGST     float64 `json:"cgst,omitempty"`
	SGST     float64 `json:"sgst,omitempty"`
	IGST     float64 `json:"igst,omitempty"`
	TotalTax float64 `json:"total_tax,omitempty"`
}

// InvoiceFields is the normalized shape we want from the model: one record per
// parsed invoice. Fields absent from the document are omitted, never null.
type InvoiceFields struct {
	InvoiceNumber string      `json:"invoice_number,omitempty"`
	InvoiceDate   string      `json:"invoice_date,omitempty"` // YYYY-MM-DD where possible
	DueDate       string      `json:"due_date,omitempty"`
	Vendor        Party       `json:"vendor"`
	Buyer         *Party      `json:"buyer,omitempty"`
	LineItems     []LineItem  `json:"line_items"`
	Subtotal      float64     `json:"subtotal,omitempty"`
	TaxDetails    *TaxDetails `json:"tax_details,omitempty"`
	Total         float64     `json:"total"` // grand total
	Currency      string      `json:"currency,omitempty"`
	PaymentTerms  string      `json:"payment_terms,omitempty"`
	Notes         string      `json:"notes,omitempty"`
}

// ExtractRequest carries one document's content to the extraction client.
type ExtractRequest struct {
	Content         document.Content
	FilenameHint    string
	DefaultCurrency string
}

// FieldExtractor is the interface the pipeline depends on. The raw return is
// the sanitized model JSON, preserved verbatim for export; on failure it holds
// whatever the model produced, for display.
type FieldExtractor interface {
	ExtractInvoice(ctx context.Context, req ExtractRequest) (InvoiceFields, []byte /*rawJSON*/, error)
}
