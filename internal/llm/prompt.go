package llm

import (
	"encoding/json"
	"strings"
)

const maxPromptTextChars = 12000

// BuildSystemPrompt composes the extraction instruction: the desired JSON
// shape, GST domain rules, and strict-but-practical formatting rules.
func BuildSystemPrompt(req ExtractRequest) string {
	defCur := strings.TrimSpace(req.DefaultCurrency)
	if defCur == "" {
		defCur = "INR"
	}

	parts := []string{
		"You are an invoice parser. Return ONLY a JSON object that matches the provided JSON Schema; no prose, no markdown.",
		"Extract numbers as actual numbers, not strings.",
		"Use ISO-8601 dates (YYYY-MM-DD) where the document allows it.",
		"Currency must be a 3-letter ISO 4217 code; default to " + defCur + " if uncertain.",
		"For Indian invoices, look for GSTIN (15-character alphanumeric) on both vendor and buyer.",
		"HSN/SAC codes are typically 4-8 digit numbers; keep them as strings.",
		"Put CGST, SGST and IGST amounts under 'tax_details' with 'total_tax' as their sum when shown.",
		"'total' is the final payable amount; 'subtotal' is the sum before taxes.",
		"Each line item carries description, hsn_code, quantity, unit_price, tax_rate (percent) and amount (line total).",
		"Include 'payment_terms' and 'notes' only when the document states them.",
		"Never output null. If a field is not present in the invoice, omit it.",
		"JSON Schema:\n" + mustJSON(BuildInvoiceJSONSchema()),
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the document content. When page images are attached
// the text body is intentionally omitted: the loader only rasterizes documents
// whose embedded text was unusable.
func BuildUserPrompt(req ExtractRequest, imagesAttached bool) string {
	var b strings.Builder
	if filename := strings.TrimSpace(req.FilenameHint); filename != "" {
		b.WriteString("Filename: ")
		b.WriteString(filename)
		b.WriteString("\n")
	}

	if imagesAttached {
		b.WriteString("\nThe invoice is attached as page images. Read every visible field and return the JSON object.\n")
		return b.String()
	}

	text := strings.TrimSpace(req.Content.Text)
	b.WriteString("\nINVOICE TEXT")
	if len(text) > maxPromptTextChars {
		text = text[:maxPromptTextChars] + "\n…(truncated)"
		b.WriteString(" (truncated)")
	}
	b.WriteString(":\n")
	b.WriteString(text)
	return b.String()
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
