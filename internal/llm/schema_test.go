package llm

import "testing"

func TestValidateJSONAgainstSchema_Valid(t *testing.T) {
	schema := BuildInvoiceJSONSchema()

	testCases := []struct {
		name string
		doc  string
	}{
		{
			"minimal",
			`{"vendor":{"name":"Acme Supplies"},"line_items":[],"total":236}`,
		},
		{
			"one line item",
			`{"vendor":{"name":"Acme Supplies"},"line_items":[{"description":"Widget","quantity":2,"unit_price":100,"tax_rate":18}],"total":236}`,
		},
		{
			"full document",
			`{
				"invoice_number": "INV-42",
				"invoice_date": "2025-04-01",
				"due_date": "2025-05-01",
				"vendor": {"name": "Acme", "address": "1 Industrial Rd", "gstin": "27AAPFU0939F1ZV"},
				"buyer": {"name": "Beta Corp", "address": "2 Market St", "gstin": "29AAGCB7392K1ZD"},
				"line_items": [
					{"description": "Widget", "hsn_code": "8471", "quantity": 2, "unit_price": 100, "tax_rate": 18, "amount": 200}
				],
				"subtotal": 200,
				"tax_details": {"cgst": 18, "sgst": 18, "total_tax": 36},
				"total": 236,
				"currency": "INR",
				"payment_terms": "Net 30",
				"notes": "Thank you"
			}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateJSONAgainstSchema(schema, []byte(tc.doc)); err != nil {
				t.Errorf("expected valid, got: %v", err)
			}
		})
	}
}

func TestValidateJSONAgainstSchema_Invalid(t *testing.T) {
	schema := BuildInvoiceJSONSchema()

	testCases := []struct {
		name string
		doc  string
	}{
		{"missing total", `{"vendor":{"name":"Acme"},"line_items":[]}`},
		{"missing vendor", `{"line_items":[],"total":1}`},
		{"missing line_items", `{"vendor":{"name":"Acme"},"total":1}`},
		{"total as string", `{"vendor":{"name":"Acme"},"line_items":[],"total":"236"}`},
		{"unknown top key", `{"vendor":{"name":"Acme"},"line_items":[],"total":1,"confidence":0.9}`},
		{"unknown item key", `{"vendor":{"name":"Acme"},"line_items":[{"sku":"W"}],"total":1}`},
		{"null field", `{"vendor":{"name":"Acme"},"line_items":[],"total":1,"subtotal":null}`},
		{"short gstin", `{"vendor":{"name":"Acme","gstin":"SHORT"},"line_items":[],"total":1}`},
		{"long currency", `{"vendor":{"name":"Acme"},"line_items":[],"total":1,"currency":"RUPEES"}`},
		{"not an object", `[1,2,3]`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateJSONAgainstSchema(schema, []byte(tc.doc)); err == nil {
				t.Error("expected validation failure")
			}
		})
	}
}
