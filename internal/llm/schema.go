package llm

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We send it to the model as part of the instruction and also use
// it locally to validate the response at the client boundary.
func BuildInvoiceJSONSchema() map[string]any {
	party := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":    map[string]any{"type": "string"},
			"address": map[string]any{"type": "string"},
			"gstin":   map[string]any{"type": "string", "minLength": 15, "maxLength": 15},
		},
	}

	lineItem := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"description": map[string]any{"type": "string"},
			"hsn_code":    map[string]any{"type": "string"},
			"quantity":    map[string]any{"type": "number"},
			"unit_price":  map[string]any{"type": "number"},
			"tax_rate":    map[string]any{"type": "number", "minimum": 0.0},
			"amount":      map[string]any{"type": "number"},
		},
	}

	taxDetails := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"cgst":      amountProp(),
			"sgst":      amountProp(),
			"igst":      amountProp(),
			"total_tax": amountProp(),
		},
	}

	props := map[string]any{
		"invoice_number": map[string]any{"type": "string"},
		"invoice_date":   map[string]any{"type": "string"},
		"due_date":       map[string]any{"type": "string"},
		"vendor":         party,
		"buyer":          party,
		"line_items":     map[string]any{"type": "array", "items": lineItem},
		"subtotal":       amountProp(),
		"tax_details":    taxDetails,
		"total":          map[string]any{"type": "number"},
		"currency":       map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
		"payment_terms":  map[string]any{"type": "string"},
		"notes":          map[string]any{"type": "string"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{"vendor", "line_items", "total"},
	}
}

func amountProp() map[string]any {
	return map[string]any{"type": "number", "minimum": 0.0}
}
