package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// StripCodeFence removes a markdown code fence wrapper if the model added one.
// Mirrors the tolerant split the service needs in practice: models sometimes
// wrap JSON in ```json ... ``` despite instructions.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "```json"); i >= 0 {
		s = s[i+len("```json"):]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	} else if i := strings.Index(s, "```"); i >= 0 {
		s = s[i+len("```"):]
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}
	return strings.TrimSpace(s)
}

// NormalizeAndSanitizeJSON
// - Drops null/empty optionals
// - Coerces stringly numerics -> numbers for money-ish fields
// - Drops malformed optionals (bad gstin/currency lengths)
// - Removes unknown keys (strict additionalProperties = false friendliness)
// Required fields are never invented; if the model omitted them the document
// still fails schema validation afterwards.
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	sanitizeTop(m, &dropped)

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

var (
	topStringKeys  = []string{"invoice_number", "invoice_date", "due_date", "payment_terms", "notes"}
	topNumberKeys  = []string{"subtotal", "total"}
	itemStringKeys = []string{"description", "hsn_code"}
	itemNumberKeys = []string{"quantity", "unit_price", "tax_rate", "amount"}
	taxNumberKeys  = []string{"cgst", "sgst", "igst", "total_tax"}
)

func sanitizeTop(m map[string]any, dropped *[]string) {
	for _, k := range topStringKeys {
		cleanString(m, k, dropped)
	}
	for _, k := range topNumberKeys {
		coerceNumber(m, k, dropped)
	}

	// currency: uppercase, 3 letters or gone
	if v, ok := m["currency"].(string); ok {
		s := strings.ToUpper(strings.TrimSpace(v))
		if len(s) == 3 {
			m["currency"] = s
		} else {
			delete(m, "currency")
			*dropped = append(*dropped, "currency(invalid)")
		}
	}

	for _, k := range []string{"vendor", "buyer"} {
		switch p := m[k].(type) {
		case map[string]any:
			sanitizeParty(p, k, dropped)
		case nil:
			if _, present := m[k]; present {
				delete(m, k)
				*dropped = append(*dropped, k+"(null)")
			}
		default:
			if _, present := m[k]; present {
				delete(m, k)
				*dropped = append(*dropped, k+"(type)")
			}
		}
	}

	switch items := m["line_items"].(type) {
	case []any:
		kept := make([]any, 0, len(items))
		for i, it := range items {
			obj, ok := it.(map[string]any)
			if !ok {
				*dropped = append(*dropped, fmt.Sprintf("line_items[%d](type)", i))
				continue
			}
			sanitizeLineItem(obj, i, dropped)
			kept = append(kept, obj)
		}
		m["line_items"] = kept
	case nil:
		if _, present := m["line_items"]; present {
			delete(m, "line_items")
			*dropped = append(*dropped, "line_items(null)")
		}
	default:
		delete(m, "line_items")
		*dropped = append(*dropped, "line_items(type)")
	}

	switch td := m["tax_details"].(type) {
	case map[string]any:
		for _, k := range taxNumberKeys {
			coerceNumber(td, k, dropped)
		}
		dropUnknown(td, "tax_details.", taxNumberKeys, dropped)
		if len(td) == 0 {
			delete(m, "tax_details")
			*dropped = append(*dropped, "tax_details(empty)")
		}
	case nil:
		if _, present := m["tax_details"]; present {
			delete(m, "tax_details")
			*dropped = append(*dropped, "tax_details(null)")
		}
	default:
		if _, present := m["tax_details"]; present {
			delete(m, "tax_details")
			*dropped = append(*dropped, "tax_details(type)")
		}
	}

	allowed := append(append([]string{}, topStringKeys...), topNumberKeys...)
	allowed = append(allowed, "currency", "vendor", "buyer", "line_items", "tax_details")
	dropUnknown(m, "", allowed, dropped)
}

func sanitizeParty(p map[string]any, prefix string, dropped *[]string) {
	cleanString(p, "name", dropped)
	cleanString(p, "address", dropped)
	if v, ok := p["gstin"].(string); ok {
		s := strings.ToUpper(strings.TrimSpace(v))
		if len(s) == 15 {
			p["gstin"] = s
		} else {
			delete(p, "gstin")
			*dropped = append(*dropped, prefix+".gstin(invalid)")
		}
	} else if _, present := p["gstin"]; present {
		delete(p, "gstin")
		*dropped = append(*dropped, prefix+".gstin(type)")
	}
	dropUnknown(p, prefix+".", []string{"name", "address", "gstin"}, dropped)
}

func sanitizeLineItem(obj map[string]any, idx int, dropped *[]string) {
	for _, k := range itemStringKeys {
		cleanString(obj, k, dropped)
	}
	for _, k := range itemNumberKeys {
		coerceNumber(obj, k, dropped)
	}
	dropUnknown(obj, fmt.Sprintf("line_items[%d].", idx), append(append([]string{}, itemStringKeys...), itemNumberKeys...), dropped)
}

// cleanString trims a string value, dropping nulls, empties and wrong types.
func cleanString(m map[string]any, k string, dropped *[]string) {
	v, present := m[k]
	if !present {
		return
	}
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			delete(m, k)
			*dropped = append(*dropped, k+"(empty)")
		} else {
			m[k] = s
		}
	case nil:
		delete(m, k)
		*dropped = append(*dropped, k+"(null)")
	default:
		delete(m, k)
		*dropped = append(*dropped, k+"(type)")
	}
}

// coerceNumber keeps numbers, parses numeric strings, drops everything else.
func coerceNumber(m map[string]any, k string, dropped *[]string) {
	v, present := m[k]
	if !present {
		return
	}
	switch t := v.(type) {
	case float64:
		// already a JSON number
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(t, ",", ""))
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			m[k] = f
		} else {
			delete(m, k)
			*dropped = append(*dropped, k+"(unparseable)")
		}
	case nil:
		delete(m, k)
		*dropped = append(*dropped, k+"(null)")
	default:
		delete(m, k)
		*dropped = append(*dropped, k+"(type)")
	}
}

func dropUnknown(m map[string]any, prefix string, allowed []string, dropped *[]string) {
	set := make(map[string]struct{}, len(allowed))
	for _, k := range allowed {
		set[k] = struct{}{}
	}
	for k := range m {
		if _, ok := set[k]; !ok {
			delete(m, k)
			*dropped = append(*dropped, prefix+k+"(unknown)")
		}
	}
}
