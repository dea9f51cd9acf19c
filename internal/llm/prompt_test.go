package llm

import (
	"strings"
	"testing"

	"invoice-lens/internal/document"
)

func TestBuildSystemPrompt(t *testing.T) {
	req := ExtractRequest{DefaultCurrency: "USD"}
	sys := BuildSystemPrompt(req)

	for _, want := range []string{
		"JSON Schema:",
		"GSTIN",
		"default to USD",
		"omit it",
		`"total"`,
	} {
		if !strings.Contains(sys, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestBuildSystemPrompt_DefaultCurrencyFallback(t *testing.T) {
	sys := BuildSystemPrompt(ExtractRequest{})
	if !strings.Contains(sys, "default to INR") {
		t.Error("expected INR fallback when no default currency configured")
	}
}

func TestBuildUserPrompt_Text(t *testing.T) {
	req := ExtractRequest{
		FilenameHint: "acme-april.pdf",
		Content:      document.Content{Text: "Invoice INV-1 Total 236", Method: document.MethodText},
	}
	user := BuildUserPrompt(req, false)

	if !strings.Contains(user, "Filename: acme-april.pdf") {
		t.Error("filename hint missing")
	}
	if !strings.Contains(user, "Invoice INV-1 Total 236") {
		t.Error("document text missing")
	}
}

func TestBuildUserPrompt_Truncation(t *testing.T) {
	long := strings.Repeat("x", maxPromptTextChars+500)
	req := ExtractRequest{Content: document.Content{Text: long}}
	user := BuildUserPrompt(req, false)

	if !strings.Contains(user, "(truncated)") {
		t.Error("expected truncation marker")
	}
	if len(user) > maxPromptTextChars+200 {
		t.Errorf("prompt too long: %d chars", len(user))
	}
}

func TestBuildUserPrompt_Images(t *testing.T) {
	req := ExtractRequest{
		Content: document.Content{
			Text:   "ignored low-confidence text",
			Pages:  [][]byte{{0x89, 0x50}},
			Method: document.MethodRaster,
		},
	}
	user := BuildUserPrompt(req, true)

	if !strings.Contains(user, "page images") {
		t.Error("expected image note")
	}
	if strings.Contains(user, "ignored low-confidence text") {
		t.Error("text body must be omitted when images are attached")
	}
}
