package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"invoice-lens/internal/common"
	"invoice-lens/internal/document"
	"invoice-lens/internal/llm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubLoader struct {
	content document.Content
	err     error
}

func (s stubLoader) Load(context.Context, []byte) (document.Content, error) {
	return s.content, s.err
}

type stubExtractor struct {
	fields llm.InvoiceFields
	raw    []byte
	err    error

	gotReq llm.ExtractRequest
}

func (s *stubExtractor) ExtractInvoice(_ context.Context, req llm.ExtractRequest) (llm.InvoiceFields, []byte, error) {
	s.gotReq = req
	return s.fields, s.raw, s.err
}

func TestProcess_Success(t *testing.T) {
	loader := stubLoader{content: document.Content{
		Text:      "Invoice text",
		Method:    document.MethodText,
		PageCount: 1,
	}}
	ext := &stubExtractor{
		fields: llm.InvoiceFields{
			InvoiceNumber: "INV-1",
			Vendor:        llm.Party{Name: "Acme"},
			Total:         236,
		},
		raw: []byte(`{"vendor":{"name":"Acme"},"line_items":[],"total":236}`),
	}

	p := NewProcessor(loader, ext, "INR", testLogger())
	res, err := p.Process(t.Context(), "acme.pdf", []byte("%PDF-"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if res.Filename != "acme.pdf" {
		t.Errorf("filename = %q", res.Filename)
	}
	if res.Method != document.MethodText {
		t.Errorf("method = %q", res.Method)
	}
	if res.Fields.InvoiceNumber != "INV-1" {
		t.Errorf("fields = %+v", res.Fields)
	}
	if string(res.RawJSON) != string(ext.raw) {
		t.Error("raw JSON not passed through verbatim")
	}
	if res.ID.String() == "" || res.CreatedAt.IsZero() {
		t.Error("result missing identity or timestamp")
	}

	if ext.gotReq.FilenameHint != "acme.pdf" {
		t.Errorf("filename hint = %q", ext.gotReq.FilenameHint)
	}
	if ext.gotReq.DefaultCurrency != "INR" {
		t.Errorf("default currency = %q", ext.gotReq.DefaultCurrency)
	}
}

func TestProcess_LoadFailure(t *testing.T) {
	loader := stubLoader{err: common.WrapError(common.ErrDocumentUnreadable, "not a PDF file")}
	p := NewProcessor(loader, &stubExtractor{}, "INR", testLogger())

	_, err := p.Process(t.Context(), "x.pdf", nil)
	if !errors.Is(err, common.ErrDocumentUnreadable) {
		t.Fatalf("err = %v, want ErrDocumentUnreadable", err)
	}
}

func TestProcess_MalformedResponseCarriesRaw(t *testing.T) {
	loader := stubLoader{content: document.Content{Text: "t", Method: document.MethodText}}
	ext := &stubExtractor{
		raw: []byte("I am not JSON"),
		err: common.WrapError(common.ErrMalformedResponse, "invalid JSON"),
	}

	p := NewProcessor(loader, ext, "INR", testLogger())
	_, err := p.Process(t.Context(), "x.pdf", []byte("%PDF-"))

	var rre *common.RawResponseError
	if !errors.As(err, &rre) {
		t.Fatalf("err = %v, want RawResponseError", err)
	}
	if string(rre.Raw) != "I am not JSON" {
		t.Errorf("raw = %q", rre.Raw)
	}
	if !errors.Is(err, common.ErrMalformedResponse) {
		t.Error("wrapped error lost its taxonomy")
	}
}

func TestProcess_ServiceErrorWithoutRaw(t *testing.T) {
	loader := stubLoader{content: document.Content{Text: "t", Method: document.MethodText}}
	ext := &stubExtractor{err: common.WrapError(common.ErrServiceUnavailable, "anthropic status 500")}

	p := NewProcessor(loader, ext, "INR", testLogger())
	_, err := p.Process(t.Context(), "x.pdf", []byte("%PDF-"))

	var rre *common.RawResponseError
	if errors.As(err, &rre) {
		t.Error("service errors must not be wrapped as raw-response errors")
	}
	if !errors.Is(err, common.ErrServiceUnavailable) {
		t.Fatalf("err = %v, want ErrServiceUnavailable", err)
	}
}

func TestProcess_MergesLoaderAndConsistencyWarnings(t *testing.T) {
	loader := stubLoader{content: document.Content{
		Text:     "t",
		Method:   document.MethodText,
		Warnings: []string{"text extraction: partial"},
	}}
	ext := &stubExtractor{
		fields: llm.InvoiceFields{
			Vendor: llm.Party{Name: "Acme"},
			LineItems: []llm.LineItem{
				{Description: "A", Amount: 100},
				{Description: "B", Amount: 100},
			},
			Subtotal: 150, // off by 50
			Total:    236,
		},
		raw: []byte("{}"),
	}

	p := NewProcessor(loader, ext, "INR", testLogger())
	res, err := p.Process(t.Context(), "x.pdf", []byte("%PDF-"))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	if len(res.Warnings) != 2 {
		t.Fatalf("warnings = %v, want loader warning + subtotal mismatch", res.Warnings)
	}
	if res.Warnings[0] != "text extraction: partial" {
		t.Errorf("warnings[0] = %q", res.Warnings[0])
	}
	if !strings.Contains(res.Warnings[1], "subtotal") {
		t.Errorf("warnings[1] = %q", res.Warnings[1])
	}
}

func TestConsistencyWarnings(t *testing.T) {
	tax := func(total float64) *llm.TaxDetails { return &llm.TaxDetails{TotalTax: total} }

	tests := []struct {
		name   string
		fields llm.InvoiceFields
		want   int // warning count
		match  string
	}{
		{
			name: "clean invoice",
			fields: llm.InvoiceFields{
				LineItems: []llm.LineItem{{Amount: 100}, {Amount: 100}},
				Subtotal:  200,
				TaxDetails: &llm.TaxDetails{
					CGST: 18, SGST: 18, TotalTax: 36,
				},
				Total: 236,
			},
			want: 0,
		},
		{
			name: "items disagree with subtotal",
			fields: llm.InvoiceFields{
				LineItems: []llm.LineItem{{Amount: 100}, {Amount: 50}},
				Subtotal:  200,
				Total:     200,
			},
			want:  1,
			match: "subtotal",
		},
		{
			name: "subtotal plus tax disagrees with total",
			fields: llm.InvoiceFields{
				LineItems:  []llm.LineItem{{Amount: 200}},
				Subtotal:   200,
				TaxDetails: tax(36),
				Total:      230,
			},
			want:  1,
			match: "total",
		},
		{
			name: "items exceed total with no subtotal",
			fields: llm.InvoiceFields{
				LineItems: []llm.LineItem{{Amount: 150}, {Amount: 150}},
				Total:     236,
			},
			want:  1,
			match: "exceeds total",
		},
		{
			name: "partially priced items are not checked",
			fields: llm.InvoiceFields{
				LineItems: []llm.LineItem{{Amount: 100}, {Description: "no amount"}},
				Subtotal:  500,
				Total:     500,
			},
			want: 0,
		},
		{
			name: "rounding within a cent is tolerated",
			fields: llm.InvoiceFields{
				LineItems: []llm.LineItem{{Amount: 33.33}, {Amount: 33.33}, {Amount: 33.33}},
				Subtotal:  100,
				Total:     100,
			},
			want: 0,
		},
		{
			name:   "empty fields",
			fields: llm.InvoiceFields{Total: 100},
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := consistencyWarnings(tt.fields)
			if len(got) != tt.want {
				t.Fatalf("warnings = %v, want %d", got, tt.want)
			}
			if tt.match != "" && !strings.Contains(got[0], tt.match) {
				t.Errorf("warning %q does not mention %q", got[0], tt.match)
			}
		})
	}
}
