package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"invoice-lens/internal/common"
	"invoice-lens/internal/document"
	"invoice-lens/internal/llm"
)

// DocumentLoader turns uploaded PDF bytes into extraction content.
type DocumentLoader interface {
	Load(ctx context.Context, data []byte) (document.Content, error)
}

// Processor coordinates Loader -> Extraction Client for one upload. Strictly
// request/response: no queueing, no background work, no shared state.
type Processor struct {
	loader          DocumentLoader
	extractor       llm.FieldExtractor
	defaultCurrency string
	logger          *slog.Logger
}

// Result is one invoice's extraction outcome, created fresh per upload and
// held only in the transient session store.
type Result struct {
	ID        uuid.UUID
	Filename  string
	Method    string
	Fields    llm.InvoiceFields
	RawJSON   []byte // sanitized model output, served verbatim on export
	Warnings  []string
	Elapsed   time.Duration
	CreatedAt time.Time
}

func NewProcessor(loader DocumentLoader, extractor llm.FieldExtractor, defaultCurrency string, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		loader:          loader,
		extractor:       extractor,
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

// Process runs the three stages for a single uploaded document. Every failure
// is terminal for this request; the caller surfaces it and the system is ready
// for the next independent attempt.
func (p *Processor) Process(ctx context.Context, filename string, data []byte) (*Result, error) {
	id := uuid.New()
	ctx = common.WithRequestID(ctx, id.String())
	start := time.Now()

	content, err := p.loader.Load(ctx, data)
	if err != nil {
		p.logger.Error("pipeline.load.failed", "req_id", id, "filename", filename, "error", err)
		return nil, err
	}
	p.logger.Info("pipeline.load.ok",
		"req_id", id,
		"filename", filename,
		"method", content.Method,
		"pages", content.PageCount,
	)

	fields, raw, err := p.extractor.ExtractInvoice(ctx, llm.ExtractRequest{
		Content:         content,
		FilenameHint:    filename,
		DefaultCurrency: p.defaultCurrency,
	})
	if err != nil {
		p.logger.Error("pipeline.extract.failed", "req_id", id, "filename", filename, "error", err)
		if len(raw) > 0 && errors.Is(err, common.ErrMalformedResponse) {
			return nil, &common.RawResponseError{Raw: raw, Err: err}
		}
		return nil, err
	}

	warnings := append([]string{}, content.Warnings...)
	warnings = append(warnings, consistencyWarnings(fields)...)

	p.logger.Info("pipeline.extract.ok",
		"req_id", id,
		"filename", filename,
		"warnings", len(warnings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &Result{
		ID:        id,
		Filename:  filename,
		Method:    content.Method,
		Fields:    fields,
		RawJSON:   raw,
		Warnings:  warnings,
		Elapsed:   time.Since(start),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// arithmetic tolerance for rounding differences on the document itself
var centTolerance = decimal.New(1, -2)

// consistencyWarnings cross-checks the extracted amounts. Mismatches are
// reported, never corrected and never fatal: the model output is the source
// of truth and is exported untouched.
func consistencyWarnings(f llm.InvoiceFields) []string {
	var warns []string

	itemSum := decimal.Zero
	priced := 0
	for _, it := range f.LineItems {
		if it.Amount != 0 {
			itemSum = itemSum.Add(decimal.NewFromFloat(it.Amount))
			priced++
		}
	}
	allPriced := priced > 0 && priced == len(f.LineItems)

	if allPriced && f.Subtotal != 0 {
		sub := decimal.NewFromFloat(f.Subtotal)
		if itemSum.Sub(sub).Abs().GreaterThan(centTolerance) {
			warns = append(warns, fmt.Sprintf("line item amounts sum to %s but subtotal is %s", itemSum, sub))
		}
	}

	if f.Subtotal != 0 && f.Total != 0 && f.TaxDetails != nil && f.TaxDetails.TotalTax != 0 {
		expected := decimal.NewFromFloat(f.Subtotal).Add(decimal.NewFromFloat(f.TaxDetails.TotalTax))
		total := decimal.NewFromFloat(f.Total)
		if expected.Sub(total).Abs().GreaterThan(centTolerance) {
			warns = append(warns, fmt.Sprintf("subtotal plus tax is %s but total is %s", expected, total))
		}
	}

	if allPriced && f.Subtotal == 0 && f.TaxDetails == nil && f.Total != 0 {
		total := decimal.NewFromFloat(f.Total)
		if itemSum.GreaterThan(total) {
			warns = append(warns, fmt.Sprintf("line item amounts sum to %s which exceeds total %s", itemSum, total))
		}
	}

	return warns
}
