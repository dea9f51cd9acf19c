package export

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"invoice-lens/internal/pipeline"
)

// Service turns one extraction result into downloadable artifacts. The JSON
// export is the sanitized model output verbatim; the XLSX export is a small
// workbook for spreadsheet users.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ResultJSON returns the export bytes and a download filename. The bytes are
// exactly what the extraction client validated, byte-for-byte.
func (s *Service) ResultJSON(res *pipeline.Result) ([]byte, string) {
	return res.RawJSON, exportFilename(res, "json")
}

// ResultXLSX renders the parsed fields as an XLSX workbook: header block,
// line-item table, tax breakdown and total.
func (s *Service) ResultXLSX(res *pipeline.Result) ([]byte, string, error) {
	start := time.Now()
	fld := res.Fields

	f := excelize.NewFile()
	const sheet = "Invoice"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, "", err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	if defIdx, _ := f.GetSheetIndex("Sheet1"); defIdx != -1 {
		_ = f.DeleteSheet("Sheet1")
	}

	row := 1
	write := func(col int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
	pair := func(label string, v any) {
		if v == nil || v == "" || v == float64(0) {
			return
		}
		write(1, label)
		write(2, v)
		row++
	}

	pair("Invoice Number", fld.InvoiceNumber)
	pair("Invoice Date", fld.InvoiceDate)
	pair("Due Date", fld.DueDate)
	pair("Currency", fld.Currency)
	pair("Vendor", fld.Vendor.Name)
	pair("Vendor Address", fld.Vendor.Address)
	pair("Vendor GSTIN", fld.Vendor.GSTIN)
	if fld.Buyer != nil {
		pair("Buyer", fld.Buyer.Name)
		pair("Buyer Address", fld.Buyer.Address)
		pair("Buyer GSTIN", fld.Buyer.GSTIN)
	}
	row++

	headers := []string{"Description", "HSN Code", "Qty", "Unit Price", "Tax Rate %", "Amount"}
	for i, h := range headers {
		write(i+1, h)
	}
	row++
	for _, it := range fld.LineItems {
		write(1, it.Description)
		if it.HSNCode != "" {
			write(2, it.HSNCode)
		}
		if it.Quantity != 0 {
			write(3, it.Quantity)
		}
		if it.UnitPrice != 0 {
			write(4, it.UnitPrice)
		}
		if it.TaxRate != 0 {
			write(5, it.TaxRate)
		}
		if it.Amount != 0 {
			write(6, it.Amount)
		}
		row++
	}
	row++

	pair("Subtotal", fld.Subtotal)
	if td := fld.TaxDetails; td != nil {
		pair("CGST", td.CGST)
		pair("SGST", td.SGST)
		pair("IGST", td.IGST)
		pair("Total Tax", td.TotalTax)
	}
	pair("Total", fld.Total)
	pair("Payment Terms", fld.PaymentTerms)
	pair("Notes", fld.Notes)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("write workbook: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"id", res.ID,
		"rows", row-1,
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), exportFilename(res, "xlsx"), nil
}

// exportFilename prefers the extracted invoice number, falling back to the
// result ID.
func exportFilename(res *pipeline.Result, ext string) string {
	base := strings.TrimSpace(res.Fields.InvoiceNumber)
	if base == "" {
		base = res.ID.String()
	}
	base = sanitizeFilename(base)
	return "invoice_" + base + "." + ext
}

func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
