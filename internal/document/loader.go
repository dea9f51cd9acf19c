package document

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"invoice-lens/constants"
	"invoice-lens/internal/common"
)

// Methods reported by the loader.
const (
	MethodText   = "pdf-text"
	MethodRaster = "pdf-raster"
)

type Config struct {
	Pdftoppm string // binary name or absolute path; if empty -> "pdftoppm"

	DPI            int // rasterization DPI for scanned PDFs, default 200
	MaxRasterPages int // pages rendered on the raster fallback, default 4
	MinTextLength  int // below this, embedded text is treated as unusable
}

// Content is the payload handed to the extraction client: either concatenated
// page text or an ordered sequence of PNG page images, never both.
type Content struct {
	Text      string
	Pages     [][]byte // PNG-encoded, first page first
	Method    string   // MethodText | MethodRaster
	PageCount int
	Duration  time.Duration
	Warnings  []string
}

type Loader struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewLoader(cfg Config, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 200
	}
	if cfg.MaxRasterPages <= 0 {
		cfg.MaxRasterPages = constants.MaxRasterPagesDefault
	}
	if cfg.MinTextLength <= 0 {
		cfg.MinTextLength = constants.MinTextLengthDefault
	}
	return &Loader{cfg: cfg, runner: execRunner{}, logger: logger}
}

// Load turns raw PDF bytes into extraction content. Digitally generated PDFs
// yield embedded text; scanned PDFs fall back to rendered page images. Inputs
// that produce neither fail with common.ErrDocumentUnreadable.
func (l *Loader) Load(ctx context.Context, data []byte) (Content, error) {
	start := time.Now()

	if !looksLikePDF(data) {
		return Content{}, common.WrapError(common.ErrDocumentUnreadable, "not a PDF file")
	}

	var warnings []string

	text, pages, err := extractText(data)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("text extraction: %v", err))
		l.logger.Warn("document.text_extract_failed", "error", err)
	}
	text = strings.TrimSpace(text)
	if len(text) >= l.cfg.MinTextLength {
		l.logger.Info("document.loaded",
			"method", MethodText,
			"pages", pages,
			"text_len", len(text),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Content{
			Text:      text,
			Method:    MethodText,
			PageCount: pages,
			Duration:  time.Since(start),
			Warnings:  warnings,
		}, nil
	}
	if text != "" {
		warnings = append(warnings, fmt.Sprintf("embedded text too short (%d chars); treating as scanned", len(text)))
	}

	images, rasterWarns, err := l.rasterize(ctx, data)
	warnings = append(warnings, rasterWarns...)
	if err != nil || len(images) == 0 {
		l.logger.Error("document.unreadable", "warnings", warnings, "error", err)
		return Content{Warnings: warnings}, common.WrapError(common.ErrDocumentUnreadable, "no extractable text and no renderable pages")
	}

	l.logger.Info("document.loaded",
		"method", MethodRaster,
		"pages", len(images),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Content{
		Pages:     images,
		Method:    MethodRaster,
		PageCount: len(images),
		Duration:  time.Since(start),
		Warnings:  warnings,
	}, nil
}

// looksLikePDF checks for the %PDF- marker near the start of the stream.
// Some generators prepend junk bytes, so the first 1KB is scanned.
func looksLikePDF(data []byte) bool {
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, []byte(constants.PDFMagic))
}

// extractText pulls embedded text out of every page. The pdf parser panics on
// some malformed files, so the recover is load-bearing.
func extractText(data []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("open pdf: %w", err)
	}

	var b strings.Builder
	pages = r.NumPage()
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows, rErr := page.GetTextByRow()
		if rErr != nil {
			continue
		}
		for _, row := range rows {
			for _, word := range row.Content {
				b.WriteString(word.S)
				b.WriteString(" ")
			}
			b.WriteString("\n")
		}
		if i < pages {
			b.WriteString("\f\n") // page break marker
		}
	}
	return b.String(), pages, nil
}

// rasterize renders the first MaxRasterPages pages to PNG via pdftoppm.
func (l *Loader) rasterize(ctx context.Context, data []byte) ([][]byte, []string, error) {
	tmpDir, err := os.MkdirTemp("", "il-raster-*")
	if err != nil {
		return nil, nil, err
	}
	defer func(path string) {
		if rmErr := os.RemoveAll(path); rmErr != nil {
			l.logger.Warn("document.tmpdir_cleanup_failed", "path", path, "error", rmErr)
		}
	}(tmpDir)

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, nil, err
	}

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r <dpi> -png -f 1 -l <maxPages> <in.pdf> <tmp/page>
	_, errb, err := l.runner.Run(ctx, l.cfg.Pdftoppm,
		"-r", fmt.Sprintf("%d", l.cfg.DPI),
		"-png",
		"-f", "1",
		"-l", fmt.Sprintf("%d", l.cfg.MaxRasterPages),
		in, prefix)
	if err != nil {
		return nil, []string{string(errb)}, err
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return nil, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	var images [][]byte
	var warns []string
	for _, img := range matches {
		b, rdErr := os.ReadFile(img)
		if rdErr != nil {
			warns = append(warns, rdErr.Error())
			continue
		}
		images = append(images, b)
	}
	return images, warns, nil
}
