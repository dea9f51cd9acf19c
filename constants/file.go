package constants

import "strings"

// Formats recognized by the document loader.
const (
	PDF     = "PDF"
	UNKNOWN = "UNKNOWN"
)

// AllowedExtensions holds the default allowed file extensions for invoice uploads.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// PDFMagic is the byte prefix every well-formed PDF starts with.
const PDFMagic = "%PDF-"

// MinTextLengthDefault is the threshold below which embedded PDF text is
// considered unusable and the loader falls back to page rasterization.
const MinTextLengthDefault = 100

// MaxRasterPagesDefault caps how many pages are rendered for scanned PDFs.
const MaxRasterPagesDefault = 4

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a file extension to a loader format.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	default:
		return UNKNOWN
	}
}

// AllowedExt checks if a file extension is in the allowed set.
func AllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
