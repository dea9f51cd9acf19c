package server

import (
	_ "embed"
	"net/http"
)

//go:embed index.html
var indexHTML []byte

// NewRouter wires the handler into the route table.
func NewRouter(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.Index)
	mux.HandleFunc("POST /api/invoices", h.ParseInvoice)
	mux.HandleFunc("GET /api/invoices/{id}", h.GetResult)
	mux.HandleFunc("GET /api/invoices/{id}/json", h.DownloadJSON)
	mux.HandleFunc("GET /api/invoices/{id}/xlsx", h.DownloadXLSX)
	mux.HandleFunc("GET /healthz", h.Health)

	return mux
}

// Index serves the embedded upload page.
func (h *Handler) Index(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(indexHTML); err != nil {
		h.logger.Warn("server.index_write_error", "error", err)
	}
}
