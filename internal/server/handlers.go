package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"invoice-lens/constants"
	"invoice-lens/internal/common"
	"invoice-lens/internal/export"
	"invoice-lens/internal/pipeline"
	"invoice-lens/internal/session"
)

// Processor runs the extraction pipeline for one upload.
type Processor interface {
	Process(ctx context.Context, filename string, data []byte) (*pipeline.Result, error)
}

type Handler struct {
	cfg       common.ServerConfig
	processor Processor
	sessions  *session.Store
	exporter  *export.Service
	logger    *slog.Logger
}

func NewHandler(cfg common.ServerConfig, processor Processor, sessions *session.Store, exporter *export.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cfg:       cfg,
		processor: processor,
		sessions:  sessions,
		exporter:  exporter,
		logger:    logger,
	}
}

// resultResponse is the envelope the UI consumes: the Extraction Result
// verbatim plus request metadata and non-fatal warnings.
type resultResponse struct {
	ID        string          `json:"id"`
	Filename  string          `json:"filename"`
	Method    string          `json:"method"`
	Result    json.RawMessage `json:"result"`
	Warnings  []string        `json:"warnings,omitempty"`
	ElapsedMS int64           `json:"elapsed_ms"`
	CreatedAt string          `json:"created_at"`
}

func envelope(res *pipeline.Result) resultResponse {
	return resultResponse{
		ID:        res.ID.String(),
		Filename:  res.Filename,
		Method:    res.Method,
		Result:    json.RawMessage(res.RawJSON),
		Warnings:  res.Warnings,
		ElapsedMS: res.Elapsed.Milliseconds(),
		CreatedAt: res.CreatedAt.Format(time.RFC3339),
	}
}

// ParseInvoice accepts one multipart PDF upload, runs the pipeline
// synchronously and stores the result in the session store.
func (h *Handler) ParseInvoice(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)

	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		h.writeError(w, common.WrapError(common.ErrInvalidInput, "file too large or invalid form"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, common.WrapError(common.ErrInvalidInput, "file is required"))
		return
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			h.logger.Warn("server.upload_close_error", "error", cerr)
		}
	}()

	if !constants.AllowedExt(filepath.Ext(header.Filename)) {
		h.writeError(w, common.WrapError(common.ErrInvalidInput, "only PDF files are allowed"))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, common.WrapError(common.ErrInvalidInput, "read upload"))
		return
	}

	ctx, cancel := common.WithTimeout(r.Context(), h.cfg.RequestTimeout)
	defer cancel()

	res, err := h.processor.Process(ctx, header.Filename, data)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.sessions.Put(res)

	h.logger.Info("server.parse.ok",
		"id", res.ID,
		"filename", header.Filename,
		"size_bytes", len(data),
		"method", res.Method,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, envelope(res))
}

// GetResult re-serves a stored result for the UI.
func (h *Handler) GetResult(w http.ResponseWriter, r *http.Request) {
	res, ok := h.sessions.Get(r.PathValue("id"))
	if !ok {
		h.writeError(w, common.WrapError(common.ErrNotFound, "unknown or expired result id"))
		return
	}
	h.writeJSON(w, http.StatusOK, envelope(res))
}

// DownloadJSON serves the Extraction Result as a downloadable JSON file,
// byte-for-byte what the model returned after sanitization.
func (h *Handler) DownloadJSON(w http.ResponseWriter, r *http.Request) {
	res, ok := h.sessions.Get(r.PathValue("id"))
	if !ok {
		h.writeError(w, common.WrapError(common.ErrNotFound, "unknown or expired result id"))
		return
	}
	body, filename := h.exporter.ResultJSON(res)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("server.download_write_error", "id", res.ID, "error", err)
	}
}

// DownloadXLSX serves the parsed fields as a workbook.
func (h *Handler) DownloadXLSX(w http.ResponseWriter, r *http.Request) {
	res, ok := h.sessions.Get(r.PathValue("id"))
	if !ok {
		h.writeError(w, common.WrapError(common.ErrNotFound, "unknown or expired result id"))
		return
	}
	body, filename, err := h.exporter.ResultXLSX(res)
	if err != nil {
		h.logger.Error("server.xlsx_export_failed", "id", res.ID, "error", err)
		h.writeError(w, common.WrapError(common.ErrInternal, "export failed"))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("server.download_write_error", "id", res.ID, "error", err)
	}
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("server.encode_response_error", "error", err)
	}
}

// writeError maps the failure taxonomy onto HTTP statuses and a stable JSON
// error body. MalformedResponse failures carry the model's raw text so the UI
// can show it instead of partial data.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := common.HTTPStatus(err)

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		status = http.StatusRequestEntityTooLarge
	}

	body := map[string]any{
		"code":    common.ErrorCode(err),
		"message": err.Error(),
	}
	var rre *common.RawResponseError
	if errors.As(err, &rre) {
		body["raw_response"] = string(rre.Raw)
	}
	h.writeJSON(w, status, map[string]any{"error": body})
}
