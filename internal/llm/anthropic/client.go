package anthropic

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"invoice-lens/internal/common"
	"invoice-lens/internal/document"
	"invoice-lens/internal/llm"
)

const apiVersion = "2023-06-01"

// retryDelay is a var so tests can shorten the backoff.
var retryDelay = 2 * time.Second

// Anthropic Messages API structures
type apiRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	Temperature float32   `json:"temperature"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type apiResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type apiError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// statusError carries the HTTP status so the retry gate can tell transient
// failures from permanent ones.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("anthropic status %d: %s", e.status, e.message)
}

// ExtractInvoice implements llm.FieldExtractor against the Anthropic Messages
// API. Text content is sent inline; rasterized pages are attached as base64
// PNG image blocks. The client is stateless and performs one logical call per
// document, with at most one retry on a transient transport failure.
func (c *Client) ExtractInvoice(ctx context.Context, req llm.ExtractRequest) (llm.InvoiceFields, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	images := req.Content.Pages
	attach := req.Content.Method == document.MethodRaster && len(images) > 0

	c.logger.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"method", req.Content.Method,
		"text_len", len(req.Content.Text),
		"image_pages", len(images),
		"filename", req.FilenameHint,
	)

	sys := llm.BuildSystemPrompt(req)
	blocks := []contentBlock{{Type: "text", Text: llm.BuildUserPrompt(req, attach)}}
	if attach {
		for _, page := range images {
			blocks = append(blocks, contentBlock{
				Type: "image",
				Source: &imageSource{
					Type:      "base64",
					MediaType: "image/png",
					Data:      base64.StdEncoding.EncodeToString(page),
				},
			})
		}
	}

	apiReq := apiRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		System:      sys,
		Messages:    []message{{Role: "user", Content: blocks}},
		Temperature: c.cfg.Temperature,
	}

	resp, err := c.send(ctx, rid, apiReq)
	if err != nil {
		c.logger.Error("llm.extract.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.InvoiceFields{}, nil, common.WrapError(common.ErrServiceUnavailable, err.Error())
	}
	if len(resp.Content) == 0 {
		c.logger.Error("llm.extract.no_content",
			"req_id", rid, "stop_reason", resp.StopReason,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.InvoiceFields{}, nil, common.WrapError(common.ErrMalformedResponse, "no content in response")
	}

	content := llm.StripCodeFence(resp.Content[0].Text)
	rawContent := []byte(content)

	// Validate strictly first; fall back to a lenient sanitize that drops or
	// normalizes optional offenders, then re-validate.
	schema := llm.BuildInvoiceJSONSchema()
	if vErr := llm.ValidateJSONAgainstSchema(schema, rawContent); vErr != nil {
		cleaned, dropped, sErr := llm.NormalizeAndSanitizeJSON(rawContent, c.logger)
		if sErr != nil {
			c.logger.Error("llm.extract.sanitize_failed",
				"req_id", rid, "error", sErr,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return llm.InvoiceFields{}, rawContent, common.WrapError(common.ErrMalformedResponse, sErr.Error())
		}
		if vErr2 := llm.ValidateJSONAgainstSchema(schema, cleaned); vErr2 != nil {
			c.logger.Error("llm.extract.schema_validation_failed",
				"req_id", rid, "error", vErr2,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			return llm.InvoiceFields{}, rawContent, common.WrapError(common.ErrMalformedResponse, vErr2.Error())
		}
		c.logger.Warn("llm.extract.lenient_sanitize_applied",
			"req_id", rid, "dropped", dropped,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		rawContent = cleaned
	}

	var out llm.InvoiceFields
	if err := json.Unmarshal(rawContent, &out); err != nil {
		c.logger.Error("llm.extract.unmarshal_failed",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.InvoiceFields{}, rawContent, common.WrapError(common.ErrMalformedResponse, err.Error())
	}

	c.logger.Info("llm.extract.ok",
		"req_id", rid,
		"invoice_number", out.InvoiceNumber,
		"vendor", out.Vendor.Name,
		"total", out.Total,
		"currency", out.Currency,
		"line_items", len(out.LineItems),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, rawContent, nil
}

// send posts the request, retrying once on a transient failure.
func (c *Client) send(ctx context.Context, rid string, apiReq apiRequest) (*apiResponse, error) {
	resp, err := c.post(ctx, apiReq)
	if err != nil && c.cfg.MaxRetries > 0 && retryable(err) && ctx.Err() == nil {
		c.logger.Warn("llm.extract.retry", "req_id", rid, "error", err)
		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		resp, err = c.post(ctx, apiReq)
	}
	return resp, err
}

func (c *Client) post(ctx context.Context, apiReq apiRequest) (*apiResponse, error) {
	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func(b io.ReadCloser) {
		if cerr := b.Close(); cerr != nil {
			c.logger.Warn("llm.http.response_body_close_error", "error", cerr)
		}
	}(httpResp.Body)

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var ae apiError
		if jErr := json.Unmarshal(respBody, &ae); jErr == nil && ae.Error.Message != "" {
			return nil, &statusError{status: httpResp.StatusCode, message: ae.Error.Type + " - " + ae.Error.Message}
		}
		return nil, &statusError{status: httpResp.StatusCode, message: string(respBody)}
	}

	var resp apiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, nil
}

// retryable reports whether a failure is worth the single bounded retry:
// transport errors, rate limiting and server-side 5xx. Client errors (bad
// credential, oversized request) are permanent.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.status == http.StatusTooManyRequests || se.status >= 500
	}
	return true
}
