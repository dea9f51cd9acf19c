// One-shot extraction tool: parses a local invoice PDF and prints the
// extraction JSON to stdout. Useful for prompt and schema debugging without
// the web UI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"invoice-lens/internal/common"
	"invoice-lens/internal/document"
	"invoice-lens/internal/llm"
	"invoice-lens/internal/llm/anthropic"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage: extract <invoice.pdf>")
		os.Exit(2)
	}
	path := os.Args[1]

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("could not load .env file", "error", err)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Error("read input", "path", path, "error", err)
		os.Exit(1)
	}

	ctx, cancel := common.WithTimeout(context.Background(), cfg.Server.RequestTimeout)
	defer cancel()

	loader := document.NewLoader(document.Config{
		Pdftoppm:       cfg.Loader.Pdftoppm,
		DPI:            cfg.Loader.DPI,
		MaxRasterPages: cfg.Loader.MaxRasterPages,
		MinTextLength:  cfg.Loader.MinTextLength,
	}, logger)

	content, err := loader.Load(ctx, data)
	if err != nil {
		logger.Error("load document", "path", path, "error", err)
		os.Exit(1)
	}

	client := anthropic.NewClient(anthropic.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	_, raw, err := client.ExtractInvoice(ctx, llm.ExtractRequest{
		Content:         content,
		FilenameHint:    filepath.Base(path),
		DefaultCurrency: cfg.LLM.DefaultCurrency,
	})
	if err != nil {
		logger.Error("extract invoice", "path", path, "error", err)
		os.Exit(1)
	}

	fmt.Println(string(raw))
}
