package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"invoice-lens/internal/common"
	"invoice-lens/internal/document"
	"invoice-lens/internal/export"
	"invoice-lens/internal/llm/anthropic"
	"invoice-lens/internal/pipeline"
	"invoice-lens/internal/server"
	"invoice-lens/internal/session"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("could not load .env file", "error", err)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader := document.NewLoader(document.Config{
		Pdftoppm:       cfg.Loader.Pdftoppm,
		DPI:            cfg.Loader.DPI,
		MaxRasterPages: cfg.Loader.MaxRasterPages,
		MinTextLength:  cfg.Loader.MinTextLength,
	}, logger)

	extractor := anthropic.NewClient(anthropic.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)

	processor := pipeline.NewProcessor(loader, extractor, cfg.LLM.DefaultCurrency, logger)
	sessions := session.NewStore(cfg.Session.TTL, logger)
	exporter := export.NewService(logger)

	handler := server.NewHandler(cfg.Server, processor, sessions, exporter, logger)
	mux := server.NewRouter(handler)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.RequestTimeout,
		WriteTimeout: cfg.Server.RequestTimeout,
	}

	logger.Info("invoice-lens listening", "addr", cfg.Server.Addr, "model", cfg.LLM.Model)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := common.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
