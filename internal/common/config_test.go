package common

import (
	"errors"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.MaxUploadBytes != 20*1024*1024 {
		t.Errorf("max upload = %d", cfg.Server.MaxUploadBytes)
	}
	if cfg.Loader.DPI != 200 {
		t.Errorf("dpi = %d", cfg.Loader.DPI)
	}
	if cfg.Loader.MaxRasterPages != 4 {
		t.Errorf("raster pages = %d", cfg.Loader.MaxRasterPages)
	}
	if cfg.LLM.Model != "claude-sonnet-4-20250514" {
		t.Errorf("model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.DefaultCurrency != "INR" {
		t.Errorf("default currency = %q", cfg.LLM.DefaultCurrency)
	}
	if cfg.Session.TTL != 30*time.Minute {
		t.Errorf("session ttl = %v", cfg.Session.TTL)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("MAX_UPLOAD_MB", "5")
	t.Setenv("ANTHROPIC_MODEL", "claude-test")
	t.Setenv("SESSION_TTL", "5m")
	t.Setenv("RASTER_DPI", "not-a-number")

	cfg := LoadConfig()

	if cfg.Server.Addr != ":9999" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Server.MaxUploadBytes != 5*1024*1024 {
		t.Errorf("max upload = %d", cfg.Server.MaxUploadBytes)
	}
	if cfg.LLM.Model != "claude-test" {
		t.Errorf("model = %q", cfg.LLM.Model)
	}
	if cfg.Session.TTL != 5*time.Minute {
		t.Errorf("session ttl = %v", cfg.Session.TTL)
	}
	if cfg.Loader.DPI != 200 {
		t.Errorf("unparseable env should fall back to default, got %d", cfg.Loader.DPI)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := LoadConfig()
	cfg.LLM.APIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate with key: %v", err)
	}

	cfg.LLM.APIKey = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate without API key must fail")
	}
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}
