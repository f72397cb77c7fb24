package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.LLMProvider != "openai" {
		t.Errorf("LLMProvider = %s, want openai", cfg.LLMProvider)
	}
	if cfg.MaxTokensPerChunk != 6000 {
		t.Errorf("MaxTokensPerChunk = %d, want 6000", cfg.MaxTokensPerChunk)
	}
	if cfg.ListenAddr != ":8585" {
		t.Errorf("ListenAddr = %s", cfg.ListenAddr)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PACKLENS_LLM_PROVIDER", "ollama")
	t.Setenv("PACKLENS_MAX_TOKENS_PER_CHUNK", "1234")
	t.Setenv("PACKLENS_TEMPERATURE", "0.7")

	cfg := Load()
	if cfg.LLMProvider != "ollama" {
		t.Errorf("LLMProvider = %s", cfg.LLMProvider)
	}
	if cfg.MaxTokensPerChunk != 1234 {
		t.Errorf("MaxTokensPerChunk = %d", cfg.MaxTokensPerChunk)
	}
	if cfg.Temperature != 0.7 {
		t.Errorf("Temperature = %v", cfg.Temperature)
	}
}

func TestLoad_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("PACKLENS_MAX_RETRIES", "not-a-number")

	cfg := Load()
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want default 3", cfg.MaxRetries)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"Warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSetupLoggerWithWriters_DualOutput(t *testing.T) {
	var stderr, file bytes.Buffer

	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)
	logger.Info("chunk analyzed", "chunk", 3)

	if stderr.Len() == 0 {
		t.Error("nothing written to the text handler")
	}

	// The file side is JSON, one object per line.
	var entry map[string]any
	if err := json.Unmarshal(file.Bytes(), &entry); err != nil {
		t.Fatalf("file output is not JSON: %v", err)
	}
	if entry["msg"] != "chunk analyzed" {
		t.Errorf("msg = %v", entry["msg"])
	}
}

func TestSetupLoggerWithWriters_LevelFilter(t *testing.T) {
	var stderr, file bytes.Buffer

	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelWarn)
	logger.Debug("noise")

	if stderr.Len() != 0 || file.Len() != 0 {
		t.Error("debug record passed a warn-level filter")
	}
}
