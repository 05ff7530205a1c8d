package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromEnv_FallbackKeys(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("GEMINI_VERIFIER_API_KEY", "")

	cfg := FromEnv()
	if cfg.GeminiAPIKey != "google-key" {
		t.Errorf("GeminiAPIKey = %q, want fallback to GOOGLE_API_KEY", cfg.GeminiAPIKey)
	}
	if cfg.GeminiVerifierAPIKey != "google-key" {
		t.Errorf("GeminiVerifierAPIKey = %q, want fallback to generator key", cfg.GeminiVerifierAPIKey)
	}
}

func TestLoadConfigAndMerge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"ollama_base_url": "http://llm.internal:8080/", "cache_dir": "RunCache"}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	merged := cfg.MergeWithDefaults(Defaults())

	if merged.OllamaBaseURL != "http://llm.internal:8080/" {
		t.Errorf("OllamaBaseURL = %q", merged.OllamaBaseURL)
	}
	if merged.CacheDir != "RunCache" {
		t.Errorf("CacheDir = %q, file value must win", merged.CacheDir)
	}
	if merged.KnowledgeBaseDir != "KnowledgeBase" {
		t.Errorf("KnowledgeBaseDir = %q, default expected", merged.KnowledgeBaseDir)
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.OllamaBaseURL = "not a url"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for malformed base URL")
	}

	cfg.OllamaBaseURL = "http://llm.internal:8080/"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestKnowledgeDir(t *testing.T) {
	cfg := Defaults()

	dir, err := cfg.KnowledgeDir(ModuleCollateralBlocking)
	if err != nil {
		t.Fatalf("KnowledgeDir: %v", err)
	}
	if dir != filepath.Join("KnowledgeBase", "CollateralBlocking") {
		t.Errorf("dir = %q", dir)
	}

	if _, err := cfg.KnowledgeDir("margining"); err == nil {
		t.Error("expected error for unknown module")
	}
}
