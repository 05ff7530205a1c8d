// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// Module identifiers accepted by the pipeline.
const (
	ModuleCollateralBlocking = "collateral_blocking"
	ModuleCashAllocation     = "cash_allocation"
)

// Config holds process configuration. Values come from the environment,
// optionally overridden by a JSON config file; missing values fall back
// to defaults.
type Config struct {
	// Provider credentials
	GeminiAPIKey         string `json:"gemini_api_key,omitempty"`
	GeminiVerifierAPIKey string `json:"gemini_verifier_api_key,omitempty"`
	OllamaBaseURL        string `json:"ollama_base_url,omitempty" validate:"omitempty,url"`
	OllamaAPIKey         string `json:"ollama_api_key,omitempty"`

	// Paths
	KnowledgeBaseDir string `json:"knowledge_base_dir,omitempty"`
	CacheDir         string `json:"cache_dir,omitempty"`
	DataDir          string `json:"data_dir,omitempty"`
	DimensionsFile   string `json:"dimensions_file,omitempty"`
	ScenariosFile    string `json:"scenarios_file,omitempty"`
	CasesFile        string `json:"cases_file,omitempty"`

	// Optional run persistence
	DatabaseURL string `json:"database_url,omitempty"`
}

// FromEnv builds a Config from environment variables. GOOGLE_API_KEY is
// honored as a fallback for the generator key, and the verifier key
// falls back to the generator key so a single-key setup just works.
func FromEnv() *Config {
	cfg := &Config{
		GeminiAPIKey:         os.Getenv("GEMINI_API_KEY"),
		GeminiVerifierAPIKey: os.Getenv("GEMINI_VERIFIER_API_KEY"),
		OllamaBaseURL:        os.Getenv("OLLAMA_BASE_URL"),
		OllamaAPIKey:         os.Getenv("OLLAMA_API_KEY"),
		KnowledgeBaseDir:     os.Getenv("KNOWLEDGE_BASE_DIR"),
		CacheDir:             os.Getenv("CACHE_DIR"),
		DataDir:              os.Getenv("TEST_DATA_DIR"),
		DimensionsFile:       os.Getenv("TEST_DIMENSIONS_FILE"),
		ScenariosFile:        os.Getenv("TEST_SCENARIOS_FILE"),
		CasesFile:            os.Getenv("TEST_CASES_FILE"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
	}
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if cfg.GeminiVerifierAPIKey == "" {
		cfg.GeminiVerifierAPIKey = cfg.GeminiAPIKey
	}
	return cfg
}

// LoadConfig loads configuration overrides from a JSON file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return &cfg, nil
}

// MergeWithDefaults returns a new Config with empty fields filled from
// defaults. File values win over environment values this way.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.GeminiAPIKey == "" {
		result.GeminiAPIKey = defaults.GeminiAPIKey
	}
	if result.GeminiVerifierAPIKey == "" {
		result.GeminiVerifierAPIKey = defaults.GeminiVerifierAPIKey
	}
	if result.OllamaBaseURL == "" {
		result.OllamaBaseURL = defaults.OllamaBaseURL
	}
	if result.OllamaAPIKey == "" {
		result.OllamaAPIKey = defaults.OllamaAPIKey
	}
	if result.KnowledgeBaseDir == "" {
		result.KnowledgeBaseDir = defaults.KnowledgeBaseDir
	}
	if result.CacheDir == "" {
		result.CacheDir = defaults.CacheDir
	}
	if result.DataDir == "" {
		result.DataDir = defaults.DataDir
	}
	if result.DimensionsFile == "" {
		result.DimensionsFile = defaults.DimensionsFile
	}
	if result.ScenariosFile == "" {
		result.ScenariosFile = defaults.ScenariosFile
	}
	if result.CasesFile == "" {
		result.CasesFile = defaults.CasesFile
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	return result
}

// Defaults are the paths used when neither environment nor config file
// provides one.
func Defaults() Config {
	return Config{
		KnowledgeBaseDir: "KnowledgeBase",
		CacheDir:         "Cache",
		DataDir:          "TestData",
		DimensionsFile:   filepath.Join("TestData", "test_dimensions.csv"),
		ScenariosFile:    filepath.Join("TestData", "test_scenarios.csv"),
		CasesFile:        filepath.Join("TestData", "test_cases.csv"),
	}
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// KnowledgeDir maps a module identifier to its reference-document
// directory. Unknown modules are rejected up front.
func (c *Config) KnowledgeDir(module string) (string, error) {
	switch module {
	case ModuleCollateralBlocking:
		return filepath.Join(c.KnowledgeBaseDir, "CollateralBlocking"), nil
	case ModuleCashAllocation:
		return filepath.Join(c.KnowledgeBaseDir, "CashAllocation"), nil
	default:
		return "", fmt.Errorf("cannot find the knowledge base path for module %q", module)
	}
}
