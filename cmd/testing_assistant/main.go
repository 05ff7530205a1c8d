// Package main provides the test artifact generation CLI. Each
// subcommand runs one pipeline stage for a clearing module, from
// dimension discovery down to expected results.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonathan/testing-assistant/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "testing_assistant",
	Short: "LLM assisted test artifact generator",
	Long:  "Testing assistant generates test dimensions, scenarios, cases, steps and expected results for clearing modules from their requirement documents, with a generate-and-verify loop per artifact.",
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to JSON config file (overrides environment)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig layers the configuration: config file over environment
// over built-in defaults.
func loadConfig() (*config.Config, error) {
	cfg := config.FromEnv()
	if configPath != "" {
		fileCfg, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		merged := fileCfg.MergeWithDefaults(*cfg)
		cfg = &merged
	}
	merged := cfg.MergeWithDefaults(config.Defaults())
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}
