package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/testing-assistant/internal/config"
	"github.com/jonathan/testing-assistant/internal/llm"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete uploaded documents, context caches and knowledge collections",
	Long:  "Tear down every remote resource the pipeline created for a module: the hosted context caches and their uploaded files for both roles, and the self-hosted knowledge collection. Local artifact files are left alone.",
	RunE:  runCleanup,
}

var cleanupModule string

func init() {
	cleanupCmd.Flags().StringVarP(&cleanupModule, "module", "m", config.ModuleCashAllocation, "Clearing module (collateral_blocking or cash_allocation)")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	knowledgeDir, err := cfg.KnowledgeDir(cleanupModule)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	// Both roles carry their own cache, so both get torn down.
	targets := []llm.ModelConfig{
		{Provider: "gemini", Role: llm.RoleGenerator, APIKey: cfg.GeminiAPIKey},
		{Provider: "gemini", Role: llm.RoleVerifier, APIKey: cfg.GeminiVerifierAPIKey},
		{Provider: "ollama", Role: llm.RoleGenerator, BaseURL: cfg.OllamaBaseURL, Token: cfg.OllamaAPIKey},
	}

	for _, target := range targets {
		target.Module = cleanupModule
		target.KnowledgeDir = knowledgeDir
		target.CacheDir = cfg.CacheDir

		provider, err := llm.New(ctx, target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping %s %s cleanup: %v\n", target.Provider, target.Role, err)
			continue
		}
		if err := provider.Teardown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %s %s teardown incomplete: %v\n", target.Provider, target.Role, err)
		}
		_ = provider.Close()
	}

	fmt.Fprintf(os.Stdout, "Cleanup finished for %s\n", cleanupModule)
	return nil
}
