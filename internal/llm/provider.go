// Package llm abstracts the generative model providers behind a single
// capability interface. A hosted provider (Gemini) carries conversational
// state and server-side context caches; a self-hosted provider (OpenWebUI
// compatible) is stateless and rebuilds its context on every call. The
// orchestration layers never branch on which provider is active.
package llm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonathan/testing-assistant/internal/schema"
)

// Role identifies which side of the generate/verify loop a provider
// instance serves. Caches and API keys are segregated by role.
type Role string

const (
	RoleGenerator Role = "generator"
	RoleVerifier  Role = "verifier"
)

// SessionPolicy controls conversational state on providers that have it.
// Stateless providers ignore the policy.
type SessionPolicy int

const (
	// SessionReuse continues the current chat session, so the model sees
	// its own earlier drafts and the feedback on them.
	SessionReuse SessionPolicy = iota
	// SessionNew discards any existing session before the call.
	SessionNew
)

// ModelConfig describes one provider instance. Configs are built fresh
// per stage and never shared between instances.
type ModelConfig struct {
	// Provider is the provider tag: "gemini" or "ollama".
	Provider string
	// Model is the provider-specific model identifier.
	Model string
	// Role segregates cache state between generator and verifier.
	Role Role
	// Module names the functional module under test, e.g.
	// "collateral_blocking". It keys caches and knowledge collections.
	Module string
	// KnowledgeDir holds the reference documents for the module.
	KnowledgeDir string

	// APIKey authenticates the hosted provider.
	APIKey string
	// BaseURL and Token configure the self-hosted endpoint.
	BaseURL string
	Token   string

	// CacheDir is where cache descriptors are persisted locally.
	CacheDir string
	// CacheTTL is the remote cache lifetime. Zero means 30 minutes.
	CacheTTL time.Duration
	// ContentTries bounds self-hosted retries on non-conformant output.
	// Zero means 3.
	ContentTries int
}

// Provider is the capability surface the orchestration layers program
// against.
type Provider interface {
	// Converse sends a prompt and returns the raw model text. When a
	// contract is given the provider steers the model toward it (native
	// response schema on hosted, embedded schema text on self-hosted);
	// callers still validate the result themselves.
	Converse(ctx context.Context, prompt string, contract *schema.Contract, policy SessionPolicy) (string, error)
	// UploadReferenceDocuments makes the module's knowledge directory
	// available to the model, reusing prior uploads where a live cache
	// or collection already exists.
	UploadReferenceDocuments(ctx context.Context) error
	// Teardown removes remote caches, uploaded documents and local
	// descriptors. Best effort and idempotent.
	Teardown(ctx context.Context) error
	// Close releases client resources.
	Close() error
}

// New constructs a provider from its config. Unknown provider tags fail
// fast at construction, before any stage work starts.
func New(ctx context.Context, cfg ModelConfig) (Provider, error) {
	switch cfg.Provider {
	case "gemini":
		return NewGeminiProvider(ctx, cfg)
	case "ollama":
		return NewOllamaProvider(cfg)
	default:
		return nil, fmt.Errorf("%q is an invalid provider, it can only be ollama or gemini", cfg.Provider)
	}
}

// knowledgeFiles lists the regular files in the module's knowledge
// directory, in lexical order.
func knowledgeFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading knowledge dir %s: %w", dir, err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("knowledge dir %s holds no reference documents", dir)
	}
	return paths, nil
}
