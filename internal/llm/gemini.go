package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/jonathan/testing-assistant/internal/cache"
	"github.com/jonathan/testing-assistant/internal/prompts"
	"github.com/jonathan/testing-assistant/internal/schema"
)

const (
	defaultCacheTTL = 30 * time.Minute

	backoffAttempts = 4
	backoffBase     = time.Second
	backoffCap      = 30 * time.Second
)

// remoteCacheClient is the slice of the SDK surface the cache lifecycle
// touches. Tests script it; production code passes the real client.
type remoteCacheClient interface {
	GetCachedContent(ctx context.Context, name string) (*genai.CachedContent, error)
	CreateCachedContent(ctx context.Context, cc *genai.CachedContent) (*genai.CachedContent, error)
	UpdateCachedContent(ctx context.Context, cc *genai.CachedContent, update *genai.CachedContentToUpdate) (*genai.CachedContent, error)
	DeleteCachedContent(ctx context.Context, name string) error
	UploadFile(ctx context.Context, name string, r io.Reader, opts *genai.UploadFileOptions) (*genai.File, error)
	DeleteFile(ctx context.Context, name string) error
}

// GeminiProvider is the hosted provider. Reference documents are uploaded
// once and pinned in a server-side context cache; conversations run as
// chat sessions on a model attached to that cache.
type GeminiProvider struct {
	client  *genai.Client
	remote  remoteCacheClient
	cfg     ModelConfig
	store   *cache.Store
	cached  *genai.CachedContent
	session *genai.ChatSession
}

// NewGeminiProvider creates a hosted provider. The API key is required.
func NewGeminiProvider(ctx context.Context, cfg ModelConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for the gemini provider")
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaultCacheTTL
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		remote: client,
		cfg:    cfg,
		store:  cache.NewStore(cfg.CacheDir),
	}, nil
}

// UploadReferenceDocuments attaches the module's knowledge to a remote
// context cache. A live cache from a previous run is reattached and its
// TTL refreshed; only a miss (or a handle the service no longer knows)
// triggers a fresh upload.
func (p *GeminiProvider) UploadReferenceDocuments(ctx context.Context) error {
	if desc, err := p.store.Resolve(string(p.cfg.Role), p.cfg.Module); err == nil {
		cc, err := p.remote.GetCachedContent(ctx, desc.Handle)
		if err == nil {
			return p.refreshCache(ctx, cc, desc)
		}
		// Handle is stale on the server side. Forget it and re-upload.
		if err := p.store.Remove(string(p.cfg.Role), p.cfg.Module); err != nil {
			return err
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		return err
	}
	return p.createCache(ctx)
}

func (p *GeminiProvider) refreshCache(ctx context.Context, cc *genai.CachedContent, desc *cache.Descriptor) error {
	updated, err := p.remote.UpdateCachedContent(ctx, cc, &genai.CachedContentToUpdate{
		Expiration: &genai.ExpireTimeOrTTL{TTL: p.cfg.CacheTTL},
	})
	if err != nil {
		return fmt.Errorf("failed to refresh context cache TTL: %w", err)
	}
	p.cached = updated

	desc.CreatedAt = time.Now()
	desc.TTL = p.cfg.CacheTTL
	return p.store.Persist(string(p.cfg.Role), p.cfg.Module, desc)
}

func (p *GeminiProvider) createCache(ctx context.Context) error {
	paths, err := knowledgeFiles(p.cfg.KnowledgeDir)
	if err != nil {
		return err
	}

	var contents []*genai.Content
	var docs []cache.Document
	for _, path := range paths {
		file, err := p.uploadFile(ctx, path)
		if err != nil {
			return err
		}
		docs = append(docs, cache.Document{Name: file.Name, DisplayName: file.DisplayName})
		contents = append(contents, genai.NewUserContent(genai.FileData{
			URI:      file.URI,
			MIMEType: file.MIMEType,
		}))
	}

	cc, err := p.remote.CreateCachedContent(ctx, &genai.CachedContent{
		Model:             p.cfg.Model,
		DisplayName:       prompts.MustGet("llm.json", "cache-display-name"),
		SystemInstruction: genai.NewUserContent(genai.Text(prompts.MustGet("llm.json", "cache-system-instruction"))),
		Contents:          contents,
		Expiration:        genai.ExpireTimeOrTTL{TTL: p.cfg.CacheTTL},
	})
	if err != nil {
		return fmt.Errorf("failed to create context cache: %w", err)
	}
	p.cached = cc

	return p.store.Persist(string(p.cfg.Role), p.cfg.Module, &cache.Descriptor{
		Handle:    cc.Name,
		CreatedAt: time.Now(),
		TTL:       p.cfg.CacheTTL,
		Documents: docs,
	})
}

func (p *GeminiProvider) uploadFile(ctx context.Context, path string) (*genai.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening reference document %s: %w", path, err)
	}
	defer f.Close()

	file, err := p.remote.UploadFile(ctx, "", f, &genai.UploadFileOptions{
		DisplayName: filepath.Base(path),
		MIMEType:    mimeTypeFor(path),
	})
	if err != nil {
		return nil, fmt.Errorf("uploading reference document %s: %w", path, err)
	}
	return file, nil
}

// Converse sends a prompt through a chat session on the cached-context
// model, retrying transient service errors with bounded backoff.
func (p *GeminiProvider) Converse(ctx context.Context, prompt string, contract *schema.Contract, policy SessionPolicy) (string, error) {
	if err := p.ensureCache(ctx); err != nil {
		return "", err
	}

	if policy == SessionNew || p.session == nil {
		model := p.client.GenerativeModelFromCachedContent(p.cached)
		model.SetTemperature(0.1)
		if contract != nil {
			model.ResponseMIMEType = "application/json"
			model.ResponseSchema = responseSchema(contract)
		}
		p.session = model.StartChat()
	}

	var resp *genai.GenerateContentResponse
	err := withBackoff(ctx, backoffBase, func() error {
		r, err := p.session.SendMessage(ctx, genai.Text(prompt))
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return "", err
	}
	return extractText(resp)
}

func (p *GeminiProvider) ensureCache(ctx context.Context) error {
	if p.cached != nil {
		return nil
	}
	desc, err := p.store.Resolve(string(p.cfg.Role), p.cfg.Module)
	if err != nil {
		return fmt.Errorf("no reference context available, upload documents first: %w", err)
	}
	cc, err := p.remote.GetCachedContent(ctx, desc.Handle)
	if err != nil {
		return fmt.Errorf("stored context cache is no longer available: %w", err)
	}
	p.cached = cc
	return nil
}

// Teardown deletes the remote cache and its uploaded documents. Remote
// failures are logged and swallowed; local descriptors are always
// removed so the next run starts clean.
func (p *GeminiProvider) Teardown(ctx context.Context) error {
	role, module := string(p.cfg.Role), p.cfg.Module

	if desc, err := p.store.Peek(role, module); err == nil {
		if err := p.remote.DeleteCachedContent(ctx, desc.Handle); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to delete context cache %s: %v\n", desc.Handle, err)
		}
		for _, doc := range desc.Documents {
			if err := p.remote.DeleteFile(ctx, doc.Name); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to delete uploaded document %s: %v\n", doc.Name, err)
			}
		}
	}

	p.cached = nil
	p.session = nil
	return p.store.Remove(role, module)
}

// Close releases the underlying client.
func (p *GeminiProvider) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

// withBackoff retries fn on transient service errors, doubling the delay
// between attempts up to a cap. Non-transient errors return immediately.
func withBackoff(ctx context.Context, base time.Duration, fn func() error) error {
	delay := base
	var last error
	for attempt := 1; attempt <= backoffAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		code, transient := isTransient(err)
		if !transient {
			return err
		}
		last = &TransientError{StatusCode: code, Cause: err}
		if attempt == backoffAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > backoffCap {
			delay = backoffCap
		}
	}
	return last
}

// responseSchema converts a contract into the native response schema the
// hosted API enforces during decoding.
func responseSchema(c *schema.Contract) *genai.Schema {
	s := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: genaiProperties(c.Fields),
		Required:   requiredFieldNames(c.Fields),
	}
	if c.Description != "" {
		s.Description = c.Description
	}
	return s
}

func genaiProperties(fields []schema.Field) map[string]*genai.Schema {
	props := make(map[string]*genai.Schema, len(fields))
	for _, f := range fields {
		props[f.Name] = genaiFieldSchema(f)
	}
	return props
}

func requiredFieldNames(fields []schema.Field) []string {
	var required []string
	for _, f := range fields {
		if !f.Optional {
			required = append(required, f.Name)
		}
	}
	return required
}

func genaiFieldSchema(f schema.Field) *genai.Schema {
	if f.Repeated {
		var items *genai.Schema
		if len(f.Items) > 0 {
			items = &genai.Schema{
				Type:       genai.TypeObject,
				Properties: genaiProperties(f.Items),
				Required:   requiredFieldNames(f.Items),
			}
		} else {
			items = &genai.Schema{Type: genaiType(f.ItemType)}
		}
		return &genai.Schema{
			Type:        genai.TypeArray,
			Items:       items,
			Description: f.Guidance,
		}
	}
	return &genai.Schema{
		Type:        genaiType(f.Type),
		Description: f.Guidance,
		Enum:        f.Enum,
	}
}

func genaiType(t schema.FieldType) genai.Type {
	switch t {
	case schema.TypeInteger:
		return genai.TypeInteger
	case schema.TypeNumber:
		return genai.TypeNumber
	case schema.TypeBoolean:
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

// extractText joins the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return strings.Join(parts, ""), nil
}

func mimeTypeFor(path string) string {
	mt := mime.TypeByExtension(filepath.Ext(path))
	if mt == "" {
		return "text/plain"
	}
	if idx := strings.Index(mt, ";"); idx >= 0 {
		mt = mt[:idx]
	}
	return mt
}
