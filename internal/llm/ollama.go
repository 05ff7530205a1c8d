package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonathan/testing-assistant/internal/prompts"
	"github.com/jonathan/testing-assistant/internal/schema"
)

const (
	defaultContentTries = 3

	ollamaTemperature = 0.7
	ollamaMaxTokens   = 25000
)

// OllamaProvider talks to a self-hosted OpenWebUI-compatible endpoint.
// It is stateless: every call rebuilds its context by inlining the
// module's reference documents into the prompt and attaching the
// module's knowledge collection.
type OllamaProvider struct {
	cfg         ModelConfig
	httpClient  *http.Client
	knowledgeID string
}

// NewOllamaProvider creates a self-hosted provider. The base URL is
// required and is normalized to end with a slash.
func NewOllamaProvider(cfg ModelConfig) (*OllamaProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required for the ollama provider")
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	if cfg.ContentTries == 0 {
		cfg.ContentTries = defaultContentTries
	}

	return &OllamaProvider{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type fileRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Files       []fileRef     `json:"files,omitempty"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Converse sends the prompt with the knowledge preamble and, when a
// contract is given, the schema text plus a raw-JSON-only instruction.
// Non-conformant output is retried up to the content budget; exhausting
// it yields a ContentError. The session policy is ignored, every call
// stands alone.
func (p *OllamaProvider) Converse(ctx context.Context, prompt string, contract *schema.Contract, _ SessionPolicy) (string, error) {
	full, err := p.buildPrompt(prompt, contract)
	if err != nil {
		return "", err
	}
	if err := p.ensureKnowledge(ctx); err != nil {
		return "", err
	}

	req := chatRequest{
		Model:       p.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: full}},
		Files:       []fileRef{{Type: "collection", ID: p.knowledgeID}},
		Temperature: ollamaTemperature,
		MaxTokens:   ollamaMaxTokens,
	}

	var lastErr error
	for attempt := 1; attempt <= p.cfg.ContentTries; attempt++ {
		var resp chatResponse
		if err := p.postJSON(ctx, "chat/completions", req, &resp); err != nil {
			lastErr = err
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("response carries no choices")
			continue
		}
		content := resp.Choices[0].Message.Content
		if contract != nil {
			if _, err := contract.Validate(content); err != nil {
				lastErr = err
				continue
			}
		}
		return content, nil
	}
	return "", &ContentError{Model: p.cfg.Model, Attempts: p.cfg.ContentTries, Cause: lastErr}
}

func (p *OllamaProvider) buildPrompt(prompt string, contract *schema.Contract) (string, error) {
	paths, err := knowledgeFiles(p.cfg.KnowledgeDir)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(prompt)
	sb.WriteString("\n")
	sb.WriteString(prompts.MustGet("llm.json", "knowledge-preamble"))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading reference document %s: %w", path, err)
		}
		sb.Write(data)
		sb.WriteString("\n")
	}

	if contract != nil {
		schemaText, err := contract.Describe()
		if err != nil {
			return "", err
		}
		sb.WriteString(prompts.Format(prompts.MustGet("llm.json", "json-instruction"), map[string]string{
			"Schema": schemaText,
		}))
	}
	return sb.String(), nil
}

// UploadReferenceDocuments registers the module's documents into its
// knowledge collection, creating the collection if it does not exist.
func (p *OllamaProvider) UploadReferenceDocuments(ctx context.Context) error {
	if err := p.ensureKnowledge(ctx); err != nil {
		return err
	}

	paths, err := knowledgeFiles(p.cfg.KnowledgeDir)
	if err != nil {
		return err
	}
	for _, path := range paths {
		fileID, err := p.uploadFile(ctx, path)
		if err != nil {
			return err
		}
		if err := p.addFileToKnowledge(ctx, fileID); err != nil {
			return err
		}
	}
	return nil
}

// Teardown deletes the module's knowledge collection if it exists.
// Failures are logged and swallowed so cleanup of other providers can
// continue.
func (p *OllamaProvider) Teardown(ctx context.Context) error {
	id, err := p.findKnowledge(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to look up knowledge collection %s: %v\n", p.cfg.Module, err)
		return nil
	}
	if id == "" {
		return nil
	}

	if err := p.deleteJSON(ctx, "v1/knowledge/"+id+"/delete"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to delete knowledge collection %s: %v\n", p.cfg.Module, err)
	}
	p.knowledgeID = ""
	return nil
}

// Close is a no-op, the provider holds no persistent connections.
func (p *OllamaProvider) Close() error {
	return nil
}

func (p *OllamaProvider) ensureKnowledge(ctx context.Context) error {
	if p.knowledgeID != "" {
		return nil
	}
	id, err := p.findKnowledge(ctx)
	if err != nil {
		return err
	}
	if id == "" {
		id, err = p.createKnowledge(ctx)
		if err != nil {
			return err
		}
	}
	p.knowledgeID = id
	return nil
}

func (p *OllamaProvider) findKnowledge(ctx context.Context) (string, error) {
	var collections []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := p.getJSON(ctx, "v1/knowledge/", &collections); err != nil {
		return "", fmt.Errorf("listing knowledge collections: %w", err)
	}
	for _, c := range collections {
		if c.Name == p.cfg.Module {
			return c.ID, nil
		}
	}
	return "", nil
}

func (p *OllamaProvider) createKnowledge(ctx context.Context) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	body := map[string]string{
		"name":        p.cfg.Module,
		"description": "Reference documents for " + p.cfg.Module,
	}
	if err := p.postJSON(ctx, "v1/knowledge/create", body, &created); err != nil {
		return "", fmt.Errorf("creating knowledge collection %s: %w", p.cfg.Module, err)
	}
	return created.ID, nil
}

func (p *OllamaProvider) addFileToKnowledge(ctx context.Context, fileID string) error {
	body := map[string]string{"file_id": fileID}
	if err := p.postJSON(ctx, "v1/knowledge/"+p.knowledgeID+"/file/add", body, nil); err != nil {
		return fmt.Errorf("adding file %s to knowledge collection: %w", fileID, err)
	}
	return nil
}

func (p *OllamaProvider) uploadFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening reference document %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("reading reference document %s: %w", path, err)
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"v1/files/", &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading reference document %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("uploading reference document %s: status %d", path, resp.StatusCode)
	}

	var uploaded struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return "", fmt.Errorf("decoding upload response for %s: %w", path, err)
	}
	return uploaded.ID, nil
}

func (p *OllamaProvider) getJSON(ctx context.Context, path string, out any) error {
	return p.doJSON(ctx, http.MethodGet, path, nil, out)
}

func (p *OllamaProvider) postJSON(ctx context.Context, path string, body, out any) error {
	return p.doJSON(ctx, http.MethodPost, path, body, out)
}

func (p *OllamaProvider) deleteJSON(ctx context.Context, path string) error {
	return p.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (p *OllamaProvider) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
