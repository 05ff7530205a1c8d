package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/testing-assistant/internal/schema"
)

func writeKnowledgeDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"blocking_rules.md":        "Collateral is blocked for MLN before any allocation.",
		"allocation_waterfall.txt": "Allocation follows the priority order defined per segment.",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

type fakeOpenWebUI struct {
	t *testing.T

	collections []map[string]string
	created     int
	chatCalls   int
	chatBodies  []chatRequest
	respond     func(call int) string

	uploads  int
	fileAdds []string
	deleted  []string
	authSeen []string
}

func (f *fakeOpenWebUI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/knowledge/", func(w http.ResponseWriter, r *http.Request) {
		f.authSeen = append(f.authSeen, r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/knowledge/":
			json.NewEncoder(w).Encode(f.collections)
		case r.Method == http.MethodPost && r.URL.Path == "/v1/knowledge/create":
			f.created++
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			col := map[string]string{"id": "kb-1", "name": body["name"]}
			f.collections = append(f.collections, col)
			json.NewEncoder(w).Encode(col)
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/file/add"):
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			f.fileAdds = append(f.fileAdds, body["file_id"])
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		case r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/delete"):
			f.deleted = append(f.deleted, r.URL.Path)
			json.NewEncoder(w).Encode(map[string]bool{"deleted": true})
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/v1/files/", func(w http.ResponseWriter, r *http.Request) {
		f.authSeen = append(f.authSeen, r.Header.Get("Authorization"))
		f.uploads++
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			f.t.Errorf("upload is not multipart: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "file-" + strconv.Itoa(f.uploads)})
	})
	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		f.authSeen = append(f.authSeen, r.Header.Get("Authorization"))
		f.chatCalls++
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.chatBodies = append(f.chatBodies, req)
		content := f.respond(f.chatCalls)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		})
	})
	return mux
}

func newOllamaUnderTest(t *testing.T, f *fakeOpenWebUI, knowledgeDir string) *OllamaProvider {
	t.Helper()
	server := httptest.NewServer(f.handler())
	t.Cleanup(server.Close)

	p, err := NewOllamaProvider(ModelConfig{
		Provider:     "ollama",
		Model:        "gpt-oss:20b",
		Role:         RoleGenerator,
		Module:       "collateral_blocking",
		KnowledgeDir: knowledgeDir,
		BaseURL:      server.URL, // no trailing slash on purpose
		Token:        "test-token",
	})
	require.NoError(t, err)
	return p
}

func TestOllamaConverse_PromptCarriesKnowledgeAndSchema(t *testing.T) {
	f := &fakeOpenWebUI{
		t:           t,
		collections: []map[string]string{{"id": "kb-9", "name": "collateral_blocking"}},
		respond:     func(int) string { return `{"combo_id": "SC-001"}` },
	}
	p := newOllamaUnderTest(t, f, writeKnowledgeDir(t))

	contract := &schema.Contract{
		Name:   "combo",
		Fields: []schema.Field{{Name: "combo_id", Type: schema.TypeString}},
	}
	out, err := p.Converse(context.Background(), "Generate the combination.", contract, SessionNew)
	require.NoError(t, err)
	assert.Equal(t, `{"combo_id": "SC-001"}`, out)

	require.Len(t, f.chatBodies, 1)
	req := f.chatBodies[0]
	assert.Equal(t, "gpt-oss:20b", req.Model)
	require.Len(t, req.Messages, 1)

	prompt := req.Messages[0].Content
	assert.Contains(t, prompt, "Generate the combination.")
	assert.Contains(t, prompt, "Collateral is blocked for MLN before any allocation.")
	assert.Contains(t, prompt, "Allocation follows the priority order defined per segment.")
	assert.Contains(t, prompt, "Return raw JSON only")
	assert.Contains(t, prompt, `"combo_id"`)

	require.Len(t, req.Files, 1)
	assert.Equal(t, "collection", req.Files[0].Type)
	assert.Equal(t, "kb-9", req.Files[0].ID)

	for _, auth := range f.authSeen {
		assert.Equal(t, "Bearer test-token", auth)
	}
}

func TestOllamaConverse_ContentRetriesThenContentError(t *testing.T) {
	f := &fakeOpenWebUI{
		t:           t,
		collections: []map[string]string{{"id": "kb-9", "name": "collateral_blocking"}},
		respond:     func(int) string { return "I refuse to emit JSON." },
	}
	p := newOllamaUnderTest(t, f, writeKnowledgeDir(t))

	contract := &schema.Contract{
		Name:   "combo",
		Fields: []schema.Field{{Name: "combo_id", Type: schema.TypeString}},
	}
	_, err := p.Converse(context.Background(), "Generate.", contract, SessionNew)
	require.Error(t, err)

	var ce *ContentError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 3, ce.Attempts)
	assert.Equal(t, 3, f.chatCalls)
}

func TestOllamaConverse_RecoversWithinContentBudget(t *testing.T) {
	f := &fakeOpenWebUI{
		t:           t,
		collections: []map[string]string{{"id": "kb-9", "name": "collateral_blocking"}},
		respond: func(call int) string {
			if call < 3 {
				return "not json"
			}
			return "```json\n{\"combo_id\": \"SC-002\"}\n```"
		},
	}
	p := newOllamaUnderTest(t, f, writeKnowledgeDir(t))

	contract := &schema.Contract{
		Name:   "combo",
		Fields: []schema.Field{{Name: "combo_id", Type: schema.TypeString}},
	}
	out, err := p.Converse(context.Background(), "Generate.", contract, SessionNew)
	require.NoError(t, err)
	assert.Equal(t, 3, f.chatCalls)
	assert.Contains(t, out, "SC-002")
}

func TestOllamaUpload_FindOrCreateAndRegister(t *testing.T) {
	f := &fakeOpenWebUI{
		t:       t,
		respond: func(int) string { return "{}" },
	}
	p := newOllamaUnderTest(t, f, writeKnowledgeDir(t))

	require.NoError(t, p.UploadReferenceDocuments(context.Background()))
	assert.Equal(t, 1, f.created, "collection created on first upload")
	assert.Equal(t, 2, f.uploads)
	assert.Len(t, f.fileAdds, 2)
	assert.Equal(t, []string{"file-1", "file-2"}, f.fileAdds)
}

func TestOllamaUpload_ReusesExistingCollection(t *testing.T) {
	f := &fakeOpenWebUI{
		t:           t,
		collections: []map[string]string{{"id": "kb-7", "name": "collateral_blocking"}},
		respond:     func(int) string { return "{}" },
	}
	p := newOllamaUnderTest(t, f, writeKnowledgeDir(t))

	require.NoError(t, p.UploadReferenceDocuments(context.Background()))
	assert.Equal(t, 0, f.created, "existing collection is reused")
	assert.Equal(t, "kb-7", p.knowledgeID)
}

func TestOllamaTeardown(t *testing.T) {
	f := &fakeOpenWebUI{
		t:           t,
		collections: []map[string]string{{"id": "kb-7", "name": "collateral_blocking"}},
		respond:     func(int) string { return "{}" },
	}
	p := newOllamaUnderTest(t, f, writeKnowledgeDir(t))

	require.NoError(t, p.Teardown(context.Background()))
	require.Len(t, f.deleted, 1)
	assert.Contains(t, f.deleted[0], "kb-7")

	// Second teardown finds nothing to delete and stays quiet.
	f.collections = nil
	require.NoError(t, p.Teardown(context.Background()))
	assert.Len(t, f.deleted, 1)
}
