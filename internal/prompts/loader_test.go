package prompts

import (
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	prompt, err := Get("llm.json", "cache-system-instruction")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !strings.Contains(prompt, "expert tester") {
		t.Errorf("unexpected prompt text: %q", prompt)
	}
}

func TestGet_MissingKey(t *testing.T) {
	if _, err := Get("llm.json", "no-such-key"); err == nil {
		t.Error("expected error for missing key")
	}
	if _, err := Get("missing.json", "knowledge-preamble"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFormat(t *testing.T) {
	template := MustGet("llm.json", "json-instruction")
	rendered := Format(template, map[string]string{"Schema": `{"type":"object"}`})
	if strings.Contains(rendered, "{{.Schema}}") {
		t.Error("placeholder not replaced")
	}
	if !strings.Contains(rendered, `{"type":"object"}`) {
		t.Error("schema text not present in rendered prompt")
	}
}

func TestStageKeysComplete(t *testing.T) {
	stages := []string{"dimensions", "scenarios", "cases", "steps", "outputs"}
	suffixes := []string{"role", "task", "verify-role", "verify-task"}
	for _, stage := range stages {
		for _, suffix := range suffixes {
			key := stage + "-" + suffix
			if _, err := Get("stages.json", key); err != nil {
				t.Errorf("missing stage prompt %q: %v", key, err)
			}
		}
	}
}
