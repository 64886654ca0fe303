package factory

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jacky-htg/ai-gateway/libs/config"
	"github.com/jacky-htg/ai-gateway/libs/gateway"
)

func TestBuildTableFromEnvChains(t *testing.T) {
	cfg := &config.Config{
		TextProviders:   []string{"ollama", "llamastack", "llamacli"},
		SpeechProviders: []string{"piper", "hftts"},
		AttemptTimeout:  5 * time.Second,
		VendorSettings:  map[string]map[string]string{},
	}
	table, err := BuildTable(cfg)
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}

	text, err := table.Resolve(gateway.CapabilityText, "any-model")
	if err != nil {
		t.Fatalf("Resolve text: %v", err)
	}
	wantText := []struct {
		id   string
		kind gateway.InvocationKind
	}{
		{"ollama", gateway.InvokeStream},
		{"llamastack", gateway.InvokeBlocking},
		{"llamacli", gateway.InvokeProcess},
	}
	if len(text) != len(wantText) {
		t.Fatalf("got %d text providers, want %d", len(text), len(wantText))
	}
	for i, w := range wantText {
		if text[i].ID != w.id || text[i].Kind != w.kind {
			t.Errorf("text[%d] = %s/%s, want %s/%s", i, text[i].ID, text[i].Kind, w.id, w.kind)
		}
		if text[i].AttemptTimeout != 5*time.Second {
			t.Errorf("text[%d] timeout = %s", i, text[i].AttemptTimeout)
		}
	}

	speech, err := table.Resolve(gateway.CapabilitySpeech, "any-model")
	if err != nil {
		t.Fatalf("Resolve speech: %v", err)
	}
	if len(speech) != 2 || speech[0].ID != "piper" || speech[1].ID != "hftts" {
		t.Errorf("speech chain = %v", speech)
	}
}

func TestBuildTableUnknownVendor(t *testing.T) {
	cfg := &config.Config{
		TextProviders:  []string{"nope"},
		VendorSettings: map[string]map[string]string{},
	}
	if _, err := BuildTable(cfg); err == nil {
		t.Error("expected error for unknown vendor")
	}
}

func TestBuildTableFromFile(t *testing.T) {
	doc := `providers:
  - id: local-ollama
    vendor: ollama
    capability: text
    models: [tinyllama, llama3]
    timeout_ms: 1500
  - id: stack
    vendor: llamastack
    capability: text
  - vendor: piper
    capability: speech
`
	path := filepath.Join(t.TempDir(), "providers.yaml")
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("write providers file: %v", err)
	}

	cfg := &config.Config{
		ProvidersFile:  path,
		AttemptTimeout: 30 * time.Second,
		VendorSettings: map[string]map[string]string{},
	}
	table, err := BuildTable(cfg)
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}

	text, err := table.Resolve(gateway.CapabilityText, "tinyllama")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(text) != 2 {
		t.Fatalf("got %d text providers, want 2", len(text))
	}
	if text[0].ID != "local-ollama" {
		t.Errorf("first id = %q, want custom id from file", text[0].ID)
	}
	if text[0].AttemptTimeout != 1500*time.Millisecond {
		t.Errorf("timeout = %s, want 1.5s from file", text[0].AttemptTimeout)
	}
	if text[1].AttemptTimeout != 30*time.Second {
		t.Errorf("default timeout = %s, want config value", text[1].AttemptTimeout)
	}

	// Model restriction from the file must filter.
	if _, err := table.Resolve(gateway.CapabilityText, "other"); err != nil {
		t.Fatalf("Resolve other: %v", err)
	}
	other, _ := table.Resolve(gateway.CapabilityText, "other")
	if len(other) != 1 || other[0].ID != "stack" {
		t.Errorf("unrestricted chain = %v, want only stack", other)
	}

	speech, err := table.Resolve(gateway.CapabilitySpeech, "any")
	if err != nil {
		t.Fatalf("Resolve speech: %v", err)
	}
	if len(speech) != 1 || speech[0].ID != "piper" {
		t.Errorf("speech chain = %v", speech)
	}
}

func TestBuildTableFromFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "providers.yaml")
	if err := os.WriteFile(path, []byte("providers: []\n"), 0644); err != nil {
		t.Fatalf("write providers file: %v", err)
	}
	cfg := &config.Config{ProvidersFile: path, VendorSettings: map[string]map[string]string{}}
	if _, err := BuildTable(cfg); err == nil {
		t.Error("expected error for empty providers file")
	}
}

func TestCredRef(t *testing.T) {
	if got := credRef("hftts", ""); got != "" {
		t.Errorf("credRef with empty credential = %q, want empty", got)
	}
	if got := credRef("hftts", "tok"); got != "hftts-credential" {
		t.Errorf("credRef = %q", got)
	}
}
