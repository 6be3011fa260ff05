package legacy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "legacy.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create test YAML file: %v", err)
	}
	return path
}

func TestLoaderLoad(t *testing.T) {
	path := writeFile(t, `---
cloudServers:
  - id: srv-1
    name: Team Cloud
    url: https://t.example.com
    apiKey: abc
lanConnections:
  - id: peer-1
    name: Desk
    host: 192.168.1.20
    port: 7778
    secretKey: {{LAN_SECRET}}
`)

	records, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(records.CloudServers) != 1 || records.CloudServers[0].APIKey != "abc" {
		t.Errorf("CloudServers = %+v", records.CloudServers)
	}
	if len(records.LANConnections) != 1 {
		t.Fatalf("LANConnections = %+v", records.LANConnections)
	}
	lan := records.LANConnections[0]
	if lan.Port != 7778 || lan.Host != "192.168.1.20" {
		t.Errorf("LAN record = %+v", lan)
	}
	if lan.SecretKey != "" {
		t.Errorf("template placeholder should be blanked, got %q", lan.SecretKey)
	}
}

func TestLoaderLoadFileNotFound(t *testing.T) {
	loader := NewLoader("/nonexistent/path/legacy.yaml")
	if _, err := loader.Load(); err == nil {
		t.Error("Load() with non-existent file should return error")
	}
	recs, err := loader.ReadLegacy(context.Background())
	if err != nil {
		t.Errorf("ReadLegacy() on missing file should not fail, got %v", err)
	}
	if !recs.Empty() {
		t.Errorf("ReadLegacy() on missing file = %+v, want empty", recs)
	}
}

func TestLoaderLoadInvalidYAML(t *testing.T) {
	path := writeFile(t, "cloudServers: [unterminated\n")
	if _, err := NewLoader(path).ReadLegacy(context.Background()); err == nil {
		t.Error("ReadLegacy() with malformed yaml should return error")
	}
}

type staticReader Records

func (s staticReader) ReadLegacy(context.Context) (Records, error) { return Records(s), nil }

func TestMultiReader(t *testing.T) {
	m := MultiReader{
		staticReader{CloudServers: []CloudServer{{ID: "a"}}},
		nil,
		staticReader{CloudServers: []CloudServer{{ID: "b"}}, LANConnections: []LANConnection{{ID: "c"}}},
	}

	got, err := m.ReadLegacy(context.Background())
	if err != nil {
		t.Fatalf("ReadLegacy() error = %v", err)
	}
	if len(got.CloudServers) != 2 || got.CloudServers[1].ID != "b" {
		t.Errorf("CloudServers = %+v", got.CloudServers)
	}
	if len(got.LANConnections) != 1 {
		t.Errorf("LANConnections = %+v", got.LANConnections)
	}
}

func TestStripTemplateVariables(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"single", `key: {{A}}`, `key: ""`},
		{"multiple", `a: {{A}}, b: {{B_C}}`, `a: "", b: ""`},
		{"none", `key: value`, `key: value`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(stripTemplateVariables([]byte(tt.input))); got != tt.expected {
				t.Errorf("stripTemplateVariables() = %q, want %q", got, tt.expected)
			}
		})
	}
}
