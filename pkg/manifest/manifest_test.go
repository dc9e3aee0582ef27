package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir string, m map[string]any) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(dir, "target"), 0o755); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "target", "manifest.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, map[string]any{
		"metadata": map[string]any{"project_name": "proj"},
		"nodes": map[string]any{
			"model.proj.orders": map[string]any{
				"name":          "orders",
				"unique_id":     "model.proj.orders",
				"resource_type": "model",
				"schema":        "analytics",
				"depends_on": map[string]any{
					"macros": []string{"macro.dbt.ref"},
					"nodes":  []string{"source.proj.raw.orders"},
				},
			},
		},
		"sources": map[string]any{
			"source.proj.raw.orders": map[string]any{
				"name":          "orders",
				"unique_id":     "source.proj.raw.orders",
				"resource_type": "source",
			},
		},
		"child_map":  map[string][]string{"source.proj.raw.orders": {"model.proj.orders"}},
		"parent_map": map[string][]string{"model.proj.orders": {"source.proj.raw.orders"}},
	})

	m, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	r := m.Lookup("nodes", "model.proj.orders")
	if r == nil {
		t.Fatal("model.proj.orders not found in nodes section")
	}
	if r.Schema != "analytics" || r.ResourceType != "model" {
		t.Errorf("resource decoded wrong: %+v", r)
	}
	if len(r.DependsOn.Macros) != 1 || r.DependsOn.Macros[0] != "macro.dbt.ref" {
		t.Errorf("depends_on.macros = %v", r.DependsOn.Macros)
	}
	if got := m.ChildMap["source.proj.raw.orders"]; len(got) != 1 || got[0] != "model.proj.orders" {
		t.Errorf("child_map = %v", got)
	}
}

func TestLoadMissingManifest(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(dir)
	if err == nil {
		t.Fatal("expected an error for a project without target/manifest.json")
	}
	if !strings.Contains(err.Error(), "manifest.json not found") {
		t.Errorf("error = %v, want a manifest-not-found message", err)
	}
}

func TestLoadMalformedManifest(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "target"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "target", "manifest.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestSection(t *testing.T) {
	m := &Manifest{
		Nodes:     map[string]*Resource{"model.p.a": {}},
		Macros:    map[string]*Resource{"macro.p.m": {}},
		Sources:   map[string]*Resource{"source.p.s.t": {}},
		Exposures: map[string]*Resource{"exposure.p.e": {}},
	}
	tests := []struct {
		section string
		id      string
		found   bool
	}{
		{"nodes", "model.p.a", true},
		{"macros", "macro.p.m", true},
		{"sources", "source.p.s.t", true},
		{"exposures", "exposure.p.e", true},
		{"nodes", "model.p.missing", false},
		{"widgets", "model.p.a", false},
	}
	for _, tt := range tests {
		got := m.Lookup(tt.section, tt.id)
		if (got != nil) != tt.found {
			t.Errorf("Lookup(%q, %q) found=%v, want %v", tt.section, tt.id, got != nil, tt.found)
		}
	}
	if m.Section("widgets") != nil {
		t.Error("unknown section name must return nil")
	}
}
