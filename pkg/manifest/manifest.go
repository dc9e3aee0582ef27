package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DependsOn holds a resource's manifest-declared direct dependencies,
// split the way dbt records them: macro ids and everything-else ids.
type DependsOn struct {
	Macros []string `json:"macros"`
	Nodes  []string `json:"nodes"`
}

// Column is a column definition attached to a resource
type Column struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	DataType    string `json:"data_type"`
}

// Resource is the detail record for a single manifest entry. The same shape
// covers nodes, macros, sources and exposures; fields a category does not
// carry simply decode to their zero value.
type Resource struct {
	Name             string            `json:"name"`
	UniqueID         string            `json:"unique_id"`
	Database         string            `json:"database"`
	Schema           string            `json:"schema"`
	ResourceType     string            `json:"resource_type"`
	PackageName      string            `json:"package_name"`
	OriginalFilePath string            `json:"original_file_path"`
	CompiledPath     string            `json:"compiled_path"`
	CompiledCode     *string           `json:"compiled_code"`
	Columns          map[string]Column `json:"columns"`
	DependsOn        DependsOn         `json:"depends_on"`
}

// Manifest is the parsed form of dbt's target/manifest.json. Only the
// sections the lineage map consumes are decoded; metadata is carried
// through opaquely.
type Manifest struct {
	Metadata  map[string]any       `json:"metadata"`
	Nodes     map[string]*Resource `json:"nodes"`
	Macros    map[string]*Resource `json:"macros"`
	Sources   map[string]*Resource `json:"sources"`
	Exposures map[string]*Resource `json:"exposures"`
	ParentMap map[string][]string  `json:"parent_map"`
	ChildMap  map[string][]string  `json:"child_map"`
}

// Section returns the detail map with the given manifest section name
// ("nodes", "macros", "sources" or "exposures"), or nil for anything else.
func (m *Manifest) Section(name string) map[string]*Resource {
	switch name {
	case "nodes":
		return m.Nodes
	case "macros":
		return m.Macros
	case "sources":
		return m.Sources
	case "exposures":
		return m.Exposures
	}
	return nil
}

// Lookup resolves a resource id within a named section. Returns nil when
// either the section or the id is unknown.
func (m *Manifest) Lookup(section, id string) *Resource {
	s := m.Section(section)
	if s == nil {
		return nil
	}
	return s[id]
}

// Load reads and parses target/manifest.json under the given dbt project
// directory. A missing manifest is an error; the caller decides whether
// that aborts the run.
func Load(projectDir string) (*Manifest, error) {
	path := filepath.Join(projectDir, "target", "manifest.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest.json not found in %s/target", projectDir)
		}
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if m.Metadata == nil {
		m.Metadata = map[string]any{}
	}
	return &m, nil
}
