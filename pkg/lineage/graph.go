package lineage

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
)

// Kind is a dbt resource kind, the first segment of a resource id
// (e.g. "model" in "model.myproj.orders").
type Kind string

const (
	KindModel    Kind = "model"
	KindSeed     Kind = "seed"
	KindSnapshot Kind = "snapshot"
	KindTest     Kind = "test"
	KindMacro    Kind = "macro"
	KindExposure Kind = "exposure"
	KindSource   Kind = "source"
)

// kindOrder pins the iteration order of the kind partitions. Name lookups
// are first-match-wins across this order, so it is part of the contract.
var kindOrder = []Kind{
	KindModel,
	KindSeed,
	KindSnapshot,
	KindTest,
	KindMacro,
	KindExposure,
	KindSource,
}

// sectionFor maps a resource kind to the manifest section holding its
// detail records. A recognized kind missing from this map means the
// manifest schema is incompatible with this tool.
var sectionFor = map[Kind]string{
	KindModel:    "nodes",
	KindSeed:     "nodes",
	KindSnapshot: "nodes",
	KindTest:     "nodes",
	KindMacro:    "macros",
	KindExposure: "exposures",
	KindSource:   "sources",
}

// KindOf derives the resource kind from an id's leading segment.
func KindOf(id string) Kind {
	name, _, _ := strings.Cut(id, ".")
	return Kind(name)
}

// Bundle is one dependency bundle: the raw id set plus a best-effort
// name index partitioned by kind. Ids that do not resolve against the
// manifest stay in NodeDependencies but are absent from the index.
type Bundle struct {
	NodeDependencies   *Set          `json:"node_dependencies"`
	DependenciesByType map[Kind]*Set `json:"dependencies_by_type"`
}

func newBundle() *Bundle {
	byType := make(map[Kind]*Set, len(kindOrder))
	for _, k := range kindOrder {
		byType[k] = NewSet()
	}
	return &Bundle{
		NodeDependencies:   NewSet(),
		DependenciesByType: byType,
	}
}

// Node is one resource in the lineage map.
type Node struct {
	Name             string  `json:"name"`
	ID               string  `json:"id"`
	Database         string  `json:"database"`
	Schema           string  `json:"schema"`
	ResourceType     string  `json:"resource_type"`
	OriginalFilePath string  `json:"original_file_path"`
	CompiledPath     string  `json:"compiled_path"`
	CompiledCode     *string `json:"compiled_code"`
	Columns          *Set    `json:"columns"`

	Downstream         *Bundle `json:"downstream_dependencies"`
	Upstream           *Bundle `json:"upstream_dependencies"`
	IndirectUpstream   *Bundle `json:"indirect_upstream_dependencies"`
	IndirectDownstream *Bundle `json:"indirect_downstream_dependencies"`
}

// Graph is the lineage map: one partition of nodes per resource kind,
// keyed by resource name, plus the manifest metadata carried through
// verbatim. It is built once and never mutated afterwards.
type Graph struct {
	Metadata map[string]any
	kinds    map[Kind]map[string]*Node
}

func newGraph(metadata map[string]any) *Graph {
	if metadata == nil {
		metadata = map[string]any{}
	}
	kinds := make(map[Kind]map[string]*Node, len(kindOrder))
	for _, k := range kindOrder {
		kinds[k] = make(map[string]*Node)
	}
	return &Graph{Metadata: metadata, kinds: kinds}
}

// Partition returns the nodes of one kind, keyed by name.
func (g *Graph) Partition(kind Kind) map[string]*Node {
	return g.kinds[kind]
}

// Len returns the total node count over all partitions.
func (g *Graph) Len() int {
	n := 0
	for _, part := range g.kinds {
		n += len(part)
	}
	return n
}

// Walk visits every node, partitions in the pinned kind order and nodes
// in name order within a partition.
func (g *Graph) Walk(fn func(*Node)) {
	for _, k := range kindOrder {
		part := g.kinds[k]
		for _, name := range slices.Sorted(maps.Keys(part)) {
			fn(part[name])
		}
	}
}

// GetNode looks a node up by name across all kind partitions, returning
// the first match in the pinned kind order. Names are only unique within
// a kind, so callers needing an exact resource should use FindByID.
func (g *Graph) GetNode(name string) *Node {
	for _, k := range kindOrder {
		if n, ok := g.kinds[k][name]; ok {
			return n
		}
	}
	return nil
}

// GetNodes is the bulk form of GetNode. Returns nil when no name matched.
func (g *Graph) GetNodes(names []string) map[string]*Node {
	found := make(map[string]*Node)
	for _, name := range names {
		if n := g.GetNode(name); n != nil {
			found[name] = n
		}
	}
	if len(found) == 0 {
		return nil
	}
	return found
}

// FindByID resolves a full resource id to its node. The search is scoped
// to the kind derived from the id prefix.
func (g *Graph) FindByID(id string) *Node {
	part, ok := g.kinds[KindOf(id)]
	if !ok {
		return nil
	}
	for _, n := range part {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// MarshalJSON mirrors the external artifact layout: metadata plus one
// top-level object per resource kind.
func (g *Graph) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(kindOrder)+1)
	doc["metadata"] = g.Metadata
	for _, k := range kindOrder {
		doc[string(k)] = g.kinds[k]
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads a serialized graph artifact back.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*g = *newGraph(nil)
	if raw, ok := doc["metadata"]; ok {
		if err := json.Unmarshal(raw, &g.Metadata); err != nil {
			return fmt.Errorf("decoding metadata: %w", err)
		}
	}
	for _, k := range kindOrder {
		raw, ok := doc[string(k)]
		if !ok {
			continue
		}
		part := make(map[string]*Node)
		if err := json.Unmarshal(raw, &part); err != nil {
			return fmt.Errorf("decoding %s partition: %w", k, err)
		}
		g.kinds[k] = part
	}
	return nil
}

// WriteJSON serializes the graph to an indented JSON file.
func (g *Graph) WriteJSON(path string) error {
	data, err := json.MarshalIndent(g, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding graph: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing graph to %s: %w", path, err)
	}
	return nil
}
