package lineage

import (
	"fmt"
	"maps"
	"slices"

	"github.com/datablock-dev/dbt-ci/pkg/logging"
	"github.com/datablock-dev/dbt-ci/pkg/manifest"
)

// Build constructs the lineage map from a parsed manifest. The manifest is
// treated as an immutable snapshot; every run is a full rebuild.
//
// The child map drives node construction. An id whose kind is not one of
// the seven tracked kinds is skipped (newer dbt versions introduce resource
// categories this tool does not model). A tracked kind with no known detail
// section means the manifest schema itself is incompatible, which is an
// error. A single id missing from its detail section is skipped with a
// diagnostic.
func Build(m *manifest.Manifest) (*Graph, error) {
	g := newGraph(m.Metadata)

	for _, id := range sortedKeys(m.ChildMap) {
		kind := KindOf(id)
		if _, tracked := g.kinds[kind]; !tracked {
			continue
		}

		section, ok := sectionFor[kind]
		if !ok {
			return nil, fmt.Errorf("unknown resource kind %q found in manifest child map", kind)
		}

		res := m.Lookup(section, id)
		if res == nil {
			logging.Warn("resource not found in manifest section, skipping", "id", id, "section", section)
			continue
		}

		node := buildNode(m, id, res, m.ChildMap[id])
		g.kinds[kind][node.Name] = node

		appendDependsOn(node, res.DependsOn, m)
	}

	applyParentMap(g, m)
	appendIndirect(g, upstream)
	appendIndirect(g, downstream)

	return g, nil
}

// buildNode copies the identity, location and content fields out of the
// detail record and classifies the node's direct downstream edges.
func buildNode(m *manifest.Manifest, id string, res *manifest.Resource, children []string) *Node {
	columns := NewSet()
	for _, col := range slices.Sorted(maps.Keys(res.Columns)) {
		columns.Add(col)
	}

	node := &Node{
		Name:               res.Name,
		ID:                 id,
		Database:           res.Database,
		Schema:             res.Schema,
		ResourceType:       res.ResourceType,
		OriginalFilePath:   res.OriginalFilePath,
		CompiledPath:       res.CompiledPath,
		CompiledCode:       res.CompiledCode,
		Columns:            columns,
		Downstream:         newBundle(),
		Upstream:           newBundle(),
		IndirectUpstream:   newBundle(),
		IndirectDownstream: newBundle(),
	}

	node.Downstream.NodeDependencies.AddAll(children)
	for _, depID := range children {
		classify(node.Downstream, depID, m)
	}
	return node
}

// classify indexes a dependency id's name under its kind in the bundle's
// by-type map. Ids that fail to resolve stay in the raw id set only; the
// name index is best-effort by design.
func classify(b *Bundle, depID string, m *manifest.Manifest) {
	kind := KindOf(depID)
	section, ok := sectionFor[kind]
	if !ok {
		return
	}
	byType, ok := b.DependenciesByType[kind]
	if !ok {
		return
	}
	dep := m.Lookup(section, depID)
	if dep == nil || dep.Name == "" {
		return
	}
	byType.Add(dep.Name)
}

// appendDependsOn populates the upstream bundle from the resource's
// manifest-declared depends_on record. Both lists classify by their id
// prefix, so source ids in depends_on.nodes resolve against the sources
// section rather than the nodes section.
func appendDependsOn(node *Node, deps manifest.DependsOn, m *manifest.Manifest) {
	node.Upstream.NodeDependencies.AddAll(deps.Macros)
	for _, depID := range deps.Macros {
		classify(node.Upstream, depID, m)
	}

	node.Upstream.NodeDependencies.AddAll(deps.Nodes)
	for _, depID := range deps.Nodes {
		classify(node.Upstream, depID, m)
	}
}

// applyParentMap makes an independent pass over the manifest's reverse
// adjacency map and unions its edges into each node's upstream bundle.
// This pass is authoritative for upstream edges depends_on does not cover,
// such as source freshness relationships. An entry whose owning id cannot
// be resolved aborts that entry only.
func applyParentMap(g *Graph, m *manifest.Manifest) {
	for _, childID := range sortedKeys(m.ParentMap) {
		parents := m.ParentMap[childID]
		if len(parents) == 0 {
			continue
		}

		kind := KindOf(childID)
		section, ok := sectionFor[kind]
		if !ok {
			continue
		}
		res := m.Lookup(section, childID)
		if res == nil || res.Name == "" {
			logging.Warn("parent map entry not resolvable, skipping", "id", childID, "section", section)
			continue
		}
		node, ok := g.kinds[kind][res.Name]
		if !ok {
			logging.Warn("parent map entry has no graph node, skipping", "id", childID)
			continue
		}

		node.Upstream.NodeDependencies.AddAll(parents)
		for _, parentID := range parents {
			parentKind := KindOf(parentID)
			parentSection, ok := sectionFor[parentKind]
			if !ok {
				continue
			}
			parent := m.Lookup(parentSection, parentID)
			if parent == nil || parent.Name == "" {
				logging.Warn("parent id not resolvable, skipping", "id", parentID, "section", parentSection)
				continue
			}
			if byType, ok := node.Upstream.DependenciesByType[parentKind]; ok {
				byType.Add(parent.Name)
			}
		}
	}
}

func sortedKeys(m map[string][]string) []string {
	return slices.Sorted(maps.Keys(m))
}
