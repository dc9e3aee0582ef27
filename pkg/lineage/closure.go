package lineage

import (
	"maps"
	"slices"
)

type direction int

const (
	upstream direction = iota
	downstream
)

func (n *Node) direct(dir direction) *Bundle {
	if dir == upstream {
		return n.Upstream
	}
	return n.Downstream
}

func (n *Node) indirect(dir direction) *Bundle {
	if dir == upstream {
		return n.IndirectUpstream
	}
	return n.IndirectDownstream
}

// appendIndirect fills the indirect bundle of every node for one
// direction: all ids reachable through the direct neighbors' own
// same-direction edges. Each node's indirect bundle is written exactly
// once; direct edges are never touched here.
//
// An id reachable both directly and through a longer path is kept in both
// bundles. Consumers of the JSON artifact depend on that, so it is pinned
// by a test rather than subtracted away.
func appendIndirect(g *Graph, dir direction) {
	for _, kind := range kindOrder {
		part := g.kinds[kind]
		for _, name := range slices.Sorted(maps.Keys(part)) {
			node := part[name]

			seen := NewSet()
			for _, depID := range node.direct(dir).NodeDependencies.Items() {
				depNode := g.FindByID(depID)
				if depNode == nil {
					// Unresolvable ids are closure leaves.
					continue
				}
				collect(g, depNode, seen, dir)
			}

			bundle := node.indirect(dir)
			bundle.NodeDependencies = seen
			for _, id := range seen.Items() {
				reached := g.FindByID(id)
				if reached == nil {
					continue
				}
				if byType, ok := bundle.DependenciesByType[KindOf(id)]; ok {
					byType.Add(reached.Name)
				}
			}
		}
	}
}

// collect walks same-direction edges from start with an explicit work
// stack, accumulating every newly reached id into seen. The shared seen
// set makes the walk terminate even when the manifest graph contains a
// cycle: a re-encountered id is treated as already explored.
func collect(g *Graph, start *Node, seen *Set, dir direction) {
	stack := []*Node{start}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, depID := range node.direct(dir).NodeDependencies.Items() {
			if seen.Has(depID) {
				continue
			}
			seen.Add(depID)
			if depNode := g.FindByID(depID); depNode != nil {
				stack = append(stack, depNode)
			}
		}
	}
}
