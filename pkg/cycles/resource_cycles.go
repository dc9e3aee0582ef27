// Package cycles reports circular resource dependencies in a lineage map.
// dbt compiles only acyclic projects, so a cycle here points at a corrupt
// or hand-edited manifest. The closure pass tolerates cycles either way;
// this check exists to warn, not to gate.
package cycles

import (
	"gonum.org/v1/gonum/graph/simple"

	"github.com/datablock-dev/dbt-ci/pkg/lineage"
)

// ResourceCycle is one circular dependency, as resource ids.
type ResourceCycle struct {
	IDs []string
}

// FindResourceCycles runs Tarjan's SCC over the direct downstream edges of
// the lineage map and returns every component of more than one resource.
func FindResourceCycles(g *lineage.Graph) []ResourceCycle {
	dg := simple.NewDirectedGraph()
	ids := make(map[string]int64)
	byID := make(map[int64]string)
	next := int64(0)

	addNode := func(id string) int64 {
		if gid, ok := ids[id]; ok {
			return gid
		}
		gid := next
		next++
		ids[id] = gid
		byID[gid] = id
		dg.AddNode(simple.Node(gid))
		return gid
	}

	var selfLoops []ResourceCycle
	g.Walk(func(node *lineage.Node) {
		from := addNode(node.ID)
		for _, depID := range node.Downstream.NodeDependencies.Items() {
			if depID == node.ID {
				// Simple graphs cannot hold self-loops; report directly.
				selfLoops = append(selfLoops, ResourceCycle{IDs: []string{node.ID}})
				continue
			}
			to := addNode(depID)
			if !dg.HasEdgeFromTo(from, to) {
				dg.SetEdge(dg.NewEdge(dg.Node(from), dg.Node(to)))
			}
		}
	})

	sccs := NewTarjanSCC(dg).FindSCCs()

	cycles := append([]ResourceCycle(nil), selfLoops...)
	for _, scc := range sccs {
		cycle := ResourceCycle{IDs: make([]string, 0, len(scc))}
		for _, gid := range scc {
			cycle.IDs = append(cycle.IDs, byID[gid])
		}
		cycles = append(cycles, cycle)
	}
	return cycles
}
