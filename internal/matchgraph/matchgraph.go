// Package matchgraph renders a match set as a lattice graph: every matched
// function is a node and every match an edge from source to destination.
package matchgraph

import (
	"fmt"

	"github.com/zboralski/lattice"
	"github.com/zboralski/lattice/render"

	"patchdiff/internal/correlate"
	"patchdiff/internal/program"
)

// SourceNode and DestinationNode name the graph nodes of a function.
func SourceNode(fn program.Function) string {
	return fmt.Sprintf("src:%s@0x%x", fn.Name(), fn.Address())
}

func DestinationNode(fn program.Function) string {
	return fmt.Sprintf("dst:%s@0x%x", fn.Name(), fn.Address())
}

// Build constructs a lattice.Graph from matches. Nodes appear in first-use
// order; a function shared by several matches is a single node.
func Build(matches correlate.MatchSet) *lattice.Graph {
	g := &lattice.Graph{}
	seen := make(map[string]bool)
	addNode := func(n string) {
		if !seen[n] {
			seen[n] = true
			g.Nodes = append(g.Nodes, n)
		}
	}
	for _, m := range matches {
		src, dst := SourceNode(m.Source), DestinationNode(m.Destination)
		addNode(src)
		addNode(dst)
		g.Edges = append(g.Edges, lattice.Edge{Caller: src, Callee: dst})
	}
	g.Dedup()
	return g
}

// DOT renders matches as Graphviz DOT.
func DOT(matches correlate.MatchSet, title string) string {
	return render.DOT(Build(matches), title)
}
