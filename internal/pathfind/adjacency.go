// Package pathfind computes shortest walking paths over a floor plan.
//
// The search is Dijkstra's algorithm over an adjacency list built from the
// plan's edges. A bidirectional edge contributes a reverse arc carrying a
// reversed copy of the edge, so a returned path always reports edges in the
// direction they were walked. Results alternate node, edge, node, ..., node.
package pathfind

import (
	"github.com/Benny93/wayfinder-go/internal/floorplan"
)

// Arc is one traversable direction of an edge.
type Arc struct {
	Target floorplan.NodeID
	Weight float64

	// Edge is oriented in the direction of travel.
	Edge floorplan.Edge
}

// Adjacency maps a node id to its outgoing arcs in declared edge order.
type Adjacency map[floorplan.NodeID][]Arc

// BuildAdjacency derives the arc lists for edges. It is pure: the same edge
// list always yields the same structure.
func BuildAdjacency(edges []floorplan.Edge) Adjacency {
	adj := make(Adjacency)
	for _, edge := range edges {
		adj[edge.Start] = append(adj[edge.Start], Arc{
			Target: edge.End,
			Weight: edge.Length,
			Edge:   edge,
		})
		if edge.Directionality == floorplan.Bidirectional {
			adj[edge.End] = append(adj[edge.End], Arc{
				Target: edge.Start,
				Weight: edge.Length,
				Edge:   edge.Reversed(),
			})
		}
	}
	return adj
}
