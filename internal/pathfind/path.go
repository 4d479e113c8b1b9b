package pathfind

import (
	"github.com/Benny93/wayfinder-go/internal/floorplan"
)

// Segment is one entry of a Path: either a NodeStep or an EdgeStep.
type Segment interface {
	segment()
}

// NodeStep is a node visited by the path.
type NodeStep struct {
	Node floorplan.Node
}

// EdgeStep is an edge walked by the path, oriented in the direction of travel.
type EdgeStep struct {
	Edge floorplan.Edge
}

func (NodeStep) segment() {}
func (EdgeStep) segment() {}

// Path alternates NodeStep and EdgeStep, starting and ending with a node.
// Even indices hold nodes and odd indices hold edges; consumers that split
// by index parity depend on that layout.
//
// A nil Path means no route was found.
type Path []Segment

// Nodes returns the visited nodes in order.
func (p Path) Nodes() []floorplan.Node {
	nodes := make([]floorplan.Node, 0, (len(p)+1)/2)
	for _, seg := range p {
		if step, ok := seg.(NodeStep); ok {
			nodes = append(nodes, step.Node)
		}
	}
	return nodes
}

// Edges returns the walked edges in order.
func (p Path) Edges() []floorplan.Edge {
	edges := make([]floorplan.Edge, 0, len(p)/2)
	for _, seg := range p {
		if step, ok := seg.(EdgeStep); ok {
			edges = append(edges, step.Edge)
		}
	}
	return edges
}

// Split separates the path by index parity into its node and edge lists.
func (p Path) Split() ([]floorplan.Node, []floorplan.Edge) {
	return p.Nodes(), p.Edges()
}

// Length returns the summed length of every edge on the path.
func (p Path) Length() float64 {
	var total float64
	for _, edge := range p.Edges() {
		total += edge.Length
	}
	return total
}

// Items returns the path as an untyped list in parity order, for consumers
// that expect [node, edge, node, ..., node].
func (p Path) Items() []any {
	if p == nil {
		return nil
	}
	items := make([]any, len(p))
	for i, seg := range p {
		switch step := seg.(type) {
		case NodeStep:
			items[i] = step.Node
		case EdgeStep:
			items[i] = step.Edge
		}
	}
	return items
}

// Start returns the first node of the path.
func (p Path) Start() (floorplan.Node, bool) {
	if len(p) == 0 {
		return floorplan.Node{}, false
	}
	return p[0].(NodeStep).Node, true
}

// End returns the destination node of the path.
func (p Path) End() (floorplan.Node, bool) {
	if len(p) == 0 {
		return floorplan.Node{}, false
	}
	return p[len(p)-1].(NodeStep).Node, true
}
