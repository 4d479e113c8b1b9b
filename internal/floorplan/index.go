package floorplan

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Index provides id and name lookups over a node list.
//
// Nodes are keyed by id in declared order. Name lookups resolve to the first
// node declared with that name, so a plan with two rooms called "Lobby"
// always routes to the earlier one.
type Index struct {
	byID   *orderedmap.OrderedMap[NodeID, *Node]
	byName map[string]*Node
}

// NewIndex builds an index over nodes. The index points into the given
// slice; callers must not mutate it afterwards.
func NewIndex(nodes []Node) *Index {
	idx := &Index{
		byID:   orderedmap.New[NodeID, *Node](),
		byName: make(map[string]*Node, len(nodes)),
	}

	for i := range nodes {
		node := &nodes[i]
		if _, exists := idx.byID.Get(node.ID); !exists {
			idx.byID.Set(node.ID, node)
		}
		if _, exists := idx.byName[node.Name]; !exists {
			idx.byName[node.Name] = node
		}
	}

	return idx
}

// Len returns the number of distinct node ids.
func (idx *Index) Len() int {
	return idx.byID.Len()
}

// ByID returns the node with the given id, or nil if it does not exist.
func (idx *Index) ByID(id NodeID) *Node {
	node, _ := idx.byID.Get(id)
	return node
}

// ByName returns the first declared node with the given name, or nil.
func (idx *Index) ByName(name string) *Node {
	return idx.byName[name]
}

// IDs returns node ids in declared order.
func (idx *Index) IDs() []NodeID {
	ids := make([]NodeID, 0, idx.byID.Len())
	for pair := idx.byID.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}
