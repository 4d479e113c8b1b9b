// Package floorplan provides the floor-plan data model for Wayfinder.
//
// It defines the nodes, edges and AR markers that describe one floor of a
// building, along with loading and validation of the static JSON
// description those plans are authored in.
package floorplan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// NodeID identifies a node within a floor plan.
//
// Authored maps use either integers or strings for ids; both decode to the
// same NodeID, so 1340 and "1340" refer to one node.
type NodeID string

// UnmarshalJSON accepts a JSON string or number.
func (id *NodeID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = NodeID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("node id must be a string or number: %w", err)
	}
	*id = NodeID(n.String())
	return nil
}

// MarshalJSON writes canonical integer ids as numbers and everything else,
// including "007" and "+5", as strings.
func (id NodeID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Vec3 is a position in the floor plan's local coordinate frame.
type Vec3 [3]float64

// Directionality is the traversal policy of an edge.
type Directionality string

const (
	Unidirectional Directionality = "unidirectional"
	Bidirectional  Directionality = "bidirectional"
)

// Valid reports whether d is one of the known policies.
func (d Directionality) Valid() bool {
	return d == Unidirectional || d == Bidirectional
}

// Node is a named point of the floor plan.
type Node struct {
	// ID is unique within the plan and stable for its lifetime.
	ID NodeID `json:"id"`

	// Name is the human-readable label used for start/destination lookup.
	// Names are not required to be unique.
	Name string `json:"name"`

	// Position is the node location in meters.
	Position Vec3 `json:"position"`

	// Properties holds display metadata the pathfinder ignores.
	Properties map[string]any `json:"properties,omitempty"`
}

// Edge is a weighted connection between two nodes.
type Edge struct {
	// ID is optional; authored maps often leave it out.
	ID string `json:"id,omitempty"`

	// Start is the id of the node the edge leaves from.
	Start NodeID `json:"start"`

	// End is the id of the node the edge arrives at.
	End NodeID `json:"end"`

	// Length is the physical distance in meters.
	Length float64 `json:"length"`

	// Directionality decides whether End -> Start is traversable too.
	Directionality Directionality `json:"directionality"`
}

// Reversed returns a copy of the edge oriented End -> Start.
func (e Edge) Reversed() Edge {
	e.Start, e.End = e.End, e.Start
	return e
}

// Marker is an image-tracking anchor placed in the floor plan.
type Marker struct {
	ID          string    `json:"id,omitempty"`
	Name        string    `json:"name,omitempty"`
	Position    Vec3      `json:"position"`
	Orientation []float64 `json:"orientation,omitempty"`
}

// FloorPlan owns every node, edge and marker of one floor.
// Nodes and edges keep their declared order.
type FloorPlan struct {
	Name    string   `json:"name,omitempty"`
	Level   string   `json:"level,omitempty"`
	Nodes   []Node   `json:"nodes"`
	Edges   []Edge   `json:"edges"`
	Markers []Marker `json:"markers,omitempty"`
}

// Stats returns a summary of plan size.
func (p *FloorPlan) Stats() map[string]int {
	return map[string]int{
		"nodes":   len(p.Nodes),
		"edges":   len(p.Edges),
		"markers": len(p.Markers),
	}
}
