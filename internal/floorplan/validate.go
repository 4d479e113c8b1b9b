package floorplan

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrMalformedGraph is matched by every ConfigurationError.
var ErrMalformedGraph = errors.New("malformed floor plan graph")

// ConfigurationError lists every problem found while validating a plan.
type ConfigurationError struct {
	Issues []string
}

func (e *ConfigurationError) Error() string {
	if len(e.Issues) == 1 {
		return "invalid floor plan: " + e.Issues[0]
	}
	return fmt.Sprintf("invalid floor plan (%d issues): %s", len(e.Issues), strings.Join(e.Issues, "; "))
}

// Is makes errors.Is(err, ErrMalformedGraph) true.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrMalformedGraph
}

// Validate checks the graph invariants the pathfinder relies on: node ids
// are present and unique, every edge endpoint exists, and edge lengths are
// finite and non-negative.
func Validate(nodes []Node, edges []Edge) error {
	var issues []string

	ids := make(map[NodeID]struct{}, len(nodes))
	for i, node := range nodes {
		if node.ID == "" {
			issues = append(issues, fmt.Sprintf("node #%d has an empty id", i))
			continue
		}
		if _, dup := ids[node.ID]; dup {
			issues = append(issues, fmt.Sprintf("duplicate node id %q", node.ID))
			continue
		}
		ids[node.ID] = struct{}{}
	}

	for i, edge := range edges {
		label := edgeLabel(i, edge)
		if _, ok := ids[edge.Start]; !ok {
			issues = append(issues, fmt.Sprintf("%s references missing start node %q", label, edge.Start))
		}
		if _, ok := ids[edge.End]; !ok {
			issues = append(issues, fmt.Sprintf("%s references missing end node %q", label, edge.End))
		}
		if math.IsNaN(edge.Length) || math.IsInf(edge.Length, 0) {
			issues = append(issues, fmt.Sprintf("%s has non-finite length", label))
		} else if edge.Length < 0 {
			issues = append(issues, fmt.Sprintf("%s has negative length %g", label, edge.Length))
		}
		if !edge.Directionality.Valid() {
			issues = append(issues, fmt.Sprintf("%s has unknown directionality %q", label, edge.Directionality))
		}
	}

	if len(issues) > 0 {
		return &ConfigurationError{Issues: issues}
	}
	return nil
}

// DuplicateNames returns names shared by more than one node, in the order
// their second occurrence is declared.
func DuplicateNames(nodes []Node) []string {
	seen := make(map[string]int, len(nodes))
	var dupes []string
	for _, node := range nodes {
		seen[node.Name]++
		if seen[node.Name] == 2 {
			dupes = append(dupes, node.Name)
		}
	}
	return dupes
}

func edgeLabel(i int, edge Edge) string {
	if edge.ID != "" {
		return fmt.Sprintf("edge %q", edge.ID)
	}
	return fmt.Sprintf("edge #%d (%s->%s)", i, edge.Start, edge.End)
}
