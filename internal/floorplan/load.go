package floorplan

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

var (
	resolvedSchemaOnce sync.Once
	resolvedSchema     *jsonschema.Resolved
	resolvedSchemaErr  error
)

// Schema returns the JSON Schema of an authored floor-plan document.
func Schema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"name":  {Type: "string"},
			"level": {Types: []string{"string", "integer"}},
			"nodes": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"id":       nodeIDSchema(),
						"name":     {Type: "string"},
						"position": vec3Schema(),
					},
					Required: []string{"id", "name", "position"},
				},
			},
			"edges": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"start":  nodeIDSchema(),
						"end":    nodeIDSchema(),
						"length": {Type: "number"},
						"directionality": {
							Type: "string",
							Enum: []any{string(Unidirectional), string(Bidirectional)},
						},
					},
					Required: []string{"start", "end", "length", "directionality"},
				},
			},
			"markers": {
				Type: "array",
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"position": vec3Schema(),
					},
					Required: []string{"position"},
				},
			},
		},
		Required: []string{"nodes", "edges"},
	}
}

// Resolve rejects a schema that reuses a subschema pointer, so every
// property gets its own copy.
func nodeIDSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Types: []string{"string", "integer"}}
}

func vec3Schema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "array",
		Items:    &jsonschema.Schema{Type: "number"},
		MinItems: intPtr(3),
		MaxItems: intPtr(3),
	}
}

func resolved() (*jsonschema.Resolved, error) {
	resolvedSchemaOnce.Do(func() {
		resolvedSchema, resolvedSchemaErr = Schema().Resolve(nil)
	})
	return resolvedSchema, resolvedSchemaErr
}

// document mirrors the authored JSON; level may be a number in older maps.
type document struct {
	Name    string          `json:"name"`
	Level   json.RawMessage `json:"level"`
	Nodes   []Node          `json:"nodes"`
	Edges   []Edge          `json:"edges"`
	Markers []Marker        `json:"markers"`
}

// Parse decodes and validates a floor-plan document. The plan is named
// after the document's "name" field, or defaultName when that is empty.
func Parse(data []byte, defaultName string) (*FloorPlan, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding floor plan: %w", err)
	}

	schema, err := resolved()
	if err != nil {
		return nil, fmt.Errorf("resolving floor plan schema: %w", err)
	}
	if err := schema.Validate(raw); err != nil {
		return nil, &ConfigurationError{Issues: []string{err.Error()}}
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding floor plan: %w", err)
	}

	if err := Validate(doc.Nodes, doc.Edges); err != nil {
		return nil, err
	}

	plan := &FloorPlan{
		Name:    doc.Name,
		Level:   levelString(doc.Level),
		Nodes:   doc.Nodes,
		Edges:   doc.Edges,
		Markers: doc.Markers,
	}
	if plan.Name == "" {
		plan.Name = defaultName
	}
	if plan.Name == "" {
		return nil, &ConfigurationError{Issues: []string{"floor plan has no name"}}
	}

	return plan, nil
}

// LoadFile reads and parses a floor-plan JSON file. The file base name
// without extension is the default plan name.
func LoadFile(path string) (*FloorPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	plan, err := Parse(data, PlanNameFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return plan, nil
}

// PlanNameFromPath derives a plan name from a file path.
func PlanNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func levelString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func intPtr(n int) *int {
	return &n
}
