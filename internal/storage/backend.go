// Package storage provides the floor-plan catalogue for Wayfinder.
//
// It defines the Backend interface that all storage implementations must
// satisfy, along with the summary and search types shared across backends.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Benny93/wayfinder-go/internal/floorplan"
)

// ErrPlanNotFound is returned by callers that require a stored plan.
var ErrPlanNotFound = errors.New("floor plan not found")

// PlanSummary describes a stored floor plan without its graph.
type PlanSummary struct {
	// Name is the unique key of the plan.
	Name string `json:"name"`

	// Level is the floor label, if the document carried one.
	Level string `json:"level,omitempty"`

	// Source is the file the plan was imported from.
	Source string `json:"source,omitempty"`

	Nodes   int `json:"nodes"`
	Edges   int `json:"edges"`
	Markers int `json:"markers"`

	// ImportedAt changes on every save; caches key on it.
	ImportedAt time.Time `json:"imported_at"`
}

// SearchResult is a node matching a name search.
type SearchResult struct {
	// NodeID is the id of the matching node.
	NodeID floorplan.NodeID `json:"node_id"`

	// NodeName is the name of the node.
	NodeName string `json:"node_name"`

	// Score is the relevance score (higher is better).
	Score float64 `json:"score"`
}

// Backend defines the interface for floor-plan storage.
//
// Implementations must be thread-safe and support concurrent access.
type Backend interface {
	// Lifecycle methods

	// Initialize opens or creates the storage backend at the given path.
	// If readOnly is true, the backend is opened in read-only mode.
	Initialize(path string, readOnly bool) error

	// Close releases all resources held by the backend.
	Close() error

	// Plan operations

	// SavePlan stores plan, replacing any previous plan with the same name.
	SavePlan(ctx context.Context, plan *floorplan.FloorPlan, source string) (*PlanSummary, error)

	// LoadPlan returns the plan with the given name, or nil if not found.
	LoadPlan(ctx context.Context, name string) (*floorplan.FloorPlan, error)

	// GetSummary returns the summary of a plan, or nil if not found.
	GetSummary(ctx context.Context, name string) (*PlanSummary, error)

	// DeletePlan removes a plan. Returns false if it did not exist.
	DeletePlan(ctx context.Context, name string) (bool, error)

	// ListPlans returns every stored plan summary ordered by name.
	ListPlans(ctx context.Context) ([]PlanSummary, error)

	// Search

	// SearchNodes ranks the nodes of a plan by how well their names match query.
	SearchNodes(ctx context.Context, plan, query string, limit int) ([]SearchResult, error)
}

// checkPlanName rejects names that would break key prefixes.
func checkPlanName(name string) error {
	if name == "" {
		return fmt.Errorf("plan name must not be empty")
	}
	if strings.ContainsAny(name, ":\x00") {
		return fmt.Errorf("plan name %q must not contain ':'", name)
	}
	return nil
}

func summarize(plan *floorplan.FloorPlan, source string, now time.Time) *PlanSummary {
	return &PlanSummary{
		Name:       plan.Name,
		Level:      plan.Level,
		Source:     source,
		Nodes:      len(plan.Nodes),
		Edges:      len(plan.Edges),
		Markers:    len(plan.Markers),
		ImportedAt: now.UTC(),
	}
}
