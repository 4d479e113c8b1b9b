package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Benny93/wayfinder-go/internal/floorplan"
)

type memoryEntry struct {
	summary PlanSummary
	plan    *floorplan.FloorPlan
}

// MemoryBackend is an in-memory implementation of Backend for testing.
type MemoryBackend struct {
	mu          sync.RWMutex
	plans       map[string]memoryEntry
	initialized bool
	now         func() time.Time
}

// NewMemoryBackend creates a new in-memory storage backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		plans: make(map[string]memoryEntry),
		now:   time.Now,
	}
}

// Initialize implements Backend.
func (m *MemoryBackend) Initialize(path string, readOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
	return nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans = make(map[string]memoryEntry)
	m.initialized = false
	return nil
}

// IsInitialized returns true if the backend has been initialized.
func (m *MemoryBackend) IsInitialized() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialized
}

// SavePlan implements Backend. The plan is deep-copied.
func (m *MemoryBackend) SavePlan(ctx context.Context, plan *floorplan.FloorPlan, source string) (*PlanSummary, error) {
	if err := checkPlanName(plan.Name); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	summary := summarize(plan, source, m.now())
	m.plans[plan.Name] = memoryEntry{summary: *summary, plan: clonePlan(plan)}
	return summary, nil
}

// LoadPlan implements Backend.
func (m *MemoryBackend) LoadPlan(ctx context.Context, name string) (*floorplan.FloorPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.plans[name]
	if !ok {
		return nil, nil
	}
	return clonePlan(entry.plan), nil
}

// GetSummary implements Backend.
func (m *MemoryBackend) GetSummary(ctx context.Context, name string) (*PlanSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.plans[name]
	if !ok {
		return nil, nil
	}
	summary := entry.summary
	return &summary, nil
}

// DeletePlan implements Backend.
func (m *MemoryBackend) DeletePlan(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.plans[name]
	delete(m.plans, name)
	return ok, nil
}

// ListPlans implements Backend.
func (m *MemoryBackend) ListPlans(ctx context.Context) ([]PlanSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plans := make([]PlanSummary, 0, len(m.plans))
	for _, entry := range m.plans {
		plans = append(plans, entry.summary)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Name < plans[j].Name })
	return plans, nil
}

// SearchNodes implements Backend.
func (m *MemoryBackend) SearchNodes(ctx context.Context, plan, query string, limit int) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.plans[plan]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, plan)
	}
	return rankNodes(entry.plan.Nodes, query, limit), nil
}

func clonePlan(plan *floorplan.FloorPlan) *floorplan.FloorPlan {
	clone := *plan
	clone.Nodes = append([]floorplan.Node(nil), plan.Nodes...)
	clone.Edges = append([]floorplan.Edge(nil), plan.Edges...)
	clone.Markers = append([]floorplan.Marker(nil), plan.Markers...)
	return &clone
}
