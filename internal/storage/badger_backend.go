package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/Benny93/wayfinder-go/internal/floorplan"
)

// Key prefixes for different data types
const (
	prefixPlan   = "p:" // plan summary
	prefixNode   = "n:" // n:<plan>:<seq> -> node
	prefixEdge   = "e:" // e:<plan>:<seq> -> edge
	prefixMarker = "m:" // m:<plan>:<seq> -> marker
)

// BadgerBackend is a BadgerDB-backed storage implementation.
type BadgerBackend struct {
	db          *badger.DB
	initialized bool
	mu          sync.RWMutex
	now         func() time.Time
}

// NewBadgerBackend creates a new BadgerDB backend.
func NewBadgerBackend() *BadgerBackend {
	return &BadgerBackend{now: time.Now}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (b *BadgerBackend) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	var err error
	b.db, err = badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}

	b.initialized = true
	return nil
}

// Close releases all resources held by the backend.
func (b *BadgerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}

	err := b.db.Close()
	b.db = nil
	b.initialized = false
	return err
}

// SavePlan stores plan in a single transaction, replacing every key of a
// previous plan with the same name.
func (b *BadgerBackend) SavePlan(ctx context.Context, plan *floorplan.FloorPlan, source string) (*PlanSummary, error) {
	if err := checkPlanName(plan.Name); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	summary := summarize(plan, source, b.now())

	err := b.db.Update(func(txn *badger.Txn) error {
		if err := deletePlanKeys(txn, plan.Name); err != nil {
			return err
		}

		if err := setJSON(txn, planKey(plan.Name), summary); err != nil {
			return fmt.Errorf("setting plan summary: %w", err)
		}
		for i, node := range plan.Nodes {
			if err := setJSON(txn, seqKey(prefixNode, plan.Name, i), node); err != nil {
				return fmt.Errorf("setting node %s: %w", node.ID, err)
			}
		}
		for i, edge := range plan.Edges {
			if err := setJSON(txn, seqKey(prefixEdge, plan.Name, i), edge); err != nil {
				return fmt.Errorf("setting edge #%d: %w", i, err)
			}
		}
		for i, marker := range plan.Markers {
			if err := setJSON(txn, seqKey(prefixMarker, plan.Name, i), marker); err != nil {
				return fmt.Errorf("setting marker #%d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("saving plan %q: %w", plan.Name, err)
	}

	return summary, nil
}

// LoadPlan returns the plan with the given name, or nil if not found.
// Nodes, edges and markers come back in declared order.
func (b *BadgerBackend) LoadPlan(ctx context.Context, name string) (*floorplan.FloorPlan, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var plan *floorplan.FloorPlan
	err := b.db.View(func(txn *badger.Txn) error {
		summary, err := getSummary(txn, name)
		if err != nil || summary == nil {
			return err
		}

		plan = &floorplan.FloorPlan{
			Name:    summary.Name,
			Level:   summary.Level,
			Nodes:   make([]floorplan.Node, 0, summary.Nodes),
			Edges:   make([]floorplan.Edge, 0, summary.Edges),
			Markers: make([]floorplan.Marker, 0, summary.Markers),
		}

		if err := scanPrefix(txn, planPrefix(prefixNode, name), func(val []byte) error {
			var node floorplan.Node
			if err := json.Unmarshal(val, &node); err != nil {
				return fmt.Errorf("unmarshaling node: %w", err)
			}
			plan.Nodes = append(plan.Nodes, node)
			return nil
		}); err != nil {
			return err
		}

		if err := scanPrefix(txn, planPrefix(prefixEdge, name), func(val []byte) error {
			var edge floorplan.Edge
			if err := json.Unmarshal(val, &edge); err != nil {
				return fmt.Errorf("unmarshaling edge: %w", err)
			}
			plan.Edges = append(plan.Edges, edge)
			return nil
		}); err != nil {
			return err
		}

		return scanPrefix(txn, planPrefix(prefixMarker, name), func(val []byte) error {
			var marker floorplan.Marker
			if err := json.Unmarshal(val, &marker); err != nil {
				return fmt.Errorf("unmarshaling marker: %w", err)
			}
			plan.Markers = append(plan.Markers, marker)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("loading plan %q: %w", name, err)
	}

	return plan, nil
}

// GetSummary returns the summary of a plan, or nil if not found.
func (b *BadgerBackend) GetSummary(ctx context.Context, name string) (*PlanSummary, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var summary *PlanSummary
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		summary, err = getSummary(txn, name)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("getting plan summary: %w", err)
	}
	return summary, nil
}

// DeletePlan removes a plan and all of its nodes, edges and markers.
func (b *BadgerBackend) DeletePlan(ctx context.Context, name string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	existed := false
	err := b.db.Update(func(txn *badger.Txn) error {
		summary, err := getSummary(txn, name)
		if err != nil {
			return err
		}
		existed = summary != nil
		if !existed {
			return nil
		}
		return deletePlanKeys(txn, name)
	})
	if err != nil {
		return false, fmt.Errorf("deleting plan %q: %w", name, err)
	}
	return existed, nil
}

// ListPlans returns every stored plan summary ordered by name.
func (b *BadgerBackend) ListPlans(ctx context.Context) ([]PlanSummary, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var plans []PlanSummary
	err := b.db.View(func(txn *badger.Txn) error {
		return scanPrefix(txn, []byte(prefixPlan), func(val []byte) error {
			var summary PlanSummary
			if err := json.Unmarshal(val, &summary); err != nil {
				return fmt.Errorf("unmarshaling plan summary: %w", err)
			}
			plans = append(plans, summary)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}

	sort.Slice(plans, func(i, j int) bool { return plans[i].Name < plans[j].Name })
	return plans, nil
}

// SearchNodes ranks the nodes of a plan by name match.
func (b *BadgerBackend) SearchNodes(ctx context.Context, planName, query string, limit int) ([]SearchResult, error) {
	plan, err := b.LoadPlan(ctx, planName)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, planName)
	}
	return rankNodes(plan.Nodes, query, limit), nil
}

// Key helpers

func planKey(name string) []byte {
	return []byte(prefixPlan + name)
}

func planPrefix(prefix, name string) []byte {
	return []byte(prefix + name + ":")
}

// seqKey zero-pads the sequence so key order equals declared order.
func seqKey(prefix, name string, seq int) []byte {
	return []byte(fmt.Sprintf("%s%s:%08d", prefix, name, seq))
}

func setJSON(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

func getSummary(txn *badger.Txn, name string) (*PlanSummary, error) {
	item, err := txn.Get(planKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting plan summary: %w", err)
	}

	var summary PlanSummary
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &summary)
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling plan summary: %w", err)
	}
	return &summary, nil
}

// scanPrefix calls fn with every value under prefix in key order.
func scanPrefix(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

// deletePlanKeys removes the summary and every sequenced key of a plan.
func deletePlanKeys(txn *badger.Txn, name string) error {
	var keys [][]byte
	for _, prefix := range []string{prefixNode, prefixEdge, prefixMarker} {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = planPrefix(prefix, name)
		it := txn.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()
	}
	keys = append(keys, planKey(name))

	for _, key := range keys {
		if err := txn.Delete(key); err != nil {
			return fmt.Errorf("deleting key: %w", err)
		}
	}
	return nil
}
