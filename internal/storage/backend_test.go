package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/wayfinder-go/internal/floorplan"
)

func samplePlan(name string) *floorplan.FloorPlan {
	return &floorplan.FloorPlan{
		Name:  name,
		Level: "3",
		Nodes: []floorplan.Node{
			{ID: "1340", Name: "3F Entrance", Position: floorplan.Vec3{0, 0, 0}},
			{ID: "1341", Name: "Corridor", Position: floorplan.Vec3{4, 0, 0}},
			{ID: "1342", Name: "3F Elevator", Position: floorplan.Vec3{4, 0, 6}},
		},
		Edges: []floorplan.Edge{
			{Start: "1340", End: "1341", Length: 4, Directionality: floorplan.Bidirectional},
			{Start: "1341", End: "1342", Length: 6, Directionality: floorplan.Unidirectional},
		},
		Markers: []floorplan.Marker{
			{ID: "m1", Name: "lobby", Position: floorplan.Vec3{0, 1.5, 0}},
		},
	}
}

// backendFactories returns every Backend implementation, initialized.
func backendFactories() map[string]func(t *testing.T) Backend {
	return map[string]func(t *testing.T) Backend{
		"Memory": func(t *testing.T) Backend {
			backend := NewMemoryBackend()
			require.NoError(t, backend.Initialize("", false))
			return backend
		},
		"Badger": func(t *testing.T) Backend {
			backend := NewBadgerBackend()
			require.NoError(t, backend.Initialize(filepath.Join(t.TempDir(), "badger"), false))
			t.Cleanup(func() { _ = backend.Close() })
			return backend
		},
	}
}

func TestBackends(t *testing.T) {
	t.Parallel()

	for name, factory := range backendFactories() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			t.Run("SaveAndLoad", func(t *testing.T) {
				backend := factory(t)
				plan := samplePlan("third")

				summary, err := backend.SavePlan(ctx, plan, "plans/third.json")
				require.NoError(t, err)
				assert.Equal(t, "third", summary.Name)
				assert.Equal(t, "3", summary.Level)
				assert.Equal(t, "plans/third.json", summary.Source)
				assert.Equal(t, 3, summary.Nodes)
				assert.Equal(t, 2, summary.Edges)
				assert.Equal(t, 1, summary.Markers)
				assert.False(t, summary.ImportedAt.IsZero())

				loaded, err := backend.LoadPlan(ctx, "third")
				require.NoError(t, err)
				require.NotNil(t, loaded)
				assert.Equal(t, plan.Nodes, loaded.Nodes)
				assert.Equal(t, plan.Edges, loaded.Edges)
				assert.Equal(t, plan.Markers, loaded.Markers)
				assert.Equal(t, "3", loaded.Level)
			})

			t.Run("LoadMissing", func(t *testing.T) {
				backend := factory(t)

				loaded, err := backend.LoadPlan(ctx, "nope")
				assert.NoError(t, err)
				assert.Nil(t, loaded)

				summary, err := backend.GetSummary(ctx, "nope")
				assert.NoError(t, err)
				assert.Nil(t, summary)
			})

			t.Run("SaveReplaces", func(t *testing.T) {
				backend := factory(t)
				_, err := backend.SavePlan(ctx, samplePlan("third"), "a.json")
				require.NoError(t, err)

				smaller := samplePlan("third")
				smaller.Nodes = smaller.Nodes[:1]
				smaller.Edges = nil
				smaller.Markers = nil
				_, err = backend.SavePlan(ctx, smaller, "b.json")
				require.NoError(t, err)

				loaded, err := backend.LoadPlan(ctx, "third")
				require.NoError(t, err)
				require.NotNil(t, loaded)
				assert.Len(t, loaded.Nodes, 1)
				assert.Empty(t, loaded.Edges)
				assert.Empty(t, loaded.Markers)

				summary, err := backend.GetSummary(ctx, "third")
				require.NoError(t, err)
				assert.Equal(t, "b.json", summary.Source)
			})

			t.Run("PlansAreIsolated", func(t *testing.T) {
				backend := factory(t)
				_, err := backend.SavePlan(ctx, samplePlan("a"), "")
				require.NoError(t, err)
				other := samplePlan("ab")
				other.Nodes = other.Nodes[:2]
				_, err = backend.SavePlan(ctx, other, "")
				require.NoError(t, err)

				loaded, err := backend.LoadPlan(ctx, "a")
				require.NoError(t, err)
				assert.Len(t, loaded.Nodes, 3)

				deleted, err := backend.DeletePlan(ctx, "a")
				require.NoError(t, err)
				assert.True(t, deleted)

				loaded, err = backend.LoadPlan(ctx, "ab")
				require.NoError(t, err)
				require.NotNil(t, loaded)
				assert.Len(t, loaded.Nodes, 2)
			})

			t.Run("Delete", func(t *testing.T) {
				backend := factory(t)
				_, err := backend.SavePlan(ctx, samplePlan("third"), "")
				require.NoError(t, err)

				deleted, err := backend.DeletePlan(ctx, "third")
				require.NoError(t, err)
				assert.True(t, deleted)

				loaded, err := backend.LoadPlan(ctx, "third")
				require.NoError(t, err)
				assert.Nil(t, loaded)

				deleted, err = backend.DeletePlan(ctx, "third")
				require.NoError(t, err)
				assert.False(t, deleted)
			})

			t.Run("ListPlans", func(t *testing.T) {
				backend := factory(t)
				for _, name := range []string{"zeta", "alpha", "mid"} {
					_, err := backend.SavePlan(ctx, samplePlan(name), "")
					require.NoError(t, err)
				}

				plans, err := backend.ListPlans(ctx)
				require.NoError(t, err)
				require.Len(t, plans, 3)
				assert.Equal(t, "alpha", plans[0].Name)
				assert.Equal(t, "mid", plans[1].Name)
				assert.Equal(t, "zeta", plans[2].Name)
			})

			t.Run("InvalidName", func(t *testing.T) {
				backend := factory(t)

				_, err := backend.SavePlan(ctx, samplePlan(""), "")
				assert.Error(t, err)

				_, err = backend.SavePlan(ctx, samplePlan("a:b"), "")
				assert.Error(t, err)
			})

			t.Run("SearchNodes", func(t *testing.T) {
				backend := factory(t)
				_, err := backend.SavePlan(ctx, samplePlan("third"), "")
				require.NoError(t, err)

				results, err := backend.SearchNodes(ctx, "third", "elevator", 5)
				require.NoError(t, err)
				require.NotEmpty(t, results)
				assert.Equal(t, floorplan.NodeID("1342"), results[0].NodeID)
				assert.Equal(t, "3F Elevator", results[0].NodeName)

				_, err = backend.SearchNodes(ctx, "missing", "elevator", 5)
				assert.ErrorIs(t, err, ErrPlanNotFound)
			})
		})
	}
}

func TestMemoryBackend_Isolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := NewMemoryBackend()
	plan := samplePlan("third")
	_, err := backend.SavePlan(ctx, plan, "")
	require.NoError(t, err)

	plan.Nodes[0].Name = "mutated"

	loaded, err := backend.LoadPlan(ctx, "third")
	require.NoError(t, err)
	assert.Equal(t, "3F Entrance", loaded.Nodes[0].Name)
}

func TestMemoryBackend_Close(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := NewMemoryBackend()
	require.NoError(t, backend.Initialize("", false))
	assert.True(t, backend.IsInitialized())

	_, err := backend.SavePlan(ctx, samplePlan("third"), "")
	require.NoError(t, err)

	require.NoError(t, backend.Close())
	assert.False(t, backend.IsInitialized())

	plans, err := backend.ListPlans(ctx)
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("KST", 9*3600))
	summary := summarize(samplePlan("third"), "x.json", now)

	assert.Equal(t, time.UTC, summary.ImportedAt.Location())
	assert.True(t, summary.ImportedAt.Equal(now))
	assert.Equal(t, 3, summary.Nodes)
}
