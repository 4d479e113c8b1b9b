package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Benny93/wayfinder-go/internal/floorplan"
	"github.com/Benny93/wayfinder-go/internal/metrics"
	"github.com/Benny93/wayfinder-go/internal/storage"
)

const corridorPlan = `{
  "nodes": [
    {"id": 1, "name": "Entrance", "position": [0, 0, 0]},
    {"id": 2, "name": "Elevator", "position": [5, 0, 0]}
  ],
  "edges": [
    {"start": 1, "end": 2, "length": 5, "directionality": "bidirectional"}
  ]
}`

const namedPlan = `{
  "name": "annex",
  "nodes": [{"id": 1, "name": "Door", "position": [0, 0, 0]}],
  "edges": []
}`

const brokenPlan = `{
  "nodes": [{"id": 1, "name": "Door", "position": [0, 0, 0]}],
  "edges": [{"start": 1, "end": 9, "length": 1, "directionality": "bidirectional"}]
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestImportFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("NamedAfterFile", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "3F_graph_map.json")
		writeFile(t, path, corridorPlan)
		store := storage.NewMemoryBackend()
		collector := metrics.NewCollector()

		var changed []string
		summary, err := ImportFile(ctx, path, store, Options{
			Metrics:  collector,
			OnChange: func(plan string) { changed = append(changed, plan) },
		})
		require.NoError(t, err)

		assert.Equal(t, "3F_graph_map", summary.Name)
		assert.Equal(t, path, summary.Source)
		assert.Equal(t, 2, summary.Nodes)
		assert.Equal(t, []string{"3F_graph_map"}, changed)
	})

	t.Run("InvalidKeepsPrevious", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "lobby.json")
		writeFile(t, path, corridorPlan)
		store := storage.NewMemoryBackend()

		_, err := ImportFile(ctx, path, store, Options{})
		require.NoError(t, err)

		writeFile(t, path, brokenPlan)
		_, err = ImportFile(ctx, path, store, Options{})
		assert.ErrorIs(t, err, floorplan.ErrMalformedGraph)

		plan, err := store.LoadPlan(ctx, "lobby")
		require.NoError(t, err)
		require.NotNil(t, plan)
		assert.Len(t, plan.Nodes, 2)
	})

	t.Run("RenamedDocumentReplacesOldPlan", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "building.json")
		writeFile(t, path, corridorPlan)
		store := storage.NewMemoryBackend()

		_, err := ImportFile(ctx, path, store, Options{})
		require.NoError(t, err)

		writeFile(t, path, namedPlan)
		summary, err := ImportFile(ctx, path, store, Options{})
		require.NoError(t, err)
		assert.Equal(t, "annex", summary.Name)

		plans, err := store.ListPlans(ctx)
		require.NoError(t, err)
		require.Len(t, plans, 1)
		assert.Equal(t, "annex", plans[0].Name)
	})
}

func TestImportDir(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "lobby.json"), corridorPlan)
	writeFile(t, filepath.Join(dir, "wings", "annex.json"), namedPlan)
	writeFile(t, filepath.Join(dir, "broken.json"), brokenPlan)
	writeFile(t, filepath.Join(dir, "notes.txt"), "not a plan")
	writeFile(t, filepath.Join(dir, "drafts", "draft.json"), corridorPlan)
	writeFile(t, filepath.Join(dir, ".git", "config.json"), corridorPlan)
	writeFile(t, filepath.Join(dir, ".gitignore"), "# drafts stay local\ndrafts/\n")

	store := storage.NewMemoryBackend()
	report, err := ImportDir(ctx, dir, store, Options{})
	require.NoError(t, err)

	require.Len(t, report.Imported, 2)
	assert.Equal(t, "annex", report.Imported[0].Name)
	assert.Equal(t, "lobby", report.Imported[1].Name)

	require.Len(t, report.Failed, 1)
	for path, err := range report.Failed {
		assert.Equal(t, "broken.json", filepath.Base(path))
		assert.ErrorIs(t, err, floorplan.ErrMalformedGraph)
	}
}

func TestShouldWatchFile(t *testing.T) {
	t.Parallel()

	root := "/plans"
	assert.True(t, shouldWatchFile("/plans/a.json", root, nil))
	assert.True(t, shouldWatchFile("/plans/b/A.JSON", root, nil))
	assert.False(t, shouldWatchFile("/plans/a.yaml", root, nil))
	assert.True(t, shouldIgnoreDir(".git", "/plans/.git", root, nil))
	assert.True(t, shouldIgnoreDir(".wayfinder", "/plans/.wayfinder", root, nil))
	assert.False(t, shouldIgnoreDir("floors", "/plans/floors", root, nil))
}

// changeLog records OnChange calls from the watcher goroutine.
type changeLog struct {
	mu      sync.Mutex
	changes []string
}

func (c *changeLog) add(plan string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = append(c.changes, plan)
}

func (c *changeLog) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.changes)
}

func TestWatcher_Run(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := storage.NewMemoryBackend()
	changes := &changeLog{}

	w, err := New(dir, store, Options{
		Debounce: 50 * time.Millisecond,
		OnChange: changes.add,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	path := filepath.Join(dir, "lobby.json")
	writeFile(t, path, corridorPlan)

	require.Eventually(t, func() bool {
		plan, err := store.LoadPlan(ctx, "lobby")
		return err == nil && plan != nil
	}, 5*time.Second, 20*time.Millisecond, "new file is imported")

	// Invalid content is skipped and the stored plan survives.
	writeFile(t, path, brokenPlan)
	time.Sleep(200 * time.Millisecond)
	plan, err := store.LoadPlan(ctx, "lobby")
	require.NoError(t, err)
	require.NotNil(t, plan)
	assert.Len(t, plan.Nodes, 2)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		plan, err := store.LoadPlan(ctx, "lobby")
		return err == nil && plan == nil
	}, 5*time.Second, 20*time.Millisecond, "deleted file is removed")
	assert.GreaterOrEqual(t, changes.count(), 2)

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatchDir_MissingDirectory(t *testing.T) {
	t.Parallel()

	err := WatchDir(context.Background(), filepath.Join(t.TempDir(), "absent"), storage.NewMemoryBackend(), Options{})
	assert.Error(t, err)
}
