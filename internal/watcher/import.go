// Package watcher imports floor-plan files into storage and keeps them in
// sync with a directory on disk.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"go.uber.org/zap"

	"github.com/Benny93/wayfinder-go/internal/floorplan"
	"github.com/Benny93/wayfinder-go/internal/logging"
	"github.com/Benny93/wayfinder-go/internal/metrics"
	"github.com/Benny93/wayfinder-go/internal/storage"
)

// DefaultDebounce is how long events are batched before re-import.
const DefaultDebounce = 2 * time.Second

// Options configures imports and watching.
type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Collector

	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration

	// OnChange is called with the plan name after a plan is saved or deleted.
	OnChange func(plan string)
}

func (o Options) withDefaults() Options {
	o.Logger = logging.OrNop(o.Logger)
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	return o
}

func (o Options) changed(plan string) {
	if o.OnChange != nil {
		o.OnChange(plan)
	}
}

// Report summarizes a directory import.
type Report struct {
	Imported []storage.PlanSummary
	Failed   map[string]error
}

// ImportFile loads, validates and stores one floor-plan file. An invalid
// file leaves any previously stored version untouched.
func ImportFile(ctx context.Context, path string, store storage.Backend, opts Options) (*storage.PlanSummary, error) {
	opts = opts.withDefaults()

	source, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	plan, err := floorplan.LoadFile(source)
	if err != nil {
		opts.Metrics.ObserveImport(false)
		return nil, err
	}

	if dups := floorplan.DuplicateNames(plan.Nodes); len(dups) > 0 {
		opts.Logger.Warn("duplicate node names, first declared node wins",
			zap.String("plan", plan.Name),
			zap.Strings("names", dups))
	}

	summary, err := store.SavePlan(ctx, plan, source)
	if err != nil {
		opts.Metrics.ObserveImport(false)
		return nil, err
	}
	opts.Metrics.ObserveImport(true)
	opts.changed(plan.Name)

	// The document name may have changed since the last import.
	if err := removeBySource(ctx, store, source, plan.Name, opts); err != nil {
		return summary, err
	}

	opts.Logger.Info("floor plan imported",
		zap.String("plan", summary.Name),
		zap.String("source", source),
		zap.Int("nodes", summary.Nodes),
		zap.Int("edges", summary.Edges))
	return summary, nil
}

// ImportDir imports every floor-plan file below dir, honouring .gitignore.
// Invalid files are reported in the Report and skipped.
func ImportDir(ctx context.Context, dir string, store storage.Backend, opts Options) (*Report, error) {
	opts = opts.withDefaults()

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", dir, err)
	}
	matcher, err := loadGitignoreMatcher(root)
	if err != nil {
		opts.Logger.Warn("ignoring unreadable .gitignore", zap.Error(err))
		matcher = nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && shouldIgnoreDir(d.Name(), path, root, matcher) {
				return filepath.SkipDir
			}
			return nil
		}
		if shouldWatchFile(path, root, matcher) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}

	report := &Report{Failed: make(map[string]error)}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		summary, err := ImportFile(ctx, path, store, opts)
		if err != nil {
			opts.Logger.Warn("skipping invalid floor plan", zap.String("source", path), zap.Error(err))
			report.Failed[path] = err
			continue
		}
		report.Imported = append(report.Imported, *summary)
	}

	sort.Slice(report.Imported, func(i, j int) bool { return report.Imported[i].Name < report.Imported[j].Name })
	return report, nil
}

// RemoveSource deletes every stored plan imported from source.
func RemoveSource(ctx context.Context, store storage.Backend, source string, opts Options) error {
	return removeBySource(ctx, store, source, "", opts.withDefaults())
}

// removeBySource deletes plans imported from source, except keep.
func removeBySource(ctx context.Context, store storage.Backend, source, keep string, opts Options) error {
	plans, err := store.ListPlans(ctx)
	if err != nil {
		return err
	}
	for _, plan := range plans {
		if plan.Source != source || plan.Name == keep {
			continue
		}
		if _, err := store.DeletePlan(ctx, plan.Name); err != nil {
			return err
		}
		opts.changed(plan.Name)
		opts.Logger.Info("floor plan removed", zap.String("plan", plan.Name), zap.String("source", source))
	}
	return nil
}

// shouldWatchFile reports whether path is a floor-plan file that is not ignored.
func shouldWatchFile(path, root string, matcher gitignore.Matcher) bool {
	relPath, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}

	if matcher != nil {
		pathParts := strings.Split(relPath, string(filepath.Separator))
		if matcher.Match(pathParts, false) {
			return false
		}
	}

	return strings.EqualFold(filepath.Ext(path), ".json")
}

// shouldIgnoreDir reports whether a directory should be skipped.
func shouldIgnoreDir(name, path, root string, matcher gitignore.Matcher) bool {
	switch name {
	case ".git", ".wayfinder", "node_modules":
		return true
	}

	if matcher != nil {
		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return false
		}
		pathParts := strings.Split(relPath, string(filepath.Separator))
		return matcher.Match(pathParts, true)
	}

	return false
}

// loadGitignoreMatcher loads a gitignore matcher from the directory root.
// Returns nil when there is no .gitignore.
func loadGitignoreMatcher(root string) (gitignore.Matcher, error) {
	content, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return gitignore.NewMatcher(patterns), nil
}
