package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"go.uber.org/zap"

	"github.com/Benny93/wayfinder-go/internal/storage"
)

// Watcher re-imports floor-plan files under a directory as they change.
type Watcher struct {
	root    string
	store   storage.Backend
	opts    Options
	matcher gitignore.Matcher
	fs      *fsnotify.Watcher
}

// New starts watching dir recursively. Events are only processed once Run
// is called.
func New(dir string, store storage.Backend, opts Options) (*Watcher, error) {
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

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{root: root, store: store, opts: opts, matcher: matcher, fs: fsw}
	if err := w.addTree(root); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("setting up watcher: %w", err)
	}
	return w, nil
}

// WatchDir watches dir and keeps store in sync until ctx is cancelled.
func WatchDir(ctx context.Context, dir string, store storage.Backend, opts Options) error {
	w, err := New(dir, store, opts)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

// Root returns the absolute watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Run processes file events until ctx is cancelled. Changed files are
// collected and handled together once no event arrived for the debounce
// interval. It always closes the underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	changed := make(map[string]bool)
	batchTimer := time.NewTimer(w.opts.Debounce)
	batchTimer.Stop() // Don't start yet

	w.opts.Logger.Info("watching for floor plan changes",
		zap.String("dir", w.root),
		zap.Duration("debounce", w.opts.Debounce))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if !shouldIgnoreDir(info.Name(), event.Name, w.root, w.matcher) {
						if err := w.addTree(event.Name); err != nil {
							w.opts.Logger.Warn("watching new directory failed", zap.String("dir", event.Name), zap.Error(err))
						}
					}
					continue
				}
			}

			if !shouldWatchFile(event.Name, w.root, w.matcher) {
				continue
			}
			changed[event.Name] = true
			batchTimer.Reset(w.opts.Debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Error("watch error", zap.Error(err))

		case <-batchTimer.C:
			if len(changed) > 0 {
				w.processChanges(ctx, changed)
				changed = make(map[string]bool)
			}
		}
	}
}

// processChanges re-imports existing files and drops plans whose file is gone.
func (w *Watcher) processChanges(ctx context.Context, changed map[string]bool) {
	paths := make([]string, 0, len(changed))
	for path := range changed {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	w.opts.Logger.Debug("processing changed files", zap.Int("count", len(paths)))

	for _, path := range paths {
		info, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			if err := RemoveSource(ctx, w.store, path, w.opts); err != nil {
				w.opts.Logger.Error("removing deleted floor plan failed", zap.String("source", path), zap.Error(err))
			}
			continue
		}
		if err != nil || info.IsDir() {
			continue
		}

		if _, err := ImportFile(ctx, path, w.store, w.opts); err != nil {
			w.opts.Logger.Warn("skipping invalid floor plan", zap.String("source", path), zap.Error(err))
		}
	}
}

// addTree adds dir and its non-ignored subdirectories to the watch list.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && shouldIgnoreDir(d.Name(), path, w.root, w.matcher) {
			return filepath.SkipDir
		}
		return w.fs.Add(path)
	})
}
