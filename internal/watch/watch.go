// Package watch reruns a callback when Rust sources or the manifest change.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/phobologic/stagegen/internal/discover"
	"github.com/phobologic/stagegen/internal/logging"
)

// DefaultDebounce is how long the watcher waits for more events before
// firing.
const DefaultDebounce = 150 * time.Millisecond

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watcher watches a source directory tree plus a set of extra files.
type Watcher struct {
	fs       *fsnotify.Watcher
	dirs     []string
	extra    map[string]struct{}
	debounce time.Duration
	log      *slog.Logger
}

// New watches every directory under srcDir and the given extra files, such
// as Cargo.toml. Call Close when done.
func New(srcDir string, extra []string, opts Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		fs:       fw,
		extra:    make(map[string]struct{}, len(extra)),
		debounce: opts.Debounce,
		log:      logging.Component(opts.Logger, "watch"),
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}

	if err := w.addTree(srcDir); err != nil {
		_ = fw.Close()
		return nil, err
	}
	for _, f := range extra {
		abs, err := filepath.Abs(f)
		if err != nil {
			continue
		}
		w.extra[abs] = struct{}{}
		// fsnotify watches directories more reliably than files that
		// editors replace by rename.
		dir := filepath.Dir(abs)
		if !slices.Contains(w.dirs, dir) {
			if err := fw.Add(dir); err != nil {
				_ = fw.Close()
				return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
			}
			w.dirs = append(w.dirs, dir)
		}
	}
	return w, nil
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Dirs returns the directories being watched.
func (w *Watcher) Dirs() []string {
	return slices.Clone(w.dirs)
}

// Run blocks until ctx is done, calling onChange with the changed paths
// once events have been quiet for the debounce window. onChange runs on the
// caller's goroutine, one batch at a time.
func (w *Watcher) Run(ctx context.Context, onChange func(paths []string)) error {
	pending := map[string]struct{}{}
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						w.log.Warn("failed to watch new directory", "dir", ev.Name, "error", err)
					}
				}
			}
			if !w.relevant(ev.Name) {
				continue
			}
			w.log.Debug("change", "path", ev.Name, "op", ev.Op.String())
			pending[ev.Name] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)

		case <-fire:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			slices.Sort(paths)
			clear(pending)
			timer = nil
			fire = nil
			onChange(paths)
		}
	}
}

func (w *Watcher) relevant(path string) bool {
	if _, ok := w.extra[path]; ok {
		return true
	}
	return filepath.Ext(path) == ".rs"
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && discover.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		w.dirs = append(w.dirs, path)
		return nil
	})
}
