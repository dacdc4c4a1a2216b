// Package watch follows vault changes on disk with fsnotify and reports them
// as record events. Nothing is indexed here; callers decide what a change
// means (an SSE broadcast, a SQLite resync).
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change kinds passed to a Callback.
const (
	Created = "created"
	Updated = "updated"
	Deleted = "deleted"
)

const recordExt = ".md"

// Callback receives a change kind and the vault-relative, slash-separated
// record path.
type Callback func(kind, relPath string)

// Options configure Watch.
type Options struct {
	// Settle is the quiet period after the last change before OnSettle runs.
	Settle time.Duration
	// OnSettle, if set, runs once a burst of changes has gone quiet.
	OnSettle func()
}

// Watch watches root and all its non-hidden subdirectories until ctx is
// cancelled. Directories created at runtime join the watch list and their
// records are reported as created. fsnotify reports a rename only on the old
// path, so it is reported as deleted; the new path arrives as a create.
func Watch(ctx context.Context, root string, logger *slog.Logger, cb Callback, opts Options) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}
	if opts.Settle <= 0 {
		opts.Settle = 200 * time.Millisecond
	}

	logger.Info("watcher: started", slog.String("root", root))

	var settleTimer *time.Timer
	var settleCh <-chan time.Time
	changed := func(kind, rel string) {
		logger.Debug("watcher: change", slog.String("path", rel), slog.String("op", kind))
		if cb != nil {
			cb(kind, rel)
		}
		if opts.OnSettle == nil {
			return
		}
		if settleTimer == nil {
			settleTimer = time.NewTimer(opts.Settle)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(opts.Settle)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-settleCh:
			settleTimer, settleCh = nil, nil
			opts.OnSettle()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if hidden(ev.Name) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					for _, rel := range recordsIn(root, ev.Name) {
						changed(Created, rel)
					}
					continue
				}
			}

			if !strings.HasSuffix(ev.Name, recordExt) {
				continue
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&fsnotify.Create != 0:
				changed(Created, rel)
			case ev.Op&fsnotify.Write != 0:
				changed(Updated, rel)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				changed(Deleted, rel)
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func hidden(p string) bool {
	return strings.HasPrefix(filepath.Base(p), ".")
}

// recordsIn lists the records under a newly created directory.
func recordsIn(root, dir string) []string {
	var out []string
	_ = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != dir && hidden(p) {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden(p) || !strings.HasSuffix(p, recordExt) {
			return nil
		}
		if rel, relErr := filepath.Rel(root, p); relErr == nil {
			out = append(out, filepath.ToSlash(rel))
		}
		return nil
	})
	return out
}

// addDirsRecursive adds root and its non-hidden subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && hidden(p) {
			return filepath.SkipDir
		}
		return w.Add(p)
	})
}
