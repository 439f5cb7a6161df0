// Package inbox turns markdown files dropped into a directory into notes.
package inbox

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/jotter/internal/notefile"
	"github.com/starford/jotter/internal/storage"
)

const defaultSettle = 200 * time.Millisecond

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle sets how long a file must stay unchanged before it is imported.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// Watcher imports .md files from an inbox directory. A file is imported once
// writes to it have settled; on success the file and its image are removed,
// on failure the error is logged and the file is left in place.
type Watcher struct {
	store    storage.Provider
	importer *notefile.Importer
	settle   time.Duration
	logger   *slog.Logger
}

// New creates an inbox watcher over store.
func New(store storage.Provider, importer *notefile.Importer, opts ...Option) *Watcher {
	w := &Watcher{
		store:    store,
		importer: importer,
		settle:   defaultSettle,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run imports files already in the inbox, then watches it until ctx is
// cancelled. New subdirectories are watched as they appear.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	root := w.store.Root()
	if err := addDirsRecursive(fw, root); err != nil {
		return err
	}
	w.logger.Info("inbox: started", slog.String("root", root))

	w.sweep(ctx)

	pending := make(map[string]struct{})
	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	schedule := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(w.settle)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(w.settle)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			w.logger.Info("inbox: stopped")
			return nil

		case <-settleCh:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			sort.Strings(paths)
			for _, p := range paths {
				w.importFile(ctx, p)
			}

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if strings.HasPrefix(info.Name(), ".") {
						continue
					}
					if addErr := addDirsRecursive(fw, ev.Name); addErr != nil {
						w.logger.Warn("inbox: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					// Files may have landed before the watch was added.
					w.sweep(ctx)
					continue
				}
			}

			name := filepath.Base(ev.Name)
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !strings.HasSuffix(name, ".md") || strings.HasPrefix(name, ".") {
				continue
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			pending[filepath.ToSlash(rel)] = struct{}{}
			schedule()

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("inbox: watch error", slog.String("error", watchErr.Error()))
		}
	}
}

// sweep imports every markdown file currently in the inbox.
func (w *Watcher) sweep(ctx context.Context) {
	files, err := w.store.List("")
	if err != nil {
		w.logger.Warn("inbox: list failed", slog.String("error", err.Error()))
		return
	}
	for _, f := range files {
		w.importFile(ctx, f.Path)
	}
}

func (w *Watcher) importFile(ctx context.Context, rel string) {
	res, err := w.importer.ImportFile(ctx, w.store, rel)
	if err != nil {
		if _, statErr := os.Stat(filepath.Join(w.store.Root(), filepath.FromSlash(rel))); os.IsNotExist(statErr) {
			return
		}
		w.logger.Warn("inbox: import failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	for _, src := range res.Sources {
		if delErr := w.store.Delete(src); delErr != nil {
			w.logger.Warn("inbox: remove failed", slog.String("path", src), slog.String("error", delErr.Error()))
		}
	}
	w.logger.Info("inbox: imported",
		slog.String("path", rel),
		slog.Int64("id", res.Note.IDValue()))
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
