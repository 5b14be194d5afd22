// Package watch keeps the index aligned with externally edited record
// files by rebuilding a type whenever its files change on disk.
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

// Rebuilder re-derives the index for one type from its files.
type Rebuilder interface {
	RebuildFromMarkdown(typ string) (int, error)
}

const debounce = 500 * time.Millisecond

// Watch starts an fsnotify watcher on the data root and rebuilds each
// affected type after file change events, until ctx is cancelled. Events
// are debounced so a burst of edits triggers one rebuild per type. New
// directories created at runtime are added to the watch list.
func Watch(ctx context.Context, root string, rb Rebuilder, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	if err := addDirsRecursive(w, absRoot); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", absRoot))

	dirty := make(map[string]struct{})
	var flushTimer *time.Timer
	var flushCh <-chan time.Time

	scheduleFlush := func() {
		if flushTimer == nil {
			flushTimer = time.NewTimer(debounce)
			flushCh = flushTimer.C
		} else {
			flushTimer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if flushTimer != nil {
				flushTimer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-flushCh:
			for typ := range dirty {
				n, err := rb.RebuildFromMarkdown(typ)
				if err != nil {
					logger.Warn("watcher: rebuild failed",
						slog.String("type", typ), slog.String("error", err.Error()))
					continue
				}
				logger.Debug("watcher: rebuilt type",
					slog.String("type", typ), slog.Int("count", n))
			}
			dirty = make(map[string]struct{})

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watcher: add new dir failed",
							slog.String("path", ev.Name), slog.String("error", addErr.Error()))
					}
				}
			}

			typ, ok := typeOf(absRoot, ev.Name)
			if !ok {
				continue
			}
			dirty[typ] = struct{}{}
			scheduleFlush()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher: error", slog.String("error", err.Error()))
		}
	}
}

// typeOf maps a changed .md path to the record type that owns it: the
// first path segment under the data root.
func typeOf(root, path string) (string, bool) {
	if !strings.HasSuffix(path, ".md") {
		return "", false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 || parts[0] == "" {
		return "", false
	}
	return parts[0], true
}

func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(p)
		}
		return nil
	})
}
