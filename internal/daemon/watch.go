package daemon

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/gerunddev/sheetbridge/internal/logger"
)

// DefaultDebounce is how long the watched trees must stay quiet before a
// run is triggered
const DefaultDebounce = 2 * time.Second

// Loop runs a sync function whenever the watched trees change and at least
// once per interval. Runs never overlap.
type Loop struct {
	Dirs     []string
	Interval time.Duration
	Debounce time.Duration
	// Ignore filters events by path; nil ignores hidden files only
	Ignore func(path string) bool
	Logger *logger.Logger
}

// Run calls run once, then after every quiet period following a change and
// on every interval tick, until ctx is cancelled. Changes made while run
// executes, and within one debounce period after it, are its own writes and
// do not trigger another run.
func (l *Loop) Run(ctx context.Context, run func() error) error {
	log := l.Logger
	if log == nil {
		log = logger.Discard()
	}
	debounce := l.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, dir := range l.Dirs {
		if err := addDirsRecursive(w, dir); err != nil {
			return err
		}
	}
	log.Info("watcher started", "dirs", strings.Join(l.Dirs, ", "), "interval", l.Interval)

	var quietUntil time.Time
	trigger := func(reason string) {
		log.Debug("sync triggered", "reason", reason)
		if err := run(); err != nil {
			log.Error("sync failed", "error", err)
		}
		quietUntil = time.Now().Add(debounce)
	}
	trigger("start")

	var ticks <-chan time.Time
	if l.Interval > 0 {
		ticker := time.NewTicker(l.Interval)
		defer ticker.Stop()
		ticks = ticker.C
	}

	var timer *time.Timer
	var pending <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			pending = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			log.Info("watcher stopped")
			return nil

		case <-ticks:
			trigger("interval")

		case <-pending:
			timer = nil
			pending = nil
			trigger("change")

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := addDirsRecursive(w, ev.Name); err != nil {
						log.Warn("failed to watch new directory", "path", ev.Name, "error", err)
					}
				}
			}
			if l.ignored(ev.Name) || time.Now().Before(quietUntil) {
				continue
			}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error("watcher error", "error", watchErr)
		}
	}
}

func (l *Loop) ignored(path string) bool {
	if l.Ignore != nil {
		return l.Ignore(path)
	}
	return strings.HasPrefix(filepath.Base(path), ".")
}

// addDirsRecursive adds root and its non-hidden subdirectories to the
// watcher. A missing root is skipped.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && os.IsNotExist(err) {
				return nil
			}
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
