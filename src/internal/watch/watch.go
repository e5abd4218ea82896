// Package watch recompiles Ruby sources under a directory when they change.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/VectorBits/Rubisol/src/internal/batch"
	"github.com/VectorBits/Rubisol/src/internal/logger"
)

const DefaultDebounce = 150 * time.Millisecond

type Watcher struct {
	dir      string
	opts     batch.Options
	debounce time.Duration
	w        *fsnotify.Watcher

	// OnBuild receives every outcome, including the initial build. Called from Run's goroutine.
	OnBuild func(o batch.Outcome)
}

// New watches dir and every non-hidden directory below it.
func New(dir string, opts batch.Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{dir: dir, opts: opts, debounce: DefaultDebounce, w: fw}
	if err := w.addTree(dir); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// SetDebounce changes how long Run waits for writes to settle.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

func (w *Watcher) Close() error { return w.w.Close() }

func (w *Watcher) addTree(root string) error {
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
		if err := w.w.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// Run builds everything once, then rebuilds changed files until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	plan, err := batch.Load(w.dir)
	if err != nil {
		return err
	}
	w.build(ctx, plan.Sources)

	pending := map[string]bool{}
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.w.Events:
			if !ok {
				return nil
			}
			if !w.handle(ev, pending) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch: %v", err)
		case <-fire:
			fire = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			pending = map[string]bool{}
			w.build(ctx, paths)
		}
	}
}

// handle records ev and reports whether a rebuild is due.
func (w *Watcher) handle(ev fsnotify.Event, pending map[string]bool) bool {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				logger.Warn("%v", err)
			}
			return false
		}
	}
	if !strings.EqualFold(filepath.Ext(ev.Name), ".rb") {
		return false
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
		return false
	}
	pending[ev.Name] = true
	return true
}

func (w *Watcher) build(ctx context.Context, paths []string) {
	var live []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			live = append(live, p)
		}
	}
	if len(live) == 0 {
		return
	}
	outcomes, err := batch.Run(ctx, live, w.opts)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("watch build: %v", err)
	}
	for _, o := range outcomes {
		if errors.Is(o.Err, context.Canceled) {
			continue
		}
		if o.OK() {
			logger.Info("rebuilt %s", o.Source)
		} else {
			logger.Error("%s: %v", o.Source, o.Err)
		}
		if w.OnBuild != nil {
			w.OnBuild(o)
		}
	}
}
