// Package watcher reports settled JSON files appearing under a directory tree.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const (
	fileExt  = ".json"
	dirPerm  = 0755
	queueLen = 64
)

// FSObserver watches a directory tree and emits the path of each newly
// created .json file once it has been quiet for the settle delay. Each
// arrival is reported once; later rewrites are ignored until the file is
// removed. Hidden files and directories are ignored. Files present before
// Run are not reported.
type FSObserver struct {
	dir    string
	settle time.Duration
	logger *slog.Logger
	fsw    *fsnotify.Watcher

	events chan string
	ready  chan string
	done   chan struct{}

	mu      sync.Mutex
	pending map[string]*time.Timer
	emitted map[string]struct{}
}

// New creates the directory if needed and starts watching it recursively.
func New(dir string, settle time.Duration, logger *slog.Logger) (*FSObserver, error) {
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create watch directory %s: %w", dir, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	o := &FSObserver{
		dir:     dir,
		settle:  settle,
		logger:  logger.With("component", "watcher", "dir", dir),
		fsw:     fsw,
		events:  make(chan string, queueLen),
		ready:   make(chan string),
		done:    make(chan struct{}),
		pending: make(map[string]*time.Timer),
		emitted: make(map[string]struct{}),
	}
	if err := o.addTree(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return o, nil
}

// Events returns the channel settled paths are delivered on. It is closed
// when Run returns.
func (o *FSObserver) Events() <-chan string {
	return o.events
}

// Run processes filesystem notifications until ctx ends.
func (o *FSObserver) Run(ctx context.Context) error {
	defer close(o.events)
	defer o.fsw.Close()
	defer o.stopPending()
	defer close(o.done)

	o.logger.Info("watching for new files")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-o.fsw.Events:
			if !ok {
				return nil
			}
			o.handle(ev)
		case err, ok := <-o.fsw.Errors:
			if !ok {
				return nil
			}
			o.logger.Warn("watcher error", "error", err)
		case path := <-o.ready:
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				o.logger.Debug("settled file no longer present, skipping", "path", path)
				o.forget(path)
				continue
			}
			select {
			case o.events <- path:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (o *FSObserver) handle(ev fsnotify.Event) {
	if hidden(ev.Name) {
		return
	}

	switch {
	case ev.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := o.addTree(ev.Name); err != nil {
				o.logger.Warn("failed to watch new directory", "path", ev.Name, "error", err)
			}
			return
		}
		if isJSON(ev.Name) {
			o.arrived(ev.Name)
		}
	case ev.Has(fsnotify.Write):
		if isJSON(ev.Name) {
			o.touched(ev.Name)
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		o.forget(ev.Name)
	}
}

// arrived starts the settle timer for a newly created path. A path already
// reported stays reported until it is removed or renamed away.
func (o *FSObserver) arrived(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.emitted[path]; ok {
		return
	}
	if t, ok := o.pending[path]; ok && t.Stop() {
		t.Reset(o.settle)
		return
	}
	// Either nothing is pending or the old timer already fired; a fired
	// callback that finds a newer timer in pending steps aside.
	var t *time.Timer
	t = time.AfterFunc(o.settle, func() {
		o.mu.Lock()
		if o.pending[path] != t {
			o.mu.Unlock()
			return
		}
		delete(o.pending, path)
		o.emitted[path] = struct{}{}
		o.mu.Unlock()

		select {
		case o.ready <- path:
		case <-o.done:
		}
	})
	o.pending[path] = t
}

// touched pushes back a pending settle timer so a file written in several
// chunks is reported once. Writes never start a timer.
func (o *FSObserver) touched(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if t, ok := o.pending[path]; ok && t.Stop() {
		t.Reset(o.settle)
	}
}

func (o *FSObserver) forget(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if t, ok := o.pending[path]; ok {
		t.Stop()
		delete(o.pending, path)
	}
	delete(o.emitted, path)
}

func (o *FSObserver) stopPending() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for path, t := range o.pending {
		t.Stop()
		delete(o.pending, path)
	}
}

func (o *FSObserver) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(path) {
			return filepath.SkipDir
		}
		if err := o.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), fileExt)
}

func hidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
