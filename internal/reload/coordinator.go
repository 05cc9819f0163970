// Package reload keeps the registry in sync with handler scripts on disk.
// A filesystem watcher feeds a debounce window; settled changes are
// re-interpreted and swapped into the registry atomically per hook, so
// in-flight invocations keep running the functions they were dispatched
// with. A script that fails to load leaves its previous bindings in place.
package reload

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/voxinfinitus/kaa/internal/events"
	"github.com/voxinfinitus/kaa/internal/log"
	"github.com/voxinfinitus/kaa/internal/registry"
	"github.com/voxinfinitus/kaa/internal/script"
)

const (
	debounceWindow = 500 * time.Millisecond
	settlePoll     = 100 * time.Millisecond
)

type hookKey struct {
	kind registry.Kind
	hook string
}

// fileState is what a previously-loaded script contributed to the registry.
type fileState struct {
	fingerprint string
	bindings    map[hookKey][]registry.HandlerFunc
}

// Coordinator owns the watch-debounce-apply cycle for one handlers directory.
type Coordinator struct {
	dir     string
	reg     *registry.Registry
	hub     *events.Hub
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	mu       sync.Mutex
	files    map[string]*fileState
	debounce map[string]time.Time
	running  bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Coordinator for dir. Call Prime to load the initial scripts,
// then Start to begin watching.
func New(dir string, reg *registry.Registry, hub *events.Hub) (*Coordinator, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Coordinator{
		dir:      dir,
		reg:      reg,
		hub:      hub,
		watcher:  watcher,
		logger:   log.WithComponent("reload"),
		files:    make(map[string]*fileState),
		debounce: make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Prime loads every script currently on disk and registers its handlers.
// Returns the number of hooks bound.
func (c *Coordinator) Prime() (int, error) {
	files, err := script.LoadDir(c.dir)
	if err != nil {
		return 0, err
	}
	bound := 0
	for _, f := range files {
		if err := c.bind(f, nil); err != nil {
			return bound, err
		}
		bound += len(f.Handlers)
	}
	return bound, nil
}

// Start begins watching the handlers directory. Non-blocking; the watch loop
// runs until ctx is cancelled or Stop is called.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.mu.Unlock()

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		c.logger.Warn("failed to create handlers dir", "dir", c.dir, "error", err)
	}

	// Watch the root and every existing script subdirectory.
	if err := c.watcher.Add(c.dir); err != nil {
		return err
	}
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == c.dir {
			return err
		}
		return c.watcher.Add(path)
	})
	if err != nil {
		return err
	}

	c.logger.Info("watching handlers", "dir", c.dir)
	go c.run(ctx)
	return nil
}

// Stop halts the watch loop, if running, and closes the watcher. Safe to
// call once whether or not Start ever ran.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	wasRunning := c.running
	c.running = false
	c.mu.Unlock()

	if wasRunning {
		close(c.stopCh)
		<-c.doneCh
	}

	if err := c.watcher.Close(); err != nil {
		c.logger.Error("failed to close watcher", "error", err)
	}
}

func (c *Coordinator) run(ctx context.Context) {
	defer close(c.doneCh)

	ticker := time.NewTicker(settlePoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			c.handleEvent(event)
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			c.logger.Error("watch error", "error", err)
		case <-ticker.C:
			c.processSettled()
		}
	}
}

func (c *Coordinator) handleEvent(event fsnotify.Event) {
	// New script directories need their own watch.
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := c.watcher.Add(event.Name); err != nil {
				c.logger.Warn("failed to watch new dir", "dir", event.Name, "error", err)
			}
			return
		}
	}

	if !isScript(event.Name) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	c.mu.Lock()
	c.debounce[event.Name] = time.Now()
	c.mu.Unlock()
}

func isScript(name string) bool {
	return filepath.Ext(name) == ".go" && !strings.HasSuffix(name, "_test.go")
}

// processSettled applies changes that have been quiet past the debounce
// window, batching rapid editor saves into one reload.
func (c *Coordinator) processSettled() {
	c.mu.Lock()
	now := time.Now()
	var settled []string
	for path, at := range c.debounce {
		if now.Sub(at) >= debounceWindow {
			settled = append(settled, path)
			delete(c.debounce, path)
		}
	}
	c.mu.Unlock()

	for _, path := range settled {
		if err := c.applyChange(path); err != nil {
			c.logger.Error("reload failed", "path", path, "error", err)
		}
	}
}

// applyChange reloads one script path, or unbinds it when the file is gone.
func (c *Coordinator) applyChange(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		c.unbind(path)
		return nil
	}

	c.mu.Lock()
	prev := c.files[path]
	c.mu.Unlock()

	if prev != nil {
		fp, err := script.Fingerprint(path)
		if err == nil && fp == prev.fingerprint {
			c.logger.Debug("content unchanged, skipping reload", "path", path)
			return nil
		}
	}

	f, err := script.LoadFile(path)
	if err != nil {
		// Previous bindings stay live.
		c.publish(events.TypeReloadFailed, path, err.Error())
		return err
	}

	if err := c.bind(f, prev); err != nil {
		c.publish(events.TypeReloadFailed, path, err.Error())
		return err
	}

	c.logger.Info("handlers reloaded", "path", path, "hooks", len(f.Handlers))
	c.publish(events.TypeReloadApplied, path, "")
	return nil
}

// bind installs a loaded script's handlers, swapping out whatever the same
// path contributed before. Hooks that survive the reload are replaced
// atomically; hooks the new version drops are unbound.
func (c *Coordinator) bind(f *script.File, prev *fileState) error {
	next := &fileState{
		fingerprint: f.Fingerprint,
		bindings:    make(map[hookKey][]registry.HandlerFunc),
	}

	byHook := make(map[hookKey][]script.Handler)
	for _, h := range f.Handlers {
		key := hookKey{kind: h.Kind, hook: h.Hook}
		byHook[key] = append(byHook[key], h)
	}

	for key, hs := range byHook {
		funcs := make([]registry.HandlerFunc, 0, len(hs))
		opts := registry.Options{}
		for _, h := range hs {
			funcs = append(funcs, h.Fn)
			for k, v := range h.Options {
				opts[k] = v
			}
		}
		next.bindings[key] = funcs

		if prev != nil && prev.bindings[key] != nil {
			if err := c.reg.ReplaceFuncs(key.kind, key.hook, funcs); err != nil {
				if !errors.Is(err, registry.ErrHookNotFound) {
					return err
				}
				// Unbound out from under us; fall through to a fresh register.
			} else {
				continue
			}
		}
		if err := c.reg.Register(key.kind, key.hook, funcs, opts); err != nil {
			return err
		}
	}

	// Hooks the new version no longer declares.
	if prev != nil {
		for key, funcs := range prev.bindings {
			if next.bindings[key] != nil {
				continue
			}
			for _, fn := range funcs {
				c.reg.Remove(key.kind, key.hook, fn)
			}
		}
	}

	c.mu.Lock()
	c.files[f.Path] = next
	c.mu.Unlock()
	return nil
}

// unbind removes everything a deleted script contributed.
func (c *Coordinator) unbind(path string) {
	c.mu.Lock()
	st := c.files[path]
	delete(c.files, path)
	c.mu.Unlock()

	if st == nil {
		return
	}
	for key, funcs := range st.bindings {
		for _, fn := range funcs {
			c.reg.Remove(key.kind, key.hook, fn)
		}
	}
	c.logger.Info("handlers unbound", "path", path, "hooks", len(st.bindings))
	c.publish(events.TypeReloadApplied, path, "")
}

func (c *Coordinator) publish(eventType string, path, errText string) {
	if c.hub == nil {
		return
	}
	data := map[string]string{"path": path}
	if errText != "" {
		data["error"] = errText
	}
	c.hub.Publish(eventType, data)
}
