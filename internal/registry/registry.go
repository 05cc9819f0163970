// Package registry holds the bindings from hooks (prefixed command words and
// bare IRC verbs) to handler functions. Reads are concurrent; writes replace
// whole descriptors so readers never observe a partially-updated function
// list.
package registry

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/voxinfinitus/kaa/internal/irc"
)

// Kind selects one of the two descriptor buckets.
type Kind string

const (
	KindCommand Kind = "command"
	KindEvent   Kind = "event"
)

// Options carries per-descriptor metadata supplied at registration, e.g.
// {"notice": true} or {"line_limit": 200}.
type Options map[string]any

// HandlerFunc is one bound handler. The returned string, if non-empty, is
// sent back through the reply channel by the worker pool.
type HandlerFunc func(ctx irc.Context, opts Options) (string, error)

// Descriptor binds a hook to its handlers. Descriptors handed out by the
// registry are value copies; their Funcs slice is replaced wholesale on
// update, never mutated in place.
type Descriptor struct {
	Kind    Kind
	Hook    string
	Funcs   []HandlerFunc
	Options Options
	Enabled bool
}

// ErrHookNotFound is returned when a hook is unknown or disabled.
var ErrHookNotFound = errors.New("hook not found")

// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Descriptor
	events   map[string]*Descriptor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		commands: make(map[string]*Descriptor),
		events:   make(map[string]*Descriptor),
	}
}

func (r *Registry) bucket(kind Kind) (map[string]*Descriptor, error) {
	switch kind {
	case KindCommand:
		return r.commands, nil
	case KindEvent:
		return r.events, nil
	default:
		return nil, fmt.Errorf("unknown registry kind %q", kind)
	}
}

// Register inserts or replaces the descriptor for hook. Registering an
// existing hook replaces its function list rather than appending, so
// repeated registration with identical input is idempotent.
func (r *Registry) Register(kind Kind, hook string, funcs []HandlerFunc, opts Options) error {
	if hook == "" {
		return fmt.Errorf("hook is empty")
	}
	if len(funcs) == 0 {
		return fmt.Errorf("hook %q: at least one function is required", hook)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	bucket, err := r.bucket(kind)
	if err != nil {
		return err
	}

	merged := Options{}
	if existing, ok := bucket[hook]; ok {
		for k, v := range existing.Options {
			merged[k] = v
		}
	}
	for k, v := range opts {
		merged[k] = v
	}

	bucket[hook] = &Descriptor{
		Kind:    kind,
		Hook:    hook,
		Funcs:   append([]HandlerFunc(nil), funcs...),
		Options: merged,
		Enabled: true,
	}
	return nil
}

// Add appends one function to a hook, creating the descriptor if absent.
func (r *Registry) Add(kind Kind, hook string, fn HandlerFunc, opts Options) error {
	if fn == nil {
		return fmt.Errorf("hook %q: nil function", hook)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	bucket, err := r.bucket(kind)
	if err != nil {
		return err
	}

	existing, ok := bucket[hook]
	if !ok {
		bucket[hook] = &Descriptor{
			Kind:    kind,
			Hook:    hook,
			Funcs:   []HandlerFunc{fn},
			Options: cloneOptions(opts),
			Enabled: true,
		}
		return nil
	}

	// Re-adding the same function is idempotent.
	for _, f := range existing.Funcs {
		if sameFunc(f, fn) {
			return nil
		}
	}

	next := *existing
	next.Funcs = append(append([]HandlerFunc(nil), existing.Funcs...), fn)
	// Descriptor copies handed out earlier share the old map; never write
	// through it.
	next.Options = cloneOptions(existing.Options)
	for k, v := range opts {
		next.Options[k] = v
	}
	bucket[hook] = &next
	return nil
}

// Remove unbinds one function from a hook. When the last function goes, the
// descriptor is removed entirely. Unknown hooks are a no-op.
func (r *Registry) Remove(kind Kind, hook string, fn HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket, err := r.bucket(kind)
	if err != nil {
		return
	}

	existing, ok := bucket[hook]
	if !ok {
		return
	}

	kept := make([]HandlerFunc, 0, len(existing.Funcs))
	for _, f := range existing.Funcs {
		if !sameFunc(f, fn) {
			kept = append(kept, f)
		}
	}

	if len(kept) == 0 {
		delete(bucket, hook)
		return
	}

	next := *existing
	next.Funcs = kept
	bucket[hook] = &next
}

// ReplaceFuncs atomically swaps a hook's function list, preserving its
// options. Used by the reload coordinator; readers see either the old or
// the new descriptor, never a torn one.
func (r *Registry) ReplaceFuncs(kind Kind, hook string, funcs []HandlerFunc) error {
	if len(funcs) == 0 {
		return fmt.Errorf("hook %q: replacement function list is empty", hook)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	bucket, err := r.bucket(kind)
	if err != nil {
		return err
	}

	existing, ok := bucket[hook]
	if !ok {
		return fmt.Errorf("replace %s %q: %w", kind, hook, ErrHookNotFound)
	}

	next := *existing
	next.Funcs = append([]HandlerFunc(nil), funcs...)
	bucket[hook] = &next
	return nil
}

// Lookup returns a copy of the descriptor for hook, or ErrHookNotFound when
// the hook is unknown or disabled.
func (r *Registry) Lookup(kind Kind, hook string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bucket, err := r.bucket(kind)
	if err != nil {
		return Descriptor{}, err
	}

	d, ok := bucket[hook]
	if !ok || !d.Enabled {
		return Descriptor{}, fmt.Errorf("%s %q: %w", kind, hook, ErrHookNotFound)
	}
	return *d, nil
}

// SetEnabled toggles a hook without unbinding it.
func (r *Registry) SetEnabled(kind Kind, hook string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bucket, err := r.bucket(kind)
	if err != nil {
		return
	}
	if existing, ok := bucket[hook]; ok {
		next := *existing
		next.Enabled = enabled
		bucket[hook] = &next
	}
}

// Commands returns descriptor copies for every enabled command hook.
func (r *Registry) Commands() []Descriptor {
	return r.snapshot(KindCommand)
}

// Events returns descriptor copies for every enabled event hook.
func (r *Registry) Events() []Descriptor {
	return r.snapshot(KindEvent)
}

func (r *Registry) snapshot(kind Kind) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bucket, err := r.bucket(kind)
	if err != nil {
		return nil
	}

	out := make([]Descriptor, 0, len(bucket))
	for _, d := range bucket {
		if d.Enabled {
			out = append(out, *d)
		}
	}
	return out
}

func cloneOptions(opts Options) Options {
	out := Options{}
	for k, v := range opts {
		out[k] = v
	}
	return out
}

// sameFunc compares handler identity. Funcs are not comparable with ==, so
// the code pointer stands in for identity the way the registration API uses
// it.
func sameFunc(a, b HandlerFunc) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}
