// Package registry implements the process-wide plugin registry: a mapping
// from static probe name to probe instance, populated once (by each probe
// package's init()) before the dispatcher runs.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ocx/raider/internal/config"
	"github.com/ocx/raider/internal/probe"
)

// Registry is a process-wide mapping from plugin name to probe instance,
// grounded on pkg/plugins.Registry's sorted-listing, mutex-guarded map
// shape, adapted so Setup removes and returns the selected probe --
// ownership transfers to the dispatcher and the registry is never
// consulted again once a run starts.
type Registry struct {
	mu      sync.Mutex
	plugins map[string]probe.Probe
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{plugins: make(map[string]probe.Probe)}
}

// def is the process-wide default registry that every probe package's
// init() registers itself against.
var def = New()

// Default returns the process-wide registry.
func Default() *Registry { return def }

// Register inserts a probe under name. Duplicate names indicate a bug in
// an init() function -- not a runtime condition any caller can react to --
// so it panics rather than returning an error.
func (r *Registry) Register(name string, p probe.Probe) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[name]; exists {
		panic(fmt.Sprintf("registry: plugin %q already registered", name))
	}
	r.plugins[name] = p
}

// Plugin pairs a name with its probe for List's sorted output.
type Plugin struct {
	Name        string
	Description string
}

// List enumerates all registered plugins sorted by name.
func (r *Registry) List() []Plugin {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Plugin, 0, len(r.plugins))
	for name, p := range r.plugins {
		out = append(out, Plugin{Name: name, Description: p.Description()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Setup reads the plugin selector off opts, removes and returns the
// matching probe after invoking its Setup. On failure the registry is left
// intact.
func (r *Registry) Setup(opts *config.Options) (probe.Probe, error) {
	if opts.Plugin == "" {
		return nil, fmt.Errorf("no plugin selected")
	}

	r.mu.Lock()
	p, ok := r.plugins[opts.Plugin]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%q is not a valid plugin name, use --list-plugins to see the available ones", opts.Plugin)
	}

	if err := p.Setup(opts); err != nil {
		return nil, fmt.Errorf("setup %s: %w", opts.Plugin, err)
	}

	r.mu.Lock()
	delete(r.plugins, opts.Plugin)
	r.mu.Unlock()

	return p, nil
}
