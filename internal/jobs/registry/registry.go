// Package registry holds the static table of release steps. Built-in steps
// and plugin steps are registered at startup; nothing is discovered at run time.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/yungbote/ontorelease/internal/jobs/runtime"
	"github.com/yungbote/ontorelease/internal/jobs/steps"
)

// Constructor makes a fresh step value for one execution.
type Constructor func() runtime.Step

// Plugin describes a bundle of optional steps and what they need wired.
type Plugin struct {
	ID       string
	Requires []runtime.Capability
	Steps    []Constructor
}

type entry struct {
	ctor   Constructor
	plugin string
}

type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	plugins []Plugin
}

func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

func (r *Registry) Register(ctor Constructor) error {
	return r.register(ctor, "")
}

func (r *Registry) register(ctor Constructor, plugin string) error {
	if ctor == nil {
		return fmt.Errorf("nil step constructor")
	}
	s := ctor()
	if s == nil {
		return fmt.Errorf("step constructor returned nil")
	}
	name := s.Name()
	if name == "" {
		return fmt.Errorf("step Name() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("step already registered for name=%s", name)
	}
	r.entries[name] = entry{ctor: ctor, plugin: plugin}
	return nil
}

// RegisterPlugin adds every step of p. Plugin steps must declare the
// plugin's capability requirements.
func (r *Registry) RegisterPlugin(p Plugin) error {
	if p.ID == "" {
		return fmt.Errorf("plugin without id")
	}
	for _, ctor := range p.Steps {
		if ctor == nil {
			return fmt.Errorf("plugin %s: nil step constructor", p.ID)
		}
		if len(p.Requires) > 0 {
			if _, ok := ctor().(runtime.CapabilityRequirer); !ok {
				return fmt.Errorf("plugin %s: step %s does not declare its requirements", p.ID, ctor().Name())
			}
		}
		if err := r.register(ctor, p.ID); err != nil {
			return fmt.Errorf("plugin %s: %w", p.ID, err)
		}
	}
	r.mu.Lock()
	r.plugins = append(r.plugins, p)
	r.mu.Unlock()
	return nil
}

// Get builds a new step for name.
func (r *Registry) Get(name string) (runtime.Step, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.ctor(), true
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for k := range r.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) Plugins() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Plugin(nil), r.plugins...)
}

// Validate checks that every name in a step list is registered.
func (r *Registry) Validate(names []string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var unknown []string
	for _, n := range names {
		if _, ok := r.entries[n]; !ok {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown release steps: %v", unknown)
	}
	return nil
}

// Requirements returns what a registered step needs wired, if anything.
func Requirements(s runtime.Step) []runtime.Capability {
	if rq, ok := s.(runtime.CapabilityRequirer); ok {
		return rq.Requires()
	}
	return nil
}

func Builtins() []Constructor {
	return []Constructor{
		steps.NewPreparation,
		steps.NewValidation,
		steps.NewImportExternal,
		steps.NewBuild,
		steps.NewMerge,
		steps.NewHumanVerification,
		steps.NewGithubPublish,
	}
}

// Plugins is the descriptor table of the compiled-in plugins.
func Plugins() []Plugin {
	return []Plugin{
		{
			ID:       "graph-export",
			Requires: []runtime.Capability{runtime.CapGraphStore},
			Steps:    []Constructor{steps.NewGraphExport},
		},
		{
			ID:       "bucket-publish",
			Requires: []runtime.Capability{runtime.CapObjectStore},
			Steps:    []Constructor{steps.NewBucketPublish},
		},
	}
}

// Default returns a registry with the built-in steps and all plugins.
func Default() (*Registry, error) {
	r := New()
	for _, ctor := range Builtins() {
		if err := r.Register(ctor); err != nil {
			return nil, err
		}
	}
	for _, p := range Plugins() {
		if err := r.RegisterPlugin(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}
