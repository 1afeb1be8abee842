package js_module

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
)

// ModuleFactory builds a builtin module for one context by populating module.exports.
// It runs at most once per context, on the goroutine that owns it.
type ModuleFactory func(host Host, module *goja.Object)

// Registry is the process-wide table of builtin modules. Names are registered once at startup;
// every context memoizes its own instances, so no state leaks between contexts.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ModuleFactory
	names     []string
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ModuleFactory)}
}

// Register adds a builtin. Builtin names are bare: no separators, no leading dot.
func (r *Registry) Register(name string, factory ModuleFactory) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if factory == nil {
		return fmt.Errorf("%w: %q has no factory", ErrInvalidName, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, name)
	}
	r.factories[name] = factory
	r.names = append(r.names, name)
	return nil
}

// MustRegister is Register for startup code, where a clash is a programming error.
func (r *Registry) MustRegister(name string, factory ModuleFactory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// RegisterNativeModule adapts goja_nodejs style loaders such as util.Require.
func (r *Registry) RegisterNativeModule(name string, loader func(runtime *goja.Runtime, module *goja.Object)) error {
	if loader == nil {
		return r.Register(name, nil)
	}
	return r.Register(name, func(host Host, module *goja.Object) {
		loader(host.Runtime(), module)
	})
}

func (r *Registry) Lookup(name string) (ModuleFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names lists builtins in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
