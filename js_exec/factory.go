package js_exec

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/google/uuid"

	"jsbridge/dispatch"
	"jsbridge/js_module"
	"jsbridge/logger"
)

// Factory creates contexts that share one builtin registry and one dispatch manager. The host
// decides the extension order once; every context installs the same list.
type Factory struct {
	registry *js_module.Registry
	dispatch *dispatch.Manager
	modules  js_module.Options

	mu         sync.Mutex
	extensions []Extension
}

func NewFactory(registry *js_module.Registry, manager *dispatch.Manager, modules js_module.Options, extensions ...Extension) *Factory {
	if registry == nil {
		registry = js_module.NewRegistry()
	}
	if manager == nil {
		manager = dispatch.NewManager(dispatch.Options{})
	}
	f := &Factory{registry: registry, dispatch: manager, modules: modules}
	f.Use(extensions...)
	return f
}

func (f *Factory) Registry() *js_module.Registry { return f.registry }
func (f *Factory) Dispatch() *dispatch.Manager   { return f.dispatch }

// Use appends extensions. A named extension already present is skipped.
func (f *Factory) Use(extensions ...Extension) {
	f.mu.Lock()
	defer f.mu.Unlock()
next:
	for _, e := range extensions {
		if e == nil {
			continue
		}
		if name := extensionName(e); name != "" {
			for _, have := range f.extensions {
				if extensionName(have) == name {
					continue next
				}
			}
		}
		f.extensions = append(f.extensions, e)
	}
}

func (f *Factory) snapshot() []Extension {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Extension, len(f.extensions))
	copy(out, f.extensions)
	return out
}

// NewContext starts a context: the module system is installed first, then every extension in
// order. Globals bound later shadow earlier ones.
func (f *Factory) NewContext() (*Context, error) {
	c := &Context{
		id:       uuid.NewString(),
		factory:  f,
		dispatch: f.dispatch,
		closed:   make(chan struct{}),
	}
	c.log = logger.With("component", "context", "context", c.id)
	c.loop = eventloop.NewEventLoop(eventloop.EnableConsole(false))

	var err error
	c.loop.Run(func(vm *goja.Runtime) {
		c.vm = vm
		c.modules = js_module.New(c, f.registry, f.modules)
		c.modules.Enable()
		for _, e := range f.snapshot() {
			if err = e.Install(c); err != nil {
				if name := extensionName(e); name != "" {
					err = fmt.Errorf("install extension %s: %w", name, err)
				} else {
					err = fmt.Errorf("install extension: %w", err)
				}
				return
			}
		}
	})
	if err != nil {
		return nil, err
	}
	c.loop.Start()
	c.log.Debug("context started")
	return c, nil
}
