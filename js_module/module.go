package js_module

import (
	"github.com/dop251/goja"
)

// Host is the script engine context a module system is bound to. Runtime must only be used
// from the goroutine that owns it.
type Host interface {
	ID() string
	Runtime() *goja.Runtime
}

// Module is a loaded unit of script code. Its identity never changes once it is cached;
// exports may be replaced or mutated while Loaded is false and cyclic requirers observe that
// partial state.
type Module struct {
	id       string
	Filename string
	// Paths[0] is the directory relative specifiers resolve against.
	Paths []string

	// parent is the first requirer, kept for diagnostics only.
	parent  *Module
	loaded  bool
	builtin bool

	object    *goja.Object
	requireFn *goja.Object
}

func (m *Module) ID() string           { return m.id }
func (m *Module) Loaded() bool         { return m.loaded }
func (m *Module) Builtin() bool        { return m.builtin }
func (m *Module) Parent() *Module      { return m.parent }
func (m *Module) Object() *goja.Object { return m.object }

// Dir is the directory relative specifiers are joined with.
func (m *Module) Dir() string {
	if len(m.Paths) == 0 {
		return ""
	}
	return m.Paths[0]
}

// Exports returns the current value of module.exports.
func (m *Module) Exports() goja.Value {
	return m.object.Get("exports")
}

// SetExports replaces module.exports; loaders that produce non-object values use it.
func (m *Module) SetExports(v goja.Value) {
	_ = m.object.Set("exports", v)
}

// RequireFunction is the require bound to this module.
func (m *Module) RequireFunction() *goja.Object {
	return m.requireFn
}

func (r *Require) newModule(id, filename string, paths []string, parent *Module) *Module {
	vm := r.runtime
	m := &Module{
		id:       id,
		Filename: filename,
		Paths:    paths,
		parent:   parent,
	}
	obj := vm.NewObject()
	_ = obj.Set("id", id)
	_ = obj.Set("filename", filename)
	_ = obj.Set("exports", vm.NewObject())
	_ = obj.DefineAccessorProperty("loaded", vm.ToValue(func(goja.FunctionCall) goja.Value {
		return vm.ToValue(m.loaded)
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = obj.DefineAccessorProperty("paths", vm.ToValue(func(goja.FunctionCall) goja.Value {
		items := make([]interface{}, len(m.Paths))
		for i, p := range m.Paths {
			items[i] = p
		}
		return vm.NewArray(items...)
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = obj.DefineAccessorProperty("parent", vm.ToValue(func(goja.FunctionCall) goja.Value {
		if m.parent == nil {
			return goja.Null()
		}
		return m.parent.object
	}), nil, goja.FLAG_FALSE, goja.FLAG_FALSE)
	_ = obj.SetSymbol(moduleSymbol, vm.ToValue(m))
	m.object = obj
	m.requireFn = r.requireFunction(m)
	_ = obj.Set("require", m.requireFn)
	return m
}

var moduleSymbol = goja.NewSymbol("jsbridge.module")

// moduleOf recovers the Go module behind a script-visible module object.
func moduleOf(v goja.Value) (*Module, bool) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, false
	}
	sym := obj.GetSymbol(moduleSymbol)
	if sym == nil {
		return nil, false
	}
	m, ok := sym.Export().(*Module)
	return m, ok
}
