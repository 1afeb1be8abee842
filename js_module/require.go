package js_module

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/dop251/goja"
	"github.com/spf13/afero"

	"jsbridge/logger"
	"jsbridge/sandbox"
)

// Options configures the module system of one context.
type Options struct {
	// FS backs resolution and loading. Defaults to the OS filesystem.
	FS afero.Fs
	// Delegate is asked before any file module is read. Nil allows everything.
	Delegate sandbox.Delegate
	// Root bounds path specifiers; empty means unbounded. The root pseudo-module lives here.
	Root string
	// PackagesDir is the per-directory package folder searched for bare names, e.g. node_modules.
	PackagesDir string
	// GlobalFolders are searched for bare names after the package folders.
	GlobalFolders []string
	// ExtensionPriority puts these extensions first when probing.
	ExtensionPriority []string
}

// Require is the module system bound to one context: resolver, loader table, cache and the
// memoized builtin instances. Everything except construction runs on the owning goroutine.
type Require struct {
	host     Host
	runtime  *goja.Runtime
	registry *Registry
	fs       afero.Fs
	delegate sandbox.Delegate

	root          string
	rootAsGiven   string
	packagesDir   string
	globalFolders []string

	extensions *Extensions
	cache      *Cache
	builtins   map[string]*Module
	base       *Module
	main       *Module

	cacheObj      *goja.Object
	extensionsObj *goja.Object
	log           *log.Logger
}

// New builds the module system for host. The default loaders are registered; call Enable to
// expose require to scripts.
func New(host Host, registry *Registry, opt Options) *Require {
	if opt.FS == nil {
		opt.FS = afero.NewOsFs()
	}
	if registry == nil {
		registry = NewRegistry()
	}
	r := &Require{
		host:        host,
		runtime:     host.Runtime(),
		registry:    registry,
		fs:          opt.FS,
		delegate:    opt.Delegate,
		packagesDir: opt.PackagesDir,
		extensions:  NewExtensions(opt.ExtensionPriority...),
		cache:       NewCache(),
		builtins:    make(map[string]*Module),
		log:         logger.With("component", "modules", "context", host.ID()),
	}
	if opt.Root != "" {
		r.rootAsGiven = absPath(opt.Root)
		r.root = r.canonical(opt.Root)
	}
	for _, dir := range opt.GlobalFolders {
		r.globalFolders = append(r.globalFolders, r.canonical(dir))
	}
	RegisterDefaultLoaders(r.extensions)

	r.cacheObj = r.runtime.NewDynamicObject(&cacheView{r: r})
	r.extensionsObj = r.runtime.NewDynamicObject(&extensionsView{r: r})

	dir := r.root
	if dir == "" {
		cwd, _ := os.Getwd()
		dir = r.canonical(cwd)
	}
	r.base = r.newModule(".", "", []string{dir}, nil)
	r.base.loaded = true
	return r
}

func (r *Require) Host() Host                 { return r.host }
func (r *Require) Runtime() *goja.Runtime     { return r.runtime }
func (r *Require) Registry() *Registry        { return r.registry }
func (r *Require) Extensions() *Extensions    { return r.extensions }
func (r *Require) Cache() *Cache              { return r.cache }
func (r *Require) FS() afero.Fs               { return r.fs }
func (r *Require) Delegate() sandbox.Delegate { return r.delegate }
func (r *Require) Root() string               { return r.root }

// Base is the root pseudo-module the global require resolves from while no main module is set.
func (r *Require) Base() *Module { return r.base }

// Main returns the main module, nil until one is assigned.
func (r *Require) Main() *Module { return r.main }

func (r *Require) SetMain(m *Module) { r.main = m }

// AddSearchPath adds a context-wide directory for bare specifiers.
func (r *Require) AddSearchPath(dir string) {
	r.base.Paths = append(r.base.Paths, r.canonical(dir))
}

func (r *Require) entry() *Module {
	if r.main != nil {
		return r.main
	}
	return r.base
}

// Enable binds the global require and module.
func (r *Require) Enable() {
	vm := r.runtime
	_ = vm.Set("require", r.requireFunction(nil))
	_ = vm.GlobalObject().DefineAccessorProperty("module", vm.ToValue(func(goja.FunctionCall) goja.Value {
		return r.entry().object
	}), nil, goja.FLAG_TRUE, goja.FLAG_FALSE)
}

// Require loads specifier on behalf of from and returns its exports. Modules still loading
// (a require cycle) return their partial exports.
func (r *Require) Require(specifier string, from *Module) (goja.Value, error) {
	m, err := r.Load(specifier, from)
	if err != nil {
		return nil, err
	}
	return m.Exports(), nil
}

// Load is Require returning the module record.
func (r *Require) Load(specifier string, from *Module) (*Module, error) {
	if from == nil {
		from = r.entry()
	}
	id, err := r.Resolve(specifier, from)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(id) {
		return r.loadBuiltin(id, from)
	}
	return r.loadFile(id, from, nil)
}

// RunMain loads the file at path as the main module. require.main refers to it from the moment
// its loader starts.
func (r *Require) RunMain(path string) (*Module, error) {
	id, err := r.Resolve(path, r.base)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(id) {
		return nil, &LoadError{Path: id, Cause: errors.New("main module must be a file")}
	}
	prev := r.main
	m, err := r.loadFile(id, r.base, func(m *Module) { r.main = m })
	if err != nil {
		r.main = prev
		return nil, err
	}
	r.main = m
	return m, nil
}

// RunMainSource evaluates src as the main module under filename, which need not exist on
// disk. Relative names are placed in the base directory. A ".ts" name is transformed first.
// Any module cached under the same name is replaced.
func (r *Require) RunMainSource(filename, src string) (*Module, error) {
	if !filepath.IsAbs(filename) {
		filename = filepath.Join(r.base.Dir(), filename)
	}
	id := filepath.Clean(filename)
	if filepath.Ext(id) == ".ts" {
		code, err := TransformTypeScript(id, src)
		if err != nil {
			return nil, &LoadError{Path: id, Cause: err}
		}
		src = code
	}

	prev := r.main
	m := r.newModule(id, id, []string{filepath.Dir(id)}, r.base)
	r.cache.Delete(id)
	r.cache.Insert(m)
	r.main = m
	if err := r.invoke(func() error { return r.RunSource(m, id, src) }); err != nil {
		r.cache.deleteIf(id, m)
		r.main = prev
		return nil, &LoadError{Path: id, Cause: err}
	}
	m.loaded = true
	return m, nil
}

func (r *Require) loadBuiltin(name string, from *Module) (*Module, error) {
	if m, ok := r.builtins[name]; ok {
		return m, nil
	}
	factory, ok := r.registry.Lookup(name)
	if !ok {
		return nil, r.notFound(name, from)
	}
	m := r.newModule(name, name, nil, from)
	m.builtin = true
	r.builtins[name] = m
	err := r.invoke(func() error {
		factory(r.host, m.object)
		return nil
	})
	if err != nil {
		delete(r.builtins, name)
		return nil, &LoadError{Path: name, Cause: err}
	}
	m.loaded = true
	return m, nil
}

// loadFile runs the loader for id. The module is cached before its loader starts so that
// cyclic requires observe the partial exports instead of recursing.
func (r *Require) loadFile(id string, from *Module, created func(*Module)) (*Module, error) {
	if m, ok := r.cache.Get(id); ok {
		if created != nil {
			created(m)
		}
		return m, nil
	}
	ext := filepath.Ext(id)
	loader, ok := r.extensions.Lookup(ext)
	if !ok {
		loader, ok = r.extensions.Lookup(".js")
	}
	if !ok {
		return nil, &LoadError{Path: id, Cause: fmt.Errorf("%w %q", ErrNoLoader, ext)}
	}
	if err := sandbox.CheckRead(r.delegate, id); err != nil {
		return nil, &LoadError{Path: id, Cause: err}
	}

	m := r.newModule(id, id, []string{filepath.Dir(id)}, from)
	r.cache.Insert(m)
	if created != nil {
		created(m)
	}
	if err := r.invoke(func() error { return loader(r, m, id) }); err != nil {
		r.cache.deleteIf(id, m)
		r.log.Debug("module failed", "id", id, "err", err)
		return nil, &LoadError{Path: id, Cause: err}
	}
	m.loaded = true
	r.log.Debug("module loaded", "id", id)
	return m, nil
}

// ReadFile reads a module source through the context filesystem.
func (r *Require) ReadFile(filename string) ([]byte, error) {
	return afero.ReadFile(r.fs, filename)
}

// thrownValue carries a script value a factory or loader panicked with.
type thrownValue struct {
	value goja.Value
}

func (t *thrownValue) Error() string {
	return t.value.String()
}

func (r *Require) invoke(fn func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			switch x := v.(type) {
			case *goja.InterruptedError:
				panic(x)
			case goja.Value:
				err = &thrownValue{value: x}
			case error:
				err = x
			default:
				err = fmt.Errorf("%v", x)
			}
		}
	}()
	return fn()
}

// throw raises err in the script. Exceptions thrown by module code keep their original value.
func (r *Require) throw(err error) {
	var exc *goja.Exception
	if errors.As(err, &exc) {
		panic(exc.Value())
	}
	var t *thrownValue
	if errors.As(err, &t) {
		panic(t.value)
	}
	panic(r.runtime.NewGoError(err))
}

// requireFunction builds the script require bound to m; nil binds it to the main module, or
// the root pseudo-module while none is set.
func (r *Require) requireFunction(m *Module) *goja.Object {
	vm := r.runtime
	from := func() *Module {
		if m != nil {
			return m
		}
		return r.entry()
	}
	specifier := func(call goja.FunctionCall) string {
		s, ok := call.Argument(0).Export().(string)
		if !ok {
			panic(vm.NewTypeError("module specifier must be a string"))
		}
		return s
	}

	fn := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		v, err := r.Require(specifier(call), from())
		if err != nil {
			r.throw(err)
		}
		return v
	}).(*goja.Object)

	_ = fn.Set("resolve", func(call goja.FunctionCall) goja.Value {
		id, err := r.Resolve(specifier(call), from())
		if err != nil {
			r.throw(err)
		}
		return vm.ToValue(id)
	})
	_ = fn.Set("cache", r.cacheObj)
	_ = fn.Set("extensions", r.extensionsObj)
	_ = fn.DefineAccessorProperty("main", vm.ToValue(func(goja.FunctionCall) goja.Value {
		if r.main == nil {
			return goja.Undefined()
		}
		return r.main.object
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	return fn
}

// cacheView is require.cache.
type cacheView struct {
	r *Require
}

func (c *cacheView) Get(key string) goja.Value {
	if m, ok := c.r.cache.Get(key); ok {
		return m.object
	}
	return nil
}

func (c *cacheView) Set(key string, val goja.Value) bool {
	m, ok := moduleOf(val)
	if !ok || m.id != key {
		return false
	}
	c.r.cache.Delete(key)
	return c.r.cache.Insert(m)
}

func (c *cacheView) Has(key string) bool {
	_, ok := c.r.cache.Get(key)
	return ok
}

func (c *cacheView) Delete(key string) bool {
	c.r.cache.Delete(key)
	return true
}

func (c *cacheView) Keys() []string {
	return c.r.cache.Keys()
}

// extensionsView is require.extensions. Assigning a function(module, filename) registers a
// script loader; assigning null or deleting removes the extension.
type extensionsView struct {
	r *Require
}

func (e *extensionsView) Get(key string) goja.Value {
	r := e.r
	l, ok := r.extensions.Lookup(key)
	if !ok {
		return nil
	}
	return r.runtime.ToValue(func(call goja.FunctionCall) goja.Value {
		m, ok := moduleOf(call.Argument(0))
		if !ok {
			panic(r.runtime.NewTypeError("first argument must be a module"))
		}
		filename := call.Argument(1).String()
		if err := r.invoke(func() error { return l(r, m, filename) }); err != nil {
			r.throw(err)
		}
		return goja.Undefined()
	})
}

func (e *extensionsView) Set(key string, val goja.Value) bool {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		e.r.extensions.Remove(key)
		return true
	}
	fn, ok := goja.AssertFunction(val)
	if !ok {
		return false
	}
	e.r.extensions.Register(key, func(r *Require, m *Module, filename string) error {
		_, err := fn(goja.Undefined(), m.object, r.runtime.ToValue(filename))
		return err
	})
	return true
}

func (e *extensionsView) Has(key string) bool {
	_, ok := e.r.extensions.Lookup(key)
	return ok
}

func (e *extensionsView) Delete(key string) bool {
	e.r.extensions.Remove(key)
	return true
}

func (e *extensionsView) Keys() []string {
	return e.r.extensions.Extensions()
}
