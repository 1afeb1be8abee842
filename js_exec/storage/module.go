package storage

import (
	"context"
	"time"

	"github.com/dop251/goja"

	"jsbridge/dispatch"
	"jsbridge/js_module"
)

const ModuleName = "kv"

// opTimeout bounds a single store call made on behalf of a script.
const opTimeout = 10 * time.Second

type DB struct {
	runtime *goja.Runtime
	owner   dispatch.Owner
	manager *dispatch.Manager
	store   Store
	// prefix namespaces the keys of one deployment.
	prefix string
}

type Options struct {
	Store  Store
	Prefix string
}

func (d *DB) key(k string) string {
	return d.prefix + k
}

// run executes fn on the io queue and reports to cb as cb(err, result).
func (d *DB) run(cb goja.Callable, fn func(ctx context.Context) (any, error)) {
	err := d.manager.AsyncExecuteOn(dispatch.IO, d.owner, func() ([]any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return []any{v}, nil
	}, cb)
	if err != nil {
		panic(d.runtime.NewGoError(err))
	}
}

// ModuleFactory builds the kv builtin backed by store.
func ModuleFactory(manager *dispatch.Manager, opt Options) js_module.ModuleFactory {
	return func(host js_module.Host, module *goja.Object) {
		vm := host.Runtime()
		owner, ok := host.(dispatch.Owner)
		if !ok {
			panic(vm.NewTypeError("kv needs a context with an event loop"))
		}
		db := &DB{runtime: vm, owner: owner, manager: manager, store: opt.Store, prefix: opt.Prefix}
		if db.store == nil {
			db.store = NewMemoryStore()
		}
		obj := module.Get("exports").(*goja.Object)
		_ = obj.Set("get", db.jsGet)
		_ = obj.Set("set", db.jsSet)
		_ = obj.Set("getEx", db.jsGetEx)
		_ = obj.Set("del", db.jsDel)
	}
}

// Register adds the kv builtin to registry.
func Register(registry *js_module.Registry, manager *dispatch.Manager, opt Options) error {
	return registry.Register(ModuleName, ModuleFactory(manager, opt))
}

func argCheck(value goja.Value) bool {
	return value != nil && !goja.IsUndefined(value) && !goja.IsNull(value)
}
