package dispatch

import (
	"github.com/dop251/goja"

	"jsbridge/js_module"
)

const ModuleName = "dispatch"

// ModuleFactory returns the builtin that lets scripts hop through a queue:
//
//	const dispatch = require("dispatch")
//	dispatch.async(dispatch.ioQueue, function (a) { ... }, 1)
//
// The function itself always runs back on the owning goroutine.
func (m *Manager) ModuleFactory() js_module.ModuleFactory {
	return func(host js_module.Host, module *goja.Object) {
		vm := host.Runtime()
		owner, ok := host.(Owner)
		if !ok {
			panic(vm.NewTypeError("dispatch needs a context with an event loop"))
		}
		exposed := map[Queue]bool{}
		names := make([]interface{}, 0, 4)
		for _, q := range m.Queues() {
			exposed[q] = true
			names = append(names, string(q))
		}

		exports := module.Get("exports").(*goja.Object)
		_ = exports.Set("mainQueue", string(Main))
		_ = exports.Set("ioQueue", string(IO))
		_ = exports.Set("backgroundQueue", string(Background))
		if exposed[UI] {
			_ = exports.Set("uiQueue", string(UI))
		}
		_ = exports.Set("queues", vm.NewArray(names...))

		_ = exports.Set("async", func(call goja.FunctionCall) goja.Value {
			q := Queue(call.Argument(0).String())
			if !exposed[q] {
				panic(vm.NewTypeError("unknown dispatch queue %q", string(q)))
			}
			fn, ok := goja.AssertFunction(call.Argument(1))
			if !ok {
				panic(vm.NewTypeError("dispatch.async expects a function"))
			}
			var args []goja.Value
			if len(call.Arguments) > 2 {
				args = append(args, call.Arguments[2:]...)
			}
			err := m.Dispatch(q, owner, func() ([]any, error) { return nil, nil }, func(*goja.Runtime, []any, error) {
				if _, err := fn(goja.Undefined(), args...); err != nil {
					m.log.Error("async function threw", "queue", q, "err", err)
				}
			})
			if err != nil {
				panic(vm.NewGoError(err))
			}
			return goja.Undefined()
		})
	}
}
