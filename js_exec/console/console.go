package console

import (
	"strings"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/util"

	"jsbridge/js_exec"
	"jsbridge/js_module"
)

const ModuleName = "console"

type Level string

const (
	Debug Level = "debug"
	Log   Level = "log"
	Info  Level = "info"
	Warn  Level = "warn"
	Error Level = "error"
)

var Levels = []Level{Debug, Log, Info, Warn, Error}

type Console struct {
	host   js_module.Host
	sink   Sink
	format goja.Callable
	util   goja.Value
}

func (c *Console) print(level Level) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		c.sink.Write(c.message(call.Arguments), level, c.host)
		return goja.Undefined()
	}
}

func (c *Console) message(args []goja.Value) string {
	if c.format != nil {
		ret, err := c.format(c.util, args...)
		if err != nil {
			panic(err)
		}
		return ret.String()
	}
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, " ")
}

type modulesHost interface {
	Modules() *js_module.Require
}

// loadUtil finds util.format through the context's module system; plain joining is used when
// util is not registered.
func (c *Console) loadUtil() {
	h, ok := c.host.(modulesHost)
	if !ok || h.Modules() == nil {
		return
	}
	u, err := h.Modules().Require(util.ModuleName, nil)
	if err != nil {
		return
	}
	obj := u.ToObject(c.host.Runtime())
	if format, ok := goja.AssertFunction(obj.Get("format")); ok {
		c.util, c.format = obj, format
	}
}

// ModuleFactory builds the console builtin writing to sink.
func ModuleFactory(sink Sink) js_module.ModuleFactory {
	return func(host js_module.Host, module *goja.Object) {
		c := &Console{host: host, sink: sink}
		c.loadUtil()

		o := module.Get("exports").(*goja.Object)
		for _, level := range Levels {
			_ = o.Set(string(level), c.print(level))
		}
	}
}

// Register adds the console builtin to registry.
func Register(registry *js_module.Registry, sink Sink) error {
	return registry.Register(ModuleName, ModuleFactory(sink))
}

// Extension binds the global console to the builtin.
func Extension() js_exec.Extension {
	return js_exec.Named(ModuleName, func(c *js_exec.Context) error {
		v, err := c.Modules().Require(ModuleName, nil)
		if err != nil {
			return err
		}
		return c.Runtime().Set("console", v)
	})
}
