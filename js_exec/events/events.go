// Package events provides the events builtin, a script EventEmitter.
package events

import (
	_ "embed"

	"github.com/dop251/goja"

	"jsbridge/js_module"
)

const ModuleName = "events"

//go:embed events.js
var source string

// program is compiled once and shared; a goja.Program carries no runtime state.
var program = goja.MustCompile(ModuleName+".js",
	"(function(exports, require, module) {"+source+"\n})", false)

func Require(runtime *goja.Runtime, module *goja.Object) {
	fn, err := runtime.RunProgram(program)
	if err != nil {
		panic(err)
	}
	call, ok := goja.AssertFunction(fn)
	if !ok {
		panic(runtime.NewTypeError("events wrapper is not a function"))
	}
	req := runtime.Get("require")
	if req == nil {
		req = goja.Undefined()
	}
	exports := module.Get("exports")
	if _, err := call(exports, exports, req, module); err != nil {
		panic(err)
	}
}

// Register adds the events builtin to registry.
func Register(registry *js_module.Registry) error {
	return registry.RegisterNativeModule(ModuleName, Require)
}
