package events

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEmitterRuntime(t *testing.T) *goja.Runtime {
	t.Helper()
	vm := goja.New()
	module := vm.NewObject()
	require.NoError(t, module.Set("exports", vm.NewObject()))
	Require(vm, module)
	require.NoError(t, vm.Set("EventEmitter", module.Get("exports")))
	return vm
}

func TestEventEmitter(t *testing.T) {
	vm := newEmitterRuntime(t)
	v, err := vm.RunString(`
		var e = new EventEmitter();
		var seen = [];
		function onData(x) { seen.push("on:" + x); }
		e.on("data", onData);
		e.once("data", function(x) { seen.push("once:" + x); });
		e.emit("data", 1);
		e.emit("data", 2);
		e.removeListener("data", onData);
		var handled = e.emit("data", 3);
		seen.join(",") + "|" + handled + "|" + e.listenerCount("data")`)
	require.NoError(t, err)
	assert.Equal(t, "on:1,once:1,on:2|false|0", v.String())
}

func TestEventEmitterMeta(t *testing.T) {
	vm := newEmitterRuntime(t)
	v, err := vm.RunString(`
		var e = new EventEmitter.EventEmitter();
		var added = [];
		e.on("newListener", function(name) { added.push(name); });
		e.on("a", function() {});
		e.on("b", function() {});
		e.removeAllListeners("a");
		e.setMaxListeners(3);
		added.join(",") + "|" + e.listenerCount("a") + "|" + e.getMaxListeners()`)
	require.NoError(t, err)
	assert.Equal(t, "a,b|0|3", v.String())

	_, err = vm.RunString(`new EventEmitter().on("x", 42)`)
	assert.Error(t, err)
}
