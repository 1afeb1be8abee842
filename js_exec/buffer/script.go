package buffer

import (
	"errors"

	"github.com/dop251/goja"

	"jsbridge/js_exec"
	"jsbridge/js_module"
)

const (
	ModuleName = "buffer"
	GlobalName = "DataBuffer"
)

var nativeKey = goja.NewSymbol("jsbridge.DataBuffer")

// ToValue wraps b for the runtime; DataBuffer results cross dispatch queues this way.
func (b *DataBuffer) ToValue(vm *goja.Runtime) goja.Value {
	return Wrap(vm, b)
}

// Unwrap returns the buffer behind a script DataBuffer.
func Unwrap(v goja.Value) (*DataBuffer, bool) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, false
	}
	native := obj.GetSymbol(nativeKey)
	if native == nil {
		return nil, false
	}
	b, ok := native.Export().(*DataBuffer)
	return b, ok
}

type script struct {
	vm *goja.Runtime
}

// throw raises err as a RangeError for bounds failures and a TypeError otherwise.
func (s script) throw(err error) {
	if errors.Is(err, ErrOutOfRange) {
		if ctor := s.vm.Get("RangeError"); ctor != nil {
			if obj, e := s.vm.New(ctor, s.vm.ToValue(err.Error())); e == nil {
				panic(obj)
			}
		}
	}
	panic(s.vm.NewTypeError(err.Error()))
}

func (s script) arg(call goja.FunctionCall, i int) *DataBuffer {
	b, ok := Unwrap(call.Argument(i))
	if !ok {
		panic(s.vm.NewTypeError("argument %d must be a DataBuffer", i))
	}
	return b
}

func (s script) index(call goja.FunctionCall, i int) int {
	v := call.Argument(i)
	if goja.IsUndefined(v) || goja.IsNull(v) {
		panic(s.vm.NewTypeError("argument %d must be a number", i))
	}
	return int(v.ToInteger())
}

// Wrap exposes b to scripts.
func Wrap(vm *goja.Runtime, b *DataBuffer) *goja.Object {
	s := script{vm: vm}
	o := vm.NewObject()
	_ = o.SetSymbol(nativeKey, vm.ToValue(b))

	_ = o.DefineAccessorProperty("length", vm.ToValue(func(goja.FunctionCall) goja.Value {
		return vm.ToValue(b.Len())
	}), vm.ToValue(func(call goja.FunctionCall) goja.Value {
		if err := b.SetLen(int(call.Argument(0).ToInteger())); err != nil {
			s.throw(err)
		}
		return goja.Undefined()
	}), goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = o.DefineAccessorProperty("hexString", vm.ToValue(func(goja.FunctionCall) goja.Value {
		return vm.ToValue(b.Hex())
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)

	_ = o.Set("byte", func(call goja.FunctionCall) goja.Value {
		switch len(call.Arguments) {
		case 0:
			items := make([]interface{}, b.Len())
			for i, c := range b.Bytes() {
				items[i] = int64(c)
			}
			return vm.NewArray(items...)
		case 1:
			c, err := b.Byte(s.index(call, 0))
			if err != nil {
				s.throw(err)
			}
			return vm.ToValue(int64(c))
		}
		v := call.Argument(1).ToInteger()
		if v < 0 || v > 255 {
			s.throw(ErrOutOfRange)
		}
		if err := b.SetByte(s.index(call, 0), byte(v)); err != nil {
			s.throw(err)
		}
		return goja.Undefined()
	})
	_ = o.Set("equal", func(call goja.FunctionCall) goja.Value {
		other, ok := Unwrap(call.Argument(0))
		return vm.ToValue(ok && b.Equal(other))
	})
	_ = o.Set("append", func(call goja.FunctionCall) goja.Value {
		b.Append(s.arg(call, 0))
		return goja.Undefined()
	})
	_ = o.Set("insert", func(call goja.FunctionCall) goja.Value {
		if err := b.Insert(s.arg(call, 0), s.index(call, 1)); err != nil {
			s.throw(err)
		}
		return goja.Undefined()
	})
	_ = o.Set("delete", func(call goja.FunctionCall) goja.Value {
		if err := b.Delete(s.index(call, 0), s.index(call, 1)); err != nil {
			s.throw(err)
		}
		return goja.Undefined()
	})
	_ = o.Set("subDataBuffer", func(call goja.FunctionCall) goja.Value {
		sub, err := b.Sub(s.index(call, 0), s.index(call, 1))
		if err != nil {
			s.throw(err)
		}
		return Wrap(vm, sub)
	})
	_ = o.Set("copyAsNewDataBuffer", func(goja.FunctionCall) goja.Value {
		return Wrap(vm, b.Clone())
	})
	_ = o.Set("toString", func(goja.FunctionCall) goja.Value {
		return vm.ToValue("<DataBuffer " + b.Hex() + ">")
	})
	return o
}

// Require populates the buffer builtin: the DataBuffer constructors.
func Require(runtime *goja.Runtime, module *goja.Object) {
	s := script{vm: runtime}
	o := module.Get("exports").(*goja.Object)
	_ = o.Set("create", func(call goja.FunctionCall) goja.Value {
		n := 0
		if v := call.Argument(0); !goja.IsUndefined(v) {
			n = int(v.ToInteger())
		}
		b, err := New(n)
		if err != nil {
			s.throw(err)
		}
		return Wrap(runtime, b)
	})
	_ = o.Set("fromHexString", func(call goja.FunctionCall) goja.Value {
		b, err := FromHex(call.Argument(0).String())
		if err != nil {
			s.throw(err)
		}
		return Wrap(runtime, b)
	})
	_ = o.Set("fromByteArray", func(call goja.FunctionCall) goja.Value {
		var items []interface{}
		if err := runtime.ExportTo(call.Argument(0), &items); err != nil {
			panic(runtime.NewTypeError("fromByteArray expects an array of bytes"))
		}
		data := make([]byte, len(items))
		for i, item := range items {
			v := runtime.ToValue(item).ToInteger()
			if v < 0 || v > 255 {
				s.throw(ErrOutOfRange)
			}
			data[i] = byte(v)
		}
		return Wrap(runtime, &DataBuffer{data: data})
	})
	_ = o.Set("isDataBuffer", func(call goja.FunctionCall) goja.Value {
		_, ok := Unwrap(call.Argument(0))
		return runtime.ToValue(ok)
	})
}

// Register adds the buffer builtin to registry.
func Register(registry *js_module.Registry) error {
	return registry.RegisterNativeModule(ModuleName, Require)
}

// Extension binds the global DataBuffer.
func Extension() js_exec.Extension {
	return js_exec.Named(GlobalName, func(c *js_exec.Context) error {
		v, err := c.Modules().Require(ModuleName, nil)
		if err != nil {
			return err
		}
		return c.Runtime().Set(GlobalName, v)
	})
}
