package storage

import (
	"context"

	"github.com/dop251/goja"
)

// found converts a lookup into the value handed to scripts: the string, or null.
func found(val string, ok bool, err error) (any, error) {
	if err != nil || !ok {
		return nil, err
	}
	return val, nil
}

// jsGet is kv.get(key, callback(err, value|null)).
func (d *DB) jsGet(call goja.FunctionCall) goja.Value {
	key := d.key(call.Argument(0).String())
	cb, _ := goja.AssertFunction(call.Argument(1))
	d.run(cb, func(ctx context.Context) (any, error) {
		return found(d.store.Get(ctx, key))
	})
	return goja.Undefined()
}

// jsDel is kv.del(key...[, callback(err, removed)]).
func (d *DB) jsDel(call goja.FunctionCall) goja.Value {
	args := call.Arguments
	var cb goja.Callable
	if n := len(args); n > 0 {
		if fn, ok := goja.AssertFunction(args[n-1]); ok {
			cb, args = fn, args[:n-1]
		}
	}
	keys := make([]string, len(args))
	for i := 0; i < len(args); i++ {
		keys[i] = d.key(args[i].String())
	}
	if len(keys) == 0 {
		panic(d.runtime.NewTypeError("kv.del needs at least one key"))
	}
	d.run(cb, func(ctx context.Context) (any, error) {
		return d.store.Del(ctx, keys...)
	})
	return goja.Undefined()
}

// parseOption reads {ex, px, xx, nx}; absent fields stay unset.
func (d *DB) parseOption(v goja.Value) expireOption {
	option := expireOption{}
	if !argCheck(v) {
		return option
	}
	opt := v.ToObject(d.runtime)
	if ex := opt.Get("ex"); argCheck(ex) {
		exVal := ex.ToInteger()
		option.ex = &exVal
	}
	if px := opt.Get("px"); argCheck(px) {
		pxVal := px.ToInteger()
		option.px = &pxVal
	}
	if xx := opt.Get("xx"); argCheck(xx) {
		option.xx = xx.ToBoolean()
	}
	if nx := opt.Get("nx"); argCheck(nx) {
		option.nx = nx.ToBoolean()
	}
	return option
}

// optionAndCallback splits the optional options object from the trailing callback.
func (d *DB) optionAndCallback(call goja.FunctionCall, at int) (expireOption, goja.Callable) {
	if cb, ok := goja.AssertFunction(call.Argument(at)); ok {
		return expireOption{}, cb
	}
	cb, _ := goja.AssertFunction(call.Argument(at + 1))
	return d.parseOption(call.Argument(at)), cb
}

// jsSet
// set key value into the store.
//
// key:string;
//
// value:string;
//
// [options]:
//
//	{
//		ex:number,
//		px:number,
//		xx:boolean,
//		nx:boolean
//	}
//
// callback(err, stored:boolean)
func (d *DB) jsSet(call goja.FunctionCall) goja.Value {
	key := d.key(call.Argument(0).String())
	val := call.Argument(1).String()
	option, cb := d.optionAndCallback(call, 2)
	d.run(cb, func(ctx context.Context) (any, error) {
		return d.store.Set(ctx, key, val, option)
	})
	return goja.Undefined()
}

// jsGetEx
// read a key and reset its expiry.
//
// key:string
//
// [option]:
//
//	{
//		ex:number,
//		px:number
//	}
//
// callback(err, value|null)
func (d *DB) jsGetEx(call goja.FunctionCall) goja.Value {
	key := d.key(call.Argument(0).String())
	option, cb := d.optionAndCallback(call, 1)
	d.run(cb, func(ctx context.Context) (any, error) {
		return found(d.store.GetEx(ctx, key, option))
	})
	return goja.Undefined()
}
