package fs

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/dop251/goja"
	"github.com/spf13/afero"

	"jsbridge/dispatch"
	"jsbridge/js_exec/buffer"
	"jsbridge/js_module"
	"jsbridge/sandbox"
)

const ModuleName = "fs"

// FileSystem is the fs builtin of one context. Every path is checked with the delegate on the
// context goroutine; the async variants then do the I/O on the io queue.
type FileSystem struct {
	vm       *goja.Runtime
	owner    dispatch.Owner
	manager  *dispatch.Manager
	fs       afero.Fs
	delegate sandbox.Delegate
	root     string
}

type Options struct {
	FS       afero.Fs
	Delegate sandbox.Delegate
	// Root anchors relative paths. Defaults to the context's module root.
	Root string
}

func (f *FileSystem) path(v goja.Value) string {
	if goja.IsUndefined(v) || goja.IsNull(v) {
		panic(f.vm.NewTypeError("path must be a string"))
	}
	p := v.String()
	if !filepath.IsAbs(p) && f.root != "" {
		p = filepath.Join(f.root, p)
	}
	return filepath.Clean(p)
}

func (f *FileSystem) callback(call goja.FunctionCall, i int) goja.Callable {
	cb, _ := goja.AssertFunction(call.Argument(i))
	return cb
}

func (f *FileSystem) throw(err error) {
	panic(f.vm.NewGoError(err))
}

func (f *FileSystem) async(cb goja.Callable, work dispatch.Work) {
	if err := f.manager.AsyncExecuteOn(dispatch.IO, f.owner, work, cb); err != nil {
		f.throw(err)
	}
}

// denied wraps a veto as async work so it reaches the callback like any other failure.
func denied(err error) dispatch.Work {
	return func() ([]any, error) { return nil, err }
}

func (f *FileSystem) exists(p string) (bool, error) {
	_, err := f.fs.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (f *FileSystem) isDirectory(p string) (bool, error) {
	fi, err := f.fs.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return fi.IsDir(), nil
}

func (f *FileSystem) jsExistsSync(call goja.FunctionCall) goja.Value {
	p := f.path(call.Argument(0))
	if err := sandbox.CheckRead(f.delegate, p); err != nil {
		f.throw(err)
	}
	ok, err := f.exists(p)
	if err != nil {
		f.throw(err)
	}
	return f.vm.ToValue(ok)
}

func (f *FileSystem) jsExists(call goja.FunctionCall) goja.Value {
	p := f.path(call.Argument(0))
	cb := f.callback(call, 1)
	if err := sandbox.CheckRead(f.delegate, p); err != nil {
		f.async(cb, denied(err))
		return goja.Undefined()
	}
	f.async(cb, func() ([]any, error) {
		ok, err := f.exists(p)
		return []any{ok}, err
	})
	return goja.Undefined()
}

func (f *FileSystem) jsIsDirectorySync(call goja.FunctionCall) goja.Value {
	p := f.path(call.Argument(0))
	if err := sandbox.CheckRead(f.delegate, p); err != nil {
		f.throw(err)
	}
	ok, err := f.isDirectory(p)
	if err != nil {
		f.throw(err)
	}
	return f.vm.ToValue(ok)
}

func (f *FileSystem) jsIsDirectory(call goja.FunctionCall) goja.Value {
	p := f.path(call.Argument(0))
	cb := f.callback(call, 1)
	if err := sandbox.CheckRead(f.delegate, p); err != nil {
		f.async(cb, denied(err))
		return goja.Undefined()
	}
	f.async(cb, func() ([]any, error) {
		ok, err := f.isDirectory(p)
		return []any{ok}, err
	})
	return goja.Undefined()
}

func (f *FileSystem) jsReadFileSync(call goja.FunctionCall) goja.Value {
	p := f.path(call.Argument(0))
	if err := sandbox.CheckRead(f.delegate, p); err != nil {
		f.throw(err)
	}
	data, err := afero.ReadFile(f.fs, p)
	if err != nil {
		f.throw(err)
	}
	return buffer.Wrap(f.vm, buffer.FromBytes(data))
}

func (f *FileSystem) jsReadFile(call goja.FunctionCall) goja.Value {
	p := f.path(call.Argument(0))
	cb := f.callback(call, 1)
	if err := sandbox.CheckRead(f.delegate, p); err != nil {
		f.async(cb, denied(err))
		return goja.Undefined()
	}
	f.async(cb, func() ([]any, error) {
		data, err := afero.ReadFile(f.fs, p)
		if err != nil {
			return nil, err
		}
		return []any{buffer.FromBytes(data)}, nil
	})
	return goja.Undefined()
}

// content copies a DataBuffer or string argument so it can leave the context goroutine.
func (f *FileSystem) content(v goja.Value) []byte {
	if b, ok := buffer.Unwrap(v); ok {
		return append([]byte(nil), b.Bytes()...)
	}
	if goja.IsUndefined(v) || goja.IsNull(v) {
		panic(f.vm.NewTypeError("data must be a DataBuffer or a string"))
	}
	return []byte(v.String())
}

func (f *FileSystem) write(p string, data []byte) error {
	if err := f.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(f.fs, p, data, 0o644)
}

func (f *FileSystem) jsWriteFileSync(call goja.FunctionCall) goja.Value {
	p := f.path(call.Argument(0))
	data := f.content(call.Argument(1))
	if err := sandbox.CheckWrite(f.delegate, p); err != nil {
		f.throw(err)
	}
	if err := f.write(p, data); err != nil {
		f.throw(err)
	}
	return goja.Undefined()
}

func (f *FileSystem) jsWriteFile(call goja.FunctionCall) goja.Value {
	p := f.path(call.Argument(0))
	data := f.content(call.Argument(1))
	cb := f.callback(call, 2)
	if err := sandbox.CheckWrite(f.delegate, p); err != nil {
		f.async(cb, denied(err))
		return goja.Undefined()
	}
	f.async(cb, func() ([]any, error) {
		return nil, f.write(p, data)
	})
	return goja.Undefined()
}

func (f *FileSystem) jsUnlinkSync(call goja.FunctionCall) goja.Value {
	p := f.path(call.Argument(0))
	if err := sandbox.CheckDelete(f.delegate, p); err != nil {
		f.throw(err)
	}
	if err := f.fs.Remove(p); err != nil {
		f.throw(err)
	}
	return goja.Undefined()
}

func (f *FileSystem) jsUnlink(call goja.FunctionCall) goja.Value {
	p := f.path(call.Argument(0))
	cb := f.callback(call, 1)
	if err := sandbox.CheckDelete(f.delegate, p); err != nil {
		f.async(cb, denied(err))
		return goja.Undefined()
	}
	f.async(cb, func() ([]any, error) {
		return nil, f.fs.Remove(p)
	})
	return goja.Undefined()
}

type modulesHost interface {
	Modules() *js_module.Require
}

// ModuleFactory builds the fs builtin. The host must be a dispatch owner.
func ModuleFactory(manager *dispatch.Manager, opt Options) js_module.ModuleFactory {
	return func(host js_module.Host, module *goja.Object) {
		vm := host.Runtime()
		owner, ok := host.(dispatch.Owner)
		if !ok {
			panic(vm.NewTypeError("fs needs a context with an event loop"))
		}
		f := &FileSystem{
			vm:       vm,
			owner:    owner,
			manager:  manager,
			fs:       opt.FS,
			delegate: opt.Delegate,
			root:     opt.Root,
		}
		if m, ok := host.(modulesHost); ok && m.Modules() != nil {
			if f.fs == nil {
				f.fs = m.Modules().FS()
			}
			if f.delegate == nil {
				f.delegate = m.Modules().Delegate()
			}
			if f.root == "" {
				f.root = m.Modules().Root()
			}
		}
		if f.fs == nil {
			f.fs = afero.NewOsFs()
		}

		o := module.Get("exports").(*goja.Object)
		_ = o.Set("exists", f.jsExists)
		_ = o.Set("existsSync", f.jsExistsSync)
		_ = o.Set("isDirectory", f.jsIsDirectory)
		_ = o.Set("isDirectorySync", f.jsIsDirectorySync)
		_ = o.Set("readFile", f.jsReadFile)
		_ = o.Set("readFileSync", f.jsReadFileSync)
		_ = o.Set("writeFile", f.jsWriteFile)
		_ = o.Set("writeFileSync", f.jsWriteFileSync)
		_ = o.Set("unlink", f.jsUnlink)
		_ = o.Set("unlinkSync", f.jsUnlinkSync)
	}
}

// Register adds the fs builtin to registry.
func Register(registry *js_module.Registry, manager *dispatch.Manager, opt Options) error {
	return registry.Register(ModuleName, ModuleFactory(manager, opt))
}
