package js_exec

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"

	"jsbridge/dispatch"
	"jsbridge/js_module"
	"jsbridge/wait"
)

// ErrClosed is returned by operations on a closed context.
var ErrClosed = errors.New("context closed")

var _ dispatch.DropOwner = (*Context)(nil)

// Context is one isolated script environment with its own runtime, event loop, module cache
// and builtin instances. The runtime belongs to the loop goroutine: reach it through Do or
// RunOnLoop. Calling Do or Close from the loop goroutine itself deadlocks.
type Context struct {
	id       string
	loop     *eventloop.EventLoop
	vm       *goja.Runtime
	modules  *js_module.Require
	dispatch *dispatch.Manager
	factory  *Factory
	pending  wait.Wait
	values   sync.Map

	closeOnce sync.Once
	closed    chan struct{}

	hopMu  sync.Mutex
	hopSeq uint64
	hops   map[uint64]func()
	log       *log.Logger
}

func (c *Context) ID() string { return c.id }

// Runtime is only valid on the loop goroutine: inside Do, RunOnLoop, extensions and builtins.
func (c *Context) Runtime() *goja.Runtime { return c.vm }

func (c *Context) Modules() *js_module.Require { return c.modules }

func (c *Context) Dispatch() *dispatch.Manager { return c.dispatch }

// Pending counts dispatched work whose completion has not been delivered yet.
func (c *Context) Pending() *wait.Wait { return &c.pending }

// Logger is the context's component logger.
func (c *Context) Logger() *log.Logger { return c.log }

// SetValue stores per-context state for extensions.
func (c *Context) SetValue(key, value any) { c.values.Store(key, value) }

func (c *Context) Value(key any) (any, bool) { return c.values.Load(key) }

// RunOnLoop schedules fn on the loop goroutine. Jobs posted after Close, or still queued
// when it runs, are dropped.
func (c *Context) RunOnLoop(fn func(*goja.Runtime)) {
	c.RunOnLoopOrDrop(fn, nil)
}

// RunOnLoopOrDrop is RunOnLoop with a hook: dropped runs once, instead of fn, when Close
// discards the job. Dispatch completions use it to release their pending count.
func (c *Context) RunOnLoopOrDrop(fn func(*goja.Runtime), dropped func()) {
	c.hopMu.Lock()
	select {
	case <-c.closed:
		c.hopMu.Unlock()
		c.log.Debug("job dropped after close")
		if dropped != nil {
			dropped()
		}
		return
	default:
	}
	c.hopSeq++
	id := c.hopSeq
	if c.hops == nil {
		c.hops = make(map[uint64]func())
	}
	c.hops[id] = dropped
	c.hopMu.Unlock()

	c.loop.RunOnLoop(func(vm *goja.Runtime) {
		c.hopMu.Lock()
		_, live := c.hops[id]
		delete(c.hops, id)
		c.hopMu.Unlock()
		if live {
			fn(vm)
		}
	})
}

// Do runs fn on the loop goroutine and waits for it. Panics inside fn come back as errors.
func (c *Context) Do(fn func(vm *goja.Runtime) error) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	errc := make(chan error, 1)
	c.loop.RunOnLoop(func(vm *goja.Runtime) {
		errc <- guard(func() error { return fn(vm) })
	})
	select {
	case err := <-errc:
		return err
	case <-c.closed:
		return ErrClosed
	}
}

// Eval runs src as a classic script named name and returns its exported completion value.
func (c *Context) Eval(name, src string) (any, error) {
	var out any
	err := c.Do(func(vm *goja.Runtime) error {
		v, err := vm.RunScript(name, src)
		if err != nil {
			return err
		}
		out = v.Export()
		return nil
	})
	return out, err
}

// Require loads specifier from the main module (or the root) and returns its exported exports.
func (c *Context) Require(specifier string) (any, error) {
	var out any
	err := c.Do(func(*goja.Runtime) error {
		v, err := c.modules.Require(specifier, nil)
		if err != nil {
			return err
		}
		out = v.Export()
		return nil
	})
	return out, err
}

// RunMain loads path as the main module.
func (c *Context) RunMain(path string) error {
	return c.Do(func(*goja.Runtime) error {
		_, err := c.modules.RunMain(path)
		return err
	})
}

// RunMainSource runs src as the main module under the virtual filename.
func (c *Context) RunMainSource(filename, src string) error {
	return c.Do(func(*goja.Runtime) error {
		_, err := c.modules.RunMainSource(filename, src)
		return err
	})
}

// Interrupt aborts the script currently running on the loop. It is safe from any goroutine.
func (c *Context) Interrupt(reason any) {
	c.vm.Interrupt(reason)
}

// Wait blocks until every dispatched completion has been delivered or ctx ends.
func (c *Context) Wait(ctx context.Context) error {
	return c.pending.WaitContext(ctx)
}

// Close stops the loop. Completions still in flight, or queued but not yet run, are dropped
// and their pending count released, so Wait returns once the dispatched work has finished.
func (c *Context) Close() {
	c.closeOnce.Do(func() {
		c.hopMu.Lock()
		close(c.closed)
		queued := c.hops
		c.hops = nil
		c.hopMu.Unlock()

		c.loop.Stop()
		for _, dropped := range queued {
			if dropped != nil {
				dropped()
			}
		}
		c.log.Debug("context closed", "dropped", len(queued))
	})
}

func guard(fn func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			switch x := v.(type) {
			case error:
				err = x
			case goja.Value:
				err = errors.New(x.String())
			default:
				err = fmt.Errorf("%v", x)
			}
		}
	}()
	return fn()
}
