// Package dispatch runs host work on named queues and marshals every completion back onto the
// goroutine that owns the requesting script context, exactly once.
package dispatch

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/dop251/goja"

	"jsbridge/logger"
	"jsbridge/wait"
)

// Queue names an execution queue.
type Queue string

const (
	UI         Queue = "ui"
	IO         Queue = "io"
	Main       Queue = "main"
	Background Queue = "background"
)

// Owner is the script context a completion is delivered to. RunOnLoop schedules fn on the
// owning goroutine; Pending counts deliveries not yet made.
type Owner interface {
	RunOnLoop(fn func(*goja.Runtime))
	Pending() *wait.Wait
}

// DropOwner is implemented by owners that can discard a hop, for example once they are closed.
// dropped runs exactly once, in place of fn, for every hop that will never run.
type DropOwner interface {
	Owner
	RunOnLoopOrDrop(fn func(*goja.Runtime), dropped func())
}

// Work runs off the owning goroutine and must not touch the script runtime.
type Work func() ([]any, error)

// Done receives the outcome of Work on the owning goroutine.
type Done func(vm *goja.Runtime, results []any, err error)

// Marshaler is implemented by results that need the owning runtime to become script values.
type Marshaler interface {
	ToValue(vm *goja.Runtime) goja.Value
}

type Options struct {
	IOWorkers         int64
	BackgroundWorkers int64
	ExposeUIQueue     bool
}

// Manager owns the queues. It is shared by every context of the process.
type Manager struct {
	mu       sync.RWMutex
	queues   map[Queue]Executor
	exposeUI bool

	inflight wait.Wait
	log      *log.Logger
}

func NewManager(opt Options) *Manager {
	if opt.IOWorkers < 1 {
		opt.IOWorkers = 8
	}
	if opt.BackgroundWorkers < 1 {
		opt.BackgroundWorkers = 4
	}
	return &Manager{
		queues: map[Queue]Executor{
			UI:         NewSerial(),
			Main:       NewSerial(),
			IO:         NewPool(opt.IOWorkers),
			Background: NewPool(opt.BackgroundWorkers),
		},
		exposeUI: opt.ExposeUIQueue,
		log:      logger.With("component", "dispatch"),
	}
}

// Bind replaces the executor behind q, e.g. to post ui work to the host's UI thread.
func (m *Manager) Bind(q Queue, e Executor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[q] = e
}

func (m *Manager) Executor(q Queue) (Executor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.queues[q]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownQueue, q)
	}
	return e, nil
}

// SetExposeUIQueue controls whether scripts are told about the ui queue.
func (m *Manager) SetExposeUIQueue(expose bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exposeUI = expose
}

func (m *Manager) ExposeUIQueue() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.exposeUI
}

// Queues lists the queues advertised to scripts.
func (m *Manager) Queues() []Queue {
	qs := []Queue{Main, IO, Background}
	if m.ExposeUIQueue() {
		qs = append(qs, UI)
	}
	return qs
}

// Dispatch runs work on q and delivers the outcome to done on owner's goroutine. An error is
// returned, and done never runs, only when q is unknown.
func (m *Manager) Dispatch(q Queue, owner Owner, work Work, done Done) error {
	e, err := m.Executor(q)
	if err != nil {
		return err
	}
	p := newPending(owner, done)
	owner.Pending().Add(1)
	m.inflight.Add(1)
	e.Submit(func() {
		defer m.inflight.Done()
		results, err := run(q, work)
		if err != nil {
			m.log.Debug("work failed", "queue", q, "err", err)
		}
		p.complete(results, err)
	})
	return nil
}

// AsyncExecute runs work on the background queue; see AsyncExecuteOn.
func (m *Manager) AsyncExecute(owner Owner, work Work, callback goja.Callable) error {
	return m.AsyncExecuteOn(Background, owner, work, callback)
}

// AsyncExecuteOn runs work on q and calls callback once on owner's goroutine as
// callback(err, ...results), err being null on success. A nil callback discards the outcome.
func (m *Manager) AsyncExecuteOn(q Queue, owner Owner, work Work, callback goja.Callable) error {
	return m.Dispatch(q, owner, work, func(vm *goja.Runtime, results []any, err error) {
		if callback == nil {
			return
		}
		args := []goja.Value{goja.Null()}
		if err != nil {
			args[0] = ErrorValue(vm, err)
		} else {
			for _, r := range results {
				args = append(args, ToValue(vm, r))
			}
		}
		if _, err := callback(goja.Undefined(), args...); err != nil {
			m.log.Error("callback threw", "queue", q, "err", err)
		}
	})
}

// Shutdown blocks until every submitted task has finished running.
func (m *Manager) Shutdown() {
	m.inflight.Wait()
}

func run(q Queue, work Work) (results []any, err error) {
	defer func() {
		if v := recover(); v != nil {
			results, err = nil, &BoundaryError{Queue: q, Value: v}
		}
	}()
	return work()
}

// ToValue converts a work result on the owning goroutine.
func ToValue(vm *goja.Runtime, v any) goja.Value {
	switch x := v.(type) {
	case nil:
		return goja.Null()
	case goja.Value:
		return x
	case Marshaler:
		return x.ToValue(vm)
	}
	return vm.ToValue(v)
}

// ErrorValue converts a work error into a script Error.
func ErrorValue(vm *goja.Runtime, err error) goja.Value {
	if m, ok := err.(Marshaler); ok {
		return m.ToValue(vm)
	}
	return vm.NewGoError(err)
}
