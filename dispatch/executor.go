package dispatch

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Executor runs submitted tasks. Submit must not block on the task itself.
type Executor interface {
	Submit(task func())
}

// ExecutorFunc lets a plain function act as an Executor, e.g. a host UI thread poster.
type ExecutorFunc func(task func())

func (f ExecutorFunc) Submit(task func()) { f(task) }

// Serial runs tasks one at a time in submission order.
type Serial struct {
	mu      sync.Mutex
	tasks   []func()
	running bool
}

func NewSerial() *Serial {
	return &Serial{}
}

func (s *Serial) Submit(task func()) {
	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()
	go s.drain()
}

func (s *Serial) drain() {
	for {
		s.mu.Lock()
		if len(s.tasks) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		task := s.tasks[0]
		s.tasks[0] = nil
		s.tasks = s.tasks[1:]
		s.mu.Unlock()
		task()
	}
}

// Pool runs up to n tasks concurrently.
type Pool struct {
	sem *semaphore.Weighted
}

func NewPool(n int64) *Pool {
	if n < 1 {
		n = 1
	}
	return &Pool{sem: semaphore.NewWeighted(n)}
}

func (p *Pool) Submit(task func()) {
	go func() {
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)
		task()
	}()
}
