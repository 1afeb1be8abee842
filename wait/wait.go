package wait

import (
	"context"
	"sync"
	"time"
)

// Wait counts outstanding asynchronous work owned by a script context.
type Wait struct {
	waitGroup sync.WaitGroup
}

func (w *Wait) Add(d int) {
	w.waitGroup.Add(d)
}

func (w *Wait) Wait() {
	w.waitGroup.Wait()
}
func (w *Wait) Done() {
	w.waitGroup.Done()
}

// WaitTimeOut
// wait if counter is zero or timeout.
// if timout return true.
func (w *Wait) WaitTimeOut(timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return w.WaitContext(ctx) != nil
}

// WaitContext blocks until the counter drops to zero or ctx ends, returning ctx.Err() in
// the latter case. The helper goroutine exits once the counter reaches zero.
func (w *Wait) WaitContext(ctx context.Context) error {
	c := make(chan struct{})
	go func() {
		defer close(c)
		w.Wait()
	}()

	select {
	case <-c:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
