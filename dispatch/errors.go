package dispatch

import (
	"errors"
	"fmt"
)

// ErrUnknownQueue is returned for queue names the manager does not serve.
var ErrUnknownQueue = errors.New("unknown dispatch queue")

// BoundaryError is a panic recovered from work before it could cross back to the script.
type BoundaryError struct {
	Queue Queue
	Value any
}

func (e *BoundaryError) Error() string {
	return fmt.Sprintf("panic on %s queue: %v", e.Queue, e.Value)
}

func (e *BoundaryError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
