// Package sandbox holds the filesystem permission delegate consulted before any file access
// reachable from script. The policy itself belongs to the host.
package sandbox

import (
	"errors"
	"fmt"
)

// ErrPermissionDenied is wrapped by every delegate veto.
var ErrPermissionDenied = errors.New("permission denied")

// Delegate decides which paths scripts may touch. Implementations must be cheap: they run on
// the goroutine that owns the script runtime.
type Delegate interface {
	CanRead(path string) bool
	CanWrite(path string) bool
	CanDelete(path string) bool
}

// Permissive allows everything; it is what a nil delegate means.
type Permissive struct{}

func (Permissive) CanRead(string) bool   { return true }
func (Permissive) CanWrite(string) bool  { return true }
func (Permissive) CanDelete(string) bool { return true }

// Op names the vetoed access.
type Op string

const (
	OpRead   Op = "read"
	OpWrite  Op = "write"
	OpDelete Op = "delete"
)

// PermissionError reports a delegate veto.
type PermissionError struct {
	Op   Op
	Path string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Path, ErrPermissionDenied)
}

func (e *PermissionError) Unwrap() error {
	return ErrPermissionDenied
}

// Check asks d (or the permissive default when d is nil) about op on path.
func Check(d Delegate, op Op, path string) error {
	if d == nil {
		return nil
	}
	var ok bool
	switch op {
	case OpRead:
		ok = d.CanRead(path)
	case OpWrite:
		ok = d.CanWrite(path)
	case OpDelete:
		ok = d.CanDelete(path)
	}
	if !ok {
		return &PermissionError{Op: op, Path: path}
	}
	return nil
}

func CheckRead(d Delegate, path string) error   { return Check(d, OpRead, path) }
func CheckWrite(d Delegate, path string) error  { return Check(d, OpWrite, path) }
func CheckDelete(d Delegate, path string) error { return Check(d, OpDelete, path) }

// Func adapts plain functions; a nil field allows the operation.
type Func struct {
	Read   func(path string) bool
	Write  func(path string) bool
	Delete func(path string) bool
}

func (f Func) CanRead(path string) bool   { return f.Read == nil || f.Read(path) }
func (f Func) CanWrite(path string) bool  { return f.Write == nil || f.Write(path) }
func (f Func) CanDelete(path string) bool { return f.Delete == nil || f.Delete(path) }
