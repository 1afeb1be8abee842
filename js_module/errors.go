package js_module

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is wrapped by every resolution failure.
	ErrNotFound = errors.New("module not found")
	// ErrAlreadyRegistered is returned when a builtin name is registered twice.
	ErrAlreadyRegistered = errors.New("module already registered")
	// ErrInvalidName rejects builtin names that look like paths.
	ErrInvalidName = errors.New("invalid builtin module name")
	// ErrNoLoader means no loader is registered for the resolved extension.
	ErrNoLoader = errors.New("no loader registered for extension")
)

// ResolutionError reports a specifier that matched no builtin and no file.
type ResolutionError struct {
	Specifier string
	From      string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("Cannot find module '%s'", e.Specifier)
}

func (e *ResolutionError) Unwrap() error {
	return ErrNotFound
}

// LoadError wraps the failure of a loader or builtin factory.
type LoadError struct {
	Path  string
	Cause error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load module %s: %v", e.Path, e.Cause)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}
