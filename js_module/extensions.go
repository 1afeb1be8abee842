package js_module

import (
	"strings"
)

// Loader populates m's exports from the file at filename.
type Loader func(r *Require, m *Module, filename string) error

// Extensions maps file extensions to loaders for one context. Lookup order is the explicit
// priority list first, then registration order; overwriting an extension keeps its position.
type Extensions struct {
	loaders  map[string]Loader
	order    []string
	priority []string
}

func NewExtensions(priority ...string) *Extensions {
	e := &Extensions{loaders: make(map[string]Loader)}
	e.SetPriority(priority...)
	return e
}

func normalizeExt(ext string) string {
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}

// Register binds ext to l, replacing any previous loader. A nil loader removes ext.
func (e *Extensions) Register(ext string, l Loader) {
	ext = normalizeExt(ext)
	if ext == "" {
		return
	}
	if l == nil {
		e.Remove(ext)
		return
	}
	if _, ok := e.loaders[ext]; !ok {
		e.order = append(e.order, ext)
	}
	e.loaders[ext] = l
}

func (e *Extensions) Remove(ext string) bool {
	ext = normalizeExt(ext)
	if _, ok := e.loaders[ext]; !ok {
		return false
	}
	delete(e.loaders, ext)
	for i, k := range e.order {
		if k == ext {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return true
}

func (e *Extensions) Lookup(ext string) (Loader, bool) {
	l, ok := e.loaders[normalizeExt(ext)]
	return l, ok
}

// SetPriority puts the listed extensions ahead of the registration order when probing.
func (e *Extensions) SetPriority(exts ...string) {
	e.priority = e.priority[:0]
	for _, ext := range exts {
		if ext = normalizeExt(ext); ext != "" {
			e.priority = append(e.priority, ext)
		}
	}
}

// Extensions returns registered extensions in lookup order.
func (e *Extensions) Extensions() []string {
	out := make([]string, 0, len(e.order))
	seen := make(map[string]bool, len(e.order))
	for _, ext := range e.priority {
		if _, ok := e.loaders[ext]; ok && !seen[ext] {
			out = append(out, ext)
			seen[ext] = true
		}
	}
	for _, ext := range e.order {
		if !seen[ext] {
			out = append(out, ext)
		}
	}
	return out
}
