package js_module

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const packageManifest = "package.json"

// Resolve maps specifier to a canonical identity: a builtin name or an absolute file path.
// Relative specifiers are anchored at from's directory; a nil from means the main module, or
// the context root while no main module is set.
func (r *Require) Resolve(specifier string, from *Module) (string, error) {
	if specifier == "" {
		return "", r.notFound(specifier, from)
	}
	if _, ok := r.registry.Lookup(specifier); ok {
		return specifier, nil
	}
	if from == nil {
		from = r.entry()
	}

	if isPathSpecifier(specifier) {
		p := specifier
		if !filepath.IsAbs(p) {
			p = filepath.Join(from.Dir(), p)
		}
		p = filepath.Clean(p)
		if !r.withinRoot(p) {
			return "", r.notFound(specifier, from)
		}
		if id, ok := r.resolveFileOrDirectory(p); ok {
			return id, nil
		}
		return "", r.notFound(specifier, from)
	}

	for _, dir := range r.searchDirs(from) {
		if id, ok := r.resolveFileOrDirectory(filepath.Join(dir, specifier)); ok {
			return id, nil
		}
	}
	return "", r.notFound(specifier, from)
}

func (r *Require) notFound(specifier string, from *Module) error {
	e := &ResolutionError{Specifier: specifier}
	if from != nil {
		e.From = from.id
	}
	return e
}

func isPathSpecifier(s string) bool {
	return s == "." || s == ".." ||
		strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") ||
		filepath.IsAbs(s)
}

// withinRoot reports whether p stays inside the root boundary. An empty root means no bound.
// p is compared after symlink evaluation against the canonical root, and as written against
// the root as configured, so both a link to the root and the root's real path are inside.
func (r *Require) withinRoot(p string) bool {
	if r.root == "" {
		return true
	}
	return within(r.root, r.canonical(p)) || within(r.rootAsGiven, absPath(p))
}

func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// searchDirs lists where bare specifiers are looked up for from, in order: package folders
// from from's directory up to the root, from's extra paths, the configured global folders and
// the context-wide search paths.
func (r *Require) searchDirs(from *Module) []string {
	var dirs []string
	if r.packagesDir != "" {
		dir := from.Dir()
		for dir != "" && r.withinRoot(dir) {
			dirs = append(dirs, filepath.Join(dir, r.packagesDir))
			parent := filepath.Dir(dir)
			if parent == dir || dir == r.root {
				break
			}
			dir = parent
		}
	}
	if len(from.Paths) > 1 {
		dirs = append(dirs, from.Paths[1:]...)
	}
	dirs = append(dirs, r.globalFolders...)
	if base := r.base; base != from && len(base.Paths) > 1 {
		dirs = append(dirs, base.Paths[1:]...)
	}
	return dirs
}

func (r *Require) resolveFileOrDirectory(p string) (string, bool) {
	if id, ok := r.resolveFile(p); ok {
		return id, true
	}
	return r.resolveDirectory(p)
}

// resolveFile tests p directly when its extension has a loader, then tries p+ext for every
// registered extension.
func (r *Require) resolveFile(p string) (string, bool) {
	if ext := filepath.Ext(p); ext != "" {
		if _, ok := r.extensions.Lookup(ext); ok && r.isFile(p) {
			return r.canonical(p), true
		}
	}
	for _, ext := range r.extensions.Extensions() {
		if c := p + ext; r.isFile(c) {
			return r.canonical(c), true
		}
	}
	return "", false
}

func (r *Require) resolveDirectory(p string) (string, bool) {
	if !r.isDir(p) {
		return "", false
	}
	if main := r.packageMain(p); main != "" {
		target := filepath.Join(p, main)
		if within(p, target) {
			if r.isFile(target) {
				return r.canonical(target), true
			}
			if id, ok := r.resolveFile(target); ok {
				return id, true
			}
			if id, ok := r.resolveFile(filepath.Join(target, "index")); ok {
				return id, true
			}
		}
	}
	return r.resolveFile(filepath.Join(p, "index"))
}

func (r *Require) packageMain(dir string) string {
	data, err := afero.ReadFile(r.fs, filepath.Join(dir, packageManifest))
	if err != nil {
		return ""
	}
	var manifest struct {
		Main string `json:"main"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return ""
	}
	return manifest.Main
}

func (r *Require) isFile(p string) bool {
	fi, err := r.fs.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}

func (r *Require) isDir(p string) bool {
	fi, err := r.fs.Stat(p)
	return err == nil && fi.IsDir()
}

// canonical returns the cleaned absolute form of p. On the OS fs symlinks are evaluated for
// the longest existing prefix, so paths that do not exist yet still get the real directory.
func (r *Require) canonical(p string) string {
	p = absPath(p)
	if _, ok := r.fs.(*afero.OsFs); !ok || p == "" {
		return p
	}
	rest := ""
	for dir := p; ; {
		if real, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(real, rest)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return p
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}

func absPath(p string) string {
	if p == "" {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
