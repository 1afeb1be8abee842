package js_module

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dop251/goja"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	wrapperHead = "(function(exports, require, module, __filename, __dirname) {"
	wrapperTail = "\n})"
)

// RegisterDefaultLoaders installs the built-in file loaders in lookup order.
func RegisterDefaultLoaders(e *Extensions) {
	e.Register(".js", LoadJavaScript)
	e.Register(".json", LoadJSON)
	e.Register(".ts", LoadTypeScript)
	e.Register(".yaml", LoadYAML)
	e.Register(".yml", LoadYAML)
	e.Register(".toml", LoadTOML)
}

// LoadJavaScript evaluates a CommonJS source file.
func LoadJavaScript(r *Require, m *Module, filename string) error {
	src, err := r.ReadFile(filename)
	if err != nil {
		return err
	}
	return r.RunSource(m, filename, string(src))
}

// RunSource evaluates src as the body of m inside the CommonJS wrapper, with this bound to
// module.exports.
func (r *Require) RunSource(m *Module, filename, src string) error {
	if strings.HasPrefix(src, "#!") {
		src = "//" + src[2:]
	}
	prog, err := goja.Compile(filename, wrapperHead+src+wrapperTail, false)
	if err != nil {
		return err
	}
	vm := r.runtime
	v, err := vm.RunProgram(prog)
	if err != nil {
		return err
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return fmt.Errorf("module wrapper for %s is not a function", filename)
	}
	exports := m.Exports()
	_, err = fn(exports, exports, m.requireFn, m.object, vm.ToValue(filename), vm.ToValue(filepath.Dir(filename)))
	return err
}

// LoadJSON sets module.exports to the parsed document.
func LoadJSON(r *Require, m *Module, filename string) error {
	src, err := r.ReadFile(filename)
	if err != nil {
		return err
	}
	vm := r.runtime
	json := vm.Get("JSON").ToObject(vm)
	parse, ok := goja.AssertFunction(json.Get("parse"))
	if !ok {
		return errors.New("JSON.parse is not a function")
	}
	v, err := parse(json, vm.ToValue(string(src)))
	if err != nil {
		return err
	}
	m.SetExports(v)
	return nil
}

// LoadYAML sets module.exports to the decoded document.
func LoadYAML(r *Require, m *Module, filename string) error {
	src, err := r.ReadFile(filename)
	if err != nil {
		return err
	}
	var doc interface{}
	if err := yaml.Unmarshal(src, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", filename, err)
	}
	m.SetExports(r.runtime.ToValue(doc))
	return nil
}

// LoadTOML sets module.exports to the decoded table.
func LoadTOML(r *Require, m *Module, filename string) error {
	src, err := r.ReadFile(filename)
	if err != nil {
		return err
	}
	doc := map[string]interface{}{}
	if err := toml.Unmarshal(src, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", filename, err)
	}
	m.SetExports(r.runtime.ToValue(doc))
	return nil
}
