//go:build linux

package js_module

import (
	"fmt"
	"os"
	"path/filepath"
	"plugin"

	executor "github.com/KaniuBillows/traitor-plugin"

	"jsbridge/logger"
)

// LoadPlugins opens every .so in dir and registers the module each one returns from
// GetModule as a builtin. Broken plugins are logged and skipped; it returns how many loaded.
func LoadPlugins(dir string, registry *Registry) (int, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read plugin dir: %w", err)
	}
	n := 0
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".so" {
			continue
		}
		p, err := plugin.Open(filepath.Join(dir, f.Name()))
		if err != nil {
			logger.Error("cannot load plugin file", "file", f.Name(), "err", err)
			continue
		}
		if err := registerPlugin(f.Name(), p, registry); err != nil {
			logger.Error("cannot register plugin", "file", f.Name(), "err", err)
			continue
		}
		n++
	}
	return n, nil
}

func registerPlugin(file string, p *plugin.Plugin, registry *Registry) error {
	sym, err := p.Lookup("GetModule")
	if err != nil {
		return err
	}
	getModule, ok := sym.(func() executor.Executable)
	if !ok {
		return fmt.Errorf("%s: GetModule must be func() Executable", file)
	}
	return RegisterExecutable(registry, getModule())
}
