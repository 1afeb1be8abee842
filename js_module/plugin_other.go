//go:build !linux

package js_module

import "errors"

// LoadPlugins needs the Go plugin loader, which this platform build does not use.
func LoadPlugins(dir string, registry *Registry) (int, error) {
	return 0, errors.New("plugins are only supported on linux")
}
