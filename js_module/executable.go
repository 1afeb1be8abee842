package js_module

import (
	executor "github.com/KaniuBillows/traitor-plugin"
)

// RegisterExecutable registers a plugin style module under its own name.
func RegisterExecutable(registry *Registry, e executor.Executable) error {
	return registry.RegisterNativeModule(e.GetName(), e.ModuleLoader)
}
