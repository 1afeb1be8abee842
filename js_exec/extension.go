package js_exec

// Extension installs native functionality into a new context: globals, builtin registrations
// or per-context state. Install runs on the context goroutine before any script does.
type Extension interface {
	Install(c *Context) error
}

// ExtensionFunc adapts a function to Extension.
type ExtensionFunc func(c *Context) error

func (f ExtensionFunc) Install(c *Context) error { return f(c) }

// namedExtension carries a name so the factory installs it once even if added twice.
type namedExtension struct {
	name string
	fn   func(c *Context) error
}

func (n namedExtension) Install(c *Context) error { return n.fn(c) }
func (n namedExtension) Name() string             { return n.name }

// Named wraps fn as an extension identified by name.
func Named(name string, fn func(c *Context) error) Extension {
	return namedExtension{name: name, fn: fn}
}

func extensionName(e Extension) string {
	if n, ok := e.(interface{ Name() string }); ok {
		return n.Name()
	}
	return ""
}
