package js_module

import (
	"testing"

	"github.com/dop251/goja"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

type testHost struct {
	id string
	vm *goja.Runtime
}

func (h *testHost) ID() string             { return h.id }
func (h *testHost) Runtime() *goja.Runtime { return h.vm }

type fixture struct {
	fs       afero.Fs
	registry *Registry
	vm       *goja.Runtime
	r        *Require
}

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for name, src := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(src), 0o644))
	}
}

func newFixture(t *testing.T, files map[string]string, opt Options) *fixture {
	t.Helper()
	f := &fixture{fs: afero.NewMemMapFs(), registry: NewRegistry()}
	writeFiles(t, f.fs, files)
	f.r = f.newRequire(opt)
	f.vm = f.r.Runtime()
	return f
}

// newRequire builds another context over the same files and registry.
func (f *fixture) newRequire(opt Options) *Require {
	opt.FS = f.fs
	if opt.Root == "" {
		opt.Root = "/app"
	}
	if opt.PackagesDir == "" {
		opt.PackagesDir = "node_modules"
	}
	r := New(&testHost{id: "test", vm: goja.New()}, f.registry, opt)
	r.Enable()
	return r
}

func (f *fixture) run(t *testing.T, src string) goja.Value {
	t.Helper()
	v, err := f.vm.RunString(src)
	require.NoError(t, err)
	return v
}
