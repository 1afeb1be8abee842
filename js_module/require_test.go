package js_module

import (
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jsbridge/sandbox"
)

func TestRequireCycleSeesPartialExports(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/app/a.js": `
			exports.early = true;
			var b = require('./b');
			exports.bSawEarly = b.sawEarly;
			exports.bSawLoading = b.sawLoading;
			exports.done = true;`,
		"/app/b.js": `
			var a = require('./a');
			exports.sawEarly = a.early === true && a.done === undefined;
			exports.sawLoading = require.cache[require.resolve('./a')].loaded === false;`,
	}, Options{})

	v, err := f.r.Require("./a", nil)
	require.NoError(t, err)
	a := v.ToObject(f.vm)
	assert.True(t, a.Get("bSawEarly").ToBoolean())
	assert.True(t, a.Get("bSawLoading").ToBoolean())
	assert.True(t, a.Get("done").ToBoolean())

	m, ok := f.r.Cache().Get("/app/a.js")
	require.True(t, ok)
	assert.True(t, m.Loaded())
	assert.Equal(t, []string{"/app/a.js", "/app/b.js"}, f.r.Cache().Keys())
}

func TestRequireReturnsCachedModule(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/app/counter.js": `globalThis.loads = (globalThis.loads || 0) + 1; module.exports = {};`,
	}, Options{})

	assert.True(t, f.run(t, `require('./counter') === require('./counter.js')`).ToBoolean())
	assert.Equal(t, int64(1), f.run(t, `loads`).ToInteger())

	f.run(t, `delete require.cache[require.resolve('./counter')]`)
	f.run(t, `require('./counter')`)
	assert.Equal(t, int64(2), f.run(t, `loads`).ToInteger())
}

func TestRequireFailureRemovesPlaceholder(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/app/broken.js": `globalThis.attempts = (globalThis.attempts || 0) + 1; throw new TypeError("boom");`,
	}, Options{})

	_, err := f.r.Require("./broken", nil)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "/app/broken.js", le.Path)
	assert.Equal(t, 0, f.r.Cache().Len())

	msg := f.run(t, `
		var msg;
		try { require('./broken') } catch (e) { msg = e.name + ": " + e.message }
		msg`)
	assert.Equal(t, "TypeError: boom", msg.String())
	assert.Equal(t, int64(2), f.run(t, `attempts`).ToInteger())
	assert.False(t, f.run(t, `require.resolve('./broken') in require.cache`).ToBoolean())
}

func TestRequireMissingModuleThrows(t *testing.T) {
	f := newFixture(t, nil, Options{})
	msg := f.run(t, `
		var msg;
		try { require('./missing') } catch (e) { msg = e.message }
		msg`)
	assert.Equal(t, "Cannot find module './missing'", msg.String())
}

func TestRequirePermissionDenied(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/app/secret.js": `globalThis.leaked = true;`,
		"/app/open.js":   `module.exports = "ok";`,
	}, Options{Delegate: sandbox.Func{Read: func(p string) bool {
		return !strings.HasSuffix(p, "secret.js")
	}}})

	_, err := f.r.Require("./secret", nil)
	require.ErrorIs(t, err, sandbox.ErrPermissionDenied)
	assert.Equal(t, 0, f.r.Cache().Len())
	assert.Equal(t, "undefined", f.run(t, `typeof leaked`).String())

	v, err := f.r.Require("./open", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", v.String())
}

func TestBuiltinMemoizedPerContext(t *testing.T) {
	f := newFixture(t, nil, Options{})
	runs := 0
	f.registry.MustRegister("clock", func(host Host, module *goja.Object) {
		runs++
		exports := module.Get("exports").(*goja.Object)
		_ = exports.Set("owner", host.ID())
	})

	assert.True(t, f.run(t, `require('clock') === require('clock')`).ToBoolean())
	assert.Equal(t, 1, runs)

	other := f.newRequire(Options{})
	first, err := f.r.Require("clock", nil)
	require.NoError(t, err)
	second, err := other.Require("clock", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, runs)
	assert.NotSame(t, first.(*goja.Object), second.(*goja.Object))
}

func TestBuiltinFactoryPanicIsRetried(t *testing.T) {
	f := newFixture(t, nil, Options{})
	fail := true
	f.registry.MustRegister("flaky", func(host Host, module *goja.Object) {
		if fail {
			panic(host.Runtime().NewTypeError("not yet"))
		}
		_ = module.Set("exports", "ready")
	})

	msg := f.run(t, `
		var msg;
		try { require('flaky') } catch (e) { msg = e.message }
		msg`)
	assert.Equal(t, "not yet", msg.String())

	fail = false
	assert.Equal(t, "ready", f.run(t, `require('flaky')`).String())
}

func TestModuleObject(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/app/lib/info.js": `
			module.exports = {
				id: module.id,
				filename: __filename,
				dirname: __dirname,
				paths: module.paths,
				sameRequire: require === module.require,
				sharedCache: require.cache === globalThis.require.cache,
				sharedExtensions: require.extensions === globalThis.require.extensions,
				ownResolve: require.resolve !== globalThis.require.resolve,
				thisIsExports: this === exports,
			};`,
	}, Options{})

	info := f.run(t, `require('./lib/info')`).ToObject(f.vm)
	assert.Equal(t, "/app/lib/info.js", info.Get("id").String())
	assert.Equal(t, "/app/lib/info.js", info.Get("filename").String())
	assert.Equal(t, "/app/lib", info.Get("dirname").String())
	assert.Equal(t, []interface{}{"/app/lib"}, info.Get("paths").Export())
	for _, key := range []string{"sameRequire", "sharedCache", "sharedExtensions", "ownResolve", "thisIsExports"} {
		assert.True(t, info.Get(key).ToBoolean(), key)
	}
}

func TestRunMain(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/app/main.js": `
			exports.isMain = require.main === module;
			exports.child = require('./child');`,
		"/app/child.js": `module.exports = require.main.id;`,
	}, Options{})

	assert.True(t, goja.IsUndefined(f.run(t, `require.main`)))

	m, err := f.r.RunMain("./main")
	require.NoError(t, err)
	assert.Same(t, m, f.r.Main())
	exports := m.Exports().ToObject(f.vm)
	assert.True(t, exports.Get("isMain").ToBoolean())
	assert.Equal(t, "/app/main.js", exports.Get("child").String())
	assert.True(t, f.run(t, `require.main === module`).ToBoolean())
}

func TestRunMainFailureKeepsPreviousMain(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/app/bad.js": `throw new Error("nope")`,
	}, Options{})

	_, err := f.r.RunMain("./bad")
	require.Error(t, err)
	assert.Nil(t, f.r.Main())
}

func TestRunMainSource(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/app/lib.js": `module.exports = 40;`,
	}, Options{})

	m, err := f.r.RunMainSource("job.ts", `
		const base: number = require('./lib');
		exports.answer = base + 2;
		exports.isMain = require.main === module;`)
	require.NoError(t, err)
	assert.Equal(t, "/app/job.ts", m.ID())
	assert.True(t, m.Loaded())
	exports := m.Exports().ToObject(f.vm)
	assert.Equal(t, int64(42), exports.Get("answer").ToInteger())
	assert.True(t, exports.Get("isMain").ToBoolean())

	_, err = f.r.RunMainSource("broken.js", `throw new Error("x")`)
	require.Error(t, err)
	assert.Same(t, m, f.r.Main())
	_, ok := f.r.Cache().Get("/app/broken.js")
	assert.False(t, ok)
}

func TestDataLoaders(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/app/conf.json": `{"name": "json", "list": [1, 2]}`,
		"/app/conf.yaml": "name: yaml\nlist:\n  - 1\n  - 2\n",
		"/app/conf.toml": "name = \"toml\"\nlist = [1, 2]\n",
	}, Options{})

	for _, ext := range []string{"json", "yaml", "toml"} {
		t.Run(ext, func(t *testing.T) {
			v := f.run(t, `var c = require('./conf.`+ext+`'); c.name + ":" + c.list.length`)
			assert.Equal(t, ext+":2", v.String())
		})
	}
}

func TestTypeScriptLoader(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/app/greet.ts": `
			interface Person { name: string }
			export function greet(p: Person): string { return "hello " + p.name; }`,
	}, Options{})

	v := f.run(t, `require('./greet').greet({name: "ts"})`)
	assert.Equal(t, "hello ts", v.String())
}

func TestScriptRegisteredExtension(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/app/readme.txt": "plain text",
	}, Options{})

	v := f.run(t, `
		require.extensions['.txt'] = function(module, filename) {
			module.exports = "loaded " + filename;
		};
		require('./readme')`)
	assert.Equal(t, "loaded /app/readme.txt", v.String())
	assert.Contains(t, f.r.Extensions().Extensions(), ".txt")

	f.run(t, `delete require.extensions['.txt']`)
	_, ok := f.r.Extensions().Lookup(".txt")
	assert.False(t, ok)
}

func TestCallingStoredExtensionLoader(t *testing.T) {
	f := newFixture(t, map[string]string{
		"/app/plain.js": `module.exports = "plain";`,
		"/app/data.cfg": `module.exports = "cfg";`,
	}, Options{})

	v := f.run(t, `
		require.extensions['.cfg'] = require.extensions['.js'];
		require('./data.cfg')`)
	assert.Equal(t, "cfg", v.String())
}
