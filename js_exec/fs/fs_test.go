package fs

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jsbridge/dispatch"
	"jsbridge/js_exec"
	"jsbridge/js_exec/buffer"
	"jsbridge/js_module"
	"jsbridge/sandbox"
)

func newContext(t *testing.T) (*js_exec.Context, afero.Fs) {
	t.Helper()
	mem := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(mem, "/app/data.bin", []byte{0xca, 0xfe}, 0o644))
	require.NoError(t, afero.WriteFile(mem, "/app/locked/keep.txt", []byte("keep"), 0o644))

	delegate := sandbox.Func{
		Write:  func(p string) bool { return !strings.HasPrefix(p, "/app/locked") },
		Delete: func(p string) bool { return !strings.HasPrefix(p, "/app/locked") },
	}
	registry := js_module.NewRegistry()
	manager := dispatch.NewManager(dispatch.Options{})
	require.NoError(t, buffer.Register(registry))
	require.NoError(t, Register(registry, manager, Options{}))

	f := js_exec.NewFactory(registry, manager, js_module.Options{FS: mem, Delegate: delegate, Root: "/app"}, buffer.Extension())
	c, err := f.NewContext()
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, mem
}

func settle(t *testing.T, c *js_exec.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

func TestSyncOperations(t *testing.T) {
	c, mem := newContext(t)

	v, err := c.Eval("sync.js", `
		var fs = require("fs");
		var out = [];
		out.push(fs.existsSync("data.bin"), fs.existsSync("/app/none"));
		out.push(fs.isDirectorySync("/app"), fs.isDirectorySync("data.bin"));
		out.push(fs.readFileSync("data.bin").hexString);
		fs.writeFileSync("notes/today.txt", "hello");
		fs.writeFileSync("copy.bin", DataBuffer.fromHexString("0102"));
		out.push(fs.readFileSync("copy.bin").length);
		fs.unlinkSync("data.bin");
		out.push(fs.existsSync("data.bin"));
		out.join(",")`)
	require.NoError(t, err)
	assert.Equal(t, "true,false,true,false,cafe,2,false", v)

	data, err := afero.ReadFile(mem, "/app/notes/today.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestSyncPermissionDenied(t *testing.T) {
	c, mem := newContext(t)

	v, err := c.Eval("denied.js", `
		var fs = require("fs");
		var errs = [];
		try { fs.writeFileSync("locked/new.txt", "x") } catch (e) { errs.push(e.message) }
		try { fs.unlinkSync("locked/keep.txt") } catch (e) { errs.push(e.message) }
		errs.join("|")`)
	require.NoError(t, err)
	assert.Equal(t, "write /app/locked/new.txt: permission denied|delete /app/locked/keep.txt: permission denied", v)

	ok, err := afero.Exists(mem, "/app/locked/keep.txt")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAsyncOperations(t *testing.T) {
	c, _ := newContext(t)

	_, err := c.Eval("async.js", `
		var fs = require("fs");
		var results = {};
		fs.exists("data.bin", function(err, ok) { results.exists = ok; });
		fs.isDirectory("/app", function(err, ok) { results.dir = ok; });
		fs.readFile("data.bin", function(err, buf) { results.read = buf.hexString; });
		fs.readFile("missing.bin", function(err) { results.missing = err !== null; });
		fs.writeFile("locked/x.txt", "x", function(err) { results.denied = err.message; });
		fs.writeFile("out.txt", "payload", function(err) { results.written = err === null; });`)
	require.NoError(t, err)
	settle(t, c)

	v, err := c.Eval("check.js", `JSON.stringify(results)`)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"exists": true,
		"dir": true,
		"read": "cafe",
		"missing": true,
		"denied": "write /app/locked/x.txt: permission denied",
		"written": true
	}`, v.(string))

	v, err = c.Eval("check.js", `require("fs").readFileSync("out.txt").hexString`)
	require.NoError(t, err)
	assert.Equal(t, "7061796c6f6164", v)
}
