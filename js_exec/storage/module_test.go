package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jsbridge/dispatch"
	"jsbridge/js_exec"
	"jsbridge/js_module"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	m := NewMemoryStore()
	m.now = func() time.Time { return now }
	ex := int64(10)
	px := int64(1500)

	ok, err := m.Set(ctx, "k1", "v1", expireOption{})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = m.Set(ctx, "k1", "other", expireOption{nx: true})
	assert.False(t, ok)
	ok, _ = m.Set(ctx, "missing", "v", expireOption{xx: true})
	assert.False(t, ok)
	ok, _ = m.Set(ctx, "k1", "v2", expireOption{xx: true, ex: &ex})
	assert.True(t, ok)

	val, found, _ := m.Get(ctx, "k1")
	assert.True(t, found)
	assert.Equal(t, "v2", val)

	now = now.Add(9 * time.Second)
	_, found, _ = m.GetEx(ctx, "k1", expireOption{px: &px})
	assert.True(t, found)
	now = now.Add(time.Second)
	_, found, _ = m.Get(ctx, "k1")
	assert.True(t, found, "GetEx moved the deadline")
	now = now.Add(time.Second)
	_, found, _ = m.Get(ctx, "k1")
	assert.False(t, found)

	_, _ = m.Set(ctx, "a", "1", expireOption{})
	_, _ = m.Set(ctx, "b", "2", expireOption{})
	n, err := m.Del(ctx, "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestScriptKV(t *testing.T) {
	registry := js_module.NewRegistry()
	manager := dispatch.NewManager(dispatch.Options{})
	store := NewMemoryStore()
	require.NoError(t, Register(registry, manager, Options{Store: store, Prefix: "test:"}))
	c, err := js_exec.NewFactory(registry, manager, js_module.Options{Root: t.TempDir()}).NewContext()
	require.NoError(t, err)
	defer c.Close()

	wait := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, c.Wait(ctx))
	}

	_, err = c.Eval("set.js", `
		var kv = require("kv");
		var out = {};
		kv.set("name", "jsbridge", function(err, ok) { out.set = ok; });
		kv.set("once", "x", {nx: true, ex: 60}, function(err, ok) { out.nx = ok; });`)
	require.NoError(t, err)
	wait()

	_, err = c.Eval("get.js", `
		kv.get("name", function(err, v) { out.name = v; });
		kv.get("nope", function(err, v) { out.nope = v; });
		kv.getEx("once", {ex: 120}, function(err, v) { out.once = v; });
		kv.set("once", "y", {nx: true}, function(err, ok) { out.nxAgain = ok; });`)
	require.NoError(t, err)
	wait()

	_, err = c.Eval("del.js", `kv.del("name", "once", function(err, n) { out.deleted = n; });`)
	require.NoError(t, err)
	wait()

	v, err := c.Eval("check.js", `JSON.stringify(out)`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"set":true,"nx":true,"name":"jsbridge","nope":null,"once":"x","nxAgain":false,"deleted":2}`, v.(string))

	_, found, _ := store.Get(context.Background(), "test:name")
	assert.False(t, found)
}
