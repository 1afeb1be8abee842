package http

import (
	"context"
	"io"
	httpclient "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jsbridge/dispatch"
	"jsbridge/js_exec"
	"jsbridge/js_module"
)

func newContext(t *testing.T) *js_exec.Context {
	t.Helper()
	registry := js_module.NewRegistry()
	manager := dispatch.NewManager(dispatch.Options{})
	require.NoError(t, Register(registry, manager, Options{Timeout: 5 * time.Second}))
	c, err := js_exec.NewFactory(registry, manager, js_module.Options{Root: t.TempDir()}).NewContext()
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func settle(t *testing.T, c *js_exec.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

func TestGet(t *testing.T) {
	srv := httptest.NewServer(httpclient.HandlerFunc(func(w httpclient.ResponseWriter, r *httpclient.Request) {
		w.Header().Set("X-Answer", "42")
		_, _ = io.WriteString(w, `{"path":"`+r.URL.Path+`"}`)
	}))
	defer srv.Close()
	c := newContext(t)

	_, err := c.Eval("get.js", `
		var result;
		require("http").get("`+srv.URL+`/search", function(err, res) {
			result = [err, res.statusCode, JSON.parse(res.responseText).path, res.headers["x-answer"]];
		});`)
	require.NoError(t, err)
	settle(t, c)

	v, err := c.Eval("check.js", `JSON.stringify(result)`)
	require.NoError(t, err)
	assert.Equal(t, `[null,200,"/search","42"]`, v)
}

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(httpclient.HandlerFunc(func(w httpclient.ResponseWriter, r *httpclient.Request) {
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(httpclient.StatusCreated)
		_, _ = io.WriteString(w, r.Header.Get("Content-Type")+" "+string(body))
	}))
	defer srv.Close()
	c := newContext(t)

	_, err := c.Eval("post.js", `
		var result;
		require("http").post("`+srv.URL+`", {a: 1}, function(err, res) {
			result = res.statusCode + " " + res.responseText;
		});`)
	require.NoError(t, err)
	settle(t, c)

	v, err := c.Eval("check.js", `result`)
	require.NoError(t, err)
	assert.Equal(t, `201 application/json {"a":1}`, v)
}

func TestGetError(t *testing.T) {
	c := newContext(t)

	_, err := c.Eval("get.js", `
		var failed;
		require("http").get("http://127.0.0.1:1/unreachable", function(err, res) {
			failed = err instanceof Error && res === undefined;
		});`)
	require.NoError(t, err)
	settle(t, c)

	v, err := c.Eval("check.js", `failed`)
	require.NoError(t, err)
	assert.Equal(t, true, v)
}
