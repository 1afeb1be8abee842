package http

import (
	"fmt"
	"io"
	httpclient "net/http"
	"strings"
	"time"

	"github.com/dop251/goja"

	"jsbridge/dispatch"
	"jsbridge/js_module"
)

const ModuleName = "http"

// maxBody caps how much of a response body is handed to scripts.
const maxBody = 8 << 20

type Options struct {
	Client  *httpclient.Client
	Timeout time.Duration
}

type http struct {
	runtime *goja.Runtime
	owner   dispatch.Owner
	manager *dispatch.Manager
	client  *httpclient.Client
}

type Response struct {
	Status       string // e.g. "200 OK"
	StatusCode   int
	ResponseText string
	Headers      map[string]string
}

// ToValue builds the script view of a response.
func (r *Response) ToValue(vm *goja.Runtime) goja.Value {
	obj := vm.NewObject()
	_ = obj.Set("status", r.Status)
	_ = obj.Set("statusCode", r.StatusCode)
	_ = obj.Set("responseText", r.ResponseText)
	headers := vm.NewObject()
	for k, v := range r.Headers {
		_ = headers.Set(k, v)
	}
	_ = obj.Set("headers", headers)
	return obj
}

func (u *http) do(req *httpclient.Request) ([]any, error) {
	res, err := u.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(res.Body)
	body, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return nil, err
	}
	rsp := &Response{
		Status:       res.Status,
		StatusCode:   res.StatusCode,
		ResponseText: string(body),
		Headers:      make(map[string]string, len(res.Header)),
	}
	for k := range res.Header {
		rsp.Headers[strings.ToLower(k)] = res.Header.Get(k)
	}
	return []any{rsp}, nil
}

func (u *http) url(call goja.FunctionCall) string {
	arg := call.Argument(0)
	if goja.IsUndefined(arg) || goja.IsNull(arg) {
		panic(u.runtime.NewTypeError("url is required"))
	}
	return arg.String()
}

func (u *http) submit(req *httpclient.Request, cb goja.Callable) {
	err := u.manager.AsyncExecuteOn(dispatch.IO, u.owner, func() ([]any, error) {
		return u.do(req)
	}, cb)
	if err != nil {
		panic(u.runtime.NewGoError(err))
	}
}

// jsGet is http.get(url, callback(err, response)).
func (u *http) jsGet(call goja.FunctionCall) goja.Value {
	req, err := httpclient.NewRequest(httpclient.MethodGet, u.url(call), nil)
	if err != nil {
		panic(u.runtime.NewGoError(err))
	}
	cb, _ := goja.AssertFunction(call.Argument(1))
	u.submit(req, cb)
	return goja.Undefined()
}

// jsPost is http.post(url, body, [contentType], callback(err, response)).
func (u *http) jsPost(call goja.FunctionCall) goja.Value {
	body := call.Argument(1)
	contentType := "text/plain; charset=utf-8"
	cbArg := call.Argument(2)
	if len(call.Arguments) > 3 {
		contentType = call.Argument(2).String()
		cbArg = call.Argument(3)
	}
	var payload string
	if obj, ok := body.(*goja.Object); ok && obj.ClassName() == "Object" {
		b, err := obj.MarshalJSON()
		if err != nil {
			panic(u.runtime.NewGoError(err))
		}
		payload, contentType = string(b), "application/json"
	} else if !goja.IsUndefined(body) && !goja.IsNull(body) {
		payload = body.String()
	}
	req, err := httpclient.NewRequest(httpclient.MethodPost, u.url(call), strings.NewReader(payload))
	if err != nil {
		panic(u.runtime.NewGoError(err))
	}
	req.Header.Set("Content-Type", contentType)
	cb, _ := goja.AssertFunction(cbArg)
	u.submit(req, cb)
	return goja.Undefined()
}

// ModuleFactory builds the http builtin; requests run on the io queue.
func ModuleFactory(manager *dispatch.Manager, opt Options) js_module.ModuleFactory {
	client := opt.Client
	if client == nil {
		client = &httpclient.Client{Timeout: opt.Timeout}
	}
	return func(host js_module.Host, module *goja.Object) {
		vm := host.Runtime()
		owner, ok := host.(dispatch.Owner)
		if !ok {
			panic(vm.NewTypeError(fmt.Sprintf("%s needs a context with an event loop", ModuleName)))
		}
		u := &http{runtime: vm, owner: owner, manager: manager, client: client}
		obj := module.Get("exports").(*goja.Object)
		_ = obj.Set("get", u.jsGet)
		_ = obj.Set("post", u.jsPost)
	}
}

// Register adds the http builtin to registry.
func Register(registry *js_module.Registry, manager *dispatch.Manager, opt Options) error {
	return registry.Register(ModuleName, ModuleFactory(manager, opt))
}
