// Package bridge wires the builtins, the dispatch queues and the context factory from a
// configuration. It is the one place that decides which builtins exist and in which order
// extensions install.
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja_nodejs/util"
	"github.com/spf13/afero"

	"jsbridge/config"
	"jsbridge/dao"
	"jsbridge/dispatch"
	"jsbridge/js_exec"
	"jsbridge/js_exec/application"
	"jsbridge/js_exec/buffer"
	"jsbridge/js_exec/console"
	"jsbridge/js_exec/events"
	"jsbridge/js_exec/fs"
	"jsbridge/js_exec/http"
	"jsbridge/js_exec/storage"
	"jsbridge/js_module"
	"jsbridge/logger"
	"jsbridge/sandbox"
)

// kvPrefix namespaces script keys in a shared store.
const kvPrefix = "jsbridge:"

type Options struct {
	// FS backs module resolution and the fs builtin. Defaults to the OS filesystem.
	FS       afero.Fs
	Delegate sandbox.Delegate
	// Sink receives console output of contexts nobody attached a sink to. Defaults to the logger.
	Sink console.Sink
}

type Bridge struct {
	Config   config.Config
	Registry *js_module.Registry
	Dispatch *dispatch.Manager
	Console  *console.Router
	Factory  *js_exec.Factory

	closers []func() error
}

func New(ctx context.Context, cfg config.Config, opt Options) (*Bridge, error) {
	if opt.FS == nil {
		opt.FS = afero.NewOsFs()
	}
	b := &Bridge{
		Config:   cfg,
		Registry: js_module.NewRegistry(),
		Dispatch: dispatch.NewManager(dispatch.Options{
			IOWorkers:         cfg.Dispatch.IOWorkers,
			BackgroundWorkers: cfg.Dispatch.BackgroundWorkers,
			ExposeUIQueue:     cfg.Dispatch.ExposeUIQueue,
		}),
		Console: console.NewRouter(opt.Sink),
	}
	if err := b.registerBuiltins(ctx, opt); err != nil {
		_ = b.Close()
		return nil, err
	}

	modules := js_module.Options{
		FS:                opt.FS,
		Delegate:          opt.Delegate,
		Root:              cfg.Modules.Root,
		PackagesDir:       cfg.Modules.PackagesDir,
		GlobalFolders:     cfg.Modules.GlobalFolders,
		ExtensionPriority: cfg.Modules.ExtensionPriority,
	}
	info := application.Info{
		Version:    cfg.Application.Version,
		Build:      cfg.Application.Build,
		Identifier: cfg.Application.Identifier,
		Locale:     cfg.Application.Locale,
	}
	b.Factory = js_exec.NewFactory(b.Registry, b.Dispatch, modules,
		console.Extension(),
		buffer.Extension(),
		application.Extension(info, application.CurrentSystem()),
	)
	return b, nil
}

func (b *Bridge) registerBuiltins(ctx context.Context, opt Options) error {
	r := b.Registry
	if err := r.RegisterNativeModule(util.ModuleName, util.Require); err != nil {
		return err
	}
	if err := console.Register(r, b.Console); err != nil {
		return err
	}
	if err := buffer.Register(r); err != nil {
		return err
	}
	if err := events.Register(r); err != nil {
		return err
	}
	if err := r.Register(dispatch.ModuleName, b.Dispatch.ModuleFactory()); err != nil {
		return err
	}
	if err := fs.Register(r, b.Dispatch, fs.Options{FS: opt.FS, Delegate: opt.Delegate}); err != nil {
		return err
	}
	if err := http.Register(r, b.Dispatch, http.Options{}); err != nil {
		return err
	}

	var store storage.Store = storage.NewMemoryStore()
	if url := b.Config.Redis.URL; url != "" {
		rs, err := storage.NewRedisStore(ctx, url)
		if err != nil {
			return err
		}
		b.closers = append(b.closers, rs.Close)
		store = rs
	}
	if err := storage.Register(r, b.Dispatch, storage.Options{Store: store, Prefix: kvPrefix}); err != nil {
		return err
	}

	if dir := b.Config.Modules.PluginDir; dir != "" {
		n, err := js_module.LoadPlugins(dir, r)
		if err != nil {
			return err
		}
		logger.Info("plugins loaded", "dir", dir, "count", n)
	}
	return nil
}

// Modules lists the builtin names in registration order.
func (b *Bridge) Modules() []string {
	return b.Registry.Names()
}

// Close waits for queued work and releases external stores.
func (b *Bridge) Close() error {
	b.Dispatch.Shutdown()
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	b.closers = nil
	return first
}

// OpenDao returns the Mongo store when a URI is configured and an in-memory one otherwise.
func OpenDao(ctx context.Context, cfg config.Config) (dao.Dao, error) {
	if cfg.Mongo.URI == "" {
		return dao.CreateMemoryDao(), nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	d, err := dao.CreateMongoDao(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, fmt.Errorf("open script store: %w", err)
	}
	return d, nil
}
