package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	// AppName is used for the config file name and the env prefix.
	AppName = "jsbridge"
	// EnvPrefix prefixes every environment override, e.g. JSBRIDGE_MODULES_ROOT.
	EnvPrefix = "JSBRIDGE"
)

// Config is the whole host configuration.
type Config struct {
	Modules     ModulesConfig     `mapstructure:"modules"`
	Dispatch    DispatchConfig    `mapstructure:"dispatch"`
	Log         LogConfig         `mapstructure:"log"`
	Application ApplicationConfig `mapstructure:"application"`
	Server      ServerConfig      `mapstructure:"server"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Mongo       MongoConfig       `mapstructure:"mongo"`
}

type ModulesConfig struct {
	// Root bounds module resolution; nothing above it is ever resolved.
	Root string `mapstructure:"root"`
	// PackagesDir is searched at each level for bare specifiers.
	PackagesDir string `mapstructure:"packages_dir"`
	// GlobalFolders are searched for bare specifiers after the ascending walk.
	GlobalFolders []string `mapstructure:"global_folders"`
	// ExtensionPriority overrides the lookup order of registered extensions.
	ExtensionPriority []string `mapstructure:"extension_priority"`
	// PluginDir holds Go plugins exposing native builtins; empty disables plugins.
	PluginDir string `mapstructure:"plugin_dir"`
}

type DispatchConfig struct {
	ExposeUIQueue     bool  `mapstructure:"expose_ui_queue"`
	IOWorkers         int64 `mapstructure:"io_workers"`
	BackgroundWorkers int64 `mapstructure:"background_workers"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Dir   string `mapstructure:"dir"`
}

type ApplicationConfig struct {
	Version    string `mapstructure:"version"`
	Build      string `mapstructure:"build"`
	Identifier string `mapstructure:"identifier"`
	Locale     string `mapstructure:"locale"`
}

type ServerConfig struct {
	IP   string `mapstructure:"ip"`
	Port int    `mapstructure:"port"`
	// JobTimeoutSec bounds how long a run waits for pending async callbacks.
	JobTimeoutSec int `mapstructure:"job_timeout_sec"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"database"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	root, err := os.Getwd()
	if err != nil {
		root = "."
	}
	return Config{
		Modules: ModulesConfig{
			Root:        root,
			PackagesDir: "node_modules",
		},
		Dispatch: DispatchConfig{
			IOWorkers:         8,
			BackgroundWorkers: 4,
		},
		Log: LogConfig{Level: "info"},
		Application: ApplicationConfig{
			Version:    "0.1.0",
			Build:      "1",
			Identifier: "io.jsbridge.host",
		},
		Server: ServerConfig{Port: 8080, JobTimeoutSec: 30},
		Mongo:  MongoConfig{Database: "jsbridge"},
	}
}

// Load reads defaults, then the optional config file, then JSBRIDGE_* env overrides.
// An empty path searches ./jsbridge.{yaml,toml,json} and ~/.jsbridge/.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(AppName)
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.jsbridge")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the runtime cannot honor.
func (c Config) Validate() error {
	if c.Modules.Root == "" {
		return errors.New("modules.root must not be empty")
	}
	if c.Dispatch.IOWorkers <= 0 || c.Dispatch.BackgroundWorkers <= 0 {
		return errors.New("dispatch worker counts must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("modules.root", d.Modules.Root)
	v.SetDefault("modules.packages_dir", d.Modules.PackagesDir)
	v.SetDefault("modules.global_folders", d.Modules.GlobalFolders)
	v.SetDefault("modules.extension_priority", d.Modules.ExtensionPriority)
	v.SetDefault("modules.plugin_dir", d.Modules.PluginDir)
	v.SetDefault("dispatch.expose_ui_queue", d.Dispatch.ExposeUIQueue)
	v.SetDefault("dispatch.io_workers", d.Dispatch.IOWorkers)
	v.SetDefault("dispatch.background_workers", d.Dispatch.BackgroundWorkers)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.dir", d.Log.Dir)
	v.SetDefault("application.version", d.Application.Version)
	v.SetDefault("application.build", d.Application.Build)
	v.SetDefault("application.identifier", d.Application.Identifier)
	v.SetDefault("application.locale", d.Application.Locale)
	v.SetDefault("server.ip", d.Server.IP)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.job_timeout_sec", d.Server.JobTimeoutSec)
	v.SetDefault("redis.url", d.Redis.URL)
	v.SetDefault("mongo.uri", d.Mongo.URI)
	v.SetDefault("mongo.database", d.Mongo.Database)
}
