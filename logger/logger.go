package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
)

// prefix
const (
	DEBUG = "debug"
	INFO  = "info"
	WARN  = "warn"
	ERROR = "error"
	FATAL = "fatal"
)

const fileName = "jsbridge.log"

var (
	mu      sync.Mutex
	logger  *log.Logger
	logFile *os.File
)

// Options controls where and how much the process logs.
type Options struct {
	Level string
	// Dir receives jsbridge.log. Empty means ~/.jsbridge/debug, "-" disables the file.
	Dir string
	// Writer replaces stdout when set.
	Writer io.Writer
}

// Setup (re)configures the process logger. It is safe to call more than once.
func Setup(opt Options) error {
	var out io.Writer = os.Stdout
	if opt.Writer != nil {
		out = opt.Writer
	}
	var f *os.File
	if opt.Dir != "-" {
		dir := opt.Dir
		if dir == "" {
			home, err := homedir.Dir()
			if err != nil {
				return fmt.Errorf("resolve home directory: %w", err)
			}
			dir = filepath.Join(home, ".jsbridge", "debug")
		}
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		var err error
		f, err = os.OpenFile(filepath.Join(dir, fileName), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(out, f)
	}

	l := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		ReportCaller:    true,
		CallerOffset:    1,
		Prefix:          "jsbridge",
	})
	if opt.Level != "" {
		lvl, err := log.ParseLevel(opt.Level)
		if err != nil {
			if f != nil {
				_ = f.Close()
			}
			return fmt.Errorf("parse log level %q: %w", opt.Level, err)
		}
		l.SetLevel(lvl)
	}

	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logger, logFile = l, f
	return nil
}

func get() *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		// stdout only until Setup runs; tests never touch the home directory.
		logger = log.NewWithOptions(os.Stdout, log.Options{
			ReportTimestamp: true,
			ReportCaller:    true,
			CallerOffset:    1,
			Prefix:          "jsbridge",
		})
	}
	return logger
}

// With returns a component logger carrying keyvals on every line.
func With(keyvals ...any) *log.Logger {
	return get().With(keyvals...)
}

func Debug(msg any, keyvals ...any) {
	get().Debug(msg, keyvals...)
}
func Error(msg any, keyvals ...any) {
	get().Error(msg, keyvals...)
}
func Info(msg any, keyvals ...any) {
	get().Info(msg, keyvals...)
}
func Warn(msg any, keyvals ...any) {
	get().Warn(msg, keyvals...)
}

// Fatal logs and exits the process.
func Fatal(msg any, keyvals ...any) {
	get().Fatal(msg, keyvals...)
}

// Log writes msg at the named level (debug, info, warn, error); unknown names log at info.
func Log(level string, msg any, keyvals ...any) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	get().Log(lvl, msg, keyvals...)
}
