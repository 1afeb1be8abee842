package console

import (
	"fmt"
	"io"
	"sync"

	"jsbridge/js_module"
	"jsbridge/logger"
)

// Sink receives every console line with its level and the context that printed it. Write runs
// on the context goroutine and must not block for long.
type Sink interface {
	Write(message string, level Level, host js_module.Host)
}

type SinkFunc func(message string, level Level, host js_module.Host)

func (f SinkFunc) Write(message string, level Level, host js_module.Host) { f(message, level, host) }

// WriterSink writes one line per call, prefixed with the level.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Write(message string, level Level, _ js_module.Host) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintf(s.w, "[%s] %s\n", level, message)
}

// LoggerSink sends console output to the process logger.
type LoggerSink struct{}

func (LoggerSink) Write(message string, level Level, host js_module.Host) {
	lvl := string(level)
	if level == Log {
		lvl = logger.INFO
	}
	logger.Log(lvl, message, "context", host.ID())
}

// Line is one captured console call.
type Line struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Recorder keeps every line written to it.
type Recorder struct {
	mu    sync.Mutex
	lines []Line
}

func (r *Recorder) Write(message string, level Level, _ js_module.Host) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, Line{Level: level, Message: message})
}

func (r *Recorder) Lines() []Line {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Line, len(r.lines))
	copy(out, r.lines)
	return out
}

// Router picks a sink by context id and falls back to a default one.
type Router struct {
	mu       sync.RWMutex
	sinks    map[string]Sink
	fallback Sink
}

func NewRouter(fallback Sink) *Router {
	if fallback == nil {
		fallback = LoggerSink{}
	}
	return &Router{sinks: make(map[string]Sink), fallback: fallback}
}

// Attach sends output of context id to s until Detach.
func (r *Router) Attach(id string, s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks[id] = s
}

func (r *Router) Detach(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, id)
}

func (r *Router) Write(message string, level Level, host js_module.Host) {
	r.mu.RLock()
	s, ok := r.sinks[host.ID()]
	r.mu.RUnlock()
	if !ok {
		s = r.fallback
	}
	s.Write(message, level, host)
}
