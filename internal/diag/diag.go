// Package diag carries progress and warning messages from pipeline
// components to whoever is running them.
package diag

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Sink receives diagnostics. Components never write to stdout or stderr
// directly.
type Sink interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

// Logger is a Sink backed by zap
type Logger struct {
	z *zap.SugaredLogger
}

// NewLogger builds a console logger writing to w. Debug messages are only
// emitted when verbose is set.
func NewLogger(w io.Writer, verbose bool) *Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), level)
	return &Logger{z: zap.New(core).Sugar()}
}

func (l *Logger) Debugf(format string, args ...any) { l.z.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.z.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.z.Warnf(format, args...) }

// Sync flushes buffered log entries
func (l *Logger) Sync() error {
	return l.z.Sync()
}

// Discard drops everything
var Discard Sink = discard{}

type discard struct{}

func (discard) Debugf(string, ...any) {}
func (discard) Infof(string, ...any)  {}
func (discard) Warnf(string, ...any)  {}

// Level of a recorded message
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
)

// Message is a single recorded diagnostic
type Message struct {
	Level Level
	Text  string
}

// Recorder keeps every message in memory. Used by tests.
type Recorder struct {
	mu       sync.Mutex
	Messages []Message
}

func (r *Recorder) record(level Level, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = append(r.Messages, Message{Level: level, Text: fmt.Sprintf(format, args...)})
}

func (r *Recorder) Debugf(format string, args ...any) { r.record(LevelDebug, format, args...) }
func (r *Recorder) Infof(format string, args ...any)  { r.record(LevelInfo, format, args...) }
func (r *Recorder) Warnf(format string, args ...any)  { r.record(LevelWarn, format, args...) }

// Warnings returns the text of every warning
func (r *Recorder) Warnings() []string {
	return r.filter(LevelWarn)
}

// Infos returns the text of every info message
func (r *Recorder) Infos() []string {
	return r.filter(LevelInfo)
}

// Contains reports whether any message contains substr
func (r *Recorder) Contains(substr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.Messages {
		if strings.Contains(m.Text, substr) {
			return true
		}
	}

	return false
}

func (r *Recorder) filter(level Level) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.Messages {
		if m.Level == level {
			out = append(out, m.Text)
		}
	}

	return out
}
