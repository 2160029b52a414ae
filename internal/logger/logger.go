// Package logger writes leveled diagnostics for searchapi to stderr.
//
// Debug, info and warning messages only appear in verbose mode (the
// --verbose flag or verbose = true in config.toml). Errors always appear.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Level orders message severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

var (
	mu      sync.Mutex
	verbose bool
	output  io.Writer = os.Stderr
)

func SetVerbose(v bool) {
	mu.Lock()
	verbose = v
	mu.Unlock()
}

func IsVerbose() bool {
	mu.Lock()
	defer mu.Unlock()
	return verbose
}

// SetOutput redirects all messages; tests pass a buffer.
func SetOutput(w io.Writer) {
	mu.Lock()
	output = w
	mu.Unlock()
}

// logf holds the lock while writing so lines from concurrent callers do
// not interleave.
func logf(level Level, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if level < LevelError && !verbose {
		return
	}
	fmt.Fprintf(output, "[%s] %s\n", level, fmt.Sprintf(format, args...))
}

func Debug(format string, args ...any) { logf(LevelDebug, format, args...) }
func Info(format string, args ...any)  { logf(LevelInfo, format, args...) }
func Warn(format string, args ...any)  { logf(LevelWarn, format, args...) }
func Error(format string, args ...any) { logf(LevelError, format, args...) }

// Section starts a visually separated block of verbose output, such as
// one indexing batch.
func Section(name string) {
	mu.Lock()
	defer mu.Unlock()
	if verbose {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

// Logger tags messages with the component that wrote them.
type Logger struct {
	component string
}

// With returns a logger for component, e.g. "index articles".
func With(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) log(level Level, format string, args []any) {
	logf(level, "[%s] %s", l.component, fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(format string, args ...any) { l.log(LevelDebug, format, args) }
func (l *Logger) Info(format string, args ...any)  { l.log(LevelInfo, format, args) }
func (l *Logger) Warn(format string, args ...any)  { l.log(LevelWarn, format, args) }
func (l *Logger) Error(format string, args ...any) { l.log(LevelError, format, args) }
