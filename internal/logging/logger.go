package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Printer is the logging capability handed to sync components.
type Printer interface {
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

type level struct {
	glyph string
	color string
	name  string
}

var (
	levelInfo  = level{glyph: "✓", color: "\033[32m", name: "INFO"}
	levelWarn  = level{glyph: "⚠", color: "\033[33m", name: "WARNING"}
	levelError = level{glyph: "✗", color: "\033[31m", name: "ERROR"}
	levelDebug = level{glyph: "[DEBUG]", color: "\033[36m", name: "DEBUG"}
)

// Logger provides structured logging with redaction support
type Logger struct {
	debug   bool
	noColor bool

	mu      sync.Mutex
	out     io.Writer
	file    io.WriteCloser
	secrets []string
	now     func() time.Time
}

// New creates a new logger instance
func New(debug, noColor bool) *Logger {
	return &Logger{
		debug:   debug,
		noColor: noColor,
		out:     os.Stderr,
		now:     time.Now,
	}
}

// NewWithWriter creates a logger writing to w without color.
func NewWithWriter(w io.Writer, debug bool) *Logger {
	l := New(debug, true)
	l.out = w
	return l
}

// OpenFile mirrors every message into a timestamped log file, appending to it.
func (l *Logger) OpenFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		_ = l.file.Close()
	}
	l.file = f
	return nil
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Mask registers values that are replaced with [REDACTED] in every later message.
func (l *Logger) Mask(values ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.secrets = append(l.secrets, values...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.write(levelInfo, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write(levelWarn, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.write(levelError, format, args...)
}

// Debug logs a debug message if debug mode is enabled
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.write(levelDebug, format, args...)
}

func (l *Logger) write(lv level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := Redact(fmt.Sprintf(format, args...), l.secrets)
	if !l.noColor {
		fmt.Fprintf(l.out, "%s%s\033[0m %s\n", lv.color, lv.glyph, msg)
	} else {
		fmt.Fprintf(l.out, "%s %s\n", lv.glyph, msg)
	}

	if l.file != nil {
		fmt.Fprintf(l.file, "%s %s %s\n", l.now().Format("2006-01-02 15:04:05"), lv.name, msg)
	}
}

// Secret represents a value that should be redacted in logs
type Secret string

// String implements the Stringer interface, always returning a redacted value
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements the GoStringer interface for %#v formatting
func (s Secret) GoString() string {
	return "[REDACTED]"
}

// Redact replaces sensitive values in a string with [REDACTED]
func Redact(s string, secrets []string) string {
	result := s
	for _, secret := range secrets {
		if secret != "" && len(secret) > 3 { // Only redact non-trivial secrets
			result = strings.ReplaceAll(result, secret, "[REDACTED]")
		}
	}
	return result
}
