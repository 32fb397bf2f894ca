// SPDX-License-Identifier: AGPL-3.0-only
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	Debug LogLevel = iota
	Info
	Warn
	Error
	Fatal
)

// String returns the upper-case name of the level
func (l LogLevel) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// ParseLevel converts a level name to a LogLevel, defaulting to Info
func ParseLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return Debug
	case "info":
		return Info
	case "warn", "warning":
		return Warn
	case "error":
		return Error
	case "fatal":
		return Fatal
	default:
		return Info
	}
}

// Options configures a Logger
type Options struct {
	// Output defaults to os.Stderr. Stdout is reserved for the stdio transport.
	Output io.Writer
	Level  LogLevel
}

// Logger is a levelled logger with optional structured fields
type Logger struct {
	out    *log.Logger
	output io.Writer
	level  LogLevel
	fields map[string]interface{}
}

// New creates a new logger
func New(opts Options) *Logger {
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}
	return &Logger{
		out:    log.New(output, "", log.LstdFlags),
		output: output,
		level:  opts.Level,
	}
}

// FileLogger creates a logger that appends to the file at path
func FileLogger(path string, level LogLevel) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return New(Options{Output: f, Level: level}), nil
}

// Level returns the minimum level the logger emits
func (l *Logger) Level() LogLevel {
	return l.level
}

// Writer returns the underlying output
func (l *Logger) Writer() io.Writer {
	return l.output
}

// WithField returns a copy of the logger that attaches key=value to every line
func (l *Logger) WithField(key string, value interface{}) *Logger {
	fields := make(map[string]interface{}, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	fields[key] = value
	return &Logger{
		out:    l.out,
		output: l.output,
		level:  l.level,
		fields: fields,
	}
}

func (l *Logger) logf(level LogLevel, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if len(l.fields) > 0 {
		keys := make([]string, 0, len(l.fields))
		for k := range l.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, l.fields[k])
		}
		msg += b.String()
	}
	l.out.Printf("[%s] %s", level, msg)
}

// Debugf logs at debug level
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logf(Debug, format, args...)
}

// Infof logs at info level
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logf(Info, format, args...)
}

// Warnf logs at warn level
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logf(Warn, format, args...)
}

// Errorf logs at error level
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logf(Error, format, args...)
}

// Fatalf logs at fatal level and exits the process
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logf(Fatal, format, args...)
	os.Exit(1)
}

var (
	defaultMu     sync.RWMutex
	defaultLogger = New(Options{Level: Info})
)

// GetDefaultLogger returns the process-wide logger
func GetDefaultLogger() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefaultLogger replaces the process-wide logger
func SetDefaultLogger(logger *Logger) {
	if logger == nil {
		return
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = logger
}
