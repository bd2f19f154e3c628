// Package logging provides structured JSON logging for the quibble solver
// and its HTTP service.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"
)

// Level is the severity of a log entry.
type Level int8

const (
	DebugLevel Level = iota - 1
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	case FatalLevel:
		return "FATAL"
	}
	return fmt.Sprintf("LEVEL(%d)", l)
}

// ParseLevel converts a level name to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DebugLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	case "FATAL":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// Logger writes structured JSON entries at or above its configured level.
// Loggers are immutable; WithFields returns a derived logger.
type Logger struct {
	level  Level
	output io.Writer
	fields map[string]interface{}
}

// New creates a logger writing to output at the given minimum level.
func New(level Level, output io.Writer) *Logger {
	return &Logger{
		level:  level,
		output: output,
		fields: map[string]interface{}{},
	}
}

// WithFields returns a derived logger carrying the extra fields on every
// entry.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{level: l.level, output: l.output, fields: merged}
}

// WithField returns a derived logger carrying one extra field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithError returns a derived logger with the error field set.
func (l *Logger) WithError(err error) *Logger {
	return l.WithField("error", err.Error())
}

func (l *Logger) enabled(level Level) bool { return level >= l.level }

func (l *Logger) write(level Level, msg string, fields map[string]interface{}) {
	if !l.enabled(level) {
		return
	}

	entry := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"level":     level.String(),
		"message":   msg,
	}
	if _, file, line, ok := runtime.Caller(2); ok {
		parts := strings.Split(file, "/")
		if len(parts) > 2 {
			file = strings.Join(parts[len(parts)-2:], "/")
		}
		entry["caller"] = fmt.Sprintf("%s:%d", file, line)
	}
	for k, v := range l.fields {
		entry[k] = v
	}
	for k, v := range fields {
		entry[k] = v
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(l.output, "%s [%s] %s: %+v\n", time.Now().Format(time.RFC3339), level, msg, fields)
		return
	}
	data = append(data, '\n')
	_, _ = l.output.Write(data)

	if level == FatalLevel {
		os.Exit(1)
	}
}

func first(fields []map[string]interface{}) map[string]interface{} {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

// Debug logs at DebugLevel.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.write(DebugLevel, msg, first(fields))
}

// Info logs at InfoLevel.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.write(InfoLevel, msg, first(fields))
}

// Warn logs at WarnLevel.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.write(WarnLevel, msg, first(fields))
}

// Error logs at ErrorLevel.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.write(ErrorLevel, msg, first(fields))
}

// Fatal logs at FatalLevel and exits.
func (l *Logger) Fatal(msg string, fields ...map[string]interface{}) {
	l.write(FatalLevel, msg, first(fields))
}

type ctxKey struct{}

// FromContext returns the logger stored in ctx, or a default stderr logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return New(InfoLevel, os.Stderr)
}

// NewContext returns a context carrying the logger.
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}
