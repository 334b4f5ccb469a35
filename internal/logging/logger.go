// Package logging provides leveled structured logging to console and
// size-rotated per-level files.
//
// Key features:
// - Levels error, warn, info, debug with configurable threshold
// - Colorized console output and JSON-lines file output
// - Inline size-based file rotation with bounded generations
// - Best-effort file writes: I/O failures degrade to console only
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/errors"
)

// Record is a single structured log entry as written to file sinks
type Record struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Error     *ErrorDetail   `json:"error,omitempty"`
}

// ErrorDetail carries a nested error attached to a record via the "error"
// metadata key
type ErrorDetail struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Config configures a Logger instance
type Config struct {
	Level       Level
	Console     bool
	EnableFile  bool
	Dir         string
	MaxFileSize int64
	MaxFiles    int
}

const (
	// DefaultMaxFileSize is the rotation threshold in bytes (10 MiB)
	DefaultMaxFileSize = 10 * 1024 * 1024

	// DefaultMaxFiles is the number of rotated generations kept per level
	DefaultMaxFiles = 5
)

// Logger writes structured records to console and/or per-level rotating
// files. A Logger owns its log directory exclusively; two instances pointed
// at the same directory would race on rotation.
type Logger struct {
	mu      sync.Mutex
	cfg     Config
	console io.Writer
	sinks   map[Level]*fileSink
}

// New creates a Logger. The log directory is created when file logging is
// enabled; a directory that cannot be created disables file output rather
// than failing construction.
func New(cfg Config) *Logger {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.MaxFiles <= 0 {
		cfg.MaxFiles = DefaultMaxFiles
	}

	l := &Logger{
		cfg:     cfg,
		console: os.Stdout,
		sinks:   make(map[Level]*fileSink),
	}

	if cfg.EnableFile {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			l.cfg.EnableFile = false
			l.reportSinkError("create log directory", err)
		}
	}

	return l
}

// Error logs a message at error level
func (l *Logger) Error(msg string, metadata map[string]any) {
	l.log(LevelError, msg, metadata)
}

// Warn logs a message at warn level
func (l *Logger) Warn(msg string, metadata map[string]any) {
	l.log(LevelWarn, msg, metadata)
}

// Info logs a message at info level
func (l *Logger) Info(msg string, metadata map[string]any) {
	l.log(LevelInfo, msg, metadata)
}

// Debug logs a message at debug level
func (l *Logger) Debug(msg string, metadata map[string]any) {
	l.log(LevelDebug, msg, metadata)
}

// Level returns the configured threshold level
func (l *Logger) Level() Level {
	return l.cfg.Level
}

func (l *Logger) log(level Level, msg string, metadata map[string]any) {
	if level > l.cfg.Level {
		return
	}

	record := buildRecord(level, msg, metadata)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg.Console {
		l.writeConsole(record)
	}

	if l.cfg.EnableFile {
		if err := l.appendToFile(level, record); err != nil {
			// File I/O failures must never reach the caller
			l.reportSinkError("write log file", err)
		}
	}
}

// buildRecord normalizes metadata into an immutable record. An "error" key
// holding an error value is lifted into the record's nested error field,
// classified with the package error taxonomy.
func buildRecord(level Level, msg string, metadata map[string]any) Record {
	record := Record{
		Timestamp: time.Now().UTC(),
		Level:     level.String(),
		Message:   msg,
	}

	if len(metadata) == 0 {
		return record
	}

	if errVal, ok := metadata["error"].(error); ok {
		record.Error = &ErrorDetail{
			Message: errVal.Error(),
			Code:    classifyCode(errVal),
		}
		if len(metadata) > 1 {
			rest := make(map[string]any, len(metadata)-1)
			for k, v := range metadata {
				if k != "error" {
					rest[k] = v
				}
			}
			record.Metadata = rest
		}
		return record
	}

	record.Metadata = metadata
	return record
}

func classifyCode(err error) string {
	switch {
	case errors.IsTimeout(err):
		return "timeout"
	case errors.IsPermanent(err):
		return "permanent"
	case errors.IsTransient(err):
		return "transient"
	default:
		return ""
	}
}

func (l *Logger) writeConsole(record Record) {
	level := ParseLevel(record.Level)
	line := fmt.Sprintf("%s%s[%s]%s %s",
		record.Timestamp.Format(time.RFC3339Nano),
		level.color(),
		record.Level,
		colorReset,
		record.Message)

	if record.Error != nil {
		line += fmt.Sprintf(" error=%q", record.Error.Message)
	}

	if len(record.Metadata) > 0 {
		if data, err := json.Marshal(record.Metadata); err == nil {
			line += " " + string(data)
		}
	}

	fmt.Fprintln(l.console, line)
}

func (l *Logger) appendToFile(level Level, record Record) error {
	sink, ok := l.sinks[level]
	if !ok {
		sink = newFileSink(l.cfg.Dir, level.String(), l.cfg.MaxFileSize, l.cfg.MaxFiles)
		l.sinks[level] = sink
	}

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}

	return sink.append(append(data, '\n'))
}

// reportSinkError goes to the console sink only, regardless of the console
// setting, so file failures stay observable without recursing into log()
func (l *Logger) reportSinkError(op string, err error) {
	fmt.Fprintf(l.console, "%s%s[logger]%s %s: %v\n",
		time.Now().UTC().Format(time.RFC3339Nano), colorRed, colorReset, op, err)
}
