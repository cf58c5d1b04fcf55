package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger is the structured logger used across the pipeline.
// Fields are alternating key/value pairs.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// Level is a log severity
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
	default:
		return "ERROR"
	}
}

// ParseLevel maps debug|info|warn|error to a Level, defaulting to info
func ParseLevel(value string) Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// DefaultLogger writes one JSON object per line
type DefaultLogger struct {
	mu    sync.Mutex
	out   *log.Logger
	level Level
}

// NewDefaultLogger creates a logger writing to stderr at info level
func NewDefaultLogger() Logger {
	return NewLogger(os.Stderr, LevelInfo)
}

// NewLogger creates a logger writing to w, dropping entries below level
func NewLogger(w io.Writer, level Level) *DefaultLogger {
	if w == nil {
		w = os.Stderr
	}
	return &DefaultLogger{out: log.New(w, "", 0), level: level}
}

type logEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// fieldsToMap converts key1, value1, key2, value2, ... into a map.
// Non-string keys and a trailing key without value get positional names.
func fieldsToMap(fields []interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			result[fmt.Sprintf("field_%d", i/2)] = fields[i]
			break
		}
		key, ok := fields[i].(string)
		if !ok {
			result[fmt.Sprintf("field_%d", i/2)] = fields[i]
			result[fmt.Sprintf("field_%d_value", i/2)] = fields[i+1]
			continue
		}
		if err, isErr := fields[i+1].(error); isErr && err != nil {
			result[key] = err.Error()
			continue
		}
		result[key] = fields[i+1]
	}
	return result
}

func (l *DefaultLogger) write(level Level, msg string, fields []interface{}) {
	if level < l.level {
		return
	}

	entry := logEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level.String(),
		Message:   msg,
		Fields:    fieldsToMap(fields),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		entry.Fields = map[string]interface{}{
			"original_fields": fmt.Sprintf("%v", fields),
			"marshal_error":   err.Error(),
		}
		if data, err = json.Marshal(entry); err != nil {
			data = []byte(fmt.Sprintf("[%s] %s %v", entry.Level, msg, fields))
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Println(string(data))
}

func (l *DefaultLogger) Debug(msg string, fields ...interface{}) { l.write(LevelDebug, msg, fields) }
func (l *DefaultLogger) Info(msg string, fields ...interface{})  { l.write(LevelInfo, msg, fields) }
func (l *DefaultLogger) Warn(msg string, fields ...interface{})  { l.write(LevelWarn, msg, fields) }
func (l *DefaultLogger) Error(msg string, fields ...interface{}) { l.write(LevelError, msg, fields) }

// NopLogger discards everything
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}

// RepositoryError is the subset of store errors the helpers below understand.
// Declared here to avoid importing the errors package.
type RepositoryError interface {
	Error() string
	GetCode() string
	IsRetryable() bool
	GetContext() map[string]string
	GetTimestamp() time.Time
}

// LogRepositoryError logs a store failure with its classification and context
func LogRepositoryError(logger Logger, err error, operation string, context map[string]interface{}) {
	if logger == nil {
		logger = NewDefaultLogger()
	}

	fields := []interface{}{"operation", operation}
	if repoErr, ok := err.(RepositoryError); ok {
		fields = append(fields,
			"error_code", repoErr.GetCode(),
			"retryable", repoErr.IsRetryable(),
			"timestamp", repoErr.GetTimestamp())
		for k, v := range repoErr.GetContext() {
			fields = append(fields, k, v)
		}
	} else {
		fields = append(fields, "error_type", fmt.Sprintf("%T", err))
	}
	for k, v := range context {
		fields = append(fields, k, v)
	}

	logger.Error(fmt.Sprintf("Store error: %v", err), fields...)
}

// LogRepositoryOperation logs a successful store operation and its duration
func LogRepositoryOperation(logger Logger, operation string, duration time.Duration, context map[string]interface{}) {
	if logger == nil {
		logger = NewDefaultLogger()
	}

	fields := []interface{}{
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
	}
	for k, v := range context {
		fields = append(fields, k, v)
	}

	logger.Debug(fmt.Sprintf("Store operation completed: %s", operation), fields...)
}

// LogError is shorthand for LogRepositoryError
func LogError(logger Logger, err error, operation string, context map[string]interface{}) {
	LogRepositoryError(logger, err, operation, context)
}

// LogOperation is shorthand for LogRepositoryOperation
func LogOperation(logger Logger, operation string, duration time.Duration, context map[string]interface{}) {
	LogRepositoryOperation(logger, operation, duration, context)
}
