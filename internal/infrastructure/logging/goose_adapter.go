package logging

import (
	"fmt"
	"strings"
)

// GooseLoggerAdapter routes migration output into the structured logger.
// It satisfies goose.Logger.
type GooseLoggerAdapter struct {
	logger Logger
}

// NewGooseLoggerAdapter wraps logger for use with goose.SetLogger
func NewGooseLoggerAdapter(logger Logger) *GooseLoggerAdapter {
	if logger == nil {
		logger = NewDefaultLogger()
	}
	return &GooseLoggerAdapter{logger: logger}
}

// Printf logs migration progress at info level
func (g *GooseLoggerAdapter) Printf(format string, v ...interface{}) {
	g.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "source", "goose")
}

// Fatalf logs at error level. It does not exit; goose returns the error to the caller.
func (g *GooseLoggerAdapter) Fatalf(format string, v ...interface{}) {
	g.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "source", "goose", "level", "fatal")
}
