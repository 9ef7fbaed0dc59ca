// Package logger provides structured logging utilities.
package logger

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every entry written by a logger from New.
const ServiceName = "eldersfive-mediator"

// Logger is a wrapper around zap.Logger.
type Logger struct {
	*zap.Logger
}

// Options controls how Build assembles the zap core.
type Options struct {
	// Level is one of debug, info, warn, error. Unknown values mean info.
	Level string
	// Console switches from JSON to a human readable encoder.
	Console bool
	// Output paths, stdout when empty.
	Outputs []string
}

// New creates a JSON logger at the given level writing to stdout.
func New(level string) (*Logger, error) {
	return Build(Options{Level: level})
}

// Build creates a logger from opts.
func Build(opts Options) (*Logger, error) {
	encoder := zap.NewProductionEncoderConfig()
	encoder.TimeKey = "ts"
	encoder.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder.EncodeDuration = zapcore.MillisDurationEncoder

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(opts.Level))
	cfg.EncoderConfig = encoder
	cfg.Sampling = nil
	cfg.InitialFields = map[string]interface{}{"service": ServiceName}
	if opts.Console {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if len(opts.Outputs) > 0 {
		cfg.OutputPaths = opts.Outputs
	}

	zl, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: zl}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

// With creates a child logger with additional fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return &Logger{Logger: l.Logger.With(fields...)}
}

// WithRequest tags entries with the HTTP correlation id and caller.
func (l *Logger) WithRequest(correlationID, userID string) *Logger {
	fields := []zap.Field{zap.String("correlation_id", correlationID)}
	if userID != "" {
		fields = append(fields, zap.String("user_id", userID))
	}
	return l.With(fields...)
}

// WithConversation scopes a logger to one room.
func (l *Logger) WithConversation(conversationID string) *Logger {
	return l.With(zap.String("conversation_id", conversationID))
}

func parseLevel(level string) zapcore.Level {
	var lvl zapcore.Level
	switch s := strings.ToLower(strings.TrimSpace(level)); s {
	case "warning":
		return zapcore.WarnLevel
	default:
		if err := lvl.UnmarshalText([]byte(s)); err != nil {
			return zapcore.InfoLevel
		}
		return lvl
	}
}

var global atomic.Pointer[Logger]

// Global returns the process logger. It discards output until SetGlobal is called.
func Global() *Logger {
	if l := global.Load(); l != nil {
		return l
	}
	return NewNop()
}

// SetGlobal replaces the process logger.
func SetGlobal(l *Logger) {
	global.Store(l)
}
