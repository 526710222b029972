// Package logger builds the zap loggers used across the service.
package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Structured field keys shared by the workflow, server and llm packages.
const (
	FieldThreadID = "thread_id"
	FieldStep     = "step"
	FieldProvider = "llm_provider"
	FieldModel    = "llm_model"
)

// New returns a logger writing to stdout. format is "json" or "console";
// level is any zapcore level name ("debug", "info", ...).
func New(format, level string) (*zap.Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	encoding := "console"
	if strings.EqualFold(format, "json") {
		encoding = "json"
	}

	cfg := zap.Config{
		Encoding:         encoding,
		Level:            zap.NewAtomicLevelAt(lvl),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey: "msg",

			LevelKey:    "level",
			EncodeLevel: zapcore.LowercaseLevelEncoder,

			TimeKey:    "time",
			EncodeTime: zapcore.RFC3339TimeEncoder,

			CallerKey:    "caller",
			EncodeCaller: zapcore.ShortCallerEncoder,

			NameKey: "logger",
		},
	}
	return cfg.Build()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// WithThread attaches the thread id field.
func WithThread(l *zap.Logger, threadID string) *zap.Logger {
	l = OrNop(l)
	if strings.TrimSpace(threadID) == "" {
		return l
	}
	return l.With(zap.String(FieldThreadID, threadID))
}

// WithModel attaches provider and model fields, skipping empty values.
func WithModel(l *zap.Logger, provider, model string) *zap.Logger {
	l = OrNop(l)
	var fields []zap.Field
	if provider = strings.TrimSpace(provider); provider != "" {
		fields = append(fields, zap.String(FieldProvider, provider))
	}
	if model = strings.TrimSpace(model); model != "" {
		fields = append(fields, zap.String(FieldModel, model))
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

// TruncateForLog shortens s to limit runes, appending an ellipsis when truncated.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
