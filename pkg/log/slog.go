package log

import (
	"context"
	"log/slog"
)

// SlogLogger implements Logger on a *slog.Logger, typically the default
// installed by SetupLogger.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps l; nil means slog.Default().
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{logger: l}
}

func (l *SlogLogger) Debug(msg string, fields ...any) { l.logger.Debug(msg, fields...) }

func (l *SlogLogger) Info(msg string, fields ...any) { l.logger.Info(msg, fields...) }

func (l *SlogLogger) Warn(msg string, fields ...any) { l.logger.Warn(msg, fields...) }

// Error implements Logger.Error. A leading error field becomes ErrAttr so
// ErrFmtHandler can attach its stacktrace.
func (l *SlogLogger) Error(msg string, fields ...any) {
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			fields = append([]any{ErrAttr(err)}, fields[1:]...)
		}
	}
	l.logger.Error(msg, fields...)
}

func (l *SlogLogger) With(fields ...any) Logger {
	return &SlogLogger{logger: l.logger.With(fields...)}
}

func (l *SlogLogger) Enabled(ctx context.Context, level Level) bool {
	return l.logger.Enabled(ctx, slog.Level(level))
}

// SlogProvider hands out SlogLoggers over slog.Default(). The level is owned
// by the handler, so SetLevel is a no-op.
type SlogProvider struct{}

func (SlogProvider) GetLogger() Logger { return NewSlogLogger(nil) }

func (SlogProvider) GetLoggerWithName(name string) Logger {
	return NewSlogLogger(nil).With(ComponentKey, name)
}

func (SlogProvider) SetLevel(Level) {}
