package auth

import (
	"log/slog"
)

// ResolveLogger picks the logger for a component: the provider's named
// logger first, then the explicit logger, then the default stdout logger.
func ResolveLogger(name string, provider LoggerProvider, logger Logger) Logger {
	if provider != nil {
		if l := provider.GetLogger(name); l != nil {
			return l
		}
	}
	if logger != nil {
		return logger
	}
	return defLogger{}
}

// SlogLogger adapts a *slog.Logger to Logger.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps logger. A nil logger uses slog.Default.
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

func (l *SlogLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *SlogLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *SlogLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *SlogLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// GetLogger returns a child logger tagged with the component name, so a
// SlogLogger can also serve as a LoggerProvider.
func (l *SlogLogger) GetLogger(name string) Logger {
	return &SlogLogger{logger: l.logger.With("component", name)}
}
