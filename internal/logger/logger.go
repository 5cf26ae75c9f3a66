package logger

import (
	"log/slog"
	"os"
)

// Logger represents application logger.
type Logger struct {
	*slog.Logger
}

// New creates new Logger instance with the specified level.
func New(level int) *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.Level(level)})),
	}
}

// Fatal is equivalent to Error followed by os.Exit(1).
func (l *Logger) Fatal(msg string, args ...any) {
	l.Logger.Error(msg, args...)
	os.Exit(1)
}

// With returns a Logger carrying the given attributes on every record.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// MaskEmail keeps the first three characters of an address for log correlation.
func MaskEmail(email string) string {
	r := []rune(email)
	if len(r) <= 3 {
		return "***"
	}
	return string(r[:3]) + "***"
}

// ShortToken returns a log-safe prefix of a token.
func ShortToken(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:12] + "..."
}
