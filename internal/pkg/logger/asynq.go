package logger

import (
	"fmt"
	"log/slog"
	"os"
)

// AsynqLogger adapts slog to the asynq.Logger interface
type AsynqLogger struct {
	logger *slog.Logger
}

// NewAsynqLogger wraps l for use as asynq.Config.Logger
func NewAsynqLogger(l *slog.Logger) *AsynqLogger {
	return &AsynqLogger{logger: l.With(slog.String("component", "asynq"))}
}

func (l *AsynqLogger) Debug(args ...interface{}) {
	l.logger.Debug(fmt.Sprint(args...))
}

func (l *AsynqLogger) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *AsynqLogger) Warn(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *AsynqLogger) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}

// Fatal logs at error level and exits the process
func (l *AsynqLogger) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
