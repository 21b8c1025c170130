package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogSender writes notifications to the log. It is the sender of last resort
// when no chat channel is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger.Named("alert")}
}

// Send logs the notification at warn level.
func (l *LogSender) Send(_ context.Context, title, message string) error {
	l.logger.Warn(title, zap.String("message", message))
	return nil
}

// Name returns the sender identifier.
func (l *LogSender) Name() string {
	return "log"
}
