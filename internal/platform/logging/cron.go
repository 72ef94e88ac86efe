package logging

import "github.com/robfig/cron/v3"

// CronLogger adapts Logger to the cron scheduler's logging interface.
// Scheduler chatter is logged at debug level.
type CronLogger struct {
	logger *Logger
}

var _ cron.Logger = CronLogger{}

func NewCronLogger(logger *Logger) CronLogger {
	if logger == nil {
		logger = Default()
	}
	return CronLogger{logger: logger.Named("cron")}
}

func (c CronLogger) Info(msg string, keysAndValues ...any) {
	c.logger.Debug(msg, keysAndValues...)
}

func (c CronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := make([]any, 0, len(keysAndValues)+2)
	args = append(args, "error", err)
	args = append(args, keysAndValues...)
	c.logger.Error(msg, args...)
}
