package eventsink

import (
	"github.com/personal/ad-lifecycle/pkg/logger"
)

// LogSink writes every event to the logger
type LogSink struct {
	logger *logger.Logger
}

// NewLogSink creates a new LogSink
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{logger: log}
}

// Emit logs the event with its attributes as fields
func (s *LogSink) Emit(name string, attributes map[string]interface{}) {
	fields := logger.Fields{"event": name}
	for k, v := range attributes {
		fields[k] = v
	}
	s.logger.WithFields(fields).Info("Ad event")
}
