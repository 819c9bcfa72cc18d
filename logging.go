package entity

import "time"

// LogEvent describes one completed model request or a rejected call.
type LogEvent struct {
	Component string
	Action    string
	Type      string
	ID        any
	Duration  time.Duration
	Err       error
}

// Logger records entity events.
type Logger interface {
	Log(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// Log implements Logger.
func (f LoggerFunc) Log(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) Log(LogEvent) {}

// WithLogger attaches a logger to the Registry.
func WithLogger(logger Logger) RegistryOption {
	return func(cfg *registryConfig) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}
