// Package logrusadapter writes entity log events through logrus.
package logrusadapter

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/goliatone/go-entity"
)

// Logger implements entity.Logger. Failed events log at Error, everything
// else at Debug.
type Logger struct {
	entry *log.Entry
}

// New wraps logger. A nil logger uses the logrus standard logger.
func New(logger *log.Logger) *Logger {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Logger{entry: log.NewEntry(logger)}
}

// WithFields returns a copy that adds fields to every entry.
func (l *Logger) WithFields(fields log.Fields) *Logger {
	return &Logger{entry: l.entry.WithFields(fields)}
}

// Log implements entity.Logger.
func (l *Logger) Log(event entity.LogEvent) {
	fields := log.Fields{
		"component":   event.Component,
		"action":      event.Action,
		"duration_ms": event.Duration.Milliseconds(),
	}
	if event.Type != "" {
		fields["type"] = event.Type
	}
	if event.ID != nil {
		fields["id"] = fmt.Sprint(event.ID)
	}
	entry := l.entry.WithFields(fields)
	message := event.Component + " " + event.Action
	if event.Err != nil {
		entry.WithError(event.Err).Error(message)
		return
	}
	entry.Debug(message)
}
