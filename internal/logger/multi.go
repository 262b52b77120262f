package logger

import (
	"time"

	"github.com/harrison/searchflow/internal/models"
)

// Sink is implemented by every logger in this package
type Sink interface {
	LogTrace(message string)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogStageStart(stage string)
	LogStageComplete(stage string, duration time.Duration)
	LogProgress(label string, done, total int)
	LogSummary(summary models.RunSummary)
}

// MultiLogger forwards every call to each of its sinks in order
type MultiLogger struct {
	sinks []Sink
}

// Multi fans out to sinks; nil sinks are skipped
func Multi(sinks ...Sink) *MultiLogger {
	m := &MultiLogger{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

func (m *MultiLogger) each(fn func(Sink)) {
	for _, s := range m.sinks {
		fn(s)
	}
}

func (m *MultiLogger) LogTrace(message string) { m.each(func(s Sink) { s.LogTrace(message) }) }
func (m *MultiLogger) LogDebug(message string) { m.each(func(s Sink) { s.LogDebug(message) }) }
func (m *MultiLogger) LogInfo(message string)  { m.each(func(s Sink) { s.LogInfo(message) }) }
func (m *MultiLogger) LogWarn(message string)  { m.each(func(s Sink) { s.LogWarn(message) }) }
func (m *MultiLogger) LogError(message string) { m.each(func(s Sink) { s.LogError(message) }) }

func (m *MultiLogger) LogStageStart(stage string) {
	m.each(func(s Sink) { s.LogStageStart(stage) })
}

func (m *MultiLogger) LogStageComplete(stage string, duration time.Duration) {
	m.each(func(s Sink) { s.LogStageComplete(stage, duration) })
}

func (m *MultiLogger) LogProgress(label string, done, total int) {
	m.each(func(s Sink) { s.LogProgress(label, done, total) })
}

func (m *MultiLogger) LogSummary(summary models.RunSummary) {
	m.each(func(s Sink) { s.LogSummary(summary) })
}
