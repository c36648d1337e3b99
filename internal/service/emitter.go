package service

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Events emitted by ReportService.
const (
	EventRunStarted  = "report:run-started"
	EventPublished   = "report:published"
	EventRunFailed   = "report:run-failed"
	EventRunSkipped  = "report:run-skipped"
	EventTriggersSet = "report:triggers"
)

// EventEmitter receives service lifecycle events.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// LogEmitter writes events to a logger.
type LogEmitter struct {
	Logger *zap.Logger
}

func (e LogEmitter) Emit(_ context.Context, event string, data any) {
	if e.Logger == nil {
		return
	}
	e.Logger.Info("event", zap.String("event", event), zap.Any("data", data))
}

// MockEmitter records every emission. Safe for concurrent use.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Named returns the recorded events with the given name.
func (m *MockEmitter) Named(event string) []EmittedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []EmittedEvent
	for _, e := range m.Events {
		if e.Event == event {
			out = append(out, e)
		}
	}
	return out
}
