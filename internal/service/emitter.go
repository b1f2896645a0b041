package service

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: decouples services from their front end
// ─────────────────────────────────────────────────────────────

// EventEmitter notifies an attached front end (editor UI, MCP client log)
// about state changes. Services receive this interface so they stay
// testable with MockEmitter.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

// Event names emitted by the services.
const (
	EventDocumentChanged   = "document:changed"
	EventInjectionSettled  = "injection:settled"
	EventBlockSaved        = "block:saved"
	EventBlockDeleted      = "block:deleted"
	EventPagePublished     = "page:published"
	EventDataSourceChanged = "datasource:changed"
)

// LogEmitter writes every event to a logrus entry. It is the emitter used
// when no UI is attached.
type LogEmitter struct {
	Log *logrus.Entry
}

func NewLogEmitter() *LogEmitter {
	return &LogEmitter{Log: logrus.WithField("component", "events")}
}

func (e *LogEmitter) Emit(_ context.Context, event string, data any) {
	e.Log.WithField("event", event).WithField("data", data).Debug("emit")
}

// MockEmitter is a test-friendly EventEmitter that records all calls.
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
