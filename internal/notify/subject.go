package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Observer receives events synchronously. It must not block on I/O.
type Observer interface {
	Update(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) Update(ctx context.Context, ev Event) { f(ctx, ev) }

// Notifier is what the engine depends on.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

type registration struct {
	id       int
	name     string
	observer Observer
}

// Subject fans events out to observers in attach order.
type Subject struct {
	mu        sync.RWMutex
	observers []registration
	nextID    int
	logger    *slog.Logger
	events    metric.Int64Counter
	panics    metric.Int64Counter
}

type SubjectOption func(*Subject)

func WithLogger(logger *slog.Logger) SubjectOption {
	return func(s *Subject) { s.logger = logger }
}

func NewSubject(opts ...SubjectOption) *Subject {
	s := &Subject{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}

	meter := otel.Meter("libraflow/notify")
	// instrument errors only happen on invalid names; fall back to no-ops
	s.events, _ = meter.Int64Counter("libraflow.notify.events",
		metric.WithDescription("Events dispatched to observers"))
	s.panics, _ = meter.Int64Counter("libraflow.notify.observer_panics",
		metric.WithDescription("Observer calls that panicked"))
	return s
}

// Attach registers o and returns an ID for Detach.
func (s *Subject) Attach(name string, o Observer) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.observers = append(s.observers, registration{id: s.nextID, name: name, observer: o})
	return s.nextID
}

func (s *Subject) Detach(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.observers {
		if r.id == id {
			s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
			return
		}
	}
}

// Notify calls every observer in attach order. A panicking observer is
// logged and skipped.
func (s *Subject) Notify(ctx context.Context, ev Event) {
	s.mu.RLock()
	observers := make([]registration, len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()

	attrs := metric.WithAttributes(attribute.String("event.type", string(ev.Type)))
	if s.events != nil {
		s.events.Add(ctx, 1, attrs)
	}

	for _, r := range observers {
		s.safeCall(ctx, r, ev, attrs)
	}
}

func (s *Subject) safeCall(ctx context.Context, r registration, ev Event, attrs metric.AddOption) {
	defer func() {
		if p := recover(); p != nil {
			if s.panics != nil {
				s.panics.Add(ctx, 1, attrs)
			}
			s.logger.ErrorContext(ctx, "observer panicked",
				"observer", r.name,
				"event", ev.Type,
				"panic", fmt.Sprint(p))
		}
	}()
	r.observer.Update(ctx, ev)
}
