package monitor

import (
	"sync"
	"time"

	"github.com/neovance/neovance-go/internal/alerting"
	"github.com/neovance/neovance-go/internal/risk"
	"github.com/neovance/neovance-go/internal/vitals"
)

// AssessmentEvent carries one scored reading to downstream consumers
// (persistence, live feed, notifications).
type AssessmentEvent struct {
	Reading    vitals.Reading
	Assessment *risk.Assessment
	// Alert is set when this reading opened an alert.
	Alert        *alerting.Alert
	AlertCreated bool
	// Degraded marks readings scored against stale statistics after an
	// out-of-order rejection.
	Degraded  bool
	Timestamp time.Time
}

// AssessmentHandler processes assessment events.
type AssessmentHandler func(event *AssessmentEvent)

const (
	// eventBusBufferSize is the capacity of the async event channel. Events
	// are dropped if the buffer is full so ingestion is never blocked by a
	// slow consumer.
	eventBusBufferSize = 1000
)

// EventBus is an async pub/sub for assessment events. Publish is
// non-blocking: events go to a buffered channel and are delivered by a worker
// goroutine, so the ingest hot path is never blocked by DB writes or
// websocket broadcasts.
type EventBus struct {
	handlers []AssessmentHandler
	mu       sync.RWMutex
	eventCh  chan *AssessmentEvent
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewEventBus creates an event bus and starts its worker.
func NewEventBus() *EventBus {
	b := &EventBus{
		handlers: make([]AssessmentHandler, 0),
		eventCh:  make(chan *AssessmentEvent, eventBusBufferSize),
		stopCh:   make(chan struct{}),
	}
	go b.processLoop()
	return b
}

// Subscribe registers a handler for assessment events.
func (b *EventBus) Subscribe(handler AssessmentHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
}

// Publish enqueues an event for async delivery. Non-blocking: if the buffer
// is full the event is dropped to protect the ingest path. Events are
// silently discarded after Stop.
func (b *EventBus) Publish(event *AssessmentEvent) {
	select {
	case <-b.stopCh:
		return
	default:
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case b.eventCh <- event:
	default:
		// Buffer full; drop rather than block ingestion.
	}
}

// Stop shuts down the worker goroutine after draining queued events.
// Safe to call multiple times.
func (b *EventBus) Stop() {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
}

func (b *EventBus) processLoop() {
	for {
		select {
		case event := <-b.eventCh:
			b.dispatch(event)
		case <-b.stopCh:
			for {
				select {
				case event := <-b.eventCh:
					b.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (b *EventBus) dispatch(event *AssessmentEvent) {
	b.mu.RLock()
	handlers := make([]AssessmentHandler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.safeCall(handler, event)
	}
}

// safeCall invokes a handler with panic recovery so one panicking consumer
// cannot kill the bus goroutine.
func (b *EventBus) safeCall(handler AssessmentHandler, event *AssessmentEvent) {
	defer func() {
		recover() //nolint:errcheck // swallowed to keep the bus alive
	}()
	handler(event)
}
