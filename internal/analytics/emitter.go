package analytics

import (
	"sync"

	"go.uber.org/zap"
)

// Emitter delivers events to a sink from a background goroutine. Track never
// blocks; events are dropped when the buffer is full.
type Emitter struct {
	sink   Sink
	events chan Event
	logger *zap.Logger

	once sync.Once
	done chan struct{}

	mu      sync.Mutex
	closed  bool
	dropped int
}

func NewEmitter(sink Sink, buffer int, logger *zap.Logger) *Emitter {
	if buffer <= 0 {
		buffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Emitter{
		sink:   sink,
		events: make(chan Event, buffer),
		logger: logger,
		done:   make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *Emitter) run() {
	defer close(e.done)
	for event := range e.events {
		e.sink.Track(event)
	}
}

func (e *Emitter) Track(event Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	select {
	case e.events <- event:
	default:
		e.dropped++
		e.logger.Debug("analytics event dropped", zap.String("action", event.Action))
	}
}

// Dropped returns how many events were discarded.
func (e *Emitter) Dropped() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped
}

// Close drains queued events and stops the goroutine.
func (e *Emitter) Close() {
	e.once.Do(func() {
		e.mu.Lock()
		e.closed = true
		close(e.events)
		e.mu.Unlock()
	})
	<-e.done
}
