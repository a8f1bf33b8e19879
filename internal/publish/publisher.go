package publish

import (
	"log/slog"
	"sync"
)

// Callback receives one published event. Callbacks run synchronously on the
// publishing goroutine and must not block.
type Callback func(event string, payload any)

// Publisher fans (event, payload) pairs out to registered callbacks. The core
// never knows about concrete transports; subscribers adapt this contract to
// whatever they republish on.
type Publisher struct {
	mu        sync.RWMutex
	callbacks []Callback
	logger    *slog.Logger
}

// NewPublisher creates an empty Publisher.
func NewPublisher(logger *slog.Logger) *Publisher {
	return &Publisher{logger: logger}
}

// Subscribe registers a callback for all subsequent events.
func (p *Publisher) Subscribe(cb Callback) {
	p.mu.Lock()
	p.callbacks = append(p.callbacks, cb)
	p.mu.Unlock()
}

// Publish delivers an event to every subscriber. A panicking subscriber is
// logged and skipped so one bad consumer cannot break the fan-out.
func (p *Publisher) Publish(event string, payload any) {
	p.mu.RLock()
	callbacks := p.callbacks
	p.mu.RUnlock()

	for _, cb := range callbacks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("subscriber panicked", "event", event, "recover", r)
				}
			}()
			cb(event, payload)
		}()
	}
}
