// Package events provides the in-process domain event dispatcher.
package events

import (
	"sync"

	"github.com/alchemorsel/dietgen/internal/domain/shared"
	"go.uber.org/zap"
)

// Dispatcher calls subscribers synchronously, in subscription order. A
// panicking handler is logged and does not stop the others.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]map[uint64]shared.EventHandler
	order    map[string][]uint64
	nextID   uint64
	logger   *zap.Logger
}

var _ shared.EventDispatcher = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher with no subscribers.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]map[uint64]shared.EventHandler),
		order:    make(map[string][]uint64),
		logger:   logger.Named("event-dispatcher"),
	}
}

// Subscribe registers handler for eventName. "*" receives every event.
func (d *Dispatcher) Subscribe(eventName string, handler shared.EventHandler) func() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	id := d.nextID
	if d.handlers[eventName] == nil {
		d.handlers[eventName] = make(map[uint64]shared.EventHandler)
	}
	d.handlers[eventName][id] = handler
	d.order[eventName] = append(d.order[eventName], id)

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.handlers[eventName], id)
			ids := d.order[eventName]
			for i, v := range ids {
				if v == id {
					d.order[eventName] = append(ids[:i:i], ids[i+1:]...)
					break
				}
			}
		})
	}
}

// Dispatch delivers events to their subscribers.
func (d *Dispatcher) Dispatch(events ...shared.DomainEvent) {
	for _, e := range events {
		for _, h := range d.snapshot(e.EventName()) {
			d.call(h, e)
		}
	}
}

func (d *Dispatcher) snapshot(name string) []shared.EventHandler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []shared.EventHandler
	for _, key := range []string{name, "*"} {
		for _, id := range d.order[key] {
			if h, ok := d.handlers[key][id]; ok {
				out = append(out, h)
			}
		}
	}
	return out
}

func (d *Dispatcher) call(h shared.EventHandler, e shared.DomainEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Event handler panicked", zap.String("event", e.EventName()), zap.Any("panic", r))
		}
	}()
	h(e)
}
