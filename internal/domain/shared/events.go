package shared

import "time"

// DomainEvent represents an event that has occurred in the domain
type DomainEvent interface {
	EventName() string
	OccurredAt() time.Time
}

// EventHandler handles domain events
type EventHandler func(event DomainEvent)

// EventDispatcher fans domain events out to subscribers. Subscribe returns
// a function that removes the handler.
type EventDispatcher interface {
	Dispatch(events ...DomainEvent)
	Subscribe(eventName string, handler EventHandler) (unsubscribe func())
}

// AggregateRoot collects events raised by an aggregate until they are drained
type AggregateRoot struct {
	events []DomainEvent
}

// AddEvent adds a domain event to be dispatched
func (a *AggregateRoot) AddEvent(event DomainEvent) {
	a.events = append(a.events, event)
}

// Events returns and clears pending domain events
func (a *AggregateRoot) Events() []DomainEvent {
	events := a.events
	a.events = nil
	return events
}

// ClearEvents clears all pending events
func (a *AggregateRoot) ClearEvents() {
	a.events = nil
}
