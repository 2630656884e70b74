package session

import "sync"

// EventType defines the type of event
type EventType string

const (
	EventPreSave    EventType = "pre_save"
	EventPostSave   EventType = "post_save"
	EventPreDelete  EventType = "pre_delete"
	EventPostDelete EventType = "post_delete"
)

// Event represents a lifecycle step of one entity
type Event struct {
	Type    EventType `json:"type"`
	Session string    `json:"session"`
	Label   string    `json:"label"`
	Entity  any       `json:"-"`
}

// EventBus fans lifecycle events out to channels; a subscriber whose
// channel is full misses the event
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan<- Event
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]chan<- Event, 0),
	}
}

// Subscribe adds a subscriber to receive events
func (eb *EventBus) Subscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, ch)
}

// Unsubscribe stops delivery to ch; the channel is not closed
func (eb *EventBus) Unsubscribe(ch chan<- Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for i, sub := range eb.subscribers {
		if sub == ch {
			eb.subscribers = append(eb.subscribers[:i], eb.subscribers[i+1:]...)
			return
		}
	}
}

// Publish sends an event to all subscribers without blocking
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	for _, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
