// internal/handler/event_bus.go
package handler

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"myo-recorder/internal/model"
)

const (
	eventQueueSize      = 1000
	subscriberQueueSize = 100
)

// EventBus manages event distribution
type EventBus struct {
	subscribers map[model.EventType][]chan model.Event
	events      chan model.Event
	mutex       sync.RWMutex
	logger      *zap.Logger
	done        chan struct{}
	stopOnce    sync.Once
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[model.EventType][]chan model.Event),
		events:      make(chan model.Event, eventQueueSize),
		logger:      logger,
		done:        make(chan struct{}),
	}
}

// Start distributes events until ctx is done or Stop is called. Subscriber
// channels are closed on return.
func (eb *EventBus) Start(ctx context.Context) {
	defer eb.closeSubscribers()

	for {
		select {
		case event := <-eb.events:
			eb.distributeEvent(event)
		case <-ctx.Done():
			return
		case <-eb.done:
			return
		}
	}
}

// Stop ends distribution
func (eb *EventBus) Stop() {
	eb.stopOnce.Do(func() { close(eb.done) })
}

// Publish queues an event without blocking the publisher
func (eb *EventBus) Publish(event model.Event) {
	select {
	case eb.events <- event:
	default:
		eb.logger.Warn("Event bus full, dropping event",
			zap.String("event_type", string(event.Type)),
		)
	}
}

// Subscribe subscribes to events of a specific type, or every type with
// model.EventAll. The returned function cancels the subscription.
func (eb *EventBus) Subscribe(eventType model.EventType) (<-chan model.Event, func()) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	subscriber := make(chan model.Event, subscriberQueueSize)
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)

	unsubscribe := func() {
		eb.mutex.Lock()
		defer eb.mutex.Unlock()

		subscribers := eb.subscribers[eventType]
		for i, ch := range subscribers {
			if ch == subscriber {
				eb.subscribers[eventType] = append(subscribers[:i], subscribers[i+1:]...)
				close(subscriber)
				return
			}
		}
	}
	return subscriber, unsubscribe
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event model.Event) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for _, eventType := range []model.EventType{event.Type, model.EventAll} {
		for _, subscriber := range eb.subscribers[eventType] {
			select {
			case subscriber <- event:
			default:
				eb.logger.Debug("Subscriber is slow, dropping event",
					zap.String("event_type", string(event.Type)),
				)
			}
		}
	}
}

func (eb *EventBus) closeSubscribers() {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	for eventType, subscribers := range eb.subscribers {
		for _, subscriber := range subscribers {
			close(subscriber)
		}
		delete(eb.subscribers, eventType)
	}
}
