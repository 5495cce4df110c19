package bus

import "time"

// Wildcard subscribes a handler to every event type of a topic.
const Wildcard = "*"

// EventBus is a thread-safe, in-process pub/sub bus.
//
// - Handlers subscribe to an event type within a topic; Wildcard matches all types.
// - Delivery is synchronous, in the publisher's goroutine.
// - Handler errors are joined and returned from Publish.
// - Metrics are only collected while at least one observer is registered.
type EventBus interface {
	// Publish delivers event to the subscribers of event.Type in topic.
	Publish(topic string, event Event) error
	// Subscribe registers handler for eventType within topic.
	Subscribe(topic, eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels sub. It is safe to call with nil.
	Unsubscribe(sub Subscription) error

	AddObserver(obs EventBusObserver)
	RemoveObserver(obs EventBusObserver)
	GetMetrics() EventBusMetrics
	GetTopics() []TopicInfo
}

// Event is an immutable message transported by the bus. Data is owned by the
// publisher and must be treated as read-only by handlers.
type Event struct {
	ID        string
	Type      string
	Source    string
	Timestamp time.Time
	Data      any
	Metadata  map[string]string
}

type EventHandler func(event Event) error

// Subscription is a registered handler bound to a topic and event type.
type Subscription interface {
	ID() string
	Topic() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// EventBusObserver is told about every publish and its outcome.
type EventBusObserver interface {
	OnPublish(topic string, event Event)
	OnDelivered(topic string, event Event, handlers int, err error, took time.Duration)
}

type EventBusMetrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	SubscribersActive uint64
	Topics            uint64
}

type TopicInfo struct {
	Name       string
	EventTypes int
	Subs       int
}
