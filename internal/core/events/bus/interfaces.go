package bus

import "time"

// EventBus is an in-process pub/sub bus.
//
// Delivery is synchronous and in subscription order: Publish calls every
// handler registered for event.Type() in the caller goroutine and joins the
// handler errors. All methods are safe for concurrent use.
type EventBus interface {
	// Publish delivers the event to all active subscribers of event.Type().
	Publish(event Event) error
	// PublishBatch publishes events sequentially and joins errors across them.
	PublishBatch(events ...Event) error
	// Subscribe registers a handler for an event type. Subscribing to Wildcard
	// receives every event.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. Nil is ignored.
	Unsubscribe(Subscription) error
	// Subscribers returns the number of active subscriptions for eventType.
	Subscribers(eventType string) int
}

// Event is an immutable message transported by the EventBus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
	Metadata() map[string]any
}

type (
	// EventHandler is invoked per delivered event.
	EventHandler func(event Event) error
	// EventFilter drops events for which it returns false.
	EventFilter func(event Event) bool
)

// Subscription is a registered handler bound to an event type.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	Cancel() error
}

// Wildcard subscribes to every event type.
const Wildcard = "*"
