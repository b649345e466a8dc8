// Package outbox is the contract between code that emits domain events (order lifecycle changes) and
// the consumers reacting to them: cache eviction, the broker relay and tests.
package outbox

import "context"

type Event interface {
	EventName() string
}

// Handler reacts to one event. A returned error is logged by the bus and does not stop other handlers.
type Handler func(ctx context.Context, e Event) error

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type Subscriber interface {
	Subscribe(eventName string, h Handler)
}

type Bus interface {
	Publisher
	Subscriber
}

// SubscribeAll registers h, decorated by wrap when non-nil, for each of names.
func SubscribeAll(s Subscriber, h Handler, wrap func(Handler) Handler, names ...string) {
	if wrap != nil {
		h = wrap(h)
	}
	for _, name := range names {
		s.Subscribe(name, h)
	}
}
