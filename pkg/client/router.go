package client

import (
	"sort"
	"sync"
)

// Handler receives decoded messages published to a subscribed topic.
type Handler func(topic string, message any)

// SubscriptionID identifies a registered handler for removal.
type SubscriptionID uint64

// listener is one registered handler.
type listener struct {
	id SubscriptionID
	fn Handler
}

// Router dispatches incoming messages to topic handlers. Matching is
// exact: a handler registered for "alpha" never sees "alpha/one".
// Handlers for the same topic are invoked synchronously, in
// registration order. Safe for concurrent use; handlers registered or
// removed during a dispatch take effect for the next dispatch.
type Router struct {
	mu        sync.RWMutex
	nextID    SubscriptionID
	listeners map[string][]listener
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{
		listeners: make(map[string][]listener),
	}
}

// Subscribe registers a handler for a topic and returns its id.
// Multiple handlers may be registered for the same topic.
func (r *Router) Subscribe(topic string, fn Handler) SubscriptionID {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.listeners[topic] = append(r.listeners[topic], listener{id: id, fn: fn})
	return id
}

// Unsubscribe removes the handler with the given id from a topic.
// Returns false if no such handler is registered.
func (r *Router) Unsubscribe(topic string, id SubscriptionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.listeners[topic]
	for i, l := range list {
		if l.id == id {
			r.listeners[topic] = append(list[:i:i], list[i+1:]...)
			if len(r.listeners[topic]) == 0 {
				delete(r.listeners, topic)
			}
			return true
		}
	}
	return false
}

// Dispatch delivers a message to all handlers of the topic, in
// registration order. A message with no handlers is dropped.
func (r *Router) Dispatch(topic string, message any) {
	r.mu.RLock()
	list := r.listeners[topic]
	snapshot := make([]listener, len(list))
	copy(snapshot, list)
	r.mu.RUnlock()

	for _, l := range snapshot {
		l.fn(topic, message)
	}
}

// Count returns the number of handlers registered for a topic.
func (r *Router) Count(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners[topic])
}

// Topics returns the topics with at least one handler, sorted.
func (r *Router) Topics() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics := make([]string, 0, len(r.listeners))
	for topic := range r.listeners {
		topics = append(topics, topic)
	}
	sort.Strings(topics)
	return topics
}
