package eventbus

import (
	"sync"
)

// Subscription is returned by Subscribe. Unsubscribe may be called any number of times
// and only detaches its own handler.
type Subscription interface {
	Unsubscribe()
}

// Bus fans one published value out to every handler registered on a topic.
type Bus[T any] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[string][]*listener[T]
}

type listener[T any] struct {
	id uint64
	fn func(T)
}

type subscription[T any] struct {
	once  sync.Once
	bus   *Bus[T]
	topic string
	id    uint64
}

// New create a Bus
func New[T any]() *Bus[T] {
	return &Bus[T]{handlers: map[string][]*listener[T]{}}
}

// Subscribe registers fn on topic
func (b *Bus[T]) Subscribe(topic string, fn func(T)) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	l := &listener[T]{id: b.nextID, fn: fn}
	b.handlers[topic] = append(b.handlers[topic], l)

	return &subscription[T]{bus: b, topic: topic, id: l.id}
}

// Publish calls every handler of topic in subscription order. Handlers run outside the
// lock so they may subscribe or unsubscribe.
func (b *Bus[T]) Publish(topic string, value T) int {
	b.mu.RLock()
	ls := make([]*listener[T], len(b.handlers[topic]))
	copy(ls, b.handlers[topic])
	b.mu.RUnlock()

	for _, l := range ls {
		l.fn(value)
	}
	return len(ls)
}

// Count number of handlers on topic
func (b *Bus[T]) Count(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[topic])
}

// Flush drops every handler. Outstanding subscriptions become no-ops.
func (b *Bus[T]) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = map[string][]*listener[T]{}
}

func (b *Bus[T]) remove(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ls := b.handlers[topic]
	for i, l := range ls {
		if l.id == id {
			b.handlers[topic] = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	if len(b.handlers[topic]) == 0 {
		delete(b.handlers, topic)
	}
}

func (s *subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		s.bus.remove(s.topic, s.id)
	})
}

// Nop is a Subscription that does nothing
type Nop struct{}

// Unsubscribe does nothing
func (Nop) Unsubscribe() {}
