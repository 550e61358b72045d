package repository

import (
	"context"
	"sync"
)

// MessageHandler receives one raw relay payload
type MessageHandler func(payload []byte)

// PubSub relay between gateway instances. Subscribe returns once the subscription is
// live and delivers until ctx is cancelled.
type PubSub interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string, handler MessageHandler) error
	Close() error
}

// MemoryPubSub single instance relay, handlers run synchronously inside Publish
type MemoryPubSub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]MessageHandler
}

// NewMemoryPubSub create MemoryPubSub
func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{subs: map[string]map[int]MessageHandler{}}
}

// Publish delivers payload to every current subscriber of topic
func (m *MemoryPubSub) Publish(_ context.Context, topic string, payload []byte) error {
	m.mu.RLock()
	handlers := make([]MessageHandler, 0, len(m.subs[topic]))
	for _, h := range m.subs[topic] {
		handlers = append(handlers, h)
	}
	m.mu.RUnlock()

	for _, h := range handlers {
		h(append([]byte(nil), payload...))
	}
	return nil
}

// Subscribe registers handler until ctx is done
func (m *MemoryPubSub) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	if m.subs[topic] == nil {
		m.subs[topic] = map[int]MessageHandler{}
	}
	m.subs[topic][id] = handler
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs[topic], id)
		if len(m.subs[topic]) == 0 {
			delete(m.subs, topic)
		}
		m.mu.Unlock()
	}()
	return nil
}

// Subscribers count of live subscriptions on topic
func (m *MemoryPubSub) Subscribers(topic string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subs[topic])
}

// Close drops every subscription
func (m *MemoryPubSub) Close() error {
	m.mu.Lock()
	m.subs = map[string]map[int]MessageHandler{}
	m.mu.Unlock()
	return nil
}
