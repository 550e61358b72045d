package app

import (
	"errors"
	"sort"
	"sync"

	"thesis_realtime/internal/chat/domain"
	"thesis_realtime/pkg/eventbus"
)

const topicMessages = "messages"

// MessageStore per-group message lists, the single source of truth for rendering
type MessageStore struct {
	mu      sync.RWMutex
	groups  map[string][]domain.ChatMessage
	changes *eventbus.Bus[string]
}

// NewMessageStore create MessageStore
func NewMessageStore() *MessageStore {
	return &MessageStore{
		groups:  map[string][]domain.ChatMessage{},
		changes: eventbus.New[string](),
	}
}

// Apply reconciles ev into the list of groupID. Read and write happen under one lock so
// concurrent events of the same group never lose an update.
func (s *MessageStore) Apply(groupID string, ev Event) error {
	s.mu.Lock()
	current := s.groups[groupID]
	next, err := Reconcile(current, ev)
	changed := !sameList(current, next)
	if changed {
		s.groups[groupID] = next
	}
	s.mu.Unlock()

	if changed {
		s.changes.Publish(topicMessages, groupID)
	}
	return err
}

// ApplyAll applies ev to every known group, used for events that are not group scoped
func (s *MessageStore) ApplyAll(ev Event) error {
	var errs []error
	for _, groupID := range s.Groups() {
		if err := s.Apply(groupID, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Messages copy of the list of groupID in arrival order
func (s *MessageStore) Messages(groupID string) []domain.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.groups[groupID]
	out := make([]domain.ChatMessage, len(list))
	for i := range list {
		out[i] = list[i].Clone()
	}
	return out
}

// Find lookup by clientTempId or id
func (s *MessageStore) Find(groupID, key string) (domain.ChatMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.groups[groupID] {
		if (m.ClientTempID != "" && m.ClientTempID == key) || (m.ID != "" && m.ID == key) {
			return m.Clone(), true
		}
	}
	return domain.ChatMessage{}, false
}

// Groups known group ids, sorted
func (s *MessageStore) Groups() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.groups))
	for id := range s.groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reset forget every group
func (s *MessageStore) Reset() {
	s.mu.Lock()
	groups := make([]string, 0, len(s.groups))
	for id := range s.groups {
		groups = append(groups, id)
	}
	s.groups = map[string][]domain.ChatMessage{}
	s.mu.Unlock()

	for _, id := range groups {
		s.changes.Publish(topicMessages, id)
	}
}

// OnChange fn receives the id of every group whose list changed
func (s *MessageStore) OnChange(fn func(groupID string)) eventbus.Subscription {
	return s.changes.Subscribe(topicMessages, fn)
}

// sameList reconcile returns its input when nothing changed
func sameList(a, b []domain.ChatMessage) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return &a[0] == &b[0]
}
