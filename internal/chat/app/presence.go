package app

import (
	"sort"
	"sync"

	"thesis_realtime/internal/chat/domain"
	"thesis_realtime/pkg/eventbus"
)

const topicPresence = "presence"

type groupPresence struct {
	online map[string]struct{}
	typing map[string]struct{}
}

func newGroupPresence() *groupPresence {
	return &groupPresence{online: map[string]struct{}{}, typing: map[string]struct{}{}}
}

// PresenceTracker online/typing sets per group, fed only by transport events
type PresenceTracker struct {
	localUserID string

	mu      sync.RWMutex
	groups  map[string]*groupPresence
	changes *eventbus.Bus[string]
}

// NewPresenceTracker localUserID is never shown as typing
func NewPresenceTracker(localUserID string) *PresenceTracker {
	return &PresenceTracker{
		localUserID: localUserID,
		groups:      map[string]*groupPresence{},
		changes:     eventbus.New[string](),
	}
}

func (p *PresenceTracker) group(groupID string) *groupPresence {
	g, ok := p.groups[groupID]
	if !ok {
		g = newGroupPresence()
		p.groups[groupID] = g
	}
	return g
}

// ApplyStatus replaces the online set with the snapshot and prunes typing members that
// are no longer online. It reports whether someone besides the local user is online.
func (p *PresenceTracker) ApplyStatus(ev domain.UserStatusPayload) bool {
	p.mu.Lock()
	g := p.group(ev.GroupID)
	g.online = make(map[string]struct{}, len(ev.OnlineUsers))
	othersOnline := false
	for _, id := range ev.OnlineUsers {
		g.online[id] = struct{}{}
		if id != p.localUserID {
			othersOnline = true
		}
	}
	for id := range g.typing {
		if _, ok := g.online[id]; !ok {
			delete(g.typing, id)
		}
	}
	p.mu.Unlock()

	p.changes.Publish(topicPresence, ev.GroupID)
	return othersOnline
}

// ApplyTyping set add/remove; the local user's own events are ignored
func (p *PresenceTracker) ApplyTyping(ev domain.TypingPayload) {
	if ev.UserID == "" || ev.UserID == p.localUserID {
		return
	}

	p.mu.Lock()
	g := p.group(ev.GroupID)
	_, was := g.typing[ev.UserID]
	if ev.IsTyping {
		g.typing[ev.UserID] = struct{}{}
	} else {
		delete(g.typing, ev.UserID)
	}
	p.mu.Unlock()

	if was != ev.IsTyping {
		p.changes.Publish(topicPresence, ev.GroupID)
	}
}

// Snapshot sorted copy of a group's state
func (p *PresenceTracker) Snapshot(groupID string) domain.GroupPresence {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := domain.GroupPresence{GroupID: groupID, OnlineUsers: []string{}, TypingUsers: []string{}}
	g, ok := p.groups[groupID]
	if !ok {
		return out
	}
	out.OnlineUsers = sortedKeys(g.online)
	out.TypingUsers = sortedKeys(g.typing)
	return out
}

// OnlineUsers sorted online members
func (p *PresenceTracker) OnlineUsers(groupID string) []string {
	return p.Snapshot(groupID).OnlineUsers
}

// TypingUsers sorted typing members
func (p *PresenceTracker) TypingUsers(groupID string) []string {
	return p.Snapshot(groupID).TypingUsers
}

// IsOnline membership test
func (p *PresenceTracker) IsOnline(groupID, userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	g, ok := p.groups[groupID]
	if !ok {
		return false
	}
	_, online := g.online[userID]
	return online
}

// ClearTyping drops every typing indicator, used when the chat namespace drops
func (p *PresenceTracker) ClearTyping() {
	p.mu.Lock()
	var touched []string
	for id, g := range p.groups {
		if len(g.typing) > 0 {
			g.typing = map[string]struct{}{}
			touched = append(touched, id)
		}
	}
	p.mu.Unlock()

	for _, id := range touched {
		p.changes.Publish(topicPresence, id)
	}
}

// OnChange fn receives the id of every group whose presence changed
func (p *PresenceTracker) OnChange(fn func(groupID string)) eventbus.Subscription {
	return p.changes.Subscribe(topicPresence, fn)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
