package app

import (
	"sort"
	"sync"

	"thesis_realtime/internal/transport"
)

// Client one websocket of a user as seen by the hub
type Client struct {
	ID     string
	UserID string
	Role   string

	send      chan transport.Frame
	done      chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	namespaces map[string]bool
	groups     map[string]bool
}

func newClient(id, userID, role string, buffer int) *Client {
	return &Client{
		ID:         id,
		UserID:     userID,
		Role:       role,
		send:       make(chan transport.Frame, buffer),
		done:       make(chan struct{}),
		namespaces: map[string]bool{},
		groups:     map[string]bool{},
	}
}

// Send queues f for the writer; false when the client is gone or its buffer is full
func (c *Client) Send(f transport.Frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- f:
		return true
	case <-c.done:
		return false
	default:
		return false
	}
}

// Frames outgoing queue, drained by the socket writer
func (c *Client) Frames() <-chan transport.Frame {
	return c.send
}

// Done closed once the hub dropped the client
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// InNamespace whether the namespace connect was accepted
func (c *Client) InNamespace(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.namespaces[name]
}

func (c *Client) addNamespace(name string) {
	c.mu.Lock()
	c.namespaces[name] = true
	c.mu.Unlock()
}

func (c *Client) removeNamespace(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	had := c.namespaces[name]
	delete(c.namespaces, name)
	return had
}

// InGroup whether join_group was accepted
func (c *Client) InGroup(groupID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.groups[groupID]
}

// addGroup false when already joined
func (c *Client) addGroup(groupID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.groups[groupID] {
		return false
	}
	c.groups[groupID] = true
	return true
}

// removeGroup false when not joined
func (c *Client) removeGroup(groupID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.groups[groupID] {
		return false
	}
	delete(c.groups, groupID)
	return true
}

// Groups joined groups, sorted
func (c *Client) Groups() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.groups))
	for id := range c.groups {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
