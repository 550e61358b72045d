package transport

import (
	"encoding/json"
	"errors"
	"sync"

	"thesis_realtime/pkg/eventbus"
)

// Status connection state of one namespace
type Status int32

const (
	// StatusDisconnected not usable, see Err
	StatusDisconnected Status = iota
	// StatusConnecting connect frame sent, waiting for the acknowledgement
	StatusConnecting
	// StatusConnected acknowledged by the server
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Namespace one logical channel over the shared session
type Namespace struct {
	name string
	reg  *Registry
	bus  *eventbus.Bus[json.RawMessage]

	mu        sync.RWMutex
	status    Status
	lastErr   error
	requested bool
	tornDown  bool
}

func newNamespace(name string, reg *Registry) *Namespace {
	return &Namespace{
		name:   name,
		reg:    reg,
		bus:    eventbus.New[json.RawMessage](),
		status: StatusConnecting,
	}
}

// Name namespace identifier, e.g. "/chat"
func (n *Namespace) Name() string {
	return n.name
}

// Status current state
func (n *Namespace) Status() Status {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.status
}

// Connected whether the server acknowledged the namespace
func (n *Namespace) Connected() bool {
	return n.Status() == StatusConnected
}

// Err why the namespace is disconnected, nil otherwise
func (n *Namespace) Err() error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.lastErr
}

// On registers h for event. Each call gets its own subscription; after teardown On is a no-op.
func (n *Namespace) On(event string, h Handler) eventbus.Subscription {
	n.mu.RLock()
	tornDown := n.tornDown
	n.mu.RUnlock()
	if tornDown {
		return eventbus.Nop{}
	}
	return n.bus.Subscribe(event, h)
}

// Emit publishes event without waiting for any acknowledgement. The error only says the
// frame did not leave the client.
func (n *Namespace) Emit(event string, payload any) error {
	if !n.Connected() {
		return ErrNotConnected
	}
	f, err := NewEventFrame(n.name, event, payload)
	if err != nil {
		return err
	}
	return n.reg.session.write(f)
}

// claim marks the namespace connecting when a connect frame is due: none was sent yet, or a
// transport failure rather than the server left it disconnected. Only one caller wins.
func (n *Namespace) claim() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch {
	case n.tornDown, errors.Is(n.lastErr, ErrClosed):
		return false
	case n.requested && n.status != StatusDisconnected:
		return false
	case errors.Is(n.lastErr, ErrRejected):
		return false
	}
	n.status = StatusConnecting
	n.lastErr = nil
	n.requested = true
	return true
}

func (n *Namespace) connecting() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = StatusConnecting
	n.lastErr = nil
	n.requested = true
}

// setStatus returns the previous status
func (n *Namespace) setStatus(status Status, err error) Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	prev := n.status
	n.status = status
	n.lastErr = err
	return prev
}

func (n *Namespace) publish(event string, payload json.RawMessage) int {
	return n.bus.Publish(event, payload)
}

func (n *Namespace) teardown() {
	n.mu.Lock()
	n.tornDown = true
	n.status = StatusDisconnected
	n.lastErr = ErrUnknownNamespace
	n.mu.Unlock()
	n.bus.Flush()
}
