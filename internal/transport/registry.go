package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"thesis_realtime/pkg/eventbus"
	"thesis_realtime/pkg/logger"

	"go.uber.org/zap"
)

// Options registry construction settings
type Options struct {
	URL        string
	Credential func() string
	Dialer     Dialer
	Reconnect  RetryPolicy
	WriteWait  time.Duration
}

// Registry owns the namespaces of one application session. It is created at login and
// closed at logout; consumers receive it explicitly.
type Registry struct {
	session *session

	mu         sync.Mutex
	userID     string
	namespaces map[string]*Namespace
	closed     bool
}

// NewRegistry create a Registry, nothing is dialed until the first Connect
func NewRegistry(opts Options) *Registry {
	if opts.Dialer == nil {
		opts.Dialer = WSDialer{}
	}
	if opts.Credential == nil {
		opts.Credential = func() string { return "" }
	}

	r := &Registry{namespaces: map[string]*Namespace{}}
	r.session = newSession(opts.URL, opts.Credential, opts.Dialer, opts.Reconnect, opts.WriteWait, r)
	return r
}

// Connect returns the namespace, establishing it when it is not registered yet. A namespace
// that is already registered is returned as is; when it was dropped by a transport failure
// it is dialed again. Failures leave the namespace disconnected with Err set and are reported
// as a disconnect event, never returned.
func (r *Registry) Connect(ctx context.Context, userID, name string) *Namespace {
	ns, _ := r.Register(userID, name)
	if ns.claim() {
		r.establish(ctx, ns)
	}
	return ns
}

// Register adds name without sending its connect frame, so listeners can be bound before
// the first acknowledgement is dispatched. Connect sends it. The boolean is false when name
// was already registered.
func (r *Registry) Register(userID, name string) (*Namespace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ns, ok := r.namespaces[name]; ok {
		return ns, false
	}
	ns := newNamespace(name, r)
	if r.closed {
		ns.setStatus(StatusDisconnected, ErrClosed)
		return ns, false
	}
	r.namespaces[name] = ns
	r.userID = userID
	return ns, true
}

func (r *Registry) establish(ctx context.Context, ns *Namespace) {
	logger.Log.Info("namespace connecting", zap.String("namespace", ns.name), zap.String("userID", r.UserID()))

	dialed, err := r.session.ensure(ctx)
	if err != nil {
		r.fail(ns, err)
		return
	}
	if dialed {
		// a new physical link carries none of the namespaces yet
		r.connectionRestored()
		return
	}
	if err := r.sendConnect(ns); err != nil {
		r.fail(ns, err)
	}
}

// Disconnect tears down one namespace and drops its listeners; the others stay live.
// The physical connection is released with the last namespace.
func (r *Registry) Disconnect(name string) {
	r.mu.Lock()
	ns, ok := r.namespaces[name]
	delete(r.namespaces, name)
	last := len(r.namespaces) == 0
	r.mu.Unlock()
	if !ok {
		return
	}

	ns.teardown()
	if err := r.session.write(Frame{Type: FrameDisconnect, Namespace: name}); err != nil {
		logger.Log.Debug("namespace disconnect frame not sent", zap.String("namespace", name), zap.Error(err))
	}
	if last {
		r.session.release()
	}
	logger.Log.Info("namespace disconnected", zap.String("namespace", name))
}

// Namespace lookup a registered namespace
func (r *Registry) Namespace(name string) (*Namespace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ns, ok := r.namespaces[name]
	return ns, ok
}

// Namespaces registered names, sorted
func (r *Registry) Namespaces() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.namespaces))
	for name := range r.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UserID user of the last Connect
func (r *Registry) UserID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userID
}

// Connected whether name is registered and acknowledged
func (r *Registry) Connected(name string) bool {
	ns, ok := r.Namespace(name)
	return ok && ns.Connected()
}

// On registers h on a registered namespace
func (r *Registry) On(name, event string, h Handler) (eventbus.Subscription, error) {
	ns, ok := r.Namespace(name)
	if !ok {
		return eventbus.Nop{}, fmt.Errorf("%w: %s", ErrUnknownNamespace, name)
	}
	return ns.On(event, h), nil
}

// Emit fire-and-forget publish on a registered namespace
func (r *Registry) Emit(name, event string, payload any) error {
	ns, ok := r.Namespace(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNamespace, name)
	}
	return ns.Emit(event, payload)
}

// WaitForNamespace polls every interval, at most maxAttempts times, until name is connected.
// It never waits longer than interval*maxAttempts and returns false when it runs out; a
// non-positive interval or attempt count checks once.
func (r *Registry) WaitForNamespace(ctx context.Context, name string, interval time.Duration, maxAttempts int) (*Namespace, bool) {
	if interval <= 0 || maxAttempts <= 0 {
		if ns, ok := r.Namespace(name); ok && ns.Connected() {
			return ns, true
		}
		return nil, false
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ns, ok := r.Namespace(name); ok && ns.Connected() {
			return ns, true
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-ticker.C:
		}
	}
	if ns, ok := r.Namespace(name); ok && ns.Connected() {
		return ns, true
	}
	return nil, false
}

// Close tears down every namespace and the physical connection (logout)
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	all := r.namespaces
	r.namespaces = map[string]*Namespace{}
	r.mu.Unlock()

	for _, ns := range all {
		ns.teardown()
	}
	r.session.close()
	logger.Log.Info("transport registry closed")
}

func (r *Registry) sendConnect(ns *Namespace) error {
	ns.connecting()
	data, err := json.Marshal(ConnectPayload{Token: r.session.credential()})
	if err != nil {
		return err
	}
	return r.session.write(Frame{Type: FrameConnect, Namespace: ns.name, Data: data})
}

func (r *Registry) fail(ns *Namespace, err error) {
	prev := ns.setStatus(StatusDisconnected, err)
	logger.Log.Warn("namespace unavailable", zap.String("namespace", ns.name), zap.Error(err))
	if prev != StatusDisconnected {
		ns.publish(EventDisconnect, reasonPayload(err.Error()))
	}
}

func (r *Registry) lookup(name string) *Namespace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.namespaces[name]
}

func (r *Registry) dispatch(f Frame) {
	ns := r.lookup(f.Namespace)
	if ns == nil {
		logger.Log.Debug("frame for unknown namespace dropped", zap.String("namespace", f.Namespace), zap.String("type", string(f.Type)))
		return
	}

	switch f.Type {
	case FrameConnect:
		ns.setStatus(StatusConnected, nil)
		logger.Log.Info("namespace connected", zap.String("namespace", ns.name))
		ns.publish(EventConnect, f.Data)

	case FrameConnectError:
		var p ErrorPayload
		_ = json.Unmarshal(f.Data, &p)
		r.fail(ns, fmt.Errorf("%w: %s", ErrRejected, p.Message))

	case FrameDisconnect:
		ns.setStatus(StatusDisconnected, ErrNotConnected)
		ns.publish(EventDisconnect, f.Data)

	case FrameEvent:
		if n := ns.publish(f.Event, f.Data); n == 0 {
			logger.Log.Debug("event without listeners", zap.String("namespace", ns.name), zap.String("event", f.Event))
		}

	default:
		logger.Log.Warn("unknown frame type", zap.String("namespace", f.Namespace), zap.String("type", string(f.Type)))
	}
}

func (r *Registry) connectionLost(err error) {
	r.mu.Lock()
	all := make([]*Namespace, 0, len(r.namespaces))
	for _, ns := range r.namespaces {
		all = append(all, ns)
	}
	r.mu.Unlock()

	for _, ns := range all {
		if prev := ns.setStatus(StatusDisconnected, err); prev != StatusDisconnected {
			ns.publish(EventDisconnect, reasonPayload("transport error"))
		}
	}
}

func (r *Registry) connectionRestored() {
	r.mu.Lock()
	all := make([]*Namespace, 0, len(r.namespaces))
	for _, ns := range r.namespaces {
		all = append(all, ns)
	}
	r.mu.Unlock()

	for _, ns := range all {
		// acknowledged ones are already live, rejected ones would be refused again
		if ns.Connected() || errors.Is(ns.Err(), ErrRejected) {
			continue
		}
		if err := r.sendConnect(ns); err != nil {
			r.fail(ns, err)
		}
	}
}

func reasonPayload(reason string) json.RawMessage {
	data, _ := json.Marshal(ErrorPayload{Reason: reason})
	return data
}
