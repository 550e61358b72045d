package transport

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"thesis_realtime/pkg/logger"

	"go.uber.org/zap"
)

// RetryPolicy bounded redial after an unexpected drop
type RetryPolicy struct {
	RetryCount    int
	RetryInterval time.Duration
}

// router receives what the session reads and its connectivity changes
type router interface {
	dispatch(f Frame)
	connectionLost(err error)
	connectionRestored()
}

// session owns the single physical connection shared by every namespace. Frames are read
// and dispatched by one goroutine, so handlers never run concurrently with each other.
type session struct {
	url        string
	credential func() string
	dialer     Dialer
	retry      RetryPolicy
	writeWait  time.Duration
	router     router

	openMu sync.Mutex // serializes ensure

	mu           sync.Mutex
	conn         Conn
	reconnecting bool
	closed       bool
	done         chan struct{}

	writeMu sync.Mutex
}

func newSession(rawURL string, credential func() string, dialer Dialer, retry RetryPolicy, writeWait time.Duration, r router) *session {
	return &session{
		url:        rawURL,
		credential: credential,
		dialer:     dialer,
		retry:      retry,
		writeWait:  writeWait,
		router:     r,
		done:       make(chan struct{}),
	}
}

// ensure makes sure a physical connection exists and reports whether it had to dial one.
// When the dial fails a background redial is started and the error returned; namespaces
// registered meanwhile are connected by connectionRestored.
func (s *session) ensure(ctx context.Context) (bool, error) {
	s.openMu.Lock()
	defer s.openMu.Unlock()

	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return false, ErrClosed
	case s.conn != nil:
		s.mu.Unlock()
		return false, nil
	case s.reconnecting:
		s.mu.Unlock()
		return false, ErrNotConnected
	}
	s.mu.Unlock()

	conn, err := s.dial(ctx)
	if err != nil {
		s.mu.Lock()
		s.reconnecting = true
		s.mu.Unlock()
		go s.reconnectThenServe()
		return false, err
	}

	if !s.attach(conn) {
		conn.Close()
		return false, ErrClosed
	}
	go s.serve(conn)
	return true, nil
}

func (s *session) dial(ctx context.Context) (Conn, error) {
	cred := s.credential()

	target, err := url.Parse(s.url)
	if err != nil {
		return nil, err
	}
	q := target.Query()
	if cred != "" {
		q.Set("auth", cred)
	}
	target.RawQuery = q.Encode()

	header := http.Header{}
	if cred != "" {
		header.Set("Authorization", "Bearer "+cred)
	}
	return s.dialer.Dial(ctx, target.String(), header)
}

func (s *session) attach(conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conn = conn
	s.reconnecting = false
	return true
}

// detach reports whether conn was still the live connection, i.e. the drop was not asked for
func (s *session) detach(conn Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.conn != conn {
		return false
	}
	s.conn = nil
	s.reconnecting = true
	return true
}

func (s *session) serve(conn Conn) {
	for conn != nil {
		err := s.readFrames(conn)
		if !s.detach(conn) {
			return
		}
		conn.Close()
		logger.Log.Warn("transport connection lost", zap.String("url", s.url), zap.Error(err))
		s.router.connectionLost(err)
		conn = s.redial()
	}
}

func (s *session) reconnectThenServe() {
	if conn := s.redial(); conn != nil {
		s.serve(conn)
	}
}

func (s *session) readFrames(conn Conn) error {
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			return err
		}
		s.router.dispatch(f)
	}
}

func (s *session) redial() Conn {
	for attempt := 1; attempt <= s.retry.RetryCount; attempt++ {
		select {
		case <-s.done:
			return nil
		case <-time.After(s.retry.RetryInterval):
		}

		timeout := s.writeWait
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		conn, err := s.dial(ctx)
		cancel()
		if err != nil {
			logger.Log.Warn("transport redial failed",
				zap.Int("attempt", attempt),
				zap.Int("max", s.retry.RetryCount),
				zap.Error(err),
			)
			continue
		}

		if !s.attach(conn) {
			conn.Close()
			return nil
		}
		logger.Log.Info("transport reconnected", zap.Int("attempt", attempt))
		s.router.connectionRestored()
		return conn
	}

	s.mu.Lock()
	s.reconnecting = false
	s.mu.Unlock()
	logger.Log.Error("transport gave up reconnecting", zap.String("url", s.url), zap.Int("attempts", s.retry.RetryCount))
	return nil
}

func (s *session) write(f Frame) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if s.writeWait > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.writeWait))
	}
	return conn.WriteJSON(f)
}

// release drops the physical connection on purpose; the next ensure dials again
func (s *session) release() {
	s.openMu.Lock()
	defer s.openMu.Unlock()

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

func (s *session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conn := s.conn
	s.conn = nil
	close(s.done)
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}
