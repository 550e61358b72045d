package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn physical bidirectional JSON connection
type Conn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Dialer opens a Conn
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

// WSDialer dials websockets with gorilla
type WSDialer struct {
	Dialer *websocket.Dialer
}

// Dial open the websocket, the handshake status is reported in the error
func (d WSDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial websocket (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	return conn, nil
}
