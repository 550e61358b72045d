package app

import (
	"context"
	"encoding/json"
	"time"

	"thesis_realtime/internal/transport"
	"thesis_realtime/pkg/logger"
	"thesis_realtime/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// WebsocketHandler one multiplexed websocket per request
type WebsocketHandler struct {
	hub          *Hub
	pingInterval time.Duration
}

// NewWebsocketHandler create WebsocketHandler
func NewWebsocketHandler(hub *Hub, pingInterval time.Duration) *WebsocketHandler {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &WebsocketHandler{hub: hub, pingInterval: pingInterval}
}

// HandleConnection 是 WebSocket 連線的進入點
func (h *WebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	userID, _ := conn.Locals(middlewares.TokenUserID).(string)
	role, _ := conn.Locals(middlewares.TokenRole).(string)

	client, err := h.hub.Register(userID, role)
	if err != nil {
		logger.Log.Error("websocket register failed", zap.String("userID", userID), zap.Error(err))
		closeWebSocketConnection(conn, websocket.CloseInternalServerErr, "relay unavailable")
		return
	}
	logger.Log.Info("websocket open", zap.String("userID", userID), zap.String("connID", client.ID))

	writerDone := make(chan struct{})
	defer func() {
		h.hub.Unregister(context.Background(), client)
		// fiber reuses conn once the handler returns
		<-writerDone
		logger.Log.Info("websocket close", zap.String("userID", userID), zap.String("connID", client.ID))
		conn.Close()
	}()

	//client發出close
	//fiber會自動處理(在read msg 回傳err),故需要SetCloseHandler另外接出
	conn.SetCloseHandler(func(code int, text string) error {
		logger.Log.Debug("websocket close frame", zap.Int("code", code), zap.String("text", text))
		return nil
	})

	//server發出ping之後client連線正常會回pong
	conn.SetPongHandler(func(appData string) error {
		logger.Log.Debug("received pong", zap.String("connID", client.ID))
		return nil
	})

	//client發出ping
	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	go h.writeLoop(conn, client, writerDone)

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Debug("connection closed", zap.String("connID", client.ID), zap.Error(err))
			} else {
				//直接斷線 1006
				logger.Log.Warn("websocket read error", zap.String("connID", client.ID), zap.Error(err))
			}
			return
		}

		if mt != websocket.TextMessage {
			logger.Log.Warn("non text message ignored", zap.Int("type", mt), zap.String("connID", client.ID))
			continue
		}

		var f transport.Frame
		if err := json.Unmarshal(message, &f); err != nil {
			logger.Log.Warn("malformed frame dropped", zap.String("connID", client.ID), zap.Error(err))
			continue
		}
		h.hub.HandleFrame(ctx, client, f)
	}
}

// writeLoop the only writer of data frames; pings ride the same goroutine
func (h *WebsocketHandler) writeLoop(conn *websocket.Conn, client *Client, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case f := <-client.Frames():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(f); err != nil {
				logger.Log.Warn("websocket write error", zap.String("connID", client.ID), zap.Error(err))
				// unblocks the reader
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeWait)); err != nil {
				logger.Log.Warn("ping error", zap.String("connID", client.ID), zap.Error(err))
				_ = conn.Close()
				return
			}
		case <-client.Done():
			// hub shutdown or unregister; unblocks the reader in the first case
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"),
				time.Now().Add(time.Second))
			_ = conn.Close()
			return
		}
	}
}

func closeWebSocketConnection(conn *websocket.Conn, code int, reason string) {
	if err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason)); err != nil {
		logger.Log.Warn("failed to send close message", zap.Error(err))
	}
	conn.Close()
}
