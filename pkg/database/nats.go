package database

import (
	"fmt"
	"time"

	"thesis_realtime/pkg/logger"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// ConnectNATSWithRetry dial nats, retrying d.RetryCount times
func ConnectNATSWithRetry(d Connection, name string) (*nats.Conn, error) {
	var nc *nats.Conn
	var err error

	for attempt := 1; attempt <= attempts(d.RetryCount); attempt++ {
		nc, err = nats.Connect(d.ConnectStr,
			nats.Name(name),
			nats.MaxReconnects(-1),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Log.Warn("nats disconnected", zap.Error(err))
			}),
			nats.ReconnectHandler(func(c *nats.Conn) {
				logger.Log.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
			}),
		)
		if err == nil {
			logger.Log.Info("nats connected", zap.String("url", d.ConnectStr), zap.Int("attempt", attempt))
			return nc, nil
		}

		logger.Log.Warn("nats connect failed",
			zap.String("url", d.ConnectStr),
			zap.Int("attempt", attempt),
			zap.Int("retryCount", d.RetryCount),
			zap.Error(err),
		)
		time.Sleep(d.RetryInterval)
	}

	return nil, fmt.Errorf("failed to connect to nats[%s] after %d attempts: %w", d.ConnectStr, attempts(d.RetryCount), err)
}
