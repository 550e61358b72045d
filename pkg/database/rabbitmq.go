package database

import (
	"fmt"
	"time"

	"thesis_realtime/pkg/logger"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// ConnectRabbitMQWithRetry 嘗試連線到 RabbitMQ
func ConnectRabbitMQWithRetry(d Connection) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error

	for attempt := 1; attempt <= attempts(d.RetryCount); attempt++ {
		conn, err = amqp.Dial(d.ConnectStr)
		if err == nil {
			logger.Log.Info("rabbitmq connected", zap.Int("attempt", attempt))
			return conn, nil
		}

		logger.Log.Warn("rabbitmq connect failed",
			zap.Int("attempt", attempt),
			zap.Int("retryCount", d.RetryCount),
			zap.Error(err),
		)
		time.Sleep(d.RetryInterval)
	}

	return nil, fmt.Errorf("failed to connect to rabbitmq after %d attempts: %w", attempts(d.RetryCount), err)
}

// GetRabbitMQChannelWithRetry 使用已有的 RabbitMQ 連線嘗試取得 Channel
func GetRabbitMQChannelWithRetry(conn *amqp.Connection, maxRetries int, delay time.Duration) (*amqp.Channel, error) {
	var ch *amqp.Channel
	var err error

	for attempt := 1; attempt <= attempts(maxRetries); attempt++ {
		ch, err = conn.Channel()
		if err == nil {
			return ch, nil
		}

		logger.Log.Warn("rabbitmq channel failed", zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to open rabbitmq channel after %d attempts: %w", attempts(maxRetries), err)
}
