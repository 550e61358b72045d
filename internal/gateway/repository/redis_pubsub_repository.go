package repository

import (
	"context"
	"fmt"

	"thesis_realtime/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisPubSub definition redis pub/sub
type RedisPubSub struct {
	client *redis.Client
}

// NewRedisPubSub create RedisPubSub
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{client: client}
}

// Publish 發布到指定 channel
func (r *RedisPubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.client.Publish(ctx, channel, payload).Err()
}

// Subscribe 訂閱 channel，收到訊息後呼叫 handler 處理
func (r *RedisPubSub) Subscribe(ctx context.Context, channel string, handler MessageHandler) error {
	sub := r.client.Subscribe(ctx, channel)
	// wait for the subscription confirmation so nothing published afterwards is missed
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("redis subscribe %s: %w", channel, err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()

		for {
			select {
			case m, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(m.Payload))
			case <-ctx.Done():
				logger.Log.Debug("redis sub close", zap.String("channel", channel))
				return
			}
		}
	}()
	return nil
}

// Close the client is owned by the caller
func (r *RedisPubSub) Close() error {
	return nil
}
