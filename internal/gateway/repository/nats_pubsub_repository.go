package repository

import (
	"context"
	"fmt"
	"strings"

	"thesis_realtime/pkg/logger"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NatsPubSub relay over core nats subjects, <prefix>.<topic>
type NatsPubSub struct {
	nc     *nats.Conn
	prefix string
}

// NewNatsPubSub create NatsPubSub
func NewNatsPubSub(nc *nats.Conn, prefix string) *NatsPubSub {
	return &NatsPubSub{nc: nc, prefix: prefix}
}

// Subject nats subject of a relay topic; '.' separates subject tokens so it is replaced
func (n *NatsPubSub) Subject(topic string) string {
	token := strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(topic)
	if n.prefix == "" {
		return token
	}
	return n.prefix + "." + token
}

// Publish payload on the topic subject
func (n *NatsPubSub) Publish(_ context.Context, topic string, payload []byte) error {
	if err := n.nc.Publish(n.Subject(topic), payload); err != nil {
		return fmt.Errorf("nats publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe until ctx is done
func (n *NatsPubSub) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	subject := n.Subject(topic)
	sub, err := n.nc.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}
	// round trip to the server so the interest is registered before returning
	if err := n.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("nats flush %s: %w", subject, err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed {
			logger.Log.Warn("nats unsubscribe", zap.String("subject", subject), zap.Error(err))
		}
	}()
	return nil
}

// Close drains the connection
func (n *NatsPubSub) Close() error {
	return n.nc.Drain()
}
