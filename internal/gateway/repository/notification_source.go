package repository

import (
	"context"
	"encoding/json"
	"errors"

	"thesis_realtime/internal/notification/domain"
	"thesis_realtime/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// EnvelopeHandler receives one decoded ingestion record
type EnvelopeHandler func(ctx context.Context, env domain.Envelope) error

// NotificationSource stream of {userId, notification} records. Run blocks until ctx is
// done or the stream ends.
type NotificationSource interface {
	Run(ctx context.Context, handle EnvelopeHandler) error
	Close() error
}

// NopNotificationSource no ingestion configured
type NopNotificationSource struct{}

// Run waits for ctx
func (NopNotificationSource) Run(ctx context.Context, _ EnvelopeHandler) error {
	<-ctx.Done()
	return nil
}

// Close nothing to release
func (NopNotificationSource) Close() error { return nil }

// KafkaReader the part of *kafka.Reader the source uses
type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotificationSource consumes a kafka topic with a consumer group
type KafkaNotificationSource struct {
	reader KafkaReader
}

// NewKafkaNotificationSource create KafkaNotificationSource
func NewKafkaNotificationSource(reader KafkaReader) *KafkaNotificationSource {
	return &KafkaNotificationSource{reader: reader}
}

// Run fetch, handle, commit. Undecodable records are committed so they are not
// redelivered; handler failures are left uncommitted.
func (k *KafkaNotificationSource) Run(ctx context.Context, handle EnvelopeHandler) error {
	for ctx.Err() == nil {
		msg, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		var env domain.Envelope
		if err := json.Unmarshal(msg.Value, &env); err != nil {
			logger.Log.Warn("kafka notification dropped",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		} else if err := handle(ctx, env); err != nil {
			logger.Log.Error("kafka notification failed",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			continue
		}

		if err := k.reader.CommitMessages(ctx, msg); err != nil {
			logger.Log.Error("kafka commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
	return nil
}

// Close the reader
func (k *KafkaNotificationSource) Close() error {
	return k.reader.Close()
}

// AMQPChannel the part of *amqp.Channel the source uses
type AMQPChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// RabbitNotificationSource consumes a durable queue with manual ack
type RabbitNotificationSource struct {
	channel AMQPChannel
	queue   string
}

// NewRabbitNotificationSource create RabbitNotificationSource
func NewRabbitNotificationSource(channel AMQPChannel, queue string) *RabbitNotificationSource {
	return &RabbitNotificationSource{channel: channel, queue: queue}
}

// Run declares the queue and consumes it; undecodable bodies are dropped, handler
// failures are requeued
func (r *RabbitNotificationSource) Run(ctx context.Context, handle EnvelopeHandler) error {
	if _, err := r.channel.QueueDeclare(
		r.queue, // queue name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // arguments
	); err != nil {
		return err
	}

	msgs, err := r.channel.Consume(
		r.queue,
		"",    // consumer tag
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // arguments
	)
	if err != nil {
		return err
	}

	for {
		select {
		case d, ok := <-msgs:
			if !ok {
				logger.Log.Info("rabbitmq notification channel closed", zap.String("queue", r.queue))
				return nil
			}

			var env domain.Envelope
			if err := json.Unmarshal(d.Body, &env); err != nil {
				logger.Log.Warn("rabbitmq notification dropped", zap.String("queue", r.queue), zap.Error(err))
				if err := d.Nack(false, false); err != nil {
					logger.Log.Error("nack failed", zap.Error(err))
				}
				continue
			}

			if err := handle(ctx, env); err != nil {
				logger.Log.Error("rabbitmq notification failed", zap.String("queue", r.queue), zap.Error(err))
				if err := d.Nack(false, true); err != nil {
					logger.Log.Error("nack failed", zap.Error(err))
				}
				continue
			}

			if err := d.Ack(false); err != nil {
				logger.Log.Error("ack failed", zap.Error(err))
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Close the channel
func (r *RabbitNotificationSource) Close() error {
	return r.channel.Close()
}
