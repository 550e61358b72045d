package database

import (
	"context"
	"fmt"
	"time"

	"thesis_realtime/pkg/logger"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// NewKafkaReaderWithRetry checks a broker answers for the topic before building the reader
func NewKafkaReaderWithRetry(k KafkaConnection) (*kafka.Reader, error) {
	if len(k.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}

	var err error
	for attempt := 1; attempt <= attempts(k.RetryCount); attempt++ {
		err = pingKafka(k.Brokers[0], k.Topic)
		if err == nil {
			logger.Log.Info("kafka reachable", zap.Strings("brokers", k.Brokers), zap.String("topic", k.Topic), zap.Int("attempt", attempt))
			return kafka.NewReader(kafka.ReaderConfig{
				Brokers:     k.Brokers,
				Topic:       k.Topic,
				GroupID:     k.GroupID,
				StartOffset: kafka.LastOffset,
			}), nil
		}

		logger.Log.Warn("kafka connect failed",
			zap.Strings("brokers", k.Brokers),
			zap.Int("attempt", attempt),
			zap.Int("retryCount", k.RetryCount),
			zap.Error(err),
		)
		time.Sleep(k.RetryInterval)
	}

	return nil, fmt.Errorf("failed to reach kafka %v after %d attempts: %w", k.Brokers, attempts(k.RetryCount), err)
}

func pingKafka(broker, topic string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.ReadPartitions(topic)
	return err
}
