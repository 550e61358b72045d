package server

import (
	"context"
	"fmt"

	"thesis_realtime/internal/gateway/app"
	"thesis_realtime/internal/gateway/repository"
	"thesis_realtime/pkg/config"
	"thesis_realtime/pkg/database"
	errprocess "thesis_realtime/pkg/err"
	"thesis_realtime/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// newRedisClient nil when no redis address is configured
func newRedisClient(lc fx.Lifecycle, cfg *config.Gateway) (*redis.Client, error) {
	addrs := cfg.Redis.SplitAddrs()
	if len(addrs) == 0 {
		if cfg.Relay == "redis" {
			return nil, errprocess.Set("relay redis needs redis.addr")
		}
		return nil, nil
	}

	client, err := database.NewRedisClient(database.RedisConnection{
		Addrs:         addrs,
		MasterName:    cfg.Redis.MasterName,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.RedisDB,
		RetryCount:    cfg.Redis.RetryCount,
		RetryInterval: cfg.Redis.RetryInterval,
	})
	if err != nil {
		return nil, errprocess.Wrap(err, "redis client")
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newRelay(lc fx.Lifecycle, cfg *config.Gateway, rdb *redis.Client) (repository.PubSub, error) {
	var relay repository.PubSub
	switch cfg.Relay {
	case "redis":
		relay = repository.NewRedisPubSub(rdb)
	case "nats":
		nc, err := database.ConnectNATSWithRetry(database.Connection{
			ConnectStr:    cfg.NATS.URL,
			RetryCount:    cfg.NATS.RetryCount,
			RetryInterval: cfg.NATS.RetryInterval,
		}, config.Env().Gateway)
		if err != nil {
			return nil, errprocess.Wrap(err, "nats relay")
		}
		relay = repository.NewNatsPubSub(nc, cfg.NATS.SubjectPrefix)
	case "memory":
		relay = repository.NewMemoryPubSub()
	default:
		return nil, errprocess.Set(fmt.Sprintf("unknown relay %q", cfg.Relay))
	}

	logger.Log.Info("relay ready", zap.String("relay", cfg.Relay))
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return relay.Close()
		},
	})
	return relay, nil
}

// newPresence shares presence across instances whenever redis is available
func newPresence(rdb *redis.Client) repository.PresenceRepository {
	if rdb != nil {
		return repository.NewRedisPresenceRepository(rdb)
	}
	return repository.NewMemoryPresenceRepository()
}

func newNotificationSource(lc fx.Lifecycle, cfg *config.Gateway) (repository.NotificationSource, error) {
	n := cfg.Notification
	var src repository.NotificationSource
	switch n.Kind {
	case "kafka":
		reader, err := database.NewKafkaReaderWithRetry(database.KafkaConnection{
			Brokers:       n.Brokers,
			Topic:         n.Topic,
			GroupID:       n.GroupID,
			RetryCount:    n.RetryCount,
			RetryInterval: n.RetryInterval,
		})
		if err != nil {
			return nil, errprocess.Wrap(err, "kafka notification source")
		}
		src = repository.NewKafkaNotificationSource(reader)
	case "rabbitmq":
		conn, err := database.ConnectRabbitMQWithRetry(database.Connection{
			ConnectStr:    n.URL,
			RetryCount:    n.RetryCount,
			RetryInterval: n.RetryInterval,
		})
		if err != nil {
			return nil, errprocess.Wrap(err, "rabbitmq notification source")
		}
		ch, err := database.GetRabbitMQChannelWithRetry(conn, n.RetryCount, n.RetryInterval)
		if err != nil {
			_ = conn.Close()
			return nil, errprocess.Wrap(err, "rabbitmq notification channel")
		}
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return conn.Close()
			},
		})
		src = repository.NewRabbitNotificationSource(ch, n.Queue)
	case "none":
		src = repository.NopNotificationSource{}
	default:
		return nil, errprocess.Set(fmt.Sprintf("unknown notification source %q", n.Kind))
	}
	logger.Log.Info("notification source ready", zap.String("kind", n.Kind))
	return src, nil
}

func newHub(cfg *config.Gateway, relay repository.PubSub, presence repository.PresenceRepository, validate *app.Validator) *app.Hub {
	return app.NewHub(relay, presence, validate, cfg.SendBuffer)
}

func newWebsocketHandler(cfg *config.Gateway, hub *app.Hub) *app.WebsocketHandler {
	return app.NewWebsocketHandler(hub, cfg.PingInterval)
}
