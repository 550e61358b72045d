package database

import (
	"context"
	"fmt"
	"time"

	"thesis_realtime/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// NewRedisClient init redis connection, sentinel when MasterName is set
func NewRedisClient(r RedisConnection) (*redis.Client, error) {
	var rdb *redis.Client
	if r.MasterName != "" {
		rdb = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    r.MasterName, // 哨兵主节点名称
			SentinelAddrs: r.Addrs,      // 哨兵地址列表
			Password:      r.Password,
			DB:            r.DB,
		})
	} else {
		addr := "localhost:6379"
		if len(r.Addrs) > 0 {
			addr = r.Addrs[0]
		}
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: r.Password,
			DB:       r.DB,
		})
	}

	var err error
	for attempt := 1; attempt <= attempts(r.RetryCount); attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = rdb.Ping(ctx).Err()
		cancel()
		if err == nil {
			logger.Log.Info("redis connected", zap.Strings("addrs", r.Addrs), zap.Int("attempt", attempt))
			return rdb, nil
		}

		logger.Log.Warn("redis connect failed",
			zap.Strings("addrs", r.Addrs),
			zap.Int("attempt", attempt),
			zap.Int("retryCount", r.RetryCount),
			zap.Error(err),
		)
		time.Sleep(r.RetryInterval)
	}

	rdb.Close()
	return nil, fmt.Errorf("failed to connect to redis %v after %d attempts: %w", r.Addrs, attempts(r.RetryCount), err)
}
