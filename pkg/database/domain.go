package database

import (
	"time"
)

// Connection definition broker / server connect setting
type Connection struct {
	ConnectStr string

	RetryCount    int
	RetryInterval time.Duration
}

// RedisConnection definition redis, MasterName switches to sentinel mode and Addrs
// are then the sentinel addresses
type RedisConnection struct {
	Addrs      []string
	MasterName string
	Password   string
	DB         int

	RetryCount    int
	RetryInterval time.Duration
}

// KafkaConnection definition kafka
type KafkaConnection struct {
	Brokers []string
	Topic   string
	GroupID string

	RetryCount    int
	RetryInterval time.Duration
}

func attempts(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}
