//go:build integration

package repository

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"thesis_realtime/pkg/database"
	"thesis_realtime/pkg/logger"
	testtool "thesis_realtime/pkg/test_tool"

	"github.com/go-redis/redis/v8"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	redisClient *redis.Client
	natsConn    *nats.Conn
)

func TestMain(m *testing.M) {
	logger.SetNewNop()
	ctx := context.Background()

	// **啟動 Redis**
	redisContainer, redisHost, redisPort, err := testtool.SetupContainer(ctx, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp"),
	})
	if err != nil {
		log.Fatalf("❌ Failed to start Redis container: %v", err)
	}

	// **啟動 NATS**
	natsContainer, natsHost, natsPort, err := testtool.SetupContainer(ctx, testcontainers.ContainerRequest{
		Image:        "nats:2.10-alpine",
		ExposedPorts: []string{"4222/tcp"},
		WaitingFor:   wait.ForListeningPort("4222/tcp"),
	})
	if err != nil {
		log.Fatalf("❌ Failed to start NATS container: %v", err)
	}

	redisClient, err = database.NewRedisClient(database.RedisConnection{
		Addrs:         []string{fmt.Sprintf("%s:%s", redisHost, redisPort)},
		RetryCount:    5,
		RetryInterval: time.Second,
	})
	if err != nil {
		log.Fatalf("❌ redis: %v", err)
	}

	natsConn, err = database.ConnectNATSWithRetry(database.Connection{
		ConnectStr:    fmt.Sprintf("nats://%s:%s", natsHost, natsPort),
		RetryCount:    5,
		RetryInterval: time.Second,
	}, "relay-integration")
	if err != nil {
		log.Fatalf("❌ nats: %v", err)
	}

	code := m.Run()

	natsConn.Close()
	_ = redisClient.Close()
	_ = redisContainer.Terminate(ctx)
	_ = natsContainer.Terminate(ctx)
	os.Exit(code)
}

// relayContract publish / subscribe / cancel against a real broker
func relayContract(t *testing.T, ps PubSub, topic string) {
	ctx, cancel := context.WithCancel(context.Background())

	got := make(chan string, 4)
	require.NoError(t, ps.Subscribe(ctx, topic, func(p []byte) { got <- string(p) }))

	require.NoError(t, ps.Publish(context.Background(), topic, []byte(`{"event":"one"}`)))
	require.NoError(t, ps.Publish(context.Background(), topic, []byte(`{"event":"two"}`)))

	for _, want := range []string{`{"event":"one"}`, `{"event":"two"}`} {
		select {
		case p := <-got:
			assert.Equal(t, want, p)
		case <-time.After(5 * time.Second):
			t.Fatalf("no message on %s", topic)
		}
	}

	cancel()
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, ps.Publish(context.Background(), topic, []byte(`{"event":"late"}`)))
	select {
	case p := <-got:
		t.Fatalf("delivered after cancel: %s", p)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestRedisPubSub(t *testing.T) {
	relayContract(t, NewRedisPubSub(redisClient), "realtime:group:g1")
}

func TestNatsPubSub(t *testing.T) {
	relayContract(t, NewNatsPubSub(natsConn, "realtime"), "realtime:group:g1")
}

func TestRedisPresenceRepository(t *testing.T) {
	presenceContract(t, NewRedisPresenceRepository(redisClient), fmt.Sprintf("g-%d", time.Now().UnixNano()))
}
