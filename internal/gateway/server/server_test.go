package server

import (
	"context"
	"testing"
	"time"

	"thesis_realtime/internal/gateway/app"
	"thesis_realtime/internal/gateway/repository"
	"thesis_realtime/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func memoryConfig() *config.Gateway {
	cfg := &config.Gateway{Port: "0", Relay: "memory"}
	cfg.Defaults()
	return cfg
}

func TestNewStartsAndStops(t *testing.T) {
	var (
		hub      *app.Hub
		relay    repository.PubSub
		presence repository.PresenceRepository
		src      repository.NotificationSource
	)
	fxApp := New(memoryConfig(), fx.Populate(&hub, &relay, &presence, &src))
	require.NoError(t, fxApp.Err())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, fxApp.Start(ctx))

	assert.IsType(t, &repository.MemoryPubSub{}, relay)
	assert.IsType(t, &repository.MemoryPresenceRepository{}, presence)
	assert.IsType(t, repository.NopNotificationSource{}, src)
	assert.Zero(t, hub.Connections())

	// the chatbot channel is subscribed while the app runs
	assert.Equal(t, 1, relay.(*repository.MemoryPubSub).Subscribers("chatbot:events"))

	require.NoError(t, fxApp.Stop(ctx))
	assert.Eventually(t, func() bool {
		return relay.(*repository.MemoryPubSub).Subscribers("chatbot:events") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Gateway)
	}{
		{"unknown relay", func(c *config.Gateway) { c.Relay = "carrier-pigeon" }},
		{"redis relay without address", func(c *config.Gateway) { c.Relay = "redis" }},
		{"unknown notification source", func(c *config.Gateway) { c.Notification.Kind = "smtp" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := memoryConfig()
			tt.mutate(cfg)
			assert.Error(t, New(cfg).Err())
		})
	}
}
