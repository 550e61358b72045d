package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/go-redis/redis/v8"
)

// PresenceRepository counts the sockets of each user inside a group, a user stays
// online until the count drops to zero. Every method returns the online users after
// the change, sorted.
type PresenceRepository interface {
	Join(ctx context.Context, groupID, userID string) ([]string, error)
	Leave(ctx context.Context, groupID, userID string) ([]string, error)
	Online(ctx context.Context, groupID string) ([]string, error)
}

// MemoryPresenceRepository single instance presence
type MemoryPresenceRepository struct {
	mu     sync.Mutex
	groups map[string]map[string]int
}

// NewMemoryPresenceRepository create MemoryPresenceRepository
func NewMemoryPresenceRepository() *MemoryPresenceRepository {
	return &MemoryPresenceRepository{groups: map[string]map[string]int{}}
}

// Join +1 socket
func (m *MemoryPresenceRepository) Join(_ context.Context, groupID, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.groups[groupID] == nil {
		m.groups[groupID] = map[string]int{}
	}
	m.groups[groupID][userID]++
	return m.online(groupID), nil
}

// Leave -1 socket
func (m *MemoryPresenceRepository) Leave(_ context.Context, groupID, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if counts := m.groups[groupID]; counts != nil {
		counts[userID]--
		if counts[userID] <= 0 {
			delete(counts, userID)
		}
		if len(counts) == 0 {
			delete(m.groups, groupID)
		}
	}
	return m.online(groupID), nil
}

// Online users with at least one socket
func (m *MemoryPresenceRepository) Online(_ context.Context, groupID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online(groupID), nil
}

func (m *MemoryPresenceRepository) online(groupID string) []string {
	out := make([]string, 0, len(m.groups[groupID]))
	for id := range m.groups[groupID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// RedisPresenceRepository one hash per group, field userId, value socket count
type RedisPresenceRepository struct {
	client *redis.Client
}

// NewRedisPresenceRepository create RedisPresenceRepository
func NewRedisPresenceRepository(client *redis.Client) *RedisPresenceRepository {
	return &RedisPresenceRepository{client: client}
}

func presenceKey(groupID string) string {
	return "realtime:presence:" + groupID
}

// Join HINCRBY +1
func (r *RedisPresenceRepository) Join(ctx context.Context, groupID, userID string) ([]string, error) {
	if err := r.client.HIncrBy(ctx, presenceKey(groupID), userID, 1).Err(); err != nil {
		return nil, fmt.Errorf("presence join %s: %w", groupID, err)
	}
	return r.Online(ctx, groupID)
}

// Leave HINCRBY -1, the field goes once it reaches zero
func (r *RedisPresenceRepository) Leave(ctx context.Context, groupID, userID string) ([]string, error) {
	key := presenceKey(groupID)
	n, err := r.client.HIncrBy(ctx, key, userID, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("presence leave %s: %w", groupID, err)
	}
	if n <= 0 {
		if err := r.client.HDel(ctx, key, userID).Err(); err != nil {
			return nil, fmt.Errorf("presence leave %s: %w", groupID, err)
		}
	}
	return r.Online(ctx, groupID)
}

// Online HGETALL, fields with a positive count
func (r *RedisPresenceRepository) Online(ctx context.Context, groupID string) ([]string, error) {
	all, err := r.client.HGetAll(ctx, presenceKey(groupID)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence online %s: %w", groupID, err)
	}
	out := make([]string, 0, len(all))
	for id, v := range all {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}
