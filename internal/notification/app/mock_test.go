package app

import (
	"context"
	"encoding/json"

	"thesis_realtime/internal/notification/domain"
	"thesis_realtime/internal/transport"
	"thesis_realtime/pkg/eventbus"

	"github.com/stretchr/testify/mock"
)

// MockChannel testify emits, bus-backed listeners
type MockChannel struct {
	emits mock.Mock
	bus   *eventbus.Bus[json.RawMessage]
}

func newMockChannel() *MockChannel {
	return &MockChannel{bus: eventbus.New[json.RawMessage]()}
}

// On register handler
func (m *MockChannel) On(event string, h transport.Handler) eventbus.Subscription {
	return m.bus.Subscribe(event, h)
}

// Emit mock emit
func (m *MockChannel) Emit(event string, payload any) error {
	return m.emits.Called(event, payload).Error(0)
}

func (m *MockChannel) receive(event string, payload any) {
	data, _ := json.Marshal(payload)
	m.bus.Publish(event, data)
}

// MockPageFetcher mock PageFetcher
type MockPageFetcher struct {
	mock.Mock
}

// FetchPage mock fetch
func (m *MockPageFetcher) FetchPage(ctx context.Context, q domain.PageQuery) (domain.Page, error) {
	args := m.Called(ctx, q)
	return args.Get(0).(domain.Page), args.Error(1)
}
