package app

import (
	"encoding/json"

	"thesis_realtime/internal/transport"
	"thesis_realtime/pkg/eventbus"

	"github.com/stretchr/testify/mock"
)

// MockChannel records emits with testify and dispatches incoming events through a bus
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
	args := m.emits.Called(event, payload)
	return args.Error(0)
}

// receive simulates a server event
func (m *MockChannel) receive(event string, payload any) int {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return m.bus.Publish(event, data)
}

func (m *MockChannel) receiveRaw(event, raw string) int {
	return m.bus.Publish(event, json.RawMessage(raw))
}
