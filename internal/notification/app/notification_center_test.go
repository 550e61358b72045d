package app

import (
	"context"
	"errors"
	"testing"

	"thesis_realtime/internal/notification/domain"
	"thesis_realtime/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestCenter(ch *MockChannel, fetcher PageFetcher) *NotificationCenter {
	n := NewNotificationCenter(ch, fetcher, 2)
	n.Start()
	return n
}

func TestPushedNotifications(t *testing.T) {
	ch := newMockChannel()
	n := newTestCenter(ch, nil)
	var counts []int
	n.OnChange(func(unread int) { counts = append(counts, unread) })

	ch.receive(domain.NewNotification, item("n1", false))
	ch.receive(domain.NewNotification, item("n2", false))
	ch.receive(domain.NewNotification, item("n2", false))
	ch.receive(domain.NewNotification, map[string]string{"title": "no id"})

	assert.Equal(t, []string{"n2", "n1"}, ids(n.Items()))
	assert.Equal(t, 2, n.UnreadCount())
	assert.Equal(t, []int{1, 2, 2}, counts)
}

func TestDoubleMarkAllAsRead(t *testing.T) {
	ch := newMockChannel()
	ch.emits.On("Emit", domain.MarkAllNotificationsRead, mock.Anything).Return(nil).Twice()
	n := newTestCenter(ch, nil)
	ch.receive(domain.NewNotification, item("n1", false))
	ch.receive(domain.NewNotification, item("n2", false))

	require.NoError(t, n.MarkAllAsRead())
	require.NoError(t, n.MarkAllAsRead())

	assert.Equal(t, 0, n.UnreadCount())
	ch.emits.AssertNumberOfCalls(t, "Emit", 2)
}

func TestMarkAsReadIsOptimistic(t *testing.T) {
	ch := newMockChannel()
	ch.emits.On("Emit", domain.MarkNotificationRead, domain.ReadPayload{NotificationID: "n1"}).Return(transport.ErrNotConnected)
	n := newTestCenter(ch, nil)
	ch.receive(domain.NewNotification, item("n1", false))

	err := n.MarkAsRead("n1")
	assert.ErrorIs(t, err, transport.ErrNotConnected)
	assert.Equal(t, 0, n.UnreadCount())
	ch.emits.AssertExpectations(t)
}

func TestServerReadEvents(t *testing.T) {
	ch := newMockChannel()
	n := newTestCenter(ch, nil)
	ch.receive(domain.NewNotification, item("n1", false))
	ch.receive(domain.NewNotification, item("n2", false))
	ch.receive(domain.NewNotification, item("n3", false))

	ch.receive(domain.NotificationRead, domain.ReadPayload{NotificationID: "n2"})
	assert.Equal(t, 2, n.UnreadCount())

	ch.receive(domain.NotificationRead, map[string]int{"notificationId": 5})
	assert.Equal(t, 2, n.UnreadCount())

	ch.receive(domain.AllNotificationsRead, struct{}{})
	assert.Equal(t, 0, n.UnreadCount())
}

func TestRefreshAndLoadMore(t *testing.T) {
	ctx := context.Background()
	ch := newMockChannel()
	fetcher := new(MockPageFetcher)
	filter := domain.Filter{UnreadOnly: true}
	fetcher.On("FetchPage", ctx, domain.PageQuery{Limit: 2, Filter: filter}).
		Return(domain.Page{Items: []domain.NotificationItem{item("n5", false), item("n4", false)}, NextCursor: "c1", HasMore: true}, nil).Once()
	fetcher.On("FetchPage", ctx, domain.PageQuery{Cursor: "c1", Limit: 2, Filter: filter}).
		Return(domain.Page{Items: []domain.NotificationItem{item("n4", false), item("n3", false)}, NextCursor: "", HasMore: false}, nil).Once()

	n := newTestCenter(ch, fetcher)
	ch.receive(domain.NewNotification, item("old", true))

	require.NoError(t, n.Refresh(ctx, filter))
	assert.Equal(t, []string{"n5", "n4"}, ids(n.Items()))
	assert.Equal(t, filter, n.Filter())
	assert.True(t, n.HasMore())

	require.NoError(t, n.LoadMore(ctx))
	assert.Equal(t, []string{"n5", "n4", "n3"}, ids(n.Items()))
	assert.False(t, n.HasMore())

	require.NoError(t, n.LoadMore(ctx))
	fetcher.AssertExpectations(t)
}

func TestRefreshReconcilesOptimisticRead(t *testing.T) {
	ctx := context.Background()
	ch := newMockChannel()
	ch.emits.On("Emit", domain.MarkNotificationRead, mock.Anything).Return(nil)
	fetcher := new(MockPageFetcher)
	fetcher.On("FetchPage", ctx, mock.Anything).
		Return(domain.Page{Items: []domain.NotificationItem{item("n1", false)}}, nil)

	n := newTestCenter(ch, fetcher)
	ch.receive(domain.NewNotification, item("n1", false))
	require.NoError(t, n.MarkAsRead("n1"))
	assert.Equal(t, 0, n.UnreadCount())

	require.NoError(t, n.Refresh(ctx, domain.Filter{}))
	assert.Equal(t, 1, n.UnreadCount())
}

func TestPushOutsideFilterIsSkipped(t *testing.T) {
	ctx := context.Background()
	ch := newMockChannel()
	fetcher := new(MockPageFetcher)
	fetcher.On("FetchPage", ctx, mock.Anything).Return(domain.Page{}, nil)
	n := newTestCenter(ch, fetcher)

	require.NoError(t, n.Refresh(ctx, domain.Filter{Type: domain.TypeWarning}))
	ch.receive(domain.NewNotification, item("n1", false))
	warning := item("n2", false)
	warning.Type = domain.TypeWarning
	ch.receive(domain.NewNotification, warning)

	assert.Equal(t, []string{"n2"}, ids(n.Items()))
}

func TestPageErrors(t *testing.T) {
	ctx := context.Background()
	n := newTestCenter(newMockChannel(), nil)
	assert.ErrorIs(t, n.Refresh(ctx, domain.Filter{}), ErrNoPageSource)
	assert.ErrorIs(t, n.LoadMore(ctx), ErrNoPageSource)

	fetcher := new(MockPageFetcher)
	fetcher.On("FetchPage", ctx, mock.Anything).Return(domain.Page{}, errors.New("boom"))
	failing := newTestCenter(newMockChannel(), fetcher)
	assert.Error(t, failing.Refresh(ctx, domain.Filter{}))
	assert.Empty(t, failing.Items())
}

func TestNotificationStop(t *testing.T) {
	ch := newMockChannel()
	n := newTestCenter(ch, nil)
	n.Stop()
	ch.receive(domain.NewNotification, item("n1", false))
	assert.Empty(t, n.Items())
}
