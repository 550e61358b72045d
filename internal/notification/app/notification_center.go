package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"thesis_realtime/internal/notification/domain"
	"thesis_realtime/internal/transport"
	"thesis_realtime/pkg/eventbus"
	"thesis_realtime/pkg/logger"

	"go.uber.org/zap"
)

const topicChanged = "changed"

// ErrNoPageSource no PageFetcher configured
var ErrNoPageSource = errors.New("notification page source not configured")

// Channel the notification namespace, *transport.Namespace satisfies it
type Channel interface {
	On(event string, h transport.Handler) eventbus.Subscription
	Emit(event string, payload any) error
}

// PageFetcher reads notification pages from the backend
type PageFetcher interface {
	FetchPage(ctx context.Context, q domain.PageQuery) (domain.Page, error)
}

// NotificationCenter merges pushed notifications with fetched pages and serves read state.
// Read actions are optimistic: there is no rollback, the next Refresh replaces the list
// with the server's view.
type NotificationCenter struct {
	ch       Channel
	fetcher  PageFetcher
	pageSize int

	mu      sync.RWMutex
	items   []domain.NotificationItem
	cursor  string
	hasMore bool
	filter  domain.Filter
	subs    []eventbus.Subscription

	changes *eventbus.Bus[int]
}

// NewNotificationCenter fetcher may be nil when only pushes are used
func NewNotificationCenter(ch Channel, fetcher PageFetcher, pageSize int) *NotificationCenter {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &NotificationCenter{
		ch:       ch,
		fetcher:  fetcher,
		pageSize: pageSize,
		items:    []domain.NotificationItem{},
		changes:  eventbus.New[int](),
	}
}

// Start registers the notification listeners, calling it twice is a no-op
func (n *NotificationCenter) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.subs) > 0 {
		return
	}
	n.subs = []eventbus.Subscription{
		n.ch.On(domain.NewNotification, n.onNew),
		n.ch.On(domain.NotificationRead, n.onRead),
		n.ch.On(domain.AllNotificationsRead, n.onAllRead),
	}
}

// Stop unregisters every listener
func (n *NotificationCenter) Stop() {
	n.mu.Lock()
	subs := n.subs
	n.subs = nil
	n.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
}

// MarkAsRead optimistic local read plus mark_notification_read. The local change stays
// even when the emit fails.
func (n *NotificationCenter) MarkAsRead(id string) error {
	n.apply(MarkRead{ID: id})
	return n.ch.Emit(domain.MarkNotificationRead, domain.ReadPayload{NotificationID: id})
}

// MarkAllAsRead optimistic local read-all plus mark_all_notifications_read
func (n *NotificationCenter) MarkAllAsRead() error {
	n.apply(MarkAllRead{})
	return n.ch.Emit(domain.MarkAllNotificationsRead, struct{}{})
}

// Items copy of the list, newest first
func (n *NotificationCenter) Items() []domain.NotificationItem {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return clone(n.items)
}

// UnreadCount count of unread items
func (n *NotificationCenter) UnreadCount() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return UnreadCount(n.items)
}

// HasMore whether LoadMore can extend the list
func (n *NotificationCenter) HasMore() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.hasMore
}

// Filter active filter
func (n *NotificationCenter) Filter() domain.Filter {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.filter
}

// Refresh resets the cursor and replaces the list with the first page for filter
func (n *NotificationCenter) Refresh(ctx context.Context, filter domain.Filter) error {
	if n.fetcher == nil {
		return ErrNoPageSource
	}
	page, err := n.fetcher.FetchPage(ctx, domain.PageQuery{Limit: n.pageSize, Filter: filter})
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.filter = filter
	n.items = Reduce(n.items, PageLoaded{Items: page.Items})
	n.cursor = page.NextCursor
	n.hasMore = page.HasMore
	unread := UnreadCount(n.items)
	n.mu.Unlock()

	n.changes.Publish(topicChanged, unread)
	return nil
}

// LoadMore extends the list with the next page; a no-op once the end is reached
func (n *NotificationCenter) LoadMore(ctx context.Context) error {
	if n.fetcher == nil {
		return ErrNoPageSource
	}
	n.mu.RLock()
	q := domain.PageQuery{Cursor: n.cursor, Limit: n.pageSize, Filter: n.filter}
	more := n.hasMore
	n.mu.RUnlock()
	if !more {
		return nil
	}

	page, err := n.fetcher.FetchPage(ctx, q)
	if err != nil {
		return err
	}

	n.mu.Lock()
	if n.cursor != q.Cursor || n.filter != q.Filter {
		// a Refresh won the race, this page belongs to the old list
		n.mu.Unlock()
		return nil
	}
	n.items = Reduce(n.items, PageLoaded{Items: page.Items, Append: true})
	n.cursor = page.NextCursor
	n.hasMore = page.HasMore
	unread := UnreadCount(n.items)
	n.mu.Unlock()

	n.changes.Publish(topicChanged, unread)
	return nil
}

// OnChange fn receives the unread count after every change
func (n *NotificationCenter) OnChange(fn func(unread int)) eventbus.Subscription {
	return n.changes.Subscribe(topicChanged, fn)
}

func (n *NotificationCenter) apply(a Action) {
	n.mu.Lock()
	before := n.items
	n.items = Reduce(n.items, a)
	changed := len(before) != len(n.items) || (len(before) > 0 && &before[0] != &n.items[0])
	unread := UnreadCount(n.items)
	n.mu.Unlock()

	if changed {
		n.changes.Publish(topicChanged, unread)
	}
}

func (n *NotificationCenter) onNew(payload json.RawMessage) {
	var item domain.NotificationItem
	if err := json.Unmarshal(payload, &item); err != nil || item.ID == "" {
		logger.Log.Warn("malformed payload dropped", zap.String("event", domain.NewNotification), zap.Error(err))
		return
	}
	if !n.Filter().Match(item) {
		logger.Log.Debug("notification outside the active filter", zap.String("id", item.ID))
		return
	}
	n.apply(Push{Item: item})
}

func (n *NotificationCenter) onRead(payload json.RawMessage) {
	var ev domain.ReadPayload
	if err := json.Unmarshal(payload, &ev); err != nil || ev.NotificationID == "" {
		logger.Log.Warn("malformed payload dropped", zap.String("event", domain.NotificationRead), zap.Error(err))
		return
	}
	n.apply(MarkRead{ID: ev.NotificationID})
}

func (n *NotificationCenter) onAllRead(json.RawMessage) {
	n.apply(MarkAllRead{})
}
