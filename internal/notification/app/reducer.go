package app

import "thesis_realtime/internal/notification/domain"

// Action input of Reduce
type Action interface {
	isAction()
}

// Push a new notification arrived
type Push struct {
	Item domain.NotificationItem
}

// MarkRead one notification read, locally or on another device
type MarkRead struct {
	ID string
}

// MarkAllRead every notification read
type MarkAllRead struct{}

// PageLoaded a fetched page; Append extends the list, otherwise it replaces it
type PageLoaded struct {
	Items  []domain.NotificationItem
	Append bool
}

func (Push) isAction()        {}
func (MarkRead) isAction()    {}
func (MarkAllRead) isAction() {}
func (PageLoaded) isAction()  {}

// Reduce returns the list after a, newest first. The input slice is never modified.
func Reduce(items []domain.NotificationItem, a Action) []domain.NotificationItem {
	switch act := a.(type) {
	case Push:
		if i := indexByID(items, act.Item.ID); i >= 0 {
			out := clone(items)
			out[i] = act.Item
			return out
		}
		out := make([]domain.NotificationItem, 0, len(items)+1)
		out = append(out, act.Item)
		return append(out, items...)

	case MarkRead:
		i := indexByID(items, act.ID)
		if i < 0 || items[i].IsRead {
			return items
		}
		out := clone(items)
		out[i].IsRead = true
		return out

	case MarkAllRead:
		if UnreadCount(items) == 0 {
			return items
		}
		out := clone(items)
		for i := range out {
			out[i].IsRead = true
		}
		return out

	case PageLoaded:
		if !act.Append {
			return dedup(nil, act.Items)
		}
		return dedup(clone(items), act.Items)

	default:
		return items
	}
}

// UnreadCount derived on every call, never stored
func UnreadCount(items []domain.NotificationItem) int {
	n := 0
	for _, it := range items {
		if !it.IsRead {
			n++
		}
	}
	return n
}

func indexByID(items []domain.NotificationItem, id string) int {
	if id == "" {
		return -1
	}
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

func clone(items []domain.NotificationItem) []domain.NotificationItem {
	out := make([]domain.NotificationItem, len(items))
	copy(out, items)
	return out
}

// dedup appends the items of page whose id is not in base yet
func dedup(base, page []domain.NotificationItem) []domain.NotificationItem {
	seen := make(map[string]struct{}, len(base)+len(page))
	for _, it := range base {
		seen[it.ID] = struct{}{}
	}
	for _, it := range page {
		if _, ok := seen[it.ID]; ok {
			continue
		}
		seen[it.ID] = struct{}{}
		base = append(base, it)
	}
	if base == nil {
		base = []domain.NotificationItem{}
	}
	return base
}
