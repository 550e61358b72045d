package app

import (
	"math/rand"
	"testing"

	"thesis_realtime/internal/notification/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id string, read bool) domain.NotificationItem {
	return domain.NotificationItem{ID: id, Type: domain.TypeInfo, Title: id, IsRead: read}
}

func ids(items []domain.NotificationItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestPushPrependsAndReplaces(t *testing.T) {
	var items []domain.NotificationItem
	items = Reduce(items, Push{Item: item("n1", false)})
	items = Reduce(items, Push{Item: item("n2", false)})
	assert.Equal(t, []string{"n2", "n1"}, ids(items))

	updated := item("n1", false)
	updated.Title = "updated"
	items = Reduce(items, Push{Item: updated})
	assert.Equal(t, []string{"n2", "n1"}, ids(items))
	assert.Equal(t, "updated", items[1].Title)
}

func TestMarkReadDoesNotTouchInput(t *testing.T) {
	items := []domain.NotificationItem{item("n1", false), item("n2", false)}
	out := Reduce(items, MarkRead{ID: "n2"})

	assert.False(t, items[1].IsRead)
	assert.True(t, out[1].IsRead)
	assert.Equal(t, 1, UnreadCount(out))

	same := Reduce(out, MarkRead{ID: "missing"})
	assert.Equal(t, out, same)
}

func TestMarkAllRead(t *testing.T) {
	items := []domain.NotificationItem{item("n1", false), item("n2", true), item("n3", false)}
	out := Reduce(items, MarkAllRead{})
	out = Reduce(out, MarkAllRead{})

	assert.Equal(t, 0, UnreadCount(out))
	assert.Len(t, out, 3)
}

func TestPageLoaded(t *testing.T) {
	items := []domain.NotificationItem{item("n1", false), item("n2", false)}

	appended := Reduce(items, PageLoaded{Items: []domain.NotificationItem{item("n2", true), item("n3", false)}, Append: true})
	assert.Equal(t, []string{"n1", "n2", "n3"}, ids(appended))
	assert.False(t, appended[1].IsRead)

	replaced := Reduce(appended, PageLoaded{Items: []domain.NotificationItem{item("n9", true)}})
	assert.Equal(t, []string{"n9"}, ids(replaced))

	empty := Reduce(appended, PageLoaded{})
	require.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestUnreadCountAlwaysDerived(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	var items []domain.NotificationItem
	for step := 0; step < 500; step++ {
		id := string(rune('a' + r.Intn(10)))
		switch r.Intn(4) {
		case 0, 1:
			items = Reduce(items, Push{Item: item(id, r.Intn(3) == 0)})
		case 2:
			items = Reduce(items, MarkRead{ID: id})
		case 3:
			items = Reduce(items, MarkAllRead{})
		}

		want := 0
		for _, it := range items {
			if !it.IsRead {
				want++
			}
		}
		require.Equal(t, want, UnreadCount(items), "step %d", step)
	}
}
