package app

import (
	"errors"
	"testing"

	"thesis_realtime/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	t0 = "2024-05-01T10:00:00Z"
	t1 = "2024-05-01T10:05:00Z"
	t2 = "2024-05-01T10:10:00Z"
)

func sent(id, sender, createdAt string) domain.ChatMessage {
	return domain.ChatMessage{ID: id, GroupID: "g1", SenderID: sender, CreatedAt: createdAt, Status: domain.StatusSent}
}

func mustReconcile(t *testing.T, list []domain.ChatMessage, ev Event) []domain.ChatMessage {
	t.Helper()
	out, err := Reconcile(list, ev)
	require.NoError(t, err)
	return out
}

func TestLocalSendAppendsSending(t *testing.T) {
	list := []domain.ChatMessage{sent("m1", "u2", t0)}
	out := mustReconcile(t, list, LocalSend{Message: domain.ChatMessage{ClientTempID: "abc", GroupID: "g1", SenderID: "u1", Status: domain.StatusSent}})

	require.Len(t, out, 2)
	assert.Equal(t, "abc", out[1].ClientTempID)
	assert.Equal(t, domain.StatusSending, out[1].Status)
	assert.Len(t, list, 1, "input must not change")

	again := mustReconcile(t, out, LocalSend{Message: domain.ChatMessage{ClientTempID: "abc"}})
	assert.Len(t, again, 2)
}

func TestSendAckedNeverMovesBack(t *testing.T) {
	list := []domain.ChatMessage{{ClientTempID: "abc", Status: domain.StatusSending}}
	out := mustReconcile(t, list, SendAcked{ClientTempID: "abc"})
	assert.Equal(t, domain.StatusSent, out[0].Status)

	delivered := []domain.ChatMessage{{ClientTempID: "abc", Status: domain.StatusDelivered}}
	out = mustReconcile(t, delivered, SendAcked{ClientTempID: "abc"})
	assert.Equal(t, domain.StatusDelivered, out[0].Status)
}

func TestBroadcastDedupByTempID(t *testing.T) {
	list := mustReconcile(t, nil, LocalSend{Message: domain.ChatMessage{ClientTempID: "T", GroupID: "g1", SenderID: "u1", Content: "hi"}})

	echo := domain.ChatMessage{ID: "S", ClientTempID: "T", GroupID: "g1", SenderID: "u1", Content: "hi", CreatedAt: t0}
	out := mustReconcile(t, list, Broadcast{Message: echo})

	require.Len(t, out, 1)
	assert.Equal(t, "S", out[0].ID)
	assert.Equal(t, domain.StatusDelivered, out[0].Status)
}

func TestBroadcastDedupByServerID(t *testing.T) {
	list := []domain.ChatMessage{sent("S", "u2", t0)}
	out := mustReconcile(t, list, Broadcast{Message: domain.ChatMessage{ID: "S", GroupID: "g1", SenderID: "u2", Content: "edited", CreatedAt: t0}})

	require.Len(t, out, 1)
	assert.Equal(t, "edited", out[0].Content)
	assert.Equal(t, domain.StatusDelivered, out[0].Status)
}

func TestBroadcastKeepsTempIDAndSeenStatus(t *testing.T) {
	list := []domain.ChatMessage{{ID: "S", ClientTempID: "T", Status: domain.StatusSeen, LastSeenAtByUser: map[string]string{"u2": t1}}}
	out := mustReconcile(t, list, Broadcast{Message: domain.ChatMessage{ID: "S", Content: "late echo"}})

	require.Len(t, out, 1)
	assert.Equal(t, "T", out[0].ClientTempID)
	assert.Equal(t, domain.StatusSeen, out[0].Status)
	assert.Equal(t, t1, out[0].LastSeenAtByUser["u2"])
}

func TestBroadcastUnknownAppends(t *testing.T) {
	list := []domain.ChatMessage{sent("m1", "u2", t0)}
	out := mustReconcile(t, list, Broadcast{Message: domain.ChatMessage{ID: "m2", SenderID: "u3", CreatedAt: t1}})

	require.Len(t, out, 2)
	assert.Equal(t, "m2", out[1].ID)
	assert.Equal(t, domain.StatusDelivered, out[1].Status)
}

func TestBroadcastArrivalOrderIsKept(t *testing.T) {
	var list []domain.ChatMessage
	list = mustReconcile(t, list, Broadcast{Message: domain.ChatMessage{ID: "late", CreatedAt: t2}})
	list = mustReconcile(t, list, Broadcast{Message: domain.ChatMessage{ID: "early", CreatedAt: t0}})

	require.Len(t, list, 2)
	assert.Equal(t, "late", list[0].ID)
	assert.Equal(t, "early", list[1].ID)
}

func TestPresencePromotionOnlyLocalSent(t *testing.T) {
	list := []domain.ChatMessage{
		{ClientTempID: "abc", SenderID: "u1", Status: domain.StatusSent},
		{ClientTempID: "def", SenderID: "u1", Status: domain.StatusSending},
		{ID: "m3", SenderID: "u2", Status: domain.StatusSent},
		{ID: "m4", SenderID: "u1", Status: domain.StatusSeen},
	}
	out := mustReconcile(t, list, PresencePromotion{LocalUserID: "u1"})

	assert.Equal(t, domain.StatusDelivered, out[0].Status)
	assert.Equal(t, domain.StatusSending, out[1].Status)
	assert.Equal(t, domain.StatusSent, out[2].Status)
	assert.Equal(t, domain.StatusSeen, out[3].Status)
}

func TestSeenBoundaryIsInclusive(t *testing.T) {
	list := []domain.ChatMessage{sent("m1", "u1", t0), sent("m2", "u1", t1)}
	out := mustReconcile(t, list, Seen{UserID: "u2", SeenAt: t0})

	assert.Equal(t, domain.StatusSeen, out[0].Status)
	assert.Equal(t, t0, out[0].LastSeenAtByUser["u2"])
	assert.Equal(t, domain.StatusSent, out[1].Status)
	assert.Empty(t, out[1].LastSeenAtByUser)
}

func TestSeenIsIdempotent(t *testing.T) {
	list := []domain.ChatMessage{sent("m1", "u1", t0), sent("m2", "u1", t1), sent("m3", "u1", t2)}
	ev := Seen{UserID: "u2", SeenAt: t1}

	once := mustReconcile(t, list, ev)
	twice := mustReconcile(t, once, ev)
	assert.Equal(t, once, twice)
	assert.Same(t, &once[0], &twice[0], "a replay must hand back the same list")

	// an older cursor of the same user moves nothing either
	older := mustReconcile(t, once, Seen{UserID: "u2", SeenAt: t0})
	assert.Same(t, &once[0], &older[0])
	assert.Equal(t, t1, older[0].LastSeenAtByUser["u2"])
}

func TestSeenAlreadySeenByAnotherUserRecordsCursor(t *testing.T) {
	list := mustReconcile(t, []domain.ChatMessage{sent("m1", "u1", t0)}, Seen{UserID: "u2", SeenAt: t1})
	out := mustReconcile(t, list, Seen{UserID: "u3", SeenAt: t1})

	assert.NotSame(t, &list[0], &out[0])
	assert.Equal(t, map[string]string{"u2": t1, "u3": t1}, out[0].LastSeenAtByUser)
	assert.Equal(t, map[string]string{"u2": t1}, list[0].LastSeenAtByUser)
}

func TestSeenCursorKeepsMax(t *testing.T) {
	list := []domain.ChatMessage{sent("m1", "u1", t0)}
	out := mustReconcile(t, list, Seen{UserID: "u2", SeenAt: t2})
	out = mustReconcile(t, out, Seen{UserID: "u2", SeenAt: t1})

	assert.Equal(t, t2, out[0].LastSeenAtByUser["u2"])
	assert.Equal(t, domain.StatusSeen, out[0].Status)
}

func TestSeenMalformedSeenAtDropsEvent(t *testing.T) {
	list := []domain.ChatMessage{sent("m1", "u1", t0)}
	out, err := Reconcile(list, Seen{UserID: "u2", SeenAt: "yesterday"})

	assert.ErrorIs(t, err, domain.ErrMalformedTimestamp)
	assert.Equal(t, list, out)
}

func TestSeenMalformedCreatedAtSkipsMessage(t *testing.T) {
	list := []domain.ChatMessage{sent("bad", "u1", "not-a-time"), sent("m2", "u1", t0)}
	out, err := Reconcile(list, Seen{UserID: "u2", SeenAt: t1})

	assert.True(t, errors.Is(err, domain.ErrMalformedTimestamp))
	assert.Equal(t, domain.StatusSent, out[0].Status)
	assert.Empty(t, out[0].LastSeenAtByUser)
	assert.Equal(t, domain.StatusSeen, out[1].Status)
}

func TestStatusIsMonotonic(t *testing.T) {
	msg := domain.ChatMessage{ClientTempID: "T", GroupID: "g1", SenderID: "u1", CreatedAt: t0}
	events := []Event{
		LocalSend{Message: msg},
		SendAcked{ClientTempID: "T"},
		PresencePromotion{LocalUserID: "u1"},
		Seen{UserID: "u2", SeenAt: t1},
		Broadcast{Message: domain.ChatMessage{ID: "S", ClientTempID: "T", CreatedAt: t0}},
		SendAcked{ClientTempID: "T"},
		PresencePromotion{LocalUserID: "u1"},
	}

	var list []domain.ChatMessage
	last := -1
	for _, ev := range events {
		list = mustReconcile(t, list, ev)
		require.Len(t, list, 1)
		rank := list[0].Status.Rank()
		assert.GreaterOrEqual(t, rank, last, "status moved backward after %T", ev)
		last = rank
	}
	assert.Equal(t, domain.StatusSeen, list[0].Status)
}

func TestHistoryLoadedMergesByIdentity(t *testing.T) {
	live := []domain.ChatMessage{
		{ID: "m3", GroupID: "g1", CreatedAt: t2, Status: domain.StatusDelivered},
	}
	history := []domain.ChatMessage{
		{ID: "m1", GroupID: "g1", CreatedAt: t0, Status: domain.StatusSeen},
		{ID: "m2", GroupID: "g1", CreatedAt: t1},
		{ID: "m3", GroupID: "g1", CreatedAt: t2, Status: domain.StatusSeen},
		{ID: "m1", GroupID: "g1", CreatedAt: t0, Status: domain.StatusSeen},
	}
	out := mustReconcile(t, live, HistoryLoaded{Messages: history})

	require.Len(t, out, 3)
	assert.Equal(t, []string{"m1", "m2", "m3"}, []string{out[0].ID, out[1].ID, out[2].ID})
	assert.Equal(t, domain.StatusDelivered, out[1].Status)
	assert.Equal(t, domain.StatusSeen, out[2].Status)
}

func TestUnknownEvent(t *testing.T) {
	_, err := Reconcile(nil, nil)
	assert.Error(t, err)
}
