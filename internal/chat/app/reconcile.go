package app

import (
	"errors"
	"fmt"

	"thesis_realtime/internal/chat/domain"
)

// Event input of Reconcile
type Event interface {
	isEvent()
}

// LocalSend optimistic message created on this client
type LocalSend struct {
	Message domain.ChatMessage
}

// SendAcked the send frame left the client
type SendAcked struct {
	ClientTempID string
}

// Broadcast new_group_message from the server
type Broadcast struct {
	Message domain.ChatMessage
}

// PresencePromotion another member of the group is online
type PresencePromotion struct {
	LocalUserID string
}

// Seen group_message_seen from the server
type Seen struct {
	UserID string
	SeenAt string
}

// HistoryLoaded a fetched page of older messages
type HistoryLoaded struct {
	Messages []domain.ChatMessage
}

func (LocalSend) isEvent()         {}
func (SendAcked) isEvent()         {}
func (Broadcast) isEvent()         {}
func (PresencePromotion) isEvent() {}
func (Seen) isEvent()              {}
func (HistoryLoaded) isEvent()     {}

// Reconcile applies one event to the message list of a group and returns the new list.
// The input slice is never modified. The error reports recoverable anomalies (malformed
// timestamps); the returned list is always usable.
func Reconcile(list []domain.ChatMessage, ev Event) ([]domain.ChatMessage, error) {
	switch e := ev.(type) {
	case LocalSend:
		return localSend(list, e), nil
	case SendAcked:
		return sendAcked(list, e), nil
	case Broadcast:
		return broadcast(list, e), nil
	case PresencePromotion:
		return promote(list, e), nil
	case Seen:
		return seen(list, e)
	case HistoryLoaded:
		return historyLoaded(list, e), nil
	default:
		return list, fmt.Errorf("unknown reconcile event %T", ev)
	}
}

func indexOf(list []domain.ChatMessage, m domain.ChatMessage) int {
	for i := range list {
		if list[i].Matches(m) {
			return i
		}
	}
	return -1
}

func copyList(list []domain.ChatMessage, extra int) []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(list), len(list)+extra)
	copy(out, list)
	return out
}

func localSend(list []domain.ChatMessage, e LocalSend) []domain.ChatMessage {
	if indexOf(list, e.Message) >= 0 {
		return list
	}
	m := e.Message.Clone()
	m.Status = domain.StatusSending
	return append(copyList(list, 1), m)
}

func sendAcked(list []domain.ChatMessage, e SendAcked) []domain.ChatMessage {
	if e.ClientTempID == "" {
		return list
	}
	for i := range list {
		if list[i].ClientTempID != e.ClientTempID {
			continue
		}
		next := domain.Advance(list[i].Status, domain.StatusSent)
		if next == list[i].Status {
			return list
		}
		out := copyList(list, 0)
		out[i].Status = next
		return out
	}
	return list
}

func broadcast(list []domain.ChatMessage, e Broadcast) []domain.ChatMessage {
	incoming := e.Message.Clone()
	floor := domain.StatusDelivered
	if incoming.Status.Rank() > floor.Rank() {
		floor = incoming.Status
	}

	i := indexOf(list, incoming)
	if i < 0 {
		incoming.Status = floor
		return append(copyList(list, 1), incoming)
	}

	existing := list[i]
	merged := incoming
	if merged.ClientTempID == "" {
		merged.ClientTempID = existing.ClientTempID
	}
	merged.Status = domain.Advance(existing.Status, floor)
	merged.LastSeenAtByUser = mergeCursors(existing.LastSeenAtByUser, incoming.LastSeenAtByUser)

	out := copyList(list, 0)
	out[i] = merged
	return out
}

func promote(list []domain.ChatMessage, e PresencePromotion) []domain.ChatMessage {
	var out []domain.ChatMessage
	for i := range list {
		if list[i].SenderID != e.LocalUserID || list[i].Status != domain.StatusSent {
			continue
		}
		if out == nil {
			out = copyList(list, 0)
		}
		out[i].Status = domain.StatusDelivered
	}
	if out == nil {
		return list
	}
	return out
}

func seen(list []domain.ChatMessage, e Seen) ([]domain.ChatMessage, error) {
	seenAt, err := domain.ParseTimestamp(e.SeenAt)
	if err != nil {
		return list, fmt.Errorf("seen event of %s dropped: %w", e.UserID, err)
	}

	var (
		anomalies []error
		out       []domain.ChatMessage
	)
	for i := range list {
		created, err := list[i].CreatedTime()
		if err != nil {
			anomalies = append(anomalies, fmt.Errorf("message %s skipped: %w", list[i].Key(), err))
			continue
		}
		if created.After(seenAt) {
			continue
		}

		status := domain.Advance(list[i].Status, domain.StatusSeen)
		prev, known := list[i].LastSeenAtByUser[e.UserID]
		cursor := laterCursor(prev, e.SeenAt)
		if status == list[i].Status && known && cursor == prev {
			continue
		}

		if out == nil {
			out = copyList(list, 0)
		}
		m := list[i].Clone()
		m.Status = status
		if m.LastSeenAtByUser == nil {
			m.LastSeenAtByUser = map[string]string{}
		}
		m.LastSeenAtByUser[e.UserID] = cursor
		out[i] = m
	}
	if out == nil {
		return list, errors.Join(anomalies...)
	}
	return out, errors.Join(anomalies...)
}

// historyLoaded puts unknown history entries before the live list and lets known ones
// advance the status of the live entry in place
func historyLoaded(list []domain.ChatMessage, e HistoryLoaded) []domain.ChatMessage {
	out := copyList(list, len(e.Messages))
	var older []domain.ChatMessage
	for _, h := range e.Messages {
		if i := indexOf(out, h); i >= 0 {
			m := out[i].Clone()
			if m.ID == "" {
				m.ID = h.ID
			}
			m.Status = domain.Advance(m.Status, h.Status)
			m.LastSeenAtByUser = mergeCursors(m.LastSeenAtByUser, h.LastSeenAtByUser)
			out[i] = m
			continue
		}
		if indexOf(older, h) >= 0 {
			continue
		}
		m := h.Clone()
		if !m.Status.Valid() {
			m.Status = domain.StatusDelivered
		}
		older = append(older, m)
	}
	return append(older, out...)
}

// laterCursor keeps the max of two seen cursors; an unparseable current value loses
func laterCursor(current, candidate string) string {
	if current == "" {
		return candidate
	}
	cur, err := domain.ParseTimestamp(current)
	if err != nil {
		return candidate
	}
	cand, err := domain.ParseTimestamp(candidate)
	if err != nil {
		return current
	}
	if cand.After(cur) {
		return candidate
	}
	return current
}

func mergeCursors(a, b map[string]string) map[string]string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]string, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = laterCursor(out[k], v)
	}
	return out
}
