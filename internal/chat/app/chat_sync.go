package app

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"thesis_realtime/internal/chat/domain"
	"thesis_realtime/internal/transport"
	"thesis_realtime/pkg/eventbus"
	"thesis_realtime/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrNoHistory no HistoryFetcher configured
var ErrNoHistory = errors.New("chat history source not configured")

// Channel the chat namespace as seen by ChatSync, *transport.Namespace satisfies it
type Channel interface {
	On(event string, h transport.Handler) eventbus.Subscription
	Emit(event string, payload any) error
}

// HistoryFetcher loads the persisted messages of a group
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, groupID string) ([]domain.ChatMessage, error)
}

// SendInput what the user typed
type SendInput struct {
	GroupID     string
	Content     string
	Type        domain.MessageType
	Attachments []string
	ReplyTo     *string
}

// ChatSync binds the chat namespace to the message store and the presence tracker
type ChatSync struct {
	userID   string
	ch       Channel
	history  HistoryFetcher
	store    *MessageStore
	presence *PresenceTracker

	newID func() string
	now   func() time.Time

	mu     sync.Mutex
	subs   []eventbus.Subscription
	joined map[string]struct{}
}

// NewChatSync create ChatSync for the local user, history may be nil
func NewChatSync(userID string, ch Channel, history HistoryFetcher) *ChatSync {
	return &ChatSync{
		userID:   userID,
		ch:       ch,
		history:  history,
		store:    NewMessageStore(),
		presence: NewPresenceTracker(userID),
		newID:    func() string { return uuid.New().String() },
		now:      time.Now,
		joined:   map[string]struct{}{},
	}
}

// Start registers the chat listeners, calling it twice is a no-op
func (c *ChatSync) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.subs) > 0 {
		return
	}

	c.subs = []eventbus.Subscription{
		c.ch.On(domain.NewGroupMessage, c.onNewMessage),
		c.ch.On(domain.UserTyping, c.onUserTyping),
		c.ch.On(domain.UserStatusChange, c.onUserStatus),
		c.ch.On(domain.GroupMessageSeen, c.onGroupSeen),
		c.ch.On(transport.EventConnect, c.onConnect),
		c.ch.On(transport.EventDisconnect, c.onDisconnect),
	}
}

// Stop unregisters every listener
func (c *ChatSync) Stop() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
}

// SendMessage appends an optimistic message and emits it. When the emit fails the
// message stays in sending and the error is returned with it.
func (c *ChatSync) SendMessage(in SendInput) (domain.ChatMessage, error) {
	if in.GroupID == "" {
		return domain.ChatMessage{}, domain.ErrEmptyGroup
	}
	if in.Content == "" && len(in.Attachments) == 0 {
		return domain.ChatMessage{}, domain.ErrEmptyMessage
	}
	if in.Type == "" {
		in.Type = domain.TypeText
	}

	msg := domain.ChatMessage{
		ClientTempID: c.newID(),
		GroupID:      in.GroupID,
		SenderID:     c.userID,
		Content:      in.Content,
		Type:         in.Type,
		Attachments:  in.Attachments,
		ReplyTo:      in.ReplyTo,
		CreatedAt:    domain.FormatTimestamp(c.now()),
		Status:       domain.StatusSending,
	}
	_ = c.store.Apply(in.GroupID, LocalSend{Message: msg})

	err := c.ch.Emit(domain.SendGroupMessage, domain.SendMessageRequest{
		GroupID:      msg.GroupID,
		Content:      msg.Content,
		Type:         msg.Type,
		Attachments:  msg.Attachments,
		ReplyTo:      msg.ReplyTo,
		ClientTempID: msg.ClientTempID,
	})
	if err != nil {
		logger.Log.Warn("send_group_message not sent",
			zap.String("groupId", msg.GroupID),
			zap.String("clientTempId", msg.ClientTempID),
			zap.Error(err),
		)
		return msg, err
	}

	_ = c.store.Apply(in.GroupID, SendAcked{ClientTempID: msg.ClientTempID})
	if current, ok := c.store.Find(in.GroupID, msg.ClientTempID); ok {
		return current, nil
	}
	return msg, nil
}

// SetTyping emits the local typing indicator
func (c *ChatSync) SetTyping(groupID string, isTyping bool) error {
	if groupID == "" {
		return domain.ErrEmptyGroup
	}
	return c.ch.Emit(domain.Typing, domain.TypingRequest{GroupID: groupID, IsTyping: isTyping})
}

// MarkGroupSeen tells the server the local user has read the group up to now; the
// resulting group_message_seen broadcast drives the propagation
func (c *ChatSync) MarkGroupSeen(groupID string) error {
	if groupID == "" {
		return domain.ErrEmptyGroup
	}
	return c.ch.Emit(domain.GroupMessageSeen, domain.GroupRequest{GroupID: groupID})
}

// JoinGroup subscribes to a group's events; joined groups are re-joined on reconnect
func (c *ChatSync) JoinGroup(groupID string) error {
	if groupID == "" {
		return domain.ErrEmptyGroup
	}
	c.mu.Lock()
	c.joined[groupID] = struct{}{}
	c.mu.Unlock()
	return c.ch.Emit(domain.JoinGroup, domain.GroupRequest{GroupID: groupID})
}

// LeaveGroup stops a group's events
func (c *ChatSync) LeaveGroup(groupID string) error {
	if groupID == "" {
		return domain.ErrEmptyGroup
	}
	c.mu.Lock()
	delete(c.joined, groupID)
	c.mu.Unlock()
	return c.ch.Emit(domain.LeaveGroup, domain.GroupRequest{GroupID: groupID})
}

// JoinedGroups sorted
func (c *ChatSync) JoinedGroups() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.joined))
	for id := range c.joined {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// LoadHistory seeds a group with its persisted messages without duplicating live ones
func (c *ChatSync) LoadHistory(ctx context.Context, groupID string) error {
	if groupID == "" {
		return domain.ErrEmptyGroup
	}
	if c.history == nil {
		return ErrNoHistory
	}
	msgs, err := c.history.FetchHistory(ctx, groupID)
	if err != nil {
		return err
	}
	return c.store.Apply(groupID, HistoryLoaded{Messages: msgs})
}

// Messages rendered list of a group
func (c *ChatSync) Messages(groupID string) []domain.ChatMessage {
	return c.store.Messages(groupID)
}

// Presence online and typing members of a group
func (c *ChatSync) Presence(groupID string) domain.GroupPresence {
	return c.presence.Snapshot(groupID)
}

// Store underlying message store
func (c *ChatSync) Store() *MessageStore {
	return c.store
}

// Tracker underlying presence tracker
func (c *ChatSync) Tracker() *PresenceTracker {
	return c.presence
}

func (c *ChatSync) onNewMessage(payload json.RawMessage) {
	var msg domain.ChatMessage
	if err := json.Unmarshal(payload, &msg); err != nil || msg.GroupID == "" {
		logger.Log.Warn("malformed payload dropped", zap.String("event", domain.NewGroupMessage), zap.Error(err))
		return
	}
	if err := c.store.Apply(msg.GroupID, Broadcast{Message: msg}); err != nil {
		logger.Log.Warn("new_group_message anomaly", zap.String("groupId", msg.GroupID), zap.Error(err))
	}
}

func (c *ChatSync) onUserTyping(payload json.RawMessage) {
	var ev domain.TypingPayload
	if err := json.Unmarshal(payload, &ev); err != nil || ev.GroupID == "" {
		logger.Log.Warn("malformed payload dropped", zap.String("event", domain.UserTyping), zap.Error(err))
		return
	}
	c.presence.ApplyTyping(ev)
}

func (c *ChatSync) onUserStatus(payload json.RawMessage) {
	var ev domain.UserStatusPayload
	if err := json.Unmarshal(payload, &ev); err != nil || ev.GroupID == "" {
		logger.Log.Warn("malformed payload dropped", zap.String("event", domain.UserStatusChange), zap.Error(err))
		return
	}
	if c.presence.ApplyStatus(ev) {
		_ = c.store.Apply(ev.GroupID, PresencePromotion{LocalUserID: c.userID})
	}
}

func (c *ChatSync) onGroupSeen(payload json.RawMessage) {
	var ev domain.SeenPayload
	if err := json.Unmarshal(payload, &ev); err != nil || ev.GroupID == "" || ev.UserID == "" {
		logger.Log.Warn("malformed payload dropped", zap.String("event", domain.GroupMessageSeen), zap.Error(err))
		return
	}
	if err := c.store.Apply(ev.GroupID, Seen{UserID: ev.UserID, SeenAt: ev.SeenAt}); err != nil {
		logger.Log.Warn("group_message_seen anomaly",
			zap.String("groupId", ev.GroupID),
			zap.String("userId", ev.UserID),
			zap.Error(err),
		)
	}
}

func (c *ChatSync) onConnect(json.RawMessage) {
	for _, groupID := range c.JoinedGroups() {
		if err := c.ch.Emit(domain.JoinGroup, domain.GroupRequest{GroupID: groupID}); err != nil {
			logger.Log.Warn("rejoin failed", zap.String("groupId", groupID), zap.Error(err))
		}
	}
}

func (c *ChatSync) onDisconnect(json.RawMessage) {
	c.presence.ClearTyping()
}
