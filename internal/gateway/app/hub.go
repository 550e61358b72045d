package app

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	chatdomain "thesis_realtime/internal/chat/domain"
	chatbotdomain "thesis_realtime/internal/chatbot/domain"
	"thesis_realtime/internal/gateway/domain"
	"thesis_realtime/internal/gateway/repository"
	notificationdomain "thesis_realtime/internal/notification/domain"
	"thesis_realtime/internal/transport"
	"thesis_realtime/pkg"
	"thesis_realtime/pkg/logger"
	"thesis_realtime/pkg/token"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type eventHandler func(ctx context.Context, c *Client, data json.RawMessage) error

type relaySub struct {
	cancel context.CancelFunc
}

// Hub local sockets of one gateway instance. Everything addressed to a user or a group
// goes through the relay so every instance delivers to its own sockets.
type Hub struct {
	relay    repository.PubSub
	presence repository.PresenceRepository
	validate *Validator
	buffer   int

	now   func() time.Time
	newID func() string

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	clients map[string]*Client
	users   map[string]map[string]*Client
	groups  map[string]map[string]*Client
	subs    map[string]*relaySub

	handlers map[string]map[string]eventHandler
}

// NewHub create Hub, buffer is the per-socket outgoing queue size
func NewHub(relay repository.PubSub, presence repository.PresenceRepository, validate *Validator, buffer int) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		relay:    relay,
		presence: presence,
		validate: validate,
		buffer:   buffer,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		ctx:      ctx,
		cancel:   cancel,
		clients:  map[string]*Client{},
		users:    map[string]map[string]*Client{},
		groups:   map[string]map[string]*Client{},
		subs:     map[string]*relaySub{},
	}
	h.handlers = map[string]map[string]eventHandler{
		transport.NamespaceChat: {
			chatdomain.JoinGroup:        h.onJoinGroup,
			chatdomain.LeaveGroup:       h.onLeaveGroup,
			chatdomain.SendGroupMessage: h.onSendMessage,
			chatdomain.Typing:           h.onTyping,
			chatdomain.GroupMessageSeen: h.onGroupSeen,
		},
		transport.NamespaceNotification: {
			notificationdomain.MarkNotificationRead:     h.onMarkRead,
			notificationdomain.MarkAllNotificationsRead: h.onMarkAllRead,
		},
	}
	return h
}

// Register adds a socket of userID and makes sure the user topic is subscribed
func (h *Hub) Register(userID, role string) (*Client, error) {
	c := newClient(h.newID(), userID, role, h.buffer)

	h.mu.Lock()
	h.clients[c.ID] = c
	if h.users[userID] == nil {
		h.users[userID] = map[string]*Client{}
	}
	h.users[userID][c.ID] = c
	h.mu.Unlock()

	if err := h.ensureSub(domain.UserTopic(userID), h.deliverTo(func() []*Client { return h.userClients(userID) })); err != nil {
		h.Unregister(context.Background(), c)
		return nil, err
	}
	return c, nil
}

// Unregister leaves every group of c, drops it and releases topics nobody local needs
func (h *Hub) Unregister(ctx context.Context, c *Client) {
	for _, groupID := range c.Groups() {
		if err := h.leaveGroup(ctx, c, groupID); err != nil {
			logger.Log.Warn("leave group on close", zap.String("userID", c.UserID), zap.String("groupId", groupID), zap.Error(err))
		}
	}

	h.mu.Lock()
	delete(h.clients, c.ID)
	if set := h.users[c.UserID]; set != nil {
		delete(set, c.ID)
		if len(set) == 0 {
			delete(h.users, c.UserID)
			h.dropSubLocked(domain.UserTopic(c.UserID))
		}
	}
	h.mu.Unlock()
	c.close()
}

// Close drops every socket and relay subscription
func (h *Hub) Close() {
	h.cancel()
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = map[string]*Client{}
	h.users = map[string]map[string]*Client{}
	h.groups = map[string]map[string]*Client{}
	h.subs = map[string]*relaySub{}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// Connections count of local sockets
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleFrame one frame read from the socket of c
func (h *Hub) HandleFrame(ctx context.Context, c *Client, f transport.Frame) {
	switch f.Type {
	case transport.FrameConnect:
		h.connect(c, f)
	case transport.FrameDisconnect:
		h.disconnect(ctx, c, f.Namespace)
	case transport.FrameEvent:
		if !c.InNamespace(f.Namespace) {
			logger.Log.Warn("event outside a connected namespace",
				zap.String("userID", c.UserID),
				zap.String("namespace", f.Namespace),
				zap.String("event", f.Event),
			)
			return
		}
		handler, ok := h.handlers[f.Namespace][f.Event]
		if !ok {
			logger.Log.Debug("event without handler", zap.String("namespace", f.Namespace), zap.String("event", f.Event))
			return
		}
		if err := handler(ctx, c, f.Data); err != nil {
			logger.Log.Warn("event dropped",
				zap.String("userID", c.UserID),
				zap.String("namespace", f.Namespace),
				zap.String("event", f.Event),
				zap.Error(err),
			)
		}
	default:
		logger.Log.Warn("unknown frame type", zap.String("type", string(f.Type)), zap.String("userID", c.UserID))
	}
}

// PushNotification delivers a new_notification to every socket of env.UserID
func (h *Hub) PushNotification(ctx context.Context, env notificationdomain.Envelope) error {
	if err := h.validate.Validate(env); err != nil {
		return err
	}
	return h.publish(ctx, domain.UserTopic(env.UserID), transport.NamespaceNotification, notificationdomain.NewNotification, env.Notification, "")
}

// StartChatbotRelay forwards {event, data} records published on channel to every
// socket connected to the chatbot namespace
func (h *Hub) StartChatbotRelay(ctx context.Context, channel string) error {
	return h.relay.Subscribe(ctx, channel, h.relayChatbot)
}

func (h *Hub) relayChatbot(payload []byte) {
	var ev chatbotdomain.RelayEvent
	if err := json.Unmarshal(payload, &ev); err != nil || !knownChatbotEvent(ev.Event) {
		logger.Log.Warn("chatbot relay record dropped", zap.String("event", ev.Event), zap.Error(err))
		return
	}

	frame := transport.Frame{Type: transport.FrameEvent, Namespace: transport.NamespaceChatbot, Event: ev.Event, Data: ev.Data}
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		if c.InNamespace(transport.NamespaceChatbot) && !c.Send(frame) {
			logger.Log.Warn("slow socket, frame dropped", zap.String("userID", c.UserID), zap.String("event", ev.Event))
		}
	}
}

func knownChatbotEvent(event string) bool {
	return pkg.Contains(chatbotdomain.Events, event)
}

func (h *Hub) connect(c *Client, f transport.Frame) {
	if err := h.authorize(c, f.Namespace, f.Data); err != nil {
		logger.Log.Warn("namespace connect rejected",
			zap.String("userID", c.UserID),
			zap.String("namespace", f.Namespace),
			zap.Error(err),
		)
		data, _ := json.Marshal(transport.ErrorPayload{Message: err.Error()})
		c.Send(transport.Frame{Type: transport.FrameConnectError, Namespace: f.Namespace, Data: data})
		return
	}
	c.addNamespace(f.Namespace)
	c.Send(transport.Frame{Type: transport.FrameConnect, Namespace: f.Namespace})
}

func (h *Hub) authorize(c *Client, namespace string, data json.RawMessage) error {
	if !domain.Namespaces[namespace] {
		return fmt.Errorf("%w: %s", domain.ErrUnknownNamespace, namespace)
	}
	var p transport.ConnectPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
	}
	if p.Token == "" {
		return domain.ErrMissingToken
	}
	claims, err := token.ParseJWT(p.Token)
	if err != nil {
		return err
	}
	if claims.UserID != c.UserID {
		return domain.ErrTokenMismatch
	}
	if namespace == transport.NamespaceChatbot && claims.Role != string(token.RoleAdmin) {
		return fmt.Errorf("%w: %s requires role %s", domain.ErrForbidden, namespace, token.RoleAdmin)
	}
	return nil
}

func (h *Hub) disconnect(ctx context.Context, c *Client, namespace string) {
	if !c.removeNamespace(namespace) {
		return
	}
	if namespace != transport.NamespaceChat {
		return
	}
	for _, groupID := range c.Groups() {
		if err := h.leaveGroup(ctx, c, groupID); err != nil {
			logger.Log.Warn("leave group on disconnect", zap.String("groupId", groupID), zap.Error(err))
		}
	}
}

func (h *Hub) decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return h.validate.Validate(v)
}

func (h *Hub) onJoinGroup(ctx context.Context, c *Client, data json.RawMessage) error {
	var req chatdomain.GroupRequest
	if err := h.decode(data, &req); err != nil {
		return err
	}
	if !c.addGroup(req.GroupID) {
		return nil
	}

	h.mu.Lock()
	if h.groups[req.GroupID] == nil {
		h.groups[req.GroupID] = map[string]*Client{}
	}
	h.groups[req.GroupID][c.ID] = c
	h.mu.Unlock()

	groupID := req.GroupID
	if err := h.ensureSub(domain.GroupTopic(groupID), h.deliverTo(func() []*Client { return h.groupClients(groupID) })); err != nil {
		c.removeGroup(groupID)
		h.removeGroupMember(groupID, c)
		return err
	}

	online, err := h.presence.Join(ctx, groupID, c.UserID)
	if err != nil {
		return err
	}
	return h.publishStatus(ctx, groupID, c.UserID, chatdomain.Online, online)
}

func (h *Hub) onLeaveGroup(ctx context.Context, c *Client, data json.RawMessage) error {
	var req chatdomain.GroupRequest
	if err := h.decode(data, &req); err != nil {
		return err
	}
	return h.leaveGroup(ctx, c, req.GroupID)
}

func (h *Hub) leaveGroup(ctx context.Context, c *Client, groupID string) error {
	if !c.removeGroup(groupID) {
		return nil
	}
	h.removeGroupMember(groupID, c)

	online, err := h.presence.Leave(ctx, groupID, c.UserID)
	if err != nil {
		return err
	}
	status := chatdomain.Offline
	if pkg.Contains(online, c.UserID) {
		status = chatdomain.Online
	}
	return h.publishStatus(ctx, groupID, c.UserID, status, online)
}

func (h *Hub) publishStatus(ctx context.Context, groupID, userID string, status chatdomain.PresenceStatus, online []string) error {
	return h.publish(ctx, domain.GroupTopic(groupID), transport.NamespaceChat, chatdomain.UserStatusChange, chatdomain.UserStatusPayload{
		GroupID:     groupID,
		UserID:      userID,
		Status:      status,
		OnlineUsers: online,
		Timestamp:   chatdomain.FormatTimestamp(h.now()),
	}, "")
}

func (h *Hub) onSendMessage(ctx context.Context, c *Client, data json.RawMessage) error {
	var req chatdomain.SendMessageRequest
	if err := h.decode(data, &req); err != nil {
		return err
	}
	if !c.InGroup(req.GroupID) {
		return fmt.Errorf("%w: %s", domain.ErrNotMember, req.GroupID)
	}
	if req.Type == "" {
		req.Type = chatdomain.TypeText
	}

	msg := chatdomain.ChatMessage{
		ID:           h.newID(),
		ClientTempID: req.ClientTempID,
		GroupID:      req.GroupID,
		SenderID:     c.UserID,
		Content:      req.Content,
		Type:         req.Type,
		Attachments:  req.Attachments,
		ReplyTo:      req.ReplyTo,
		CreatedAt:    chatdomain.FormatTimestamp(h.now()),
	}
	// the sender's own socket gets the echo too, it settles the optimistic copy
	return h.publish(ctx, domain.GroupTopic(req.GroupID), transport.NamespaceChat, chatdomain.NewGroupMessage, msg, "")
}

func (h *Hub) onTyping(ctx context.Context, c *Client, data json.RawMessage) error {
	var req chatdomain.TypingRequest
	if err := h.decode(data, &req); err != nil {
		return err
	}
	if !c.InGroup(req.GroupID) {
		return fmt.Errorf("%w: %s", domain.ErrNotMember, req.GroupID)
	}
	return h.publish(ctx, domain.GroupTopic(req.GroupID), transport.NamespaceChat, chatdomain.UserTyping, chatdomain.TypingPayload{
		GroupID:  req.GroupID,
		UserID:   c.UserID,
		IsTyping: req.IsTyping,
	}, c.ID)
}

func (h *Hub) onGroupSeen(ctx context.Context, c *Client, data json.RawMessage) error {
	var req chatdomain.GroupRequest
	if err := h.decode(data, &req); err != nil {
		return err
	}
	if !c.InGroup(req.GroupID) {
		return fmt.Errorf("%w: %s", domain.ErrNotMember, req.GroupID)
	}
	return h.publish(ctx, domain.GroupTopic(req.GroupID), transport.NamespaceChat, chatdomain.GroupMessageSeen, chatdomain.SeenPayload{
		GroupID: req.GroupID,
		UserID:  c.UserID,
		SeenAt:  chatdomain.FormatTimestamp(h.now()),
	}, c.ID)
}

func (h *Hub) onMarkRead(ctx context.Context, c *Client, data json.RawMessage) error {
	var req notificationdomain.ReadPayload
	if err := h.decode(data, &req); err != nil {
		return err
	}
	return h.publish(ctx, domain.UserTopic(c.UserID), transport.NamespaceNotification, notificationdomain.NotificationRead, req, c.ID)
}

func (h *Hub) onMarkAllRead(ctx context.Context, c *Client, _ json.RawMessage) error {
	return h.publish(ctx, domain.UserTopic(c.UserID), transport.NamespaceNotification, notificationdomain.AllNotificationsRead, struct{}{}, c.ID)
}

func (h *Hub) publish(ctx context.Context, topic, namespace, event string, payload any, skipConn string) error {
	d, err := domain.NewDelivery(namespace, event, payload, skipConn)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return h.relay.Publish(ctx, topic, raw)
}

// deliverTo relay handler writing a Delivery to the sockets members returns
func (h *Hub) deliverTo(members func() []*Client) repository.MessageHandler {
	return func(payload []byte) {
		var d domain.Delivery
		if err := json.Unmarshal(payload, &d); err != nil {
			logger.Log.Warn("relay payload dropped", zap.Error(err))
			return
		}
		frame := d.Frame()
		for _, c := range members() {
			if c.ID == d.SkipConn || !c.InNamespace(d.Namespace) {
				continue
			}
			if !c.Send(frame) {
				logger.Log.Warn("slow socket, frame dropped", zap.String("userID", c.UserID), zap.String("event", d.Event))
			}
		}
	}
}

func (h *Hub) userClients(userID string) []*Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Client, 0, len(h.users[userID]))
	for _, c := range h.users[userID] {
		out = append(out, c)
	}
	return out
}

func (h *Hub) groupClients(groupID string) []*Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Client, 0, len(h.groups[groupID]))
	for _, c := range h.groups[groupID] {
		out = append(out, c)
	}
	return out
}

func (h *Hub) removeGroupMember(groupID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.groups[groupID]
	if set == nil {
		return
	}
	delete(set, c.ID)
	if len(set) == 0 {
		delete(h.groups, groupID)
		h.dropSubLocked(domain.GroupTopic(groupID))
	}
}

// ensureSub subscribes topic unless a subscription already exists
func (h *Hub) ensureSub(topic string, handler repository.MessageHandler) error {
	h.mu.Lock()
	if _, ok := h.subs[topic]; ok {
		h.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(h.ctx)
	sub := &relaySub{cancel: cancel}
	h.subs[topic] = sub
	h.mu.Unlock()

	if err := h.relay.Subscribe(ctx, topic, handler); err != nil {
		h.mu.Lock()
		if h.subs[topic] == sub {
			delete(h.subs, topic)
		}
		h.mu.Unlock()
		cancel()
		return err
	}
	return nil
}

// dropSubLocked caller holds h.mu
func (h *Hub) dropSubLocked(topic string) {
	if sub, ok := h.subs[topic]; ok {
		sub.cancel()
		delete(h.subs, topic)
	}
}
