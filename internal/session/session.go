package session

import (
	"context"
	"errors"
	"fmt"

	chatapp "thesis_realtime/internal/chat/app"
	chatrepo "thesis_realtime/internal/chat/repository"
	chatbotapp "thesis_realtime/internal/chatbot/app"
	notificationapp "thesis_realtime/internal/notification/app"
	notificationrepo "thesis_realtime/internal/notification/repository"
	"thesis_realtime/internal/transport"
	"thesis_realtime/pkg/config"
	"thesis_realtime/pkg/logger"
	"thesis_realtime/pkg/restclient"
	"thesis_realtime/pkg/token"

	"go.uber.org/zap"
)

// ErrNoUser neither the config nor the credential names a user
var ErrNoUser = errors.New("session user id unknown")

// Option customizes New
type Option func(*options)

type options struct {
	dialer transport.Dialer
}

// WithDialer replaces the websocket dialer
func WithDialer(d transport.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// Session everything one logged-in user needs; built at login, closed at logout
type Session struct {
	UserID string

	Registry      *transport.Registry
	Chat          *chatapp.ChatSync
	Notifications *notificationapp.NotificationCenter
	Chatbot       *chatbotapp.Monitor

	wait config.RetryConfig
}

// New binds a consumer to each configured namespace, then connects them.
// Connection failures do not fail New, they show up as namespace status.
func New(ctx context.Context, cfg config.Client, credential func() string, opts ...Option) (*Session, error) {
	cfg.Defaults()
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if credential == nil {
		credential = func() string { return cfg.Token }
	}

	userID := cfg.UserID
	if userID == "" {
		id, err := token.UserIDUnverified(credential())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoUser, err)
		}
		userID = id
	}

	s := &Session{
		UserID: userID,
		Registry: transport.NewRegistry(transport.Options{
			URL:        cfg.GatewayURL,
			Credential: credential,
			Dialer:     o.dialer,
			Reconnect: transport.RetryPolicy{
				RetryCount:    cfg.Reconnect.RetryCount,
				RetryInterval: cfg.Reconnect.RetryInterval,
			},
			WriteWait: cfg.WriteWait,
		}),
		wait: cfg.WaitSocket,
	}

	var rest *restclient.Client
	if cfg.REST.BaseURL != "" {
		rest = restclient.New(cfg.REST.BaseURL, cfg.REST.Timeout, credential)
	}

	// consumers listen before any connect frame leaves, so the first ack is not missed
	for _, name := range cfg.Namespaces {
		ns, _ := s.Registry.Register(userID, name)
		switch name {
		case transport.NamespaceChat:
			var history chatapp.HistoryFetcher
			if rest != nil {
				history = chatrepo.NewHistoryRepository(rest, cfg.REST.PageSize)
			}
			s.Chat = chatapp.NewChatSync(userID, ns, history)
			s.Chat.Start()
		case transport.NamespaceNotification:
			var pages notificationapp.PageFetcher
			if rest != nil {
				pages = notificationrepo.NewPageRepository(rest)
			}
			s.Notifications = notificationapp.NewNotificationCenter(ns, pages, cfg.REST.PageSize)
			s.Notifications.Start()
		case transport.NamespaceChatbot:
			s.Chatbot = chatbotapp.NewMonitor(ns)
			s.Chatbot.Start()
		default:
			logger.Log.Warn("namespace without consumer", zap.String("namespace", name))
		}
	}
	for _, name := range cfg.Namespaces {
		s.Registry.Connect(ctx, userID, name)
	}

	logger.Log.Info("session started", zap.String("userID", userID), zap.Strings("namespaces", cfg.Namespaces))
	return s, nil
}

// Wait blocks until every configured namespace is connected, bounded by the wait_socket
// retry config. It returns the namespaces that did not come up.
func (s *Session) Wait(ctx context.Context) []string {
	var missing []string
	for _, name := range s.Registry.Namespaces() {
		if _, ok := s.Registry.WaitForNamespace(ctx, name, s.wait.RetryInterval, s.wait.RetryCount); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Close stops the consumers and tears the transport down (logout)
func (s *Session) Close() {
	if s.Chat != nil {
		s.Chat.Stop()
	}
	if s.Notifications != nil {
		s.Notifications.Stop()
	}
	if s.Chatbot != nil {
		s.Chatbot.Stop()
	}
	s.Registry.Close()
	logger.Log.Info("session closed", zap.String("userID", s.UserID))
}
