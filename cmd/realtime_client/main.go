package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	notificationapp "thesis_realtime/internal/notification/app"
	"thesis_realtime/internal/session"
	"thesis_realtime/pkg/config"
	"thesis_realtime/pkg/logger"

	"go.uber.org/zap"
)

// headless session: connects, loads the first pages and logs every store change
func main() {
	env := config.Env()
	cfg, err := config.LoadConfig[config.Client](env.Client, env.ClientYAMLPath)
	if err != nil {
		log.Fatalf("load client config: %v", err)
	}
	cfg.Defaults()

	logDir := cfg.Log.Dir
	if logDir == "" {
		logDir = env.ClientLogPath
	}
	logger.Log = logger.Initialize(env.Client, logDir)
	logger.Log.SetDebugMode(cfg.Log.Debug)
	defer logger.Log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := session.New(ctx, cfg, nil)
	if err != nil {
		logger.Log.Fatal("session", zap.Error(err))
	}
	defer s.Close()

	if missing := s.Wait(ctx); len(missing) > 0 {
		logger.Log.Warn("namespaces not connected", zap.Strings("namespaces", missing))
	}

	if s.Chat != nil {
		defer s.Chat.Store().OnChange(func(groupID string) {
			msgs := s.Chat.Messages(groupID)
			logger.Log.Info("messages changed", zap.String("groupID", groupID), zap.Int("count", len(msgs)))
		}).Unsubscribe()
		defer s.Chat.Tracker().OnChange(func(groupID string) {
			p := s.Chat.Presence(groupID)
			logger.Log.Info("presence changed",
				zap.String("groupID", groupID),
				zap.Strings("online", p.OnlineUsers),
				zap.Strings("typing", p.TypingUsers),
			)
		}).Unsubscribe()
	}
	if s.Notifications != nil {
		defer s.Notifications.OnChange(func(unread int) {
			logger.Log.Info("notifications changed", zap.Int("unread", unread))
		}).Unsubscribe()
		if err := s.Notifications.Refresh(ctx, s.Notifications.Filter()); err != nil && !errors.Is(err, notificationapp.ErrNoPageSource) {
			logger.Log.Warn("first notification page", zap.Error(err))
		}
	}
	if s.Chatbot != nil {
		defer s.Chatbot.OnChange(func(id string) {
			if job, ok := s.Chatbot.Job(id); ok {
				logger.Log.Info("crawl job", zap.String("jobID", id), zap.String("status", string(job.Status)), zap.Float64("progress", job.Progress))
				return
			}
			logger.Log.Info("chatbot resource changed", zap.String("id", id))
		}).Unsubscribe()
	}

	<-ctx.Done()
	logger.Log.Info("shutting down")
}
