package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"thesis_realtime/internal/gateway/app"
	"thesis_realtime/internal/gateway/repository"
	"thesis_realtime/internal/gateway/router"
	notificationdomain "thesis_realtime/internal/notification/domain"
	"thesis_realtime/pkg/config"
	"thesis_realtime/pkg/logger"
	testtool "thesis_realtime/pkg/test_tool"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the gateway application from a loaded config
func New(cfg *config.Gateway, opts ...fx.Option) *fx.App {
	return fx.New(
		fx.WithLogger(func() fxevent.Logger {
			l := &fxevent.ZapLogger{Logger: logger.Log.Named("fx").Unwrap()}
			l.UseLogLevel(zapcore.DebugLevel)
			return l
		}),
		fx.Supply(cfg),
		fx.Provide(
			newRedisClient,
			newRelay,
			newPresence,
			newNotificationSource,

			app.NewValidator,
			newHub,
			newWebsocketHandler,
		),
		fx.Invoke(StartServer),
		fx.Invoke(StartNotificationConsumer),
		fx.Invoke(StartChatbotRelay),
		fx.Options(opts...),
	)
}

// StartServer serves the websocket endpoint until the app stops
func StartServer(lc fx.Lifecycle, sd fx.Shutdowner, cfg *config.Gateway, ws *app.WebsocketHandler, hub *app.Hub) error {
	r := fiber.New(fiber.Config{DisableStartupMessage: true})
	r.Use(recover.New())

	if dir := cfg.Log.Dir; dir != "" {
		file, err := os.OpenFile(filepath.Join(dir, "access.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			return fmt.Errorf("open access log: %w", err)
		}
		r.Use(fiber_log.New(fiber_log.Config{Output: file}))
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return file.Close() }})
	}

	router.RegisterRoutes(r, ws)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if cfg.Pprof {
				testtool.StartPprof(cfg.PprofAddr)
			}
			go func() {
				logger.Log.Info("starting gateway", zap.String("port", cfg.Port), zap.String("relay", cfg.Relay))
				if err := r.Listen(":" + cfg.Port); err != nil {
					logger.Log.Error("gateway listen", zap.Error(err))
					_ = sd.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			hub.Close()
			return r.ShutdownWithContext(ctx)
		},
	})
	return nil
}

// StartNotificationConsumer pushes every ingested record to its user
func StartNotificationConsumer(lc fx.Lifecycle, sd fx.Shutdowner, src repository.NotificationSource, hub *app.Hub) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				err := src.Run(ctx, func(ctx context.Context, env notificationdomain.Envelope) error {
					err := hub.PushNotification(ctx, env)
					var invalid validator.ValidationErrors
					if errors.As(err, &invalid) {
						// a retry would fail the same way
						logger.Log.Warn("notification record rejected", zap.String("userID", env.UserID), zap.Error(err))
						return nil
					}
					return err
				})
				if err != nil {
					logger.Log.Error("notification source stopped", zap.Error(err))
					_ = sd.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
			}
			return src.Close()
		},
	})
}

// StartChatbotRelay forwards crawler events for the lifetime of the app
func StartChatbotRelay(lc fx.Lifecycle, cfg *config.Gateway, hub *app.Hub) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return hub.StartChatbotRelay(ctx, cfg.Chatbot.Channel)
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
