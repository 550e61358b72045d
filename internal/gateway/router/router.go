package router

import (
	"context"

	"thesis_realtime/internal/gateway/app"
	"thesis_realtime/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes health, debug toggle and the multiplexed websocket
func RegisterRoutes(r *fiber.App, ws *app.WebsocketHandler) {
	r.Get("/", ConnectCheck)
	r.Post("/debug", DebugLogFlag)

	r.Use("/ws", middlewares.JWTMiddleware(), func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		ws.HandleConnection(context.Background(), c)
	}))
}
