package router

import (
	"fmt"
	"strconv"

	"thesis_realtime/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ConnectCheck liveness
func ConnectCheck(c *fiber.Ctx) error {
	return c.SendString("realtime gateway start!")
}

// DebugLogFlag toggle debug log flag, ?status=true|false
func DebugLogFlag(c *fiber.Ctx) error {
	statusStr := c.Query("status")
	logger.Log.Info("debug", zap.String("status", statusStr))
	status, err := strconv.ParseBool(statusStr)
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	logger.Log.SetDebugMode(status)
	return c.SendString(fmt.Sprintf("debug mode is : %t", status))
}
