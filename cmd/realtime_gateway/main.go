package main

import (
	"log"

	"thesis_realtime/internal/gateway/server"
	"thesis_realtime/pkg/config"
	"thesis_realtime/pkg/logger"
	"thesis_realtime/pkg/token"

	"go.uber.org/zap"
)

func main() {
	env := config.Env()
	cfg, err := config.LoadConfig[config.Gateway](env.Gateway, env.GatewayYAMLPath)
	if err != nil {
		log.Fatalf("load gateway config: %v", err)
	}
	cfg.Defaults()

	logDir := cfg.Log.Dir
	if logDir == "" {
		logDir = env.GatewayLogPath
		cfg.Log.Dir = logDir
	}
	logger.Log = logger.Initialize(env.Gateway, logDir)
	logger.Log.SetDebugMode(cfg.Log.Debug)
	defer logger.Log.Sync()

	if cfg.JWTSecret == "" && config.IsProduction() {
		logger.Log.Fatal("jwt_secret is required in production")
	}
	token.SetSecret(cfg.JWTSecret)

	app := server.New(&cfg)
	if err := app.Err(); err != nil {
		logger.Log.Fatal("gateway wiring failed", zap.Error(err))
	}
	app.Run()
}
