package testtool

import (
	"net/http"
	_ "net/http/pprof" // 匯入後會自動註冊 pprof endpoint

	"thesis_realtime/pkg/config"
	"thesis_realtime/pkg/logger"

	"go.uber.org/zap"
)

// StartPprof serves /debug/pprof on addr, never in production
func StartPprof(addr string) {
	if config.IsProduction() {
		logger.Log.Info("Production environment detected, pprof is disabled.")
		return
	}
	if addr == "" {
		addr = "127.0.0.1:6060"
	}

	go func() {
		logger.Log.Info("Starting pprof server", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Log.Error("pprof server failed", zap.Error(err))
		}
	}()
}

// curl http://localhost:6060/debug/pprof/
// go tool pprof http://localhost:6060/debug/pprof/profile?seconds=30
// go tool pprof http://localhost:6060/debug/pprof/heap
// go tool pprof http://localhost:6060/debug/pprof/goroutine
