package app

import (
	"os"
	"testing"

	"thesis_realtime/pkg/logger"
)

// the logger is swapped once, before any test goroutine can log
func TestMain(m *testing.M) {
	logger.SetNewNop()
	os.Exit(m.Run())
}
