package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogInfo wraps a zap logger whose debug output can be switched at runtime
type LogInfo struct {
	log       *zap.Logger
	debugMode bool
	mu        sync.Mutex
}

var (
	// Log process wide logger, replaced by Initialize or SetNewNop
	Log = &LogInfo{log: zap.NewNop()}
)

// Initialize builds the service logger. Info..Error go to stdout as JSON and, when logDir
// is set, to a daily file; debug (when enabled) and warn go to stdout in console format.
func Initialize(serviceName, logDir string) *LogInfo {
	l := new(LogInfo)

	infoSinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			panic(fmt.Sprintf("Failed to create log directory: %v", err))
		}
		date := time.Now().Format("2006-01-02")
		infoSinks = append(infoSinks, getFileWriter(filepath.Join(logDir, fmt.Sprintf("%s_%s.log", serviceName, date))))
	}

	infoErrorCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.NewMultiWriteSyncer(infoSinks...),
		zap.LevelEnablerFunc(func(level zapcore.Level) bool {
			return level >= zap.InfoLevel && level <= zap.ErrorLevel && level != zap.WarnLevel
		}),
	)

	debugCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(os.Stdout),
		zap.LevelEnablerFunc(func(level zapcore.Level) bool {
			l.mu.Lock()
			defer l.mu.Unlock()
			return l.debugMode && level == zapcore.DebugLevel
		}),
	)

	warnCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(os.Stdout),
		zap.LevelEnablerFunc(func(level zapcore.Level) bool {
			return level == zapcore.WarnLevel
		}),
	)

	l.log = zap.New(zapcore.NewTee(infoErrorCore, debugCore, warnCore), zap.AddCaller(), zap.AddCallerSkip(1)).
		With(zap.String("service", serviceName))

	return l
}

// SetNewNop silences the global logger (tests)
func SetNewNop() {
	Log = &LogInfo{log: zap.NewNop()}
}

func getFileWriter(logFile string) zapcore.WriteSyncer {
	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		panic(fmt.Sprintf("Failed to open or create log file: %v", err))
	}
	return zapcore.AddSync(file)
}

// SetDebugMode set the log debug mode
func (l *LogInfo) SetDebugMode(status bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.debugMode = status
}

// Named returns a child logger tagged with component
func (l *LogInfo) Named(component string) *LogInfo {
	l.mu.Lock()
	debug := l.debugMode
	l.mu.Unlock()
	return &LogInfo{log: l.log.Named(component), debugMode: debug}
}

// Info level log
func (l *LogInfo) Info(msg string, fields ...zap.Field) {
	l.log.Info(msg, fields...)
}

// Infof info log with one formatted value
func (l *LogInfo) Infof(msg string, info interface{}, fields ...zap.Field) {
	l.log.Info(fmt.Sprintf("%s %v", msg, info), fields...)
}

// Error level log
func (l *LogInfo) Error(msg string, fields ...zap.Field) {
	l.log.Error(msg, fields...)
}

// Errorf error log with the error appended to msg
func (l *LogInfo) Errorf(msg string, err error, fields ...zap.Field) {
	l.log.Error(fmt.Sprintf("%s %v", msg, err), fields...)
}

// Debug level log
func (l *LogInfo) Debug(msg string, fields ...zap.Field) {
	l.log.Debug(msg, fields...)
}

// Warn level log
func (l *LogInfo) Warn(msg string, fields ...zap.Field) {
	l.log.Warn(msg, fields...)
}

// Unwrap the underlying zap logger
func (l *LogInfo) Unwrap() *zap.Logger {
	return l.log
}

// Sync flush buffered entries
func (l *LogInfo) Sync() {
	if err := l.log.Sync(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to sync logger: %v\n", err)
	}
}

// Fatal logs msg, flushes and exits
func (l *LogInfo) Fatal(msg string, fields ...zap.Field) {
	l.log.Error(msg, fields...)
	if err := l.log.Sync(); err != nil {
		os.Stderr.WriteString("Failed to sync logger: " + err.Error() + "\n")
	}
	os.Exit(1)
}
