// Package observability owns the process-wide zap logger.
package observability

import (
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/config"
)

// RootName names the global logger. Packages add their own segment with
// Named, e.g. "takeoff.executor".
const RootName = "takeoff"

var (
	global atomic.Pointer[zap.Logger]
	once   sync.Once
)

// Initialize builds the global logger. The operator's console gets coloured
// levels, or JSON when cfg.Format is "json". When cfg.LogFile is set every
// entry is also written there as JSON, rotated by size.
//
// Only the first call has any effect until ResetForTest.
func Initialize(cfg config.LoggerConfig, console zapcore.WriteSyncer) {
	once.Do(func() {
		level := zapcore.InfoLevel
		if l, err := zapcore.ParseLevel(cfg.Level); err == nil {
			level = l
		}

		cores := []zapcore.Core{zapcore.NewCore(consoleEncoder(cfg.Format), console, level)}
		if cfg.LogFile != "" {
			file := zapcore.AddSync(&lumberjack.Logger{
				Filename:   cfg.LogFile,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   cfg.Compress,
			})
			cores = append(cores, zapcore.NewCore(jsonEncoder(), file, level))
		}

		logger := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zapcore.ErrorLevel)).Named(RootName)
		global.Store(logger)
	})
}

// InitializeLogger initialises the global logger on stdout.
func InitializeLogger(cfg config.LoggerConfig) {
	Initialize(cfg, zapcore.Lock(os.Stdout))
}

// ResetForTest clears the global logger so tests can initialise it again.
func ResetForTest() {
	global.Store(nil)
	once = sync.Once{}
}

func consoleEncoder(format string) zapcore.Encoder {
	if format == "json" {
		return jsonEncoder()
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	enc.CallerKey = zapcore.OmitKey
	return zapcore.NewConsoleEncoder(enc)
}

func jsonEncoder() zapcore.Encoder {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(enc)
}

// GetLogger returns the global logger, or a no-op logger before Initialize.
func GetLogger() *zap.Logger {
	if l := global.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

// Sync flushes buffered entries. Syncing a terminal fails on most platforms,
// so errors are dropped.
func Sync() {
	if l := global.Load(); l != nil {
		_ = l.Sync()
	}
}
