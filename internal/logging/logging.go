// Package logging builds the zap logger used by every cfload command.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config defines the logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	File       string // empty logs to stderr
	MaxSize    int    // megabytes before rotation
	MaxBackups int
	Compress   bool
}

// New builds a logger from cfg. The returned close function flushes
// buffered entries and releases the log file; call it once on exit.
func New(cfg Config) (*zap.Logger, func() error, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, fmt.Errorf("log level: %w", err)
		}
		level = parsed
	}

	writeSyncer := zapcore.Lock(zapcore.AddSync(os.Stderr))
	var rotator *lumberjack.Logger
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			Compress:   cfg.Compress,
		}
		writeSyncer = zapcore.AddSync(rotator)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	var encoder zapcore.Encoder
	if rotator != nil {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	logger := zap.New(zapcore.NewCore(encoder, writeSyncer, level), zap.AddCaller())

	closeFn := func() error {
		// Sync on a terminal stderr returns EINVAL on some platforms.
		err := logger.Sync()
		if rotator == nil {
			return nil
		}
		return multierr.Append(err, rotator.Close())
	}
	return logger, closeFn, nil
}
