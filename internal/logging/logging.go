// Package logging builds the application's zap logger. Output goes to a
// rotated file because the terminal belongs to the UI.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nhle/toolroom/internal/model"
)

// ParseLevel maps a config level name to a zap level, defaulting to info.
func ParseLevel(name string) zapcore.Level {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(name)))); err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// New returns a JSON logger writing to the file configured in cfg.
func New(cfg model.LogConfig) (*zap.Logger, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("log path is not configured")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}

	sink := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	return newLogger(zapcore.AddSync(sink), ParseLevel(cfg.Level)), nil
}

func newLogger(ws zapcore.WriteSyncer, level zapcore.Level) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), ws, level)
	return zap.New(core, zap.AddCaller()).Named("toolroom")
}
