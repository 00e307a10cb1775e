// Package logging builds the zap logger shared by the agent components.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nhle/mailagent/internal/model"
)

// New creates a logger writing to stderr. Format is "json" or "console".
func New(cfg model.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	core := zapcore.NewCore(
		newEncoder(cfg.Format),
		zapcore.Lock(os.Stderr),
		zap.NewAtomicLevelAt(level),
	)

	return zap.New(core, zap.AddCaller()), nil
}

// newEncoder creates JSON or console encoder.
func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "console" {
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
