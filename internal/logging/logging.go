// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/geoff/internal/config"
)

// New builds a logger writing to stderr, leaving stdout to command output.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	return NewWriter(cfg, os.Stderr)
}

// NewWriter builds a logger writing to w. Format "json" emits one JSON
// object per line; "console" emits tab-separated text for terminals.
func NewWriter(cfg config.LogConfig, w io.Writer) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	econf := zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      zapcore.OmitKey,
		StacktraceKey:  "stacktrace",
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}

	var enc zapcore.Encoder
	switch cfg.Format {
	case "json", "":
		enc = zapcore.NewJSONEncoder(econf)
	case "console":
		econf.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(econf)
	default:
		return nil, fmt.Errorf("logging: unknown format %q", cfg.Format)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core, zap.AddStacktrace(zapcore.ErrorLevel)), nil
}
