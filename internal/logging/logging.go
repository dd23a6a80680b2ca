// Package logging builds the process-wide zap logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects where and how much to log.
type Options struct {
	Level string
	// File, when set, receives JSON lines through a rotating writer
	// instead of the console.
	File       string
	MaxSizeMB  int
	MaxBackups int

	// Console defaults to stderr.
	Console io.Writer
}

// ParseLevel accepts zap level names, case-insensitively. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return lvl, fmt.Errorf("unknown log level %q", s)
	}
	return lvl, nil
}

// New returns a logger for opts. The returned close func flushes the
// logger and releases the log file.
func New(opts Options) (*zap.Logger, func() error, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			Compress:   true,
		}
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(rotator), lvl)
		logger := zap.New(core, zap.AddCaller())
		return logger, func() error {
			_ = logger.Sync()
			return rotator.Close()
		}, nil
	}

	out := opts.Console
	if out == nil {
		out = os.Stderr
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(out), lvl)
	logger := zap.New(core)
	return logger, func() error {
		// Sync on a terminal fd fails with EINVAL on some platforms.
		_ = logger.Sync()
		return nil
	}, nil
}
