package utils

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger returns a zap logger. When debug is true, uses development config
// (human-readable, debug level); otherwise uses production config (JSON, info level).
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// FileLogOptions controls the rotating log file written next to console output.
type FileLogOptions struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewFileLogger tees console output with a JSON log file rotated by lumberjack.
// The file always records info and above; the console follows debug.
func NewFileLogger(debug bool, opts FileLogOptions) (*zap.Logger, error) {
	if opts.Path == "" {
		return NewLogger(debug)
	}
	rotator := &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}
	if _, err := rotator.Write(nil); err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	fileEnc := zap.NewProductionEncoderConfig()
	fileEnc.TimeKey = "timestamp"
	fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder
	fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), zapcore.AddSync(rotator), zap.InfoLevel)

	var consoleEnc zapcore.Encoder
	level := zap.InfoLevel
	if debug {
		consoleEnc = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		level = zap.DebugLevel
	} else {
		consoleEnc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	consoleCore := zapcore.NewCore(consoleEnc, zapcore.Lock(os.Stderr), level)

	return zap.New(zapcore.NewTee(fileCore, consoleCore), zap.AddCaller()), nil
}
