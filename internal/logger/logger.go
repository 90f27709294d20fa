package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures Build.
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	// Console overrides stdout, mostly for tests.
	Console io.Writer
}

// New creates a *zap.SugaredLogger writing a simple console format to stdout.
func New(level zapcore.LevelEnabler, options ...zap.Option) *zap.SugaredLogger {
	if level == nil {
		level = zapcore.InfoLevel
	}
	core := zapcore.NewCore(consoleEncoder(), zapcore.AddSync(os.Stdout), level)
	return zap.New(core, options...).Sugar()
}

// Build creates the application logger. When File is set, JSON lines are
// also written there and rotated by size.
func Build(opts Options) (*zap.SugaredLogger, func(), error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		parsed, ok := ParseLogLevel(opts.Level)
		if !ok {
			return nil, nil, fmt.Errorf("unknown log level %q", opts.Level)
		}
		level = parsed
	}

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder(), zapcore.AddSync(console), level),
	}

	cleanup := func() {}
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(fileEncoder(), zapcore.AddSync(rotator), level))
		cleanup = func() { _ = rotator.Close() }
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller()).Sugar()
	return logger, func() {
		_ = logger.Sync()
		cleanup()
	}, nil
}

func consoleEncoder() zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		MessageKey:       "message",
		LevelKey:         "level",
		CallerKey:        "caller",
		StacktraceKey:    "stacktrace",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeTime:       zapcore.ISO8601TimeEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		EncodeCaller:     zapcore.ShortCallerEncoder,
		ConsoleSeparator: ", ",
	})
}

func fileEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(cfg)
}

// ParseLogLevel converts string input to zap log level.
func ParseLogLevel(s string) (zapcore.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, true
	case "info":
		return zapcore.InfoLevel, true
	case "warn", "warning":
		return zapcore.WarnLevel, true
	case "error":
		return zapcore.ErrorLevel, true
	case "dpanic":
		return zapcore.DPanicLevel, true
	case "panic":
		return zapcore.PanicLevel, true
	case "fatal":
		return zapcore.FatalLevel, true
	default:
		return zapcore.InfoLevel, false
	}
}
