package logger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level orders log severities; lines below the current level are dropped.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Config selects the level, encoding and destination of log output.
type Config struct {
	// Level is one of DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string

	// Format is "text" (console encoder) or "json"
	Format string

	// Output is "stdout", "stderr" or a file path
	Output string
}

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	sugar  = newSugar(Config{Format: "text", Output: "stdout"})
	closer func() error
)

// Init replaces the process logger according to cfg.
//
// Calling Init is optional: until it is called the logger writes text to
// stdout at INFO level.
func Init(cfg Config) error {
	zl, err := build(cfg)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	if closer != nil {
		_ = closer()
	}
	sugar = zl.Sugar()
	closer = zl.Sync
	if cfg.Level != "" {
		SetLevel(cfg.Level)
	}
	return nil
}

func build(cfg Config) (*zap.Logger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	encoding := "console"
	if strings.EqualFold(cfg.Format, "json") {
		encoding = "json"
	}

	output := cfg.Output
	if output == "" {
		output = "stdout"
	}

	zcfg := zap.Config{
		Level:             level,
		Encoding:          encoding,
		EncoderConfig:     encCfg,
		OutputPaths:       []string{output},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}

	zl, err := zcfg.Build(zap.AddCallerSkip(2))
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return zl, nil
}

func newSugar(cfg Config) *zap.SugaredLogger {
	zl, err := build(cfg)
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return zl.Sugar()
}

// SetLevel changes the minimum level. Unknown names are ignored.
func SetLevel(name string) {
	switch strings.ToUpper(name) {
	case "DEBUG":
		level.SetLevel(LevelDebug.zapLevel())
	case "INFO":
		level.SetLevel(LevelInfo.zapLevel())
	case "WARN", "WARNING":
		level.SetLevel(LevelWarn.zapLevel())
	case "ERROR":
		level.SetLevel(LevelError.zapLevel())
	}
}

// Enabled reports whether messages at l would be written.
func Enabled(l Level) bool {
	return level.Enabled(l.zapLevel())
}

// Sync flushes buffered output.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return sugar.Sync()
}

func log(l Level, format string, v ...any) {
	mu.RLock()
	s := sugar
	mu.RUnlock()

	switch l {
	case LevelDebug:
		s.Debugf(format, v...)
	case LevelInfo:
		s.Infof(format, v...)
	case LevelWarn:
		s.Warnf(format, v...)
	case LevelError:
		s.Errorf(format, v...)
	}
}

func Debug(format string, v ...any) {
	log(LevelDebug, format, v...)
}

func Info(format string, v ...any) {
	log(LevelInfo, format, v...)
}

func Warn(format string, v ...any) {
	log(LevelWarn, format, v...)
}

func Error(format string, v ...any) {
	log(LevelError, format, v...)
}
