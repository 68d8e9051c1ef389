// internal/logging/logging.go
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"mcp-pantry-assistant/internal/config"
	"mcp-pantry-assistant/internal/models"
	"mcp-pantry-assistant/internal/orchestrator"
)

// New builds the process logger. Output always goes to stderr; cfg.File adds
// a rotating JSON file.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var consoleEncoder zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		consoleEncoder = zapcore.NewJSONEncoder(encoderConfig)
	case "console":
		devConfig := encoderConfig
		devConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEncoder = zapcore.NewConsoleEncoder(devConfig)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), level),
	}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), nil
}

// OrchestratorSink forwards orchestrator step entries to logger. Entries
// with an error are logged at warn level.
func OrchestratorSink(logger *zap.Logger) orchestrator.LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("orchestrator")
	return func(entry models.OrchestratorLogEntry) {
		fields := []zap.Field{
			zap.String("step", entry.Step),
			zap.String("tool", entry.Tool),
		}
		if entry.PromptPreview != "" {
			fields = append(fields, zap.String("prompt", entry.PromptPreview))
		}
		if entry.OutputPreview != "" {
			fields = append(fields, zap.String("output", entry.OutputPreview))
		}
		if entry.Error != "" {
			logger.Warn("Step failed", append(fields, zap.String("error", entry.Error))...)
			return
		}
		logger.Debug("Step completed", fields...)
	}
}
