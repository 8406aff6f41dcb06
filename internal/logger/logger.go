package logger

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/straye-as/target-analytics/internal/config"
	"github.com/straye-as/target-analytics/internal/domain"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Production sampling: the first 100 identical entries per second are kept,
// then every 100th.
const (
	sampleTick       = time.Second
	sampleFirst      = 100
	sampleThereafter = 100
)

// NewLogger builds the service logger. The format is "json" or "console";
// production always logs JSON. An unknown level falls back to info and is
// reported once at startup.
func NewLogger(cfg *config.LoggingConfig, appCfg *config.AppConfig) (*zap.Logger, error) {
	switch strings.ToLower(cfg.Format) {
	case "", "json", "console":
	default:
		return nil, fmt.Errorf("failed to create logger: unknown log format %q", cfg.Format)
	}
	return newLogger(cfg, appCfg, zapcore.Lock(os.Stdout)), nil
}

func newLogger(cfg *config.LoggingConfig, appCfg *config.AppConfig, out zapcore.WriteSyncer) *zap.Logger {
	production := strings.EqualFold(appCfg.Environment, "production")

	level, levelErr := zapcore.ParseLevel(cfg.Level)
	if levelErr != nil {
		level = zapcore.InfoLevel
	}

	var core zapcore.Core = zapcore.NewCore(encoder(cfg.Format, production), out, zap.NewAtomicLevelAt(level))
	if production {
		core = zapcore.NewSamplerWithOptions(core, sampleTick, sampleFirst, sampleThereafter)
	}

	log := zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
		zap.Fields(
			zap.String("app", appCfg.Name),
			zap.String("environment", appCfg.Environment),
		),
	)
	if levelErr != nil {
		log.Warn("Unknown log level, using info", zap.String("level", cfg.Level))
	}
	return log
}

func encoder(format string, production bool) zapcore.Encoder {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	if strings.EqualFold(format, "json") || production {
		return zapcore.NewJSONEncoder(encCfg)
	}
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encCfg.EncodeDuration = zapcore.StringDurationEncoder
	return zapcore.NewConsoleEncoder(encCfg)
}

// WithRequest adds request context to logger
func WithRequest(logger *zap.Logger, method, path, requestID string) *zap.Logger {
	return logger.With(
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
	)
}

// WithPeriod tags log lines of a report computation
func WithPeriod(logger *zap.Logger, period domain.Period) *zap.Logger {
	return logger.With(
		zap.String("period", period.Key),
		zap.String("period_type", string(period.Type)),
	)
}
