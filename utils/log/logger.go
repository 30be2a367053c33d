package log

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger *zap.Logger

func init() {
	if os.Getenv("DEBUG") == "true" {
		logger, _ = zap.NewDevelopment()
	} else {
		logger, _ = zap.NewProduction()
	}
}

// Options configures Setup.
type Options struct {
	Debug      bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Setup replaces the package logger. When File is set, records are also
// written to a rotating file.
func Setup(opts Options) error {
	var (
		base *zap.Logger
		err  error
	)
	if opts.Debug {
		base, err = zap.NewDevelopment()
	} else {
		base, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}

	if strings.TrimSpace(opts.File) != "" {
		writer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		})
		level := zap.InfoLevel
		if opts.Debug {
			level = zap.DebugLevel
		}
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), writer, level)
		base = base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}

	_ = logger.Sync()
	logger = base
	return nil
}

// Sync flushes buffered records.
func Sync() {
	_ = logger.Sync()
}

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	providerKey  ctxKey = "provider"
	modelKey     ctxKey = "model"
)

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func ContextWithProvider(ctx context.Context, provider, model string) context.Context {
	ctx = context.WithValue(ctx, providerKey, provider)
	return context.WithValue(ctx, modelKey, model)
}

func WithCtx(ctx context.Context) *zap.Logger {
	fields := []zap.Field{}

	if v := ctx.Value(requestIDKey); v != nil {
		fields = append(fields, zap.Any("request_id", v))
	}
	if v := ctx.Value(providerKey); v != nil {
		fields = append(fields, zap.Any("provider", v))
	}
	if v := ctx.Value(modelKey); v != nil {
		fields = append(fields, zap.Any("model", v))
	}

	return logger.With(fields...)
}

func With(fields ...zap.Field) *zap.Logger {
	return logger.With(fields...)
}
