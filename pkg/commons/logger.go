// Copyright (c) 2023-2025 GlimpseHQ
//
// Licensed under GPL-2.0 with Glimpse Additional Terms.
// See LICENSE.md for commercial usage.
package commons

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the application-wide logging contract. It mirrors zap's sugared
// logger so call sites can use printf-style and structured variants without
// importing zap directly.
type Logger interface {
	Level() zapcore.Level
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	DPanic(args ...interface{})
	DPanicf(template string, args ...interface{})
	Panic(args ...interface{})
	Panicf(template string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(template string, args ...interface{})
	Benchmark(functionName string, duration time.Duration)
	Tracef(ctx context.Context, format string, args ...interface{})
	Sync() error
}

type loggerOptions struct {
	name  string
	path  string
	level string
}

// Option configures NewApplicationLogger.
type Option func(*loggerOptions)

// Name sets the service name attached to every log line and the log file name.
func Name(name string) Option {
	return func(o *loggerOptions) { o.name = name }
}

// Path sets the directory for rotated log files. When empty, logs go to
// stdout only.
func Path(path string) Option {
	return func(o *loggerOptions) { o.path = path }
}

// Level sets the minimum log level (debug, info, warn, error).
func Level(level string) Option {
	return func(o *loggerOptions) { o.level = level }
}

type applicationLogger struct {
	sugar *zap.SugaredLogger
	level zapcore.Level
}

// NewApplicationLogger builds the standard zap-backed logger. File output is
// rotated with lumberjack when a path is configured.
func NewApplicationLogger(opts ...Option) (Logger, error) {
	options := &loggerOptions{
		name:  "glimpse",
		level: "info",
	}
	for _, opt := range opts {
		opt(options)
	}

	level := zapcore.InfoLevel
	if err := level.Set(options.level); err != nil {
		level = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderCfg),
			zapcore.AddSync(os.Stdout),
			level,
		),
	}
	if options.path != "" {
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(options.path, options.name+".log"),
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderCfg),
			zapcore.AddSync(rotator),
			level,
		))
	}

	core := zapcore.NewTee(cores...)
	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).
		Named(options.name)
	return &applicationLogger{
		sugar: logger.Sugar(),
		level: level,
	}, nil
}

func (l *applicationLogger) Level() zapcore.Level { return l.level }

func (l *applicationLogger) Debug(args ...interface{}) { l.sugar.Debug(args...) }
func (l *applicationLogger) Debugf(template string, args ...interface{}) {
	l.sugar.Debugf(template, args...)
}
func (l *applicationLogger) Debugw(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}
func (l *applicationLogger) Info(args ...interface{}) { l.sugar.Info(args...) }
func (l *applicationLogger) Infof(template string, args ...interface{}) {
	l.sugar.Infof(template, args...)
}
func (l *applicationLogger) Infow(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}
func (l *applicationLogger) Warn(args ...interface{}) { l.sugar.Warn(args...) }
func (l *applicationLogger) Warnf(template string, args ...interface{}) {
	l.sugar.Warnf(template, args...)
}
func (l *applicationLogger) Warnw(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}
func (l *applicationLogger) Error(args ...interface{}) { l.sugar.Error(args...) }
func (l *applicationLogger) Errorf(template string, args ...interface{}) {
	l.sugar.Errorf(template, args...)
}
func (l *applicationLogger) Errorw(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}
func (l *applicationLogger) DPanic(args ...interface{}) { l.sugar.DPanic(args...) }
func (l *applicationLogger) DPanicf(template string, args ...interface{}) {
	l.sugar.DPanicf(template, args...)
}
func (l *applicationLogger) Panic(args ...interface{}) { l.sugar.Panic(args...) }
func (l *applicationLogger) Panicf(template string, args ...interface{}) {
	l.sugar.Panicf(template, args...)
}
func (l *applicationLogger) Fatal(args ...interface{}) { l.sugar.Fatal(args...) }
func (l *applicationLogger) Fatalf(template string, args ...interface{}) {
	l.sugar.Fatalf(template, args...)
}

// Benchmark logs a coarse timing for a named operation.
func (l *applicationLogger) Benchmark(functionName string, duration time.Duration) {
	l.sugar.Debugw("benchmark", "fn", functionName, "duration", duration)
}

// Tracef logs with any request id carried on the context.
func (l *applicationLogger) Tracef(ctx context.Context, format string, args ...interface{}) {
	if rid, ok := ctx.Value(TraceIDKey).(string); ok && rid != "" {
		l.sugar.With("trace_id", rid).Debugf(format, args...)
		return
	}
	l.sugar.Debugf(format, args...)
}

func (l *applicationLogger) Sync() error { return l.sugar.Sync() }
