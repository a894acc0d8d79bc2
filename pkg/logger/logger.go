// Package logger is the process-wide zap logger. The *Ctx helpers prefix every
// line with the trace id carried by the request context.
package logger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"rotapool/pkg/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	defaultTraceID = "0"
	timeLayout     = "2006-01-02 15:04:05.000"
)

var levels = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

var (
	Log   *zap.Logger
	sugar *zap.SugaredLogger
)

func init() {
	dev := zap.NewDevelopmentConfig()
	dev.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	dev.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)

	l, _ := dev.Build(zap.AddCallerSkip(1))
	use(l)
}

// use installs l. The sugared logger skips one more frame for logf.
func use(l *zap.Logger) {
	Log = l
	sugar = l.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

// Init rebuilds the logger from config.GlobalConfig.Logger.
// Unknown levels fall back to info; output is console, file or both.
func Init() error {
	cfg := config.GlobalConfig.Logger

	level, ok := levels[cfg.Level]
	if !ok {
		level = zapcore.InfoLevel
	}

	out, err := outputFor(cfg)
	if err != nil {
		return err
	}

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), out, zap.NewAtomicLevelAt(level))
	use(zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)))
	return nil
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(timeLayout),
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

func outputFor(cfg config.LoggerConfig) (zapcore.WriteSyncer, error) {
	stdout := zapcore.AddSync(os.Stdout)
	if cfg.Output != "file" && cfg.Output != "both" {
		return stdout, nil
	}

	file, err := openLogFile(cfg.File.Path)
	if err != nil {
		return nil, err
	}
	if cfg.Output == "file" {
		return zapcore.AddSync(file), nil
	}
	return zapcore.NewMultiWriteSyncer(stdout, zapcore.AddSync(file)), nil
}

func openLogFile(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("logger.file.path is required for file output")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %v", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}
	return file, nil
}

// Structured variants for code without a request context

func Debug(msg string, fields ...zap.Field) { Log.Debug(msg, traced(fields)...) }
func Info(msg string, fields ...zap.Field) { Log.Info(msg, traced(fields)...) }
func Warn(msg string, fields ...zap.Field) { Log.Warn(msg, traced(fields)...) }
func Error(msg string, fields ...zap.Field) { Log.Error(msg, traced(fields)...) }

func traced(fields []zap.Field) []zap.Field {
	return append([]zap.Field{zap.String("trace_id", defaultTraceID)}, fields...)
}

type traceKey struct{}

// WithTraceID returns a context carrying the trace id printed by the *Ctx helpers
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// TraceID returns the trace id stored in ctx, or "0"
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return defaultTraceID
	}
	if id, ok := ctx.Value(traceKey{}).(string); ok && id != "" {
		return id
	}
	return defaultTraceID
}

func logf(ctx context.Context, emit func(string, ...interface{}), format string, args []interface{}) {
	emit(TraceID(ctx)+"\t"+format, args...)
}

func DebugCtx(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, sugar.Debugf, format, args)
}

func InfoCtx(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, sugar.Infof, format, args)
}

func WarnCtx(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, sugar.Warnf, format, args)
}

func ErrorCtx(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, sugar.Errorf, format, args)
}

func FatalCtx(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, sugar.Fatalf, format, args)
}

// Sync flushes buffered entries
func Sync() error {
	return Log.Sync()
}
