package log

import (
	"fmt"
	"sync"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logger used across roverpilot. Key/value arguments follow the logr
// convention; a bare error is also accepted in key position.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(err error, msg string, keysAndValues ...any)

	// WithName appends name to the logger name, joined by a dot.
	WithName(name string) Logger
	WithValues(keysAndValues ...any) Logger

	// Logr returns a logr.Logger backed by the same zap core, for libraries that take one.
	Logr() logr.Logger
}

var _ Logger = (*zapLogger)(nil)

type zapLogger struct {
	l     *zap.Logger
	level zap.AtomicLevel
}

// NewLogger builds a zap backed Logger from opts. Nil opts means NewOptions().
func NewLogger(opts *Options) Logger {
	if opts == nil {
		opts = NewOptions()
	}

	enc := zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "timestamp",
		NameKey:        "logger",
		CallerKey:      "caller",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	if opts.Format == "console" && opts.EnableColor {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	paths := opts.OutputPaths
	if len(paths) == 0 {
		paths = []string{"stdout"}
	}

	level := zap.NewAtomicLevelAt(parseLevel(opts.Level))
	cfg := zap.Config{
		Level:            level,
		DisableCaller:    opts.DisableCaller,
		Encoding:         opts.Format,
		EncoderConfig:    enc,
		OutputPaths:      paths,
		ErrorOutputPaths: []string{"stderr"},
	}

	buildOpts := []zap.Option{zap.AddCallerSkip(opts.CallerSkip)}
	if !opts.DisableStacktrace {
		buildOpts = append(buildOpts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	l, err := cfg.Build(buildOpts...)
	if err != nil {
		panic(fmt.Sprintf("failed to build zap logger: %v", err))
	}
	if opts.Name != "" {
		l = l.Named(opts.Name)
	}
	return &zapLogger{l: l, level: level}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return &zapLogger{l: zap.NewNop(), level: zap.NewAtomicLevel()}
}

func parseLevel(s string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// write converts the arguments only when the entry is enabled: sensor handlers log at debug on
// every message.
func (z *zapLogger) write(lvl zapcore.Level, msg string, err error, keysAndValues []any) {
	ce := z.l.Check(lvl, msg)
	if ce == nil {
		return
	}
	fields := toFields(keysAndValues...)
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}

func (z *zapLogger) Debug(msg string, keysAndValues ...any) {
	z.write(zapcore.DebugLevel, msg, nil, keysAndValues)
}

func (z *zapLogger) Info(msg string, keysAndValues ...any) {
	z.write(zapcore.InfoLevel, msg, nil, keysAndValues)
}

func (z *zapLogger) Warn(msg string, keysAndValues ...any) {
	z.write(zapcore.WarnLevel, msg, nil, keysAndValues)
}

func (z *zapLogger) Error(err error, msg string, keysAndValues ...any) {
	z.write(zapcore.ErrorLevel, msg, err, keysAndValues)
}

func (z *zapLogger) WithName(name string) Logger {
	return &zapLogger{l: z.l.Named(name), level: z.level}
}

func (z *zapLogger) WithValues(keysAndValues ...any) Logger {
	return &zapLogger{l: z.l.With(toFields(keysAndValues...)...), level: z.level}
}

func (z *zapLogger) Logr() logr.Logger {
	return zapr.NewLogger(z.l)
}

var (
	mu  sync.RWMutex
	std = NewNopLogger()
)

// Init replaces the process logger. Loggers derived from the previous one keep writing to it.
func Init(opts *Options) {
	l := NewLogger(opts)
	mu.Lock()
	prev := std
	std = l
	mu.Unlock()
	syncLogger(prev)
}

// Std returns the process logger.
func Std() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

// SetLevel changes the minimum level of the process logger and of every logger derived from it.
func SetLevel(level string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if z, ok := Std().(*zapLogger); ok {
		z.level.SetLevel(l)
	}
	return nil
}

// Sync flushes buffered entries of the process logger.
func Sync() {
	syncLogger(Std())
}

func syncLogger(l Logger) {
	if z, ok := l.(*zapLogger); ok {
		_ = z.l.Sync()
	}
}

func Debug(msg string, keysAndValues ...any)            { Std().Debug(msg, keysAndValues...) }
func Info(msg string, keysAndValues ...any)             { Std().Info(msg, keysAndValues...) }
func Warn(msg string, keysAndValues ...any)             { Std().Warn(msg, keysAndValues...) }
func Error(err error, msg string, keysAndValues ...any) { Std().Error(err, msg, keysAndValues...) }
func WithName(name string) Logger                       { return Std().WithName(name) }
func WithValues(keysAndValues ...any) Logger            { return Std().WithValues(keysAndValues...) }
func Logr() logr.Logger                                 { return Std().Logr() }
