package formstate

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel grades a LogEvent.
type LogLevel int8

const (
	LevelDebug LogLevel = iota - 1
	LevelInfo
	LevelWarn
	LevelError
)

// LogEvent describes something the engine wants recorded: an evaluation, a
// skipped field, a swallowed save failure.
type LogEvent struct {
	Level   LogLevel
	Message string
	Form    string
	Field   string
	// Engine and Expr are set for expression evaluations.
	Engine   string
	Expr     string
	Duration time.Duration
	Err      error
}

// Logger records engine events.
type Logger interface {
	Log(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

// Log implements Logger.
func (f LoggerFunc) Log(event LogEvent) {
	if f != nil {
		f(event)
	}
}

type noopLogger struct{}

func (noopLogger) Log(LogEvent) {}

// WithLogger attaches a logger. A nil logger silences the engine.
func WithLogger(logger Logger) Option {
	return func(cfg *config) {
		if logger == nil {
			cfg.logger = noopLogger{}
			return
		}
		cfg.logger = logger
	}
}

type zapLogger struct {
	log *zap.Logger
}

// NewZapLogger adapts a zap logger. A nil logger maps to zap.NewNop.
func NewZapLogger(log *zap.Logger) Logger {
	if log == nil {
		log = zap.NewNop()
	}
	return zapLogger{log: log.Named("formstate")}
}

func (z zapLogger) Log(event LogEvent) {
	fields := make([]zap.Field, 0, 6)
	if event.Form != "" {
		fields = append(fields, zap.String("form", event.Form))
	}
	if event.Field != "" {
		fields = append(fields, zap.String("field", event.Field))
	}
	if event.Engine != "" {
		fields = append(fields, zap.String("engine", event.Engine))
	}
	if event.Expr != "" {
		fields = append(fields, zap.String("expr", event.Expr))
	}
	if event.Duration > 0 {
		fields = append(fields, zap.Duration("duration", event.Duration))
	}
	if event.Err != nil {
		fields = append(fields, zap.Error(event.Err))
	}
	if ce := z.log.Check(zapLevel(event.Level), event.Message); ce != nil {
		ce.Write(fields...)
	}
}

func zapLevel(level LogLevel) zapcore.Level {
	switch level {
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
