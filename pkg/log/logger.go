package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	automlerrors "github.com/YuminosukeSato/automlcli/pkg/errors"
)

// DebugEnv forces debug level logging when set to a non-empty value.
const DebugEnv = "AUTOMLCLI_DEBUG"

var levelVar = new(slog.LevelVar)

// SetupLogger configures the process-wide slog default.
// format is "json" or "text".
func SetupLogger(loglevel, format string, w io.Writer) error {
	level, err := ToLogLevel(loglevel)
	if err != nil {
		return err
	}
	if os.Getenv(DebugEnv) != "" {
		level = slog.LevelDebug
	}
	levelVar.Set(level)

	ops := slog.HandlerOptions{
		AddSource: level <= slog.LevelDebug,
		Level:     levelVar,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", "json":
		ops.ReplaceAttr = func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				attr = slog.Attr{Key: "severity", Value: attr.Value}
			case slog.MessageKey:
				attr = slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		}
		handler = slog.NewJSONHandler(w, &ops)
	case "text":
		handler = slog.NewTextHandler(w, &ops)
	default:
		return automlerrors.NewConfigurationErrorf("log.format", "unknown log format %q (available: json, text)", format)
	}

	slog.SetDefault(slog.New(WrapByErrFmtHandler(handler)))
	return nil
}

// ToLogLevel parses a level name.
func ToLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "info", "":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, automlerrors.NewUnknownNameError("log.level", "log level", level,
			[]string{"debug", "info", "warn", "error"})
	}
}

// SetupWarnings routes pkg/errors warnings to a zerolog console writer.
// Passing nil restores the default slog-based handler.
func SetupWarnings(w io.Writer) {
	if w == nil {
		automlerrors.SetZerologWarnFunc(nil)
		return
	}
	zl := zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()

	automlerrors.SetZerologWarnFunc(func(warning error) {
		ev := zl.Warn()
		if m, ok := warning.(zerolog.LogObjectMarshaler); ok {
			ev = ev.EmbedObject(m)
		}
		ev.Msg(warning.Error())
	})
}

const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr is a wrapper to pass err to slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

// slogLogger adapts *slog.Logger to Logger.
type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger wraps l. A nil l uses the current slog default.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{l: l}
}

func (s *slogLogger) Debug(msg string, fields ...any) { s.l.Debug(msg, fields...) }
func (s *slogLogger) Info(msg string, fields ...any)  { s.l.Info(msg, fields...) }
func (s *slogLogger) Warn(msg string, fields ...any)  { s.l.Warn(msg, fields...) }

func (s *slogLogger) Error(msg string, fields ...any) {
	if len(fields) > 0 {
		if err, ok := fields[0].(error); ok {
			rest := append([]any{ErrAttr(err)}, fields[1:]...)
			s.l.Error(msg, rest...)
			return
		}
	}
	s.l.Error(msg, fields...)
}

func (s *slogLogger) With(fields ...any) Logger {
	return &slogLogger{l: s.l.With(fields...)}
}

func (s *slogLogger) Enabled(ctx context.Context, level Level) bool {
	return s.l.Enabled(ctx, slog.Level(level))
}

type defaultProvider struct{}

func (defaultProvider) GetLogger() Logger { return NewSlogLogger(nil) }

func (defaultProvider) GetLoggerWithName(name string) Logger {
	return NewSlogLogger(nil).With(ComponentKey, name)
}

func (defaultProvider) SetLevel(level Level) { levelVar.Set(slog.Level(level)) }

var provider LoggerProvider = defaultProvider{}

// SetProvider replaces the global provider. nil restores the slog provider.
func SetProvider(p LoggerProvider) {
	if p == nil {
		p = defaultProvider{}
	}
	provider = p
}

// GetLogger returns the default logger.
func GetLogger() Logger {
	return provider.GetLogger()
}

// GetLoggerWithName returns a logger tagged with the component name.
func GetLoggerWithName(name string) Logger {
	return provider.GetLoggerWithName(name)
}

// ErrorType returns the type name of the innermost cause of err.
func ErrorType(err error) string {
	if err == nil {
		return ""
	}
	cause := errors.UnwrapAll(err)
	t := strings.TrimPrefix(typeName(cause), "*")
	if i := strings.LastIndex(t, "."); i >= 0 {
		t = t[i+1:]
	}
	return t
}
