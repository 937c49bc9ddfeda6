package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// ZerologAdapter wraps a zerolog.Logger to implement the Logger interface.
// Useful for applications that already standardize on zerolog for their
// service logs.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates a Logger from an existing zerolog.Logger.
func NewZerologAdapter(logger zerolog.Logger) Logger {
	return &ZerologAdapter{logger: logger}
}

// NewZerologLogger builds a zerolog-backed Logger writing to w. When console
// is true the output is human-readable; otherwise JSON. A nil writer defaults
// to stderr.
func NewZerologLogger(level Level, console bool, w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w}
	}
	l := zerolog.New(w).Level(zerologLevel(level)).With().Timestamp().Logger()
	return NewZerologAdapter(l)
}

func zerologLevel(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug logs a debug message.
func (z *ZerologAdapter) Debug(msg string, args ...any) {
	z.emit(z.logger.Debug(), msg, args)
}

// Info logs an informational message.
func (z *ZerologAdapter) Info(msg string, args ...any) {
	z.emit(z.logger.Info(), msg, args)
}

// Warn logs a warning message.
func (z *ZerologAdapter) Warn(msg string, args ...any) {
	z.emit(z.logger.Warn(), msg, args)
}

// Error logs an error message.
func (z *ZerologAdapter) Error(msg string, args ...any) {
	z.emit(z.logger.Error(), msg, args)
}

func (z *ZerologAdapter) emit(ev *zerolog.Event, msg string, args []any) {
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, args[i+1])
	}
	ev.Msg(msg)
}
