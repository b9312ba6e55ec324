// Package logger builds the process-wide slog logger.
//
// Development logs are rendered by tint on stderr; production logs are JSON.
// Either may additionally be mirrored as JSON into a size-rotated file.
package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ekisa-team/summa/internal/env"
)

// LevelTrace is more verbose than slog.LevelDebug.
const LevelTrace = slog.Level(-8)

const (
	defaultLogFile    = "logs/summa.log"
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 3
	defaultMaxAgeDays = 28
)

type options struct {
	level     slog.Leveler
	writer    io.Writer
	logFile   string
	logToFile bool
}

// Option configures New.
type Option func(*options)

// WithLevel sets the minimum level for every handler.
func WithLevel(level slog.Leveler) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithWriter replaces stderr as the console destination.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		o.writer = w
	}
}

// WithLogToFile enables the rotating JSON log file.
func WithLogToFile(enabled bool) Option {
	return func(o *options) {
		o.logToFile = enabled
	}
}

// WithLogFile sets the rotating log file path.
func WithLogFile(path string) Option {
	return func(o *options) {
		if path != "" {
			o.logFile = path
		}
	}
}

// New creates a logger for the given environment.
func New(environment env.Environment, opts ...Option) *slog.Logger {
	o := options{
		level:   slog.LevelInfo,
		writer:  os.Stderr,
		logFile: defaultLogFile,
	}
	for _, opt := range opts {
		opt(&o)
	}

	handlers := []slog.Handler{consoleHandler(environment, o)}

	if o.logToFile {
		rotator := &lumberjack.Logger{
			Filename:   o.logFile,
			MaxSize:    defaultMaxSizeMB,
			MaxBackups: defaultMaxBackups,
			MaxAge:     defaultMaxAgeDays,
			Compress:   true,
		}
		handlers = append(handlers, slog.NewJSONHandler(rotator, &slog.HandlerOptions{
			Level:       o.level,
			ReplaceAttr: replaceLevel,
		}))
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0])
	}

	return slog.New(&fanout{handlers: handlers})
}

// LevelFromVerbosity maps a -v count to a level: 0 warn, 1 info, 2 debug, 3+ trace.
func LevelFromVerbosity(verbosity int) slog.Level {
	switch {
	case verbosity <= 0:
		return slog.LevelWarn
	case verbosity == 1:
		return slog.LevelInfo
	case verbosity == 2:
		return slog.LevelDebug
	default:
		return LevelTrace
	}
}

func consoleHandler(environment env.Environment, o options) slog.Handler {
	if environment.IsProduction() {
		return slog.NewJSONHandler(o.writer, &slog.HandlerOptions{
			Level:       o.level,
			ReplaceAttr: replaceLevel,
		})
	}

	return tint.NewHandler(o.writer, &tint.Options{
		Level:      o.level,
		TimeFormat: time.Kitchen,
		NoColor:    !isTerminal(o.writer),
	})
}

// replaceLevel names LevelTrace in structured output.
func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}

	if level, ok := a.Value.Any().(slog.Level); ok && level <= LevelTrace {
		a.Value = slog.StringValue("TRACE")
	}

	return a
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return term.IsTerminal(int(f.Fd()))
}
