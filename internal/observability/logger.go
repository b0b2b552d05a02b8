package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/couchcryptid/ceilometer-etl/internal/config"
)

// LogOptions selects the log handler.
type LogOptions struct {
	Level  string // debug, info, warn, error
	Format string // json or text
	// File, when set, receives a copy of every entry through a rotating writer.
	File      string
	MaxSizeMB int
	// Output defaults to stderr.
	Output io.Writer
}

// LogOptionsFromConfig maps service configuration to logger options.
func LogOptionsFromConfig(cfg *config.Config) LogOptions {
	return LogOptions{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		File:      cfg.LogFile,
		MaxSizeMB: cfg.LogMaxSizeMB,
	}
}

// NewLogger builds a slog logger. The returned close function releases the
// log file, if any.
func NewLogger(opts LogOptions) (*slog.Logger, func() error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
		level = slog.LevelInfo
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	closeFn := func() error { return nil }
	if opts.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		}
		out = io.MultiWriter(out, rotating)
		closeFn = rotating.Close
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}
	return slog.New(handler), closeFn
}
