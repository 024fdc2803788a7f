package log

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"

	"github.com/kochabx/portal/core/tag"
	"github.com/kochabx/portal/log/desensitize"
	"github.com/kochabx/portal/log/writer"
)

// Logger wraps zerolog.Logger with the desensitize hook and the file
// writer that needs closing.
type Logger struct {
	zerolog.Logger
	desensitizeHook *desensitize.Hook
	writer          io.Writer
	closer          io.Closer
}

func (l *Logger) GetDesensitizeHook() *desensitize.Hook {
	return l.desensitizeHook
}

// Close releases the underlying file writer, if any.
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// Component returns a child logger tagged with the component name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{
		Logger:          l.Logger.With().Str("component", name).Logger(),
		desensitizeHook: l.desensitizeHook,
		writer:          l.writer,
	}
}

func init() {
	zerolog.TimeFieldFormat = time.DateTime
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
}

func newLogger(w io.Writer, opts ...Option) *Logger {
	logger := &Logger{writer: w}

	// the hook option has to be known before the writer is wrapped
	for _, opt := range opts {
		opt(logger)
	}
	if logger.desensitizeHook != nil {
		w = desensitize.NewWriter(w, logger.desensitizeHook)
	}

	logger.Logger = zerolog.New(w).With().Timestamp().Logger()
	for _, opt := range opts {
		opt(logger)
	}

	return logger
}

// New creates a console logger.
func New(opts ...Option) *Logger {
	return newLogger(writer.Console(), opts...)
}

// NewJSON creates a logger writing JSON lines to w.
func NewJSON(w io.Writer, opts ...Option) *Logger {
	return newLogger(w, opts...)
}

// NewFile creates a logger writing to a rotating file.
func NewFile(c FileConfig, opts ...Option) (*Logger, error) {
	fw, err := fileWriter(&c)
	if err != nil {
		return nil, err
	}

	logger := newLogger(fw, opts...)
	if closer, ok := fw.(io.Closer); ok {
		logger.closer = closer
	}
	return logger, nil
}

// NewMulti writes to a rotating file and to the console at the same time.
func NewMulti(c FileConfig, opts ...Option) (*Logger, error) {
	fw, err := fileWriter(&c)
	if err != nil {
		return nil, err
	}

	logger := newLogger(zerolog.MultiLevelWriter(fw, writer.Console()), opts...)
	if closer, ok := fw.(io.Closer); ok {
		logger.closer = closer
	}
	return logger, nil
}

// NewFromConfig builds the service logger. Secrets are always masked.
func NewFromConfig(c Config) (*Logger, error) {
	if err := tag.ApplyDefaults(&c); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}

	hook := desensitize.NewHook()
	hook.AddBuiltin(desensitize.BuiltinRules()...)
	opts := []Option{WithDesensitize(hook), WithLevel(level)}

	if c.File != nil {
		if c.Format == "json" {
			return NewFile(*c.File, opts...)
		}
		return NewMulti(*c.File, opts...)
	}
	if c.Format == "json" {
		return NewJSON(os.Stdout, opts...), nil
	}
	return New(opts...), nil
}

// ParseLevel accepts the zerolog level names; an empty string means info.
func ParseLevel(s string) (zerolog.Level, error) {
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

func fileWriter(c *FileConfig) (io.Writer, error) {
	if err := tag.ApplyDefaults(c); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	w, err := writer.File(c.toWriterConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create file writer: %w", err)
	}
	return w, nil
}
