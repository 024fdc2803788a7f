package log

import (
	"github.com/rs/zerolog"
)

// G is the process wide logger. Components receive their own *Logger and
// only fall back to G when none was injected.
var G *Logger

func init() {
	G = New()
}

func SetGlobalLogger(logger *Logger) {
	G = logger
}

// SetGlobalLevel changes the level of G in place; used on config reload.
func SetGlobalLevel(level zerolog.Level) {
	G.Logger = G.Logger.Level(level)
}

// OrGlobal returns l, or G when l is nil.
func OrGlobal(l *Logger) *Logger {
	if l == nil {
		return G
	}
	return l
}

func Debug() *zerolog.Event {
	return G.Debug()
}

func Info() *zerolog.Event {
	return G.Info()
}

func Warn() *zerolog.Event {
	return G.Warn()
}

// Error returns an error event with the stack attached.
func Error() *zerolog.Event {
	return G.Error().Stack()
}

func Fatal() *zerolog.Event {
	return G.Fatal().Stack()
}

func Infof(format string, args ...any) {
	G.Info().Msgf(format, args...)
}

func Warnf(format string, args ...any) {
	G.Warn().Msgf(format, args...)
}

func Errorf(format string, args ...any) {
	G.Error().Stack().Msgf(format, args...)
}

// SetProcessLevel filters every logger of the process, component children
// included, at level s. Loggers built at trace level follow it both ways.
func SetProcessLevel(s string) error {
	level, err := ParseLevel(s)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)
	return nil
}
