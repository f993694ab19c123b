package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is a slog.Logger bound to a component. The component is attached
// once, so records carry a single component attribute.
type Logger struct {
	*slog.Logger
	base      *slog.Logger
	level     *slog.LevelVar
	component string
}

// Config holds logger configuration
type Config struct {
	Level     slog.Level
	Component string
	Output    io.Writer // stderr when nil, keeping stdout free for reports
	// Handler overrides Output and Level when set.
	Handler   slog.Handler
}

// NewText creates a text logger writing to w at the given level.
func NewText(w io.Writer, level slog.Level, component string) *Logger {
	return New(Config{Level: level, Component: component, Output: w})
}

func New(config Config) *Logger {
	level := new(slog.LevelVar)
	level.Set(config.Level)

	handler := config.Handler
	if handler == nil {
		out := config.Output
		if out == nil {
			out = os.Stderr
		}
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	}

	base := slog.New(handler)
	return &Logger{
		Logger:    bind(base, config.Component),
		base:      base,
		level:     level,
		component: config.Component,
	}
}

func bind(base *slog.Logger, component string) *slog.Logger {
	if component == "" {
		return base
	}
	return base.With(FieldComponent, component)
}

// With returns a logger carrying the extra attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger:    l.Logger.With(args...),
		base:      l.base.With(args...),
		level:     l.level,
		component: l.component,
	}
}

// WithComponent rebinds the logger to another component, replacing the
// current one.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger:    bind(l.base, component),
		base:      l.base,
		level:     l.level,
		component: component,
	}
}

// ForMonth returns a logger tagged with a statistics month.
func (l *Logger) ForMonth(year, month int) *Logger {
	return l.With(FieldYear, year, FieldMonth, month)
}

// SetLevel changes the minimum level of this logger and every logger derived
// from it. Loggers built with a custom Handler are not affected.
func (l *Logger) SetLevel(level slog.Level) {
	l.level.Set(level)
}

func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// SetDefault installs the logger as the slog default.
func SetDefault(logger *Logger) {
	slog.SetDefault(logger.Logger)
}

func (l *Logger) Component() string {
	return l.component
}
