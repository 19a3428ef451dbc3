// Package logging builds the run logger: a human-readable console sink and an
// optional line-delimited JSON file sink, both filtered by the same level.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// Prefix is printed in front of every console record.
const Prefix = "bankproc"

// Options configures New.
type Options struct {
	// Verbosity is the number of -v flags given.
	Verbosity int
	// Quiet raises the threshold to errors.
	Quiet bool
	// Console receives human-readable records. Nil means os.Stderr.
	Console io.Writer
	// File, when set, receives one JSON record per line.
	File string
}

// Logger fans every record out to its sinks.
type Logger struct {
	sinks  []*log.Logger
	level  log.Level
	closer io.Closer
}

// verbosityLevels is indexed by the -v count.
var verbosityLevels = []log.Level{log.WarnLevel, log.InfoLevel, log.DebugLevel}

// LevelFor maps the -v count and --quiet to a threshold. Warn is the default
// and each -v lowers it one step, clamping at Debug.
func LevelFor(verbosity int, quiet bool) log.Level {
	if quiet {
		return log.ErrorLevel
	}
	return verbosityLevels[min(max(verbosity, 0), len(verbosityLevels)-1)]
}

// New opens the sinks described by opts. Close releases the file sink.
func New(opts Options) (*Logger, error) {
	level := LevelFor(opts.Verbosity, opts.Quiet)
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	l := &Logger{level: level}
	l.sinks = append(l.sinks, log.NewWithOptions(console, log.Options{
		Prefix: Prefix,
		Level:  level,
	}))

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("cannot create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("cannot open log file %q: %w", opts.File, err)
		}
		l.closer = f
		l.sinks = append(l.sinks, log.NewWithOptions(f, log.Options{
			Level:           level,
			ReportTimestamp: true,
			Formatter:       log.JSONFormatter,
		}))
	}
	return l, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{level: log.FatalLevel}
}

// Level is the shared threshold of all sinks.
func (l *Logger) Level() log.Level {
	if l == nil {
		return log.FatalLevel
	}
	return l.level
}

// With returns a logger that adds keyvals to every record.
func (l *Logger) With(keyvals ...any) *Logger {
	if l == nil {
		return nil
	}
	child := &Logger{level: l.level}
	for _, s := range l.sinks {
		child.sinks = append(child.sinks, s.With(keyvals...))
	}
	return child
}

func (l *Logger) Debug(msg string, keyvals ...any) { l.emit(log.DebugLevel, msg, keyvals) }
func (l *Logger) Info(msg string, keyvals ...any)  { l.emit(log.InfoLevel, msg, keyvals) }
func (l *Logger) Warn(msg string, keyvals ...any)  { l.emit(log.WarnLevel, msg, keyvals) }
func (l *Logger) Error(msg string, keyvals ...any) { l.emit(log.ErrorLevel, msg, keyvals) }

func (l *Logger) emit(level log.Level, msg string, keyvals []any) {
	if l == nil {
		return
	}
	for _, s := range l.sinks {
		s.Log(level, msg, keyvals...)
	}
}

// Close flushes and closes the file sink, if any.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	err := l.closer.Close()
	l.closer = nil
	if errors.Is(err, os.ErrClosed) {
		return nil
	}
	return err
}
