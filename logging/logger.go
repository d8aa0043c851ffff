package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// GlobalLogger describes a Logger that is disabled by default and is instantiated by the top-level
// command once logging options are known. Each module/package should create its own sub-logger.
// This allows unique logging instances depending on the use case.
var GlobalLogger = NewLogger(zerolog.Disabled)

// Logger describes a custom logging object that can log events to any arbitrary channel in either
// structured or unstructured format, and handles console output separately so that it stays
// human-readable.
type Logger struct {
	// level describes the log level
	level zerolog.Level

	// multiLogger describes a logger that will be used to output logs to any arbitrary channel(s).
	multiLogger zerolog.Logger

	// consoleLogger describes a logger that will be used to output unstructured output to console.
	consoleLogger zerolog.Logger

	// writers describes a list of io.Writer objects where log output will go.
	writers []io.Writer
}

// LogFormat describes what format to log in
type LogFormat string

const (
	// STRUCTURED describes that logging should be done in structured JSON format
	STRUCTURED LogFormat = "structured"
	// UNSTRUCTURED describes that logging should be done in an unstructured format
	UNSTRUCTURED LogFormat = "unstructured"
)

// NewLogger will create a new Logger object with a specific log level. Console output is disabled
// until a console writer is enabled via EnableConsole.
func NewLogger(level zerolog.Level, writers ...io.Writer) *Logger {
	// The two base loggers are effectively loggers that are disabled. We create instances of them
	// so that we do not get nil pointer dereferences down the line.
	baseMultiLogger := zerolog.New(os.Stdout).Level(zerolog.Disabled)
	baseConsoleLogger := zerolog.New(os.Stdout).Level(zerolog.Disabled)

	// If we are provided a list of writers, update the multi logger
	if len(writers) > 0 {
		baseMultiLogger = zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp().Logger()
	}

	return &Logger{
		level:         level,
		multiLogger:   baseMultiLogger,
		consoleLogger: baseConsoleLogger,
		writers:       writers,
	}
}

// EnableConsole enables unstructured console output on stdout at the logger's current level.
func (l *Logger) EnableConsole() {
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout}
	l.consoleLogger = zerolog.New(consoleWriter).Level(l.level)
}

// NewSubLogger will create a new Logger with unique context in the form of a key-value pair. The
// expected use of this function is for each package to have its own unique logger so that parsing
// of logs is "grep-able" based on some key.
func (l *Logger) NewSubLogger(key string, value string) *Logger {
	subMultiLogger := l.multiLogger.With().Str(key, value).Logger()
	subConsoleLogger := l.consoleLogger.With().Str(key, value).Logger()
	return &Logger{
		level:         l.level,
		multiLogger:   subMultiLogger,
		consoleLogger: subConsoleLogger,
		writers:       l.writers,
	}
}

// AddWriter will add a writer to the list of channels where log output will be sent. If the writer
// is already tracked, this is a no-op.
func (l *Logger) AddWriter(writer io.Writer, format LogFormat) {
	// Check to see if the writer is already in the array of writers
	for _, w := range l.writers {
		if writer == w {
			return
		}
	}

	// If we want unstructured output, wrap the base writer object into a console writer so that we
	// get unstructured output with no ANSI coloring
	if format == UNSTRUCTURED {
		writer = zerolog.ConsoleWriter{Out: writer, NoColor: true}
	}

	// Add it to the list of writers and update the multi logger
	l.writers = append(l.writers, writer)
	l.multiLogger = zerolog.New(zerolog.MultiLevelWriter(l.writers...)).Level(l.level).With().Timestamp().Logger()
}

// Level will get the log level of the Logger
func (l *Logger) Level() zerolog.Level {
	return l.level
}

// SetLevel will update the log level of the Logger
func (l *Logger) SetLevel(level zerolog.Level) {
	l.level = level
	l.multiLogger = l.multiLogger.Level(level)
	l.consoleLogger = l.consoleLogger.Level(level)
}

// Trace is a wrapper function that will log a trace event
func (l *Logger) Trace(msg string, err error) {
	chainError(l.consoleLogger.Trace(), msg, err)
	chainError(l.multiLogger.Trace(), msg, err)
}

// Debug is a wrapper function that will log a debug event
func (l *Logger) Debug(msg string, err error) {
	chainError(l.consoleLogger.Debug(), msg, err)
	chainError(l.multiLogger.Debug(), msg, err)
}

// Info is a wrapper function that will log an info event
func (l *Logger) Info(msg string) {
	l.consoleLogger.Info().Msg(msg)
	l.multiLogger.Info().Msg(msg)
}

// Warn is a wrapper function that will log a warning event
func (l *Logger) Warn(msg string) {
	l.consoleLogger.Warn().Msg(msg)
	l.multiLogger.Warn().Msg(msg)
}

// Error is a wrapper function that will log an error event.
func (l *Logger) Error(msg string, err error) {
	chainError(l.consoleLogger.Error(), msg, err)
	chainError(l.multiLogger.Error(), msg, err)
}

// Panic is a wrapper function that will log a panic event
func (l *Logger) Panic(msg string, err error) {
	chainError(l.consoleLogger.Panic(), msg, err)
	chainError(l.multiLogger.Panic(), msg, err)
}

// chainError attaches the provided error, if any, to the log event before sending it off with the
// given message.
func chainError(event *zerolog.Event, msg string, err error) {
	if err != nil {
		event = event.Err(err)
	}
	event.Msg(msg)
}
