// Package logger holds the process-wide structured logger.
//
// The logger is silent until Init is called, so library users of the
// situation packages see no output unless the CLI configures it.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// Log is the global logger instance
	Log = zerolog.Nop()

	// fileWriter is the file output for logging (with rotation)
	fileWriter *lumberjack.Logger
)

// Verbosity levels accepted by Init.
const (
	VerbosityQuiet = "quiet"
	VerbosityInfo  = "info"
	VerbosityDebug = "debug"
)

// FileConfig configures the optional rotating log file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
}

// ParseVerbosity maps a verbosity name to a zerolog level.
func ParseVerbosity(verbosity string) (zerolog.Level, error) {
	switch strings.ToLower(verbosity) {
	case VerbosityQuiet:
		return zerolog.Disabled, nil
	case "", VerbosityInfo:
		return zerolog.InfoLevel, nil
	case VerbosityDebug:
		return zerolog.DebugLevel, nil
	default:
		return zerolog.NoLevel, fmt.Errorf("unknown verbosity %q: expected quiet, info or debug", verbosity)
	}
}

// Init configures the global logger to write human-readable output to
// console at the given verbosity, and JSON to a rotating file when file.Path
// is set.
func Init(verbosity string, console io.Writer, file FileConfig) error {
	level, err := ParseVerbosity(verbosity)
	if err != nil {
		return err
	}

	var out io.Writer = zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}

	if file.Path != "" {
		if err := os.MkdirAll(filepath.Dir(file.Path), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		fileWriter = &lumberjack.Logger{
			Filename:   file.Path,
			MaxSize:    orDefault(file.MaxSizeMB, 10),
			MaxAge:     orDefault(file.MaxAgeDays, 7),
			MaxBackups: orDefault(file.MaxBackups, 3),
			LocalTime:  true,
		}
		out = io.MultiWriter(out, fileWriter)
	}

	Log = zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()

	return nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// CloseFileWriter closes the file writer if it exists.
// Call this on program shutdown for clean log file closure.
func CloseFileWriter() error {
	if fileWriter != nil {
		err := fileWriter.Close()
		fileWriter = nil
		return err
	}
	return nil
}

// Reset restores the silent default logger.
func Reset() {
	_ = CloseFileWriter()
	Log = zerolog.Nop()
}

// Debug logs a debug message
func Debug() *zerolog.Event {
	return Log.Debug()
}

// Info logs an info message
func Info() *zerolog.Event {
	return Log.Info()
}

// Warn logs a warning message
func Warn() *zerolog.Event {
	return Log.Warn()
}

// Error logs an error message
func Error() *zerolog.Event {
	return Log.Error()
}
