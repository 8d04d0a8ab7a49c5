package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// Global logger instance
	Logger zerolog.Logger
)

// Initialize sets up the global console logger for the service.
func Initialize(logLevel string) {
	InitializeWithWriter(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "2006-01-02 15:04:05",
	}, logLevel)
}

// InitializeWithWriter installs a logger writing to w, used by scripts and tests that
// want plain JSON lines or a buffer instead of the console.
func InitializeWithWriter(w io.Writer, logLevel string) {
	zerolog.TimeFieldFormat = time.RFC3339

	Logger = zerolog.New(w).
		With().
		Timestamp().
		Caller().
		Logger()

	zerolog.SetGlobalLevel(parseLevel(logLevel))

	// Replace standard log with zerolog
	log.Logger = Logger
}

func parseLevel(logLevel string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get returns the global logger instance
func Get() *zerolog.Logger {
	return &Logger
}

// GetForComponent returns a logger with a component field for better filtering
func GetForComponent(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}
