package h2h

import (
	"log/slog"
	"os"
)

var logLevel = new(slog.LevelVar)

// ConfigureLogging sets up the global default logger with a TextHandler,
// reading the level from the H2H_LOG_LEVEL environment variable (DEBUG,
// WARN, ERROR; defaults to INFO). Applications embedding this module should
// call this once at startup, before beginning any process or dht.Client
// operations, if they want the module's default logging configuration.
func ConfigureLogging() {
	logLevel.Set(slog.LevelInfo)
	switch os.Getenv("H2H_LOG_LEVEL") {
	case "DEBUG":
		logLevel.Set(slog.LevelDebug)
	case "WARN":
		logLevel.Set(slog.LevelWarn)
	case "ERROR":
		logLevel.Set(slog.LevelError)
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

// SetLogLevel adjusts the level of the logger configured by ConfigureLogging.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}
