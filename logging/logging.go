// Package logging configures structured JSON logging for the process.
package logging

import (
	"log"
	"log/slog"
	"os"
)

// Setup installs a JSON slog handler as the default logger and bridges the
// standard library logger through it, so dependency log output stays
// structured too.
func Setup(service string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{})
	base := slog.New(handler).With(slog.String("service", service))
	slog.SetDefault(base)

	stdBridge := slog.NewLogLogger(handler, slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)

	return base
}
