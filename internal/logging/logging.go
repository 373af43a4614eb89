package logging

import (
	"log/slog"
	"os"
)

// Init installs the process-wide slog logger. Output goes to stderr so JSON
// reports and watch events on stdout stay machine readable.
func Init(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
