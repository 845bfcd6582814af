package logging

import (
	"io"
	"log/slog"
	"os"

	"gorm.io/gorm"
)

// Setup initializes the global slog logger with JSON output to stdout.
func Setup() {
	SetupWriter(os.Stdout, slog.LevelInfo)
}

// SetupWriter installs a JSON logger on w that drops records below level.
func SetupWriter(w io.Writer, level slog.Level) slog.Handler {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
	return handler
}

// AttachPostgres keeps base and adds the Postgres ERROR sink as the default logger.
// The returned handler must be stopped on shutdown to flush its buffer.
func AttachPostgres(base slog.Handler, db *gorm.DB) *PGHandler {
	pg := NewPGHandler(db)
	slog.SetDefault(slog.New(NewMultiHandler(base, pg)))
	return pg
}
