package client

import (
	"log/slog"
	"os"
)

var logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	logger = l
}
