package main

import (
	"log/slog"
	"os"

	"github.com/kstaniek/go-airq-node/internal/logging"
)

func setupLogger(format, level string) *slog.Logger {
	l := logging.New(format, logging.ParseLevel(level), os.Stderr).With("app", "airq-node")
	logging.Set(l)
	return l
}
