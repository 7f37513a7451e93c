package main

import (
	"log/slog"
	"os"

	"poscli/internal/app"
)

func main() {
	application, err := app.NewApplication()
	if err != nil {
		slog.Error("failed to initialize daemon", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("daemon exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
