package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"contacts/internal/app"
	"contacts/internal/config"
	"contacts/internal/lib/logger/sl"
)

const (
	envDev  = "dev"
	envProd = "prod"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Debug("starting app", slog.Any("config", cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	//Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	application := app.New(ctx, log, cfg, os.Stdin, os.Stdout, os.Stderr)

	done := make(chan error, 1)
	go func() {
		done <- application.Run(ctx)
	}()

	exitCode := 0
	select {
	case err := <-done:
		if err != nil {
			log.Error("console stopped", sl.Err(err))
			exitCode = 1
		}
	case sign := <-stop:
		log.Info("stopping application", slog.String("signal", sign.String()))
		cancel()
	}

	if err := application.Stop(); err != nil {
		exitCode = 1
	}
	log.Debug("application stopped")

	os.Exit(exitCode)
}

// Logs go to stderr so they never mix with the menu on stdout.
func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envDev:
		log = slog.New(
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default: // local
		log = slog.New(
			slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}),
		)
	}
	return log
}
