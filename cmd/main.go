package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voice-intake-service/internal/app"
	"voice-intake-service/internal/config"
)

func main() {
	cfg := config.Load()
	application := app.New(cfg)

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err := application.Start(startCtx)
	cancel()
	if err != nil {
		application.Logger.Error().Err(err).Msg("Failed to start voice intake service")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		application.Shutdown(shutdownCtx)
		cancel()
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	application.Shutdown(shutdownCtx)
}
