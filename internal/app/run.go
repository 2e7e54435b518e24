package app

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"trade-coach/internal/common/logging"
	"trade-coach/internal/config"
	"trade-coach/internal/server"
)

// Run is the process entry point: load config, build the app, serve until
// a signal arrives, then drain.
func Run() error {
	_ = godotenv.Load()

	runtime.GOMAXPROCS(runtime.NumCPU())

	cfg := config.Load()

	logging.InitGlobalLogger(cfg.LogLevel)
	defer logging.MustSync()

	if err := cfg.Validate(); err != nil {
		logging.Error("Configuration validation failed", err)
		return err
	}

	application, err := New(cfg)
	if err != nil {
		logging.Error("Failed to initialize application", err)
		return err
	}

	if err := application.Start(); err != nil {
		logging.Error("Failed to start job consumer", err)
		return err
	}

	srv := server.New(application.Handler, cfg.Port)
	serverErr := srv.Start()
	logging.Info("Server started", logging.Field{Key: "port", Value: cfg.Port})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		logging.Error("Server failed", err)
		return err
	case sig := <-quit:
		logging.Info("Shutting down", logging.Field{Key: "signal", Value: sig.String()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", err)
	}
	if err := application.Shutdown(ctx); err != nil {
		logging.Warn("Error during app shutdown", logging.Err(err))
	}

	logging.Info("Server exited")
	return nil
}
