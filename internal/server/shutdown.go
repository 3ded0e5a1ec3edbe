package server

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

const shutdownGrace = 5 * time.Second

// GracefulShutdown blocks until SIGINT or SIGTERM, drains in-flight requests
// and then signals done. A second Ctrl+C forces an immediate exit.
func GracefulShutdown(srv *http.Server, logger *zap.Logger, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info("Shutdown signal received, draining requests", zap.Duration("grace", shutdownGrace))

	stop() // restore default handling so a repeat signal kills the process

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown with requests still in flight", zap.Error(err))
	}

	logger.Info("HTTP server stopped")
	done <- true
}
