// Package app provides application lifecycle management for a replication node.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/stacklok/toolhive-replication-server/internal/config"
)

// ReplicationApp runs the replication API and the background loops of a node
type ReplicationApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
	stopOnce   sync.Once
	stopErr    error
}

// Start runs the coordinator in the background and serves HTTP.
// It blocks until the HTTP server stops or fails.
func (app *ReplicationApp) Start() error {
	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	return app.Serve(listener)
}

// Serve is Start on an existing listener
func (app *ReplicationApp) Serve(listener net.Listener) error {
	go func() {
		if err := app.components.Coordinator.Start(app.ctx); err != nil {
			slog.Error("Replication coordinator failed", "error", err)
		}
	}()

	slog.Info("Server listening", "address", listener.Addr().String(),
		"node", app.config.Node.Name, "role", app.config.Node.Role)
	if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop stops the coordinator, then shuts the HTTP server down within timeout.
// Later calls return the result of the first.
func (app *ReplicationApp) Stop(timeout time.Duration) error {
	app.stopOnce.Do(func() {
		app.stopErr = app.stop(timeout)
	})
	return app.stopErr
}

func (app *ReplicationApp) stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	if err := app.components.Coordinator.Stop(); err != nil {
		slog.Error("Failed to stop replication coordinator", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	shutdownErr := app.httpServer.Shutdown(shutdownCtx)

	// Storage is released after in-flight requests drained
	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	if shutdownErr != nil {
		return fmt.Errorf("server forced to shutdown: %w", shutdownErr)
	}
	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *ReplicationApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server
func (app *ReplicationApp) GetHTTPServer() *http.Server {
	return app.httpServer
}
