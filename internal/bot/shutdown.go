package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CloseFunc releases one resource within ctx.
type CloseFunc func(ctx context.Context) error

// ShutdownHandler closes registered resources in reverse registration
// order, so a consumer is closed before what it writes to.
type ShutdownHandler struct {
	logger   *zap.Logger
	timeout  time.Duration
	mu       sync.Mutex
	services []namedService
	done     bool
}

type namedService struct {
	name  string
	close CloseFunc
}

// NewShutdownHandler creates a handler; timeout bounds the whole shutdown.
func NewShutdownHandler(logger *zap.Logger, timeout time.Duration) *ShutdownHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownHandler{logger: logger.Named("shutdown"), timeout: timeout}
}

// Add registers a resource.
func (sh *ShutdownHandler) Add(name string, fn CloseFunc) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.services = append(sh.services, namedService{name: name, close: fn})
	sh.logger.Debug("Registered service for shutdown", zap.String("service", name))
}

// AddCloser registers a resource with a plain Close method.
func (sh *ShutdownHandler) AddCloser(name string, closer interface{ Close() error }) {
	sh.Add(name, func(context.Context) error { return closer.Close() })
}

// Shutdown closes everything once. A resource that does not finish before
// the deadline is reported and skipped.
func (sh *ShutdownHandler) Shutdown(ctx context.Context) error {
	sh.mu.Lock()
	if sh.done {
		sh.mu.Unlock()
		return nil
	}
	sh.done = true
	services := append([]namedService(nil), sh.services...)
	sh.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, sh.timeout)
	defer cancel()

	sh.logger.Info("Starting graceful shutdown", zap.Int("services", len(services)))

	var errs []error
	for i := len(services) - 1; i >= 0; i-- {
		svc := services[i]
		done := make(chan error, 1)
		go func() { done <- svc.close(ctx) }()

		select {
		case err := <-done:
			if err != nil {
				sh.logger.Error("Failed to shutdown service", zap.String("service", svc.name), zap.Error(err))
				errs = append(errs, fmt.Errorf("%s: %w", svc.name, err))
				continue
			}
			sh.logger.Debug("Service shutdown complete", zap.String("service", svc.name))
		case <-ctx.Done():
			sh.logger.Error("Shutdown timeout for service", zap.String("service", svc.name))
			errs = append(errs, fmt.Errorf("%s: shutdown timeout", svc.name))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	sh.logger.Info("Graceful shutdown completed")
	return nil
}
