package relay

import (
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ShutdownCoordinator closes every registered connection once, on process
// shutdown.
type ShutdownCoordinator struct {
	registry *Registry
	logger   *slog.Logger
	once     sync.Once
}

// NewShutdownCoordinator creates a coordinator for registry.
func NewShutdownCoordinator(registry *Registry, logger *slog.Logger) *ShutdownCoordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ShutdownCoordinator{registry: registry, logger: logger}
}

// Shutdown closes all registered connections concurrently, waits for every
// close attempt to settle and clears the registry. It returns the first close
// failure. Calls after the first are no-ops.
func (c *ShutdownCoordinator) Shutdown() error {
	var err error
	c.once.Do(func() {
		err = c.shutdown()
	})
	return err
}

func (c *ShutdownCoordinator) shutdown() error {
	conns := c.registry.Snapshot()
	c.logger.Info("Shutting down server, closing all WebSocket connections", "clients", len(conns))

	var g errgroup.Group
	for _, conn := range conns {
		g.Go(func() error {
			if err := conn.CloseWith(CloseGoingAway); err != nil && !IsExpectedCloseError(err) {
				c.logger.Warn("Error closing connection during shutdown", "conn_id", conn.String(), "error", err)
				return err
			}
			return nil
		})
	}
	err := g.Wait()

	c.registry.Clear()
	c.logger.Info("All WebSocket connections closed", "clients", len(conns))
	return err
}
