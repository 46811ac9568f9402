package bootstrap

import (
	"context"
	"time"
)

const (
	shutdownTimeout = 30 * time.Second
	httpTimeout     = 5 * time.Second
)

// Run starts every component and blocks serving HTTP until ctx is
// cancelled, then performs the ordered shutdown.
func (c *Container) Run(ctx context.Context) error {
	if err := c.Scheduler.Start(ctx); err != nil {
		return err
	}

	go c.Stream.Run(ctx)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- c.Server.Start()
	}()

	c.Log.Info("System initialized successfully")

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			c.Log.Error("HTTP server failed", "error", err)
			c.Shutdown()
			return err
		}
	}

	c.Shutdown()
	return nil
}

// Shutdown performs coordinated cleanup in the correct order:
// 1. HTTP drain so no new requests arrive
// 2. Workers, so no new backfill writes land
// 3. Vendor stream, so no new ticks land
// 4. Broadcaster, disconnecting live subscribers
// 5. Error tracker flush and log sync last
func (c *Container) Shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	c.Log.Info("[1/5] Stopping HTTP server...")
	httpCtx, httpCancel := context.WithTimeout(shutdownCtx, httpTimeout)
	if err := c.Server.Shutdown(httpCtx); err != nil {
		c.Log.Error("HTTP server shutdown failed", "error", err)
	}
	httpCancel()

	c.Log.Info("[2/5] Stopping background workers...")
	if err := c.Scheduler.Stop(); err != nil {
		c.Log.Error("Workers shutdown failed", "error", err)
	} else {
		c.Log.Info("✓ Workers stopped")
	}

	c.Log.Info("[3/5] Closing vendor stream...")
	c.Stream.Close()
	c.Log.Info("✓ Vendor stream closed")

	c.Log.Info("[4/5] Closing broadcaster...")
	c.Hub.Close()
	c.Log.Info("✓ Broadcaster closed")

	c.Log.Info("[5/5] Flushing error tracker...")
	if c.ErrorTracker != nil {
		flushCtx, flushCancel := context.WithTimeout(shutdownCtx, 2*time.Second)
		if err := c.ErrorTracker.Flush(flushCtx); err != nil {
			c.Log.Warn("Error tracker flush failed", "error", err)
		}
		flushCancel()
	}

	c.Log.Info("Shutdown complete")
}
