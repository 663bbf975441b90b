package main

import (
	"context"
	"log"
	"time"

	"flagsync/pkg/client"
	"flagsync/pkg/config"
)

// CLI prints periodic status snapshots while the client runs.
type CLI struct {
	client *client.Client
	config *config.Config
	logger *log.Logger

	lastStatus client.Status
	done       chan struct{}
}

// NewCLI creates the status loop runner.
func NewCLI(c *client.Client, cfg *config.Config, logger *log.Logger) *CLI {
	return &CLI{
		client: c,
		config: cfg,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Run blocks until Stop or ctx cancellation, printing status on change.
func (c *CLI) Run(ctx context.Context) error {
	c.logger.Printf("Starting flagsync in quiet mode")
	c.logger.Printf("Service: %s", c.config.BaseURL)
	c.logger.Printf("Poll interval: %d seconds", c.config.PollIntervalSeconds)

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Printf("Shutting down...")
			return nil
		case <-ticker.C:
			c.printStatus()
		case <-c.done:
			return nil
		}
	}
}

// Stop ends the status loop.
func (c *CLI) Stop() {
	close(c.done)
}

func (c *CLI) printStatus() {
	status := c.client.Status()

	if c.shouldPrintStatus(status) {
		c.logger.Printf("Telemetry - tracked=%d, flushed=%d, dropped=%d, persisted=%d, queue=%d/%d",
			status.Queue.Tracked,
			status.Queue.Flushed,
			status.Queue.Dropped,
			status.Queue.Persisted,
			status.Queue.QueueLen,
			status.Queue.QueueCap)

		c.logger.Printf("Connection - state=%s, failures=%d, enabled=%t, keys=%d",
			status.Connection.State,
			status.Connection.ConsecutiveFailures,
			status.SDKEnabled,
			status.ConfigKeys)
	}

	c.lastStatus = status
}

func (c *CLI) shouldPrintStatus(status client.Status) bool {
	// Always print first status
	if c.lastStatus.Queue.Tracked == 0 && c.lastStatus.Queue.Flushed == 0 {
		return true
	}

	if status.Queue.Tracked != c.lastStatus.Queue.Tracked ||
		status.Queue.Flushed != c.lastStatus.Queue.Flushed ||
		status.Queue.Dropped != c.lastStatus.Queue.Dropped {
		return true
	}

	if status.Connection.State != c.lastStatus.Connection.State ||
		status.Connection.ConsecutiveFailures != c.lastStatus.Connection.ConsecutiveFailures {
		return true
	}

	return status.SDKEnabled != c.lastStatus.SDKEnabled
}
