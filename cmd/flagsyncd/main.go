package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flagsync/pkg/client"
	"flagsync/pkg/config"
	"flagsync/pkg/version"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		info := version.Info()
		fmt.Printf("flagsyncd version %s, commit %s, built %s\n", info.Version, info.Commit, info.Built)
		return
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("configuration error: %v", err)
	}
	if cfg == nil {
		// Help was printed.
		return
	}

	c, err := client.New(cfg, client.User{ID: cfg.UserID}, logger)
	if err != nil {
		logger.Fatalf("client setup failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := c.Start(ctx); err != nil {
		logger.Fatalf("client start failed: %v", err)
	}

	cli := NewCLI(c, cfg, logger)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cli.Stop()
	}()

	if err := cli.Run(ctx); err != nil {
		logger.Printf("runner exited: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := c.Shutdown(shutdownCtx); err != nil {
		logger.Printf("shutdown flush incomplete: %v", err)
	}
}
