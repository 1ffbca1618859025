package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/andy6609/chatlite/internal/client"
)

func main() {
	addr := flag.String("addr", getEnvOrDefault("CHATLITE_ADDR", "127.0.0.1:6699"), "chat server address")
	retries := flag.Int("retries", 5, "connection attempts before giving up")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.Dial(ctx, *addr, *retries, logger)
	if err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Connected to %s. Type /nick <name> to rename, /quit to leave.\n", *addr)
	if err := c.Run(ctx, os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, client.ErrConnectionLost) {
			fmt.Println("Connection lost")
			os.Exit(1)
		}
		logger.Error("client stopped", "error", err)
		os.Exit(1)
	}
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
