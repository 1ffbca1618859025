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

	"github.com/andy6609/chatlite/internal/chat"
	"github.com/andy6609/chatlite/internal/config"
	"github.com/andy6609/chatlite/internal/tunnel"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	srv := chat.NewServer(cfg, logger)
	if err := srv.Start(); err != nil {
		logger.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tunnel {
		ln, err := tunnel.Listen(ctx)
		if err != nil {
			logger.Error("failed to open tunnel", "error", err)
			srv.Stop()
			os.Exit(1)
		}
		logger.Info("tunnel listening", "public_addr", tunnel.PublicAddr(ln))
		srv.AcceptFrom(ln)
	}

	<-ctx.Done()
	srv.Stop()
}
