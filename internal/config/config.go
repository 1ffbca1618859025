// Package config defines the runtime settings of the chatlite server:
// defaults, environment overrides, command-line flags and validation.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the server settings.
type Config struct {
	Addr           string        // chat listen address
	HTTPAddr       string        // metrics and WebSocket address, empty disables it
	Backlog        int           // listen(2) backlog depth
	MaxConns       int           // registry capacity
	OutboundQueue  int           // frames buffered per connection before dropping
	WriteTimeout   time.Duration // per-frame write deadline
	LogLevel       slog.Level
	Tunnel         bool     // also accept through an ngrok TCP tunnel
	AllowedOrigins []string // extra browser origins allowed on /ws, "*" allows any
}

// Default returns the settings of the original server: loopback port 6699,
// backlog 128 and room for 1024 participants.
func Default() Config {
	return Config{
		Addr:          "127.0.0.1:6699",
		HTTPAddr:      "127.0.0.1:9090",
		Backlog:       128,
		MaxConns:      1024,
		OutboundQueue: 32,
		WriteTimeout:  10 * time.Second,
		LogLevel:      slog.LevelInfo,
	}
}

// Load builds a Config from defaults, CHATLITE_* environment variables and
// finally args, each overriding the previous one.
func Load(args []string, getenv func(string) string, output io.Writer) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := fromEnv(Default(), getenv)

	fs := flag.NewFlagSet("chatlite-server", flag.ContinueOnError)
	if output != nil {
		fs.SetOutput(output)
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "chat listen address")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "metrics and websocket listen address (empty disables)")
	fs.IntVar(&cfg.Backlog, "backlog", cfg.Backlog, "listen backlog depth")
	fs.IntVar(&cfg.MaxConns, "max-conns", cfg.MaxConns, "maximum number of connected clients")
	fs.IntVar(&cfg.OutboundQueue, "outbound-queue", cfg.OutboundQueue, "frames buffered per client before dropping")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "per-frame write deadline")
	fs.BoolVar(&cfg.Tunnel, "tunnel", cfg.Tunnel, "also accept connections through an ngrok tunnel (needs NGROK_AUTHTOKEN)")
	origins := fs.String("allowed-origins", strings.Join(cfg.AllowedOrigins, ","), "comma-separated browser origins allowed to open /ws")
	level := fs.String("log-level", cfg.LogLevel.String(), "log level: debug, info, warn, error")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.LogLevel.UnmarshalText([]byte(*level)); err != nil {
		return Config{}, fmt.Errorf("log-level: %w", err)
	}
	cfg.AllowedOrigins = splitList(*origins)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fromEnv(cfg Config, getenv func(string) string) Config {
	if v := getenv("CHATLITE_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v, ok := lookup(getenv, "CHATLITE_HTTP_ADDR"); ok {
		cfg.HTTPAddr = v
	}
	cfg.Backlog = parseIntValue(getenv("CHATLITE_BACKLOG"), cfg.Backlog)
	cfg.MaxConns = parseIntValue(getenv("CHATLITE_MAX_CONNS"), cfg.MaxConns)
	cfg.OutboundQueue = parseIntValue(getenv("CHATLITE_OUTBOUND_QUEUE"), cfg.OutboundQueue)
	if v := getenv("CHATLITE_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.WriteTimeout = d
		}
	}
	if v := getenv("CHATLITE_LOG_LEVEL"); v != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(v)); err == nil {
			cfg.LogLevel = level
		}
	}
	if v := getenv("CHATLITE_TUNNEL"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tunnel = b
		}
	}
	if v := getenv("CHATLITE_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	return cfg
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// lookup treats the literal value "-" as an explicit empty string so that
// optional listeners can be switched off from the environment.
func lookup(getenv func(string) string, key string) (string, bool) {
	v := strings.TrimSpace(getenv(key))
	switch v {
	case "":
		return "", false
	case "-":
		return "", true
	}
	return v, true
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// Validate reports settings the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Addr) == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.Backlog <= 0 {
		errs = append(errs, fmt.Errorf("backlog must be positive, got %d", c.Backlog))
	}
	if c.MaxConns <= 0 {
		errs = append(errs, fmt.Errorf("max-conns must be positive, got %d", c.MaxConns))
	}
	if c.OutboundQueue <= 0 {
		errs = append(errs, fmt.Errorf("outbound-queue must be positive, got %d", c.OutboundQueue))
	}
	if c.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("write-timeout must be positive, got %s", c.WriteTimeout))
	}
	return errors.Join(errs...)
}
