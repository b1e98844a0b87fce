// Command server runs the news relay: a WebSocket broadcast server with an
// HTTP endpoint for publishing news to every connected client.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/Tyrowin/newsrelay/internal/config"
	"github.com/Tyrowin/newsrelay/internal/logging"
	"github.com/Tyrowin/newsrelay/internal/metrics"
	"github.com/Tyrowin/newsrelay/internal/server"
)

const version = "1.0.0"

func main() {
	cmd := &cli.Command{
		Name:    "newsrelay",
		Usage:   "relay WebSocket messages and published news to every connected client",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "dotenv files to load before reading the environment",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address, overrides RELAY_ADDR",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error, overrides LOG_LEVEL",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "text or json, overrides LOG_FORMAT",
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.StringSlice("env-file")...)
	if err != nil {
		return err
	}
	if addr := cmd.String("addr"); addr != "" {
		cfg.Addr = addr
	}
	if level := cmd.String("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if format := cmd.String("log-format"); format != "" {
		cfg.LogFormat = format
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.Init(cfg.LogLevel, cfg.LogFormat)
	logger.Info("Starting news relay", "version", version, "addr", cfg.Addr)

	srv := server.New(cfg, logger, metrics.NewRegistry())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown incomplete", "error", err)
	}
	<-serveErr
	return nil
}
