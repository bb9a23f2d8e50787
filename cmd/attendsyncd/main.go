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

	"golang.org/x/sync/errgroup"

	"github.com/campuskit/attendsync/internal/config"
	"github.com/campuskit/attendsync/internal/offline"
	"github.com/campuskit/attendsync/internal/status"
)

var (
	version   = "0.1.0"
	buildTime = "dev"
)

func main() {
	os.Exit(run())
}

func run() int {
	fs := flag.NewFlagSet("attendsyncd", flag.ExitOnError)
	configPath := fs.String("config", "attendsync.json", "Path to config file")
	showVersion := fs.Bool("version", false, "Show version")
	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing arguments: %v\n", err)
		return 1
	}

	if *showVersion {
		fmt.Printf("attendsyncd v%s (built %s)\n", version, buildTime)
		fmt.Println("Offline-first attendance sync daemon")
		return 0
	}

	// Bootstrap logger until the config's level is known.
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	logger.Info("starting attendsyncd", "version", version, "config", *configPath)

	cfg, err := loadConfig(*configPath, logger)
	if err != nil {
		logger.Error("load config failed", "error", err)
		return 1
	}

	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))

	svc, err := offline.NewService(cfg, logger, offline.Deps{})
	if err != nil {
		logger.Error("setup failed", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.Start(ctx); err != nil {
		logger.Error("start failed", "error", err)
		return 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return status.NewServer(cfg.Status.Addr, svc, logger).Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")
		return nil
	})

	err = g.Wait()

	if stopErr := svc.Stop(); stopErr != nil {
		logger.Error("shutdown error", "error", stopErr)
		if err == nil {
			err = stopErr
		}
	}
	if err != nil {
		logger.Error("daemon exited with error", "error", err)
		return 1
	}
	logger.Info("attendsyncd stopped")
	return 0
}

// loadConfig loads configuration from file or creates a default one.
func loadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("no config found, creating default", "path", path)
			cfg = config.DefaultConfig()
			if err := cfg.Save(path); err != nil {
				return nil, fmt.Errorf("save default config: %w", err)
			}
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
