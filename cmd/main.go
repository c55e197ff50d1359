package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "go.uber.org/automaxprocs"

	"github.com/angeloszaimis/pokeapi-edge/config"
	"github.com/angeloszaimis/pokeapi-edge/internal/configpipeline"
	"github.com/angeloszaimis/pokeapi-edge/internal/httpserver"
	"github.com/angeloszaimis/pokeapi-edge/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to the bootstrap config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log, closeLog := newLogger(cfg)
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		var loadErr *configpipeline.LoadError
		if errors.As(err, &loadErr) {
			log.Error("Failed to load service configuration",
				slog.String("layer", loadErr.Layer),
				slog.Any("err", loadErr.Err))
		} else {
			log.Error("Failed to initialize service", slog.Any("err", err))
		}
		os.Exit(1)
	}

	srv, err := httpserver.New(cfg.Server.Address, a.router(), httpserver.Timeouts{
		Read:     cfg.Server.ReadTimeout,
		Write:    cfg.Server.WriteTimeout,
		Idle:     cfg.Server.IdleTimeout,
		Shutdown: cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	if err := a.start(ctx); err != nil {
		log.Error("Failed to start service", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	log.Info("Edge service listening",
		slog.String("address", cfg.Server.Address),
		slog.Int("instances", len(a.coordinator.Instances())),
		slog.String("strategy", cfg.Dispatch.Strategy))

	exitCode := 0

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting edge service", slog.Any("err", err))
			exitCode = 1
		}
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		log.Error("Error during shutdown", slog.Any("err", err))
	}
	if err := a.stop(context.Background()); err != nil {
		log.Error("Error stopping service", slog.Any("err", err))
	}

	if exitCode != 0 {
		closeLog()
		os.Exit(exitCode)
	}
}

// newLogger logs to stdout and, when a file path is configured, to a
// rotated file as well.
func newLogger(cfg *config.Config) (*slog.Logger, func()) {
	if cfg.Logging.File.Path == "" {
		return logger.New(cfg.Logging.Level, cfg.Logging.AddSource, cfg.Server.Environment), func() {}
	}

	file := logger.FileWriter(logger.File{
		Path:       cfg.Logging.File.Path,
		MaxSizeMB:  cfg.Logging.File.MaxSizeMB,
		MaxBackups: cfg.Logging.File.MaxBackups,
		MaxAgeDays: cfg.Logging.File.MaxAgeDays,
		Compress:   cfg.Logging.File.Compress,
	})

	w := io.MultiWriter(os.Stdout, file)
	return logger.NewWithWriter(w, cfg.Logging.Level, cfg.Logging.AddSource, cfg.Server.Environment),
		func() { _ = file.Close() }
}
