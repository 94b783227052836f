// Pmapi serves the project management REST API.
//
// Configuration is loaded from environment variables, an optional .env file
// and, with -config, a YAML file. See internal/config for the keys.
//
// Usage:
//
//	# Start the server with defaults (SQLite, ./media)
//	AUTH_JWT_SECRET=... pmapi
//
//	# Configure via environment
//	SERVER_HTTP_PORT=9090 DATABASE_DRIVER=postgres DATABASE_DSN=... pmapi
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ahmed20kamel/project-management-api/internal/app"
	"github.com/ahmed20kamel/project-management-api/internal/config"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file under ~/.config/pmapi or /etc/pmapi")
	flag.Parse()
	args := flag.Args()

	if len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  pmapi [-config path]   Start the API server\n")
			fmt.Fprintf(os.Stderr, "  pmapi version          Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("pmapi\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadWithFile(path)
}

// run starts the API server and blocks until ctx is cancelled, then shuts
// down within the configured timeout.
func run(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, app.Options{Version: version, Telemetry: true})
	if err != nil {
		return fmt.Errorf("initializing: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			log.Printf("close: %v", err)
		}
	}()

	logger := a.Logger.Underlying()
	logger.Info("starting pmapi",
		zap.String("version", version),
		zap.String("commit", gitCommit),
		zap.String("addr", cfg.Server.Addr()),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("events", cfg.Events.Enabled),
		zap.Bool("telemetry", a.Telemetry.IsEnabled()),
	)

	srv, err := a.NewHTTPServer()
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	// Wait for Start to return so the listener is released.
	select {
	case <-errCh:
	case <-time.After(cfg.Server.ShutdownTimeout.Duration()):
	}
	return nil
}
