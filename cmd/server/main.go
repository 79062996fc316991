// Package main is the entry point for the eventcore server: the outbox
// publisher, the saga consumer dispatchers, and the ops HTTP surface
// (health, readiness, metrics, saga debug) all run in this one process.
//
// Usage:
//
//	# Development (defaults)
//	go run cmd/server/main.go
//
//	# With a config file
//	go run cmd/server/main.go -config ./configs
//
//	# With environment variables
//	EVENTCORE_DB_HOST=localhost \
//	EVENTCORE_SERVER_PORT=3000 \
//	go run cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wallethub/eventcore/internal/config"
	"github.com/wallethub/eventcore/internal/container"
)

// Build-time variables, set via -ldflags.
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "./configs", "Path to config directory")
	configName := flag.String("config-name", "config", "Config file name (without extension)")
	envOnly := flag.Bool("env-only", false, "Load config only from environment variables")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("eventcore server\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Git Commit: %s\n", gitCommit)
		os.Exit(0)
	}

	var cfg *config.Config
	var err error

	if *envOnly {
		cfg, err = config.LoadFromEnv()
	} else {
		cfg, err = config.Load(*configPath, *configName)
	}

	if err != nil {
		log.Printf("warning: failed to load config: %v", err)
		log.Printf("using development defaults")
		cfg = config.Development()
	}

	cfg.App.Version = version
	cfg.App.BuildTime = buildTime
	cfg.App.GitCommit = gitCommit

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	c := container.New(cfg)

	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	if err := c.Initialize(initCtx); err != nil {
		log.Fatalf("failed to initialize eventcore: %v", err)
	}

	c.Logger().Info("eventcore starting",
		"address", cfg.Server.Address(),
		"environment", cfg.App.Environment,
		"version", cfg.App.Version,
		"broker_stream", cfg.Broker.StreamName,
	)

	// Run blocks until the ops HTTP server receives SIGINT/SIGTERM and
	// completes its own graceful shutdown; the publisher and dispatcher
	// goroutines are cancelled alongside it.
	if err := c.Run(); err != nil {
		c.Logger().Error("server error", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := c.Shutdown(shutdownCtx); err != nil {
		c.Logger().Error("shutdown error", "error", err)
		os.Exit(1)
	}

	c.Logger().Info("eventcore stopped gracefully")
}
