// Package main implements the service desk entry point. It wires the
// envelope transport, the dispatch router, and the ticket pipeline stages
// into one process, serving metrics and health over HTTP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
)

// Build information constants.
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "servicedesk"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s %s (build %s)\n", appName, Version, BuildTime)
		return nil
	}
	if cliCfg.ShowHelp {
		printDetailedHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		logger.Info("Configuration is valid")
		return nil
	}

	ctx := context.Background()
	switch cliCfg.Mode {
	case modeDemo:
		return runDemo(ctx, cfg, logger, cliCfg.DemoTickets, cliCfg.DemoSeed)
	default:
		return runServe(ctx, cfg, logger, cliCfg.ShutdownTimeout)
	}
}
