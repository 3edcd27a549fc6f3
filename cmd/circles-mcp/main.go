// Package main provides the entry point for the circles MCP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/circles/internal/config"
	"github.com/raphaelgruber/circles/internal/server"
	"github.com/raphaelgruber/circles/internal/tools"
)

const version = "0.1.0"

func main() {
	cfg := config.Load()

	// stdout carries the MCP protocol, so logs go to stderr and the log file.
	logger, cleanup := config.SetupComponentLogger(cfg, "mcp")
	defer cleanup()

	logger.Info("circles-mcp starting",
		"version", version,
		"surrealdb_url", cfg.SurrealDBURL,
		"llm_provider", cfg.LLMProvider,
		"llm_model", cfg.LLMModel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	deps, err := server.NewDeps(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer func() {
		logger.Info("closing database connection")
		_ = deps.Close(context.Background())
	}()

	srv := server.New(version, logger)
	srv.Setup()

	tools.RegisterAll(srv.MCPServer(), &tools.Dependencies{
		Persons: deps.Persons,
		Imports: deps.Imports,
		Logger:  logger,
	})
	logger.Info("server ready, awaiting connections")

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}
