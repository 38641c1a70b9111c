package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"docqa/internal/config"
	"docqa/internal/docqa/bootstrap"
	"docqa/internal/docqa/mcptools"
	"docqa/pkg/logger"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	transport := flag.String("transport", "stdio", "Transport method: stdio, sse, or httpstream")
	addr := flag.String("addr", ":8085", "listen address for HTTP-based transports (sse, httpstream)")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize Logger. On stdio, stdout carries the MCP protocol, so logs go to stderr.
	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Init(level, cfg.Logger.Format)
	logrus.SetOutput(os.Stderr)
	appLogger := logger.New("DocQAMCP")

	// 3. Initialize Dependencies
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	app, err := bootstrap.Build(ctx, cfg, appLogger)
	cancel()
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize dependencies")
	}
	defer func() {
		if err := app.Close(context.Background()); err != nil {
			appLogger.WithError(err).Error("Failed to close dependencies")
		}
	}()

	// 4. Serve MCP tools
	appLogger.Info(fmt.Sprintf("Serving %s MCP tools over %s", cfg.App.Name, *transport))
	if err := mcptools.NewServer(app.Service).Serve(*transport, *addr); err != nil {
		appLogger.WithError(err).Error("MCP server stopped")
	}
}
