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

	"docqa/internal/config"
	"docqa/internal/docqa/api"
	"docqa/internal/docqa/bootstrap"
	"docqa/pkg/circuitbreaker"
	grpcserver "docqa/pkg/grpc"
	"docqa/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Initialize Logger
	level, err := logrus.ParseLevel(cfg.Logger.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.Init(level, cfg.Logger.Format)
	appLogger := logger.New("DocQAService")
	appLogger.Info(fmt.Sprintf("Starting %s %s (%s)...", cfg.App.Name, cfg.App.Version, cfg.App.Environment))

	// 3. Initialize Dependencies
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	app, err := bootstrap.Build(ctx, cfg, appLogger)
	cancel()
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to initialize dependencies")
	}

	// 4. Start gRPC health server in a goroutine
	interceptors := []grpc.UnaryServerInterceptor{grpcserver.LoggingUnaryInterceptor(appLogger)}
	if rl := cfg.Middleware.RateLimiter; rl.Enabled {
		interceptors = append(interceptors, grpcserver.RateLimitUnaryInterceptor(rate.NewLimiter(rate.Limit(rl.Rate), rl.Burst)))
	}
	if cb := cfg.Middleware.CircuitBreaker; cb.Enabled {
		interceptors = append(interceptors, grpcserver.CircuitBreakUnaryInterceptor(circuitbreaker.New(circuitbreaker.Settings{
			FailureThreshold: cb.FailureThreshold,
			SuccessThreshold: cb.SuccessThreshold,
			Timeout:          config.Duration(cb.Timeout, 30*time.Second),
		})))
	}
	healthServer := grpcserver.NewServer(
		grpcserver.WithAddress(cfg.Server.GRPCAddress),
		grpcserver.WithLogger(appLogger),
		grpcserver.WithUnaryInterceptors(interceptors...),
	)
	go func() {
		if err := healthServer.ListenAndServe(); err != nil {
			appLogger.WithError(err).Fatal("Failed to serve gRPC")
		}
	}()

	// 5. Start Gin HTTP Server in a goroutine
	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(cfg, api.NewAPI(app.Service, appLogger, cfg.Server.MaxUploadBytes, app.Checks), appLogger)
	srv := &http.Server{Addr: cfg.Server.HTTPAddress, Handler: router}
	go func() {
		appLogger.Info(fmt.Sprintf("HTTP server listening at %s", cfg.Server.HTTPAddress))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Failed to serve HTTP")
		}
	}()
	healthServer.SetServing("", true)

	// 6. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down servers...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.Duration(cfg.Server.ShutdownTimeout, 5*time.Second))
	defer shutdownCancel()
	healthServer.SetServing("", false)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("HTTP server forced to shutdown")
	}
	healthServer.GracefulStop()
	if err := app.Close(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Failed to close dependencies")
	}
	appLogger.Info("Servers gracefully stopped")
}
