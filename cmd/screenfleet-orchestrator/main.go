package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	internalhttp "github.com/screenfleet/screenfleet/internal/api/http"
	"github.com/screenfleet/screenfleet/internal/fleet"
)

var AppVersion string

func main() {
	InitConfig()

	slog.Info("Screenfleet Orchestrator", "version", AppVersion)

	clientTimeout := time.Duration(config.Agent.TimeoutSeconds) * time.Second

	registry := fleet.NewRegistry()
	broadcaster := fleet.NewBroadcaster()
	poller := fleet.NewPoller(
		registry,
		broadcaster,
		time.Duration(config.Poll.CycleSeconds)*time.Second,
		time.Duration(config.Poll.StaggerMs)*time.Millisecond,
	)

	// Seed the default agent from the environment, matching the fleet's
	// historical deployment layout.
	if config.Agent.DefaultURL != "" {
		client := fleet.NewClient(config.Agent.DefaultURL, config.Agent.DefaultToken, clientTimeout)
		registry.Add("default", config.Agent.DefaultURL, config.Agent.DefaultToken, "Default Agent", client)
	}

	pollCtx, stopPoller := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(pollCtx)
	}()

	services := &internalhttp.FleetServices{
		Registry:      registry,
		Poller:        poller,
		Broadcaster:   broadcaster,
		ClientTimeout: clientTimeout,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"PUT", "PATCH", "GET", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(gin.Recovery())
	internalhttp.SetupFleetRoutes(engine, services)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Http.Host, config.Http.Port),
		Handler: engine,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	}

	slog.Info("Shutting down...")
	stopPoller()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	wg.Wait()
	slog.Info("Shutdown complete")
}
