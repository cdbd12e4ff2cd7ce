package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/screenfleet/screenfleet/internal/action"
	internalhttp "github.com/screenfleet/screenfleet/internal/api/http"
	"github.com/screenfleet/screenfleet/internal/audit"
	"github.com/screenfleet/screenfleet/internal/ratelimit"
	"github.com/screenfleet/screenfleet/internal/screen"
)

var AppVersion string

func main() {
	InitConfig()

	mode := action.DryRun
	if config.Exec.LiveRun {
		mode = action.LiveRun
	}
	slog.Info("Screenfleet Agent", "version", AppVersion, "mode", mode.String())

	source := screen.NewDisplaySource()
	cache := screen.NewFrameCache(source, config.Capture.Quality)
	executor := action.NewExecutor(source, action.NewRobotDriver(), mode)
	auditLog := audit.NewLog(config.Exec.AuditPath)
	limiter := ratelimit.New(
		time.Duration(config.RateLimit.WindowSeconds)*time.Second,
		config.RateLimit.Limit,
	)

	services := &internalhttp.AgentServices{
		Cache:          cache,
		Executor:       executor,
		Audit:          auditLog,
		Limiter:        limiter,
		Token:          config.Exec.Token,
		StreamInterval: time.Duration(config.Capture.StreamIntervalMs) * time.Millisecond,
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
	internalhttp.SetupAgentRoutes(engine, services)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Http.Host, config.Http.Port),
		Handler: engine,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr, "screens", len(source.Screens()))
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

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}
	slog.Info("Shutdown complete")
}
