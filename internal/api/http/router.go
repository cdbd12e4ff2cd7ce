package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/screenfleet/screenfleet/internal/action"
	"github.com/screenfleet/screenfleet/internal/api/http/handler"
	"github.com/screenfleet/screenfleet/internal/api/http/middleware"
	"github.com/screenfleet/screenfleet/internal/audit"
	"github.com/screenfleet/screenfleet/internal/fleet"
	"github.com/screenfleet/screenfleet/internal/ratelimit"
	"github.com/screenfleet/screenfleet/internal/screen"
)

// AgentServices holds the owned components one agent instance composes.
// Nothing here is process-global; the service is passed everything it uses.
type AgentServices struct {
	Cache          *screen.FrameCache
	Executor       *action.Executor
	Audit          *audit.Log
	Limiter        *ratelimit.Limiter
	Token          string
	StreamInterval time.Duration
}

// SetupAgentRoutes wires the agent capture/action surface. Every handler is
// gated by the rate limiter first; only exec additionally requires the
// bearer token.
func SetupAgentRoutes(engine *gin.Engine, srvs *AgentServices) {
	engine.Use(middleware.RequestLogger())
	engine.Use(middleware.RateLimit(srvs.Limiter))

	h := handler.NewAgentHandler(srvs.Cache, srvs.Executor, srvs.Audit, srvs.StreamInterval)
	engine.GET("/status", h.Status)
	engine.GET("/screens", h.Screens)
	engine.GET("/screenshot", h.Screenshot)
	engine.GET("/screenshot/:screen", h.ScreenshotByIndex)
	engine.GET("/stream", h.Stream)
	engine.POST("/exec", middleware.BearerAuth(srvs.Token), h.Exec)
}

// FleetServices holds the orchestrator's components.
type FleetServices struct {
	Registry      *fleet.Registry
	Poller        *fleet.Poller
	Broadcaster   *fleet.Broadcaster
	ClientTimeout time.Duration
}

// SetupFleetRoutes wires the orchestrator's CRUD, proxy, and push surface.
func SetupFleetRoutes(engine *gin.Engine, srvs *FleetServices) {
	engine.Use(middleware.RequestLogger())

	h := handler.NewFleetHandler(srvs.Registry, srvs.Poller, srvs.Broadcaster, srvs.ClientTimeout)
	api := engine.Group("/api")
	api.GET("/agents", h.List)
	api.POST("/agents", h.Add)
	api.DELETE("/agents/:id", h.Remove)
	api.POST("/agents/:id/exec", h.Exec)
	api.POST("/agents/:id/refresh", h.Refresh)
	api.GET("/agents/:id/screenshot", h.Screenshot)
	api.GET("/agents/:id/screenshot/:screen", h.ScreenshotScreen)
	api.GET("/agents/:id/screens", h.Screens)
	api.GET("/ws", h.Watch)
}
