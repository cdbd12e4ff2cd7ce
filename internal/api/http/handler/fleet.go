package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/screenfleet/screenfleet/internal/api/http/dto"
	"github.com/screenfleet/screenfleet/internal/fleet"
	"github.com/screenfleet/screenfleet/internal/screen"
)

// FleetHandler serves the orchestrator's agent CRUD, proxy, and push
// surface.
type FleetHandler struct {
	registry      *fleet.Registry
	poller        *fleet.Poller
	broadcaster   *fleet.Broadcaster
	clientTimeout time.Duration
}

func NewFleetHandler(registry *fleet.Registry, poller *fleet.Poller, broadcaster *fleet.Broadcaster, clientTimeout time.Duration) *FleetHandler {
	return &FleetHandler{
		registry:      registry,
		poller:        poller,
		broadcaster:   broadcaster,
		clientTimeout: clientTimeout,
	}
}

// List returns the serializable view of all registered agents.
// GET /api/agents
func (h *FleetHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.Snapshot())
}

// Add registers an agent, polls it once immediately, and pushes a fresh
// snapshot to subscribers.
// POST /api/agents
func (h *FleetHandler) Add(c *gin.Context) {
	var req dto.AddAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "URL is required"})
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	client := fleet.NewClient(req.URL, req.Token, h.clientTimeout)
	h.registry.Add(id, req.URL, req.Token, req.Name, client)

	if err := h.poller.Refresh(id); err != nil {
		slog.Debug("Initial poll of new agent failed", "agent_id", id, "error", err)
	}

	c.JSON(http.StatusOK, dto.AddAgentResponse{Success: true, AgentID: id})
}

// Remove deletes an agent and pushes a fresh snapshot. Removing an unknown
// id is a no-op, not an error.
// DELETE /api/agents/:id
func (h *FleetHandler) Remove(c *gin.Context) {
	h.registry.Remove(c.Param("id"))
	h.broadcaster.Publish(h.registry.Snapshot())
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Exec proxies an action to the agent's exec endpoint.
// POST /api/agents/:id/exec
func (h *FleetHandler) Exec(c *gin.Context) {
	client, ok := h.registry.Client(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		return
	}

	var req dto.ExecRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	resp, err := client.Exec(req)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Refresh forces an immediate poll of one agent.
// POST /api/agents/:id/refresh
func (h *FleetHandler) Refresh(c *gin.Context) {
	if err := h.poller.Refresh(c.Param("id")); err != nil {
		if errors.Is(err, fleet.ErrAgentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Screenshot returns the cached primary-screen frame from the last poll.
// GET /api/agents/:id/screenshot
func (h *FleetHandler) Screenshot(c *gin.Context) {
	view, ok := h.registry.View(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		return
	}

	if view.Screenshot == "" {
		c.JSON(http.StatusOK, gin.H{"error": "No screenshot available"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"image": view.Screenshot})
}

// ScreenshotScreen fetches a specific screen's frame from the agent on
// demand.
// GET /api/agents/:id/screenshot/:screen
func (h *FleetHandler) ScreenshotScreen(c *gin.Context) {
	client, ok := h.registry.Client(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		return
	}

	n, err := strconv.Atoi(c.Param("screen"))
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid screen index"})
		return
	}

	shot, err := client.ScreenshotByIndex(screen.Index(n))
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"error": fmt.Sprintf("No screenshot available for screen %d", n)})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"image":  base64Encode(shot.Image),
		"screen": n,
	})
}

// Screens fetches the agent's screen list on demand.
// GET /api/agents/:id/screens
func (h *FleetHandler) Screens(c *gin.Context) {
	client, ok := h.registry.Client(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		return
	}

	screens, err := client.Screens()
	if err != nil {
		screens = []screen.Screen{}
	}
	c.JSON(http.StatusOK, gin.H{"screens": screens})
}
