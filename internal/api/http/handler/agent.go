package handler

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/screenfleet/screenfleet/internal/action"
	"github.com/screenfleet/screenfleet/internal/api/http/dto"
	"github.com/screenfleet/screenfleet/internal/audit"
	"github.com/screenfleet/screenfleet/internal/screen"
)

const DefaultStreamInterval = 100 * time.Millisecond

// AgentHandler serves the agent-side capture/action surface.
type AgentHandler struct {
	cache          *screen.FrameCache
	executor       *action.Executor
	audit          *audit.Log
	streamInterval time.Duration
}

func NewAgentHandler(cache *screen.FrameCache, executor *action.Executor, auditLog *audit.Log, streamInterval time.Duration) *AgentHandler {
	if streamInterval <= 0 {
		streamInterval = DefaultStreamInterval
	}
	return &AgentHandler{
		cache:          cache,
		executor:       executor,
		audit:          auditLog,
		streamInterval: streamInterval,
	}
}

// Status reports health, host identity, and the current screen layout.
// GET /status
func (h *AgentHandler) Status(c *gin.Context) {
	hostname, _ := os.Hostname()
	c.JSON(http.StatusOK, dto.StatusResponse{
		Status:   "ok",
		Hostname: hostname,
		Time:     float64(time.Now().UnixNano()) / float64(time.Second),
		Screens:  h.cache.Screens(),
	})
}

// Screens lists the available screens.
// GET /screens
func (h *AgentHandler) Screens(c *gin.Context) {
	screens := h.cache.Screens()
	c.JSON(http.StatusOK, dto.ScreensResponse{Screens: screens, Count: len(screens)})
}

// Screenshot captures with change detection. Without a screen parameter it
// captures the composite of all screens, which always returns fresh bytes.
// GET /screenshot[?screen=N]
func (h *AgentHandler) Screenshot(c *gin.Context) {
	idx := screen.CompositeIndex
	if raw := c.Query("screen"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			idx = screen.Index(n)
		}
	}

	frame, noChange, err := h.cache.GetOrCapture(idx)
	if err != nil {
		if errors.Is(err, screen.ErrOutOfRange) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid screen index"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if noChange {
		c.JSON(http.StatusOK, dto.ScreenshotResponse{NoChange: true, Screen: &frame.Screen})
		return
	}

	c.JSON(http.StatusOK, dto.ScreenshotResponse{
		Image:            base64.StdEncoding.EncodeToString(frame.Image),
		Screen:           &frame.Screen,
		ScreensAvailable: len(h.cache.Screens()),
	})
}

// ScreenshotByIndex is the path form. It always returns fresh bytes and
// never the no-change sentinel.
// GET /screenshot/:screen
func (h *AgentHandler) ScreenshotByIndex(c *gin.Context) {
	n, err := strconv.Atoi(c.Param("screen"))
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid screen index"})
		return
	}

	frame, err := h.cache.Capture(screen.Index(n))
	if err != nil {
		if errors.Is(err, screen.ErrOutOfRange) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Invalid screen index"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.ScreenshotResponse{
		Image:            base64.StdEncoding.EncodeToString(frame.Image),
		Screen:           &frame.Screen,
		ScreensAvailable: len(h.cache.Screens()),
	})
}

// Stream pushes successive uncached frames as a multipart stream until the
// client disconnects. No lock is held across the blocking writes.
// GET /stream[?screen=N]
func (h *AgentHandler) Stream(c *gin.Context) {
	idx := screen.CompositeIndex
	if raw := c.Query("screen"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			idx = screen.Index(n)
		}
	}

	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	for {
		frame, err := h.cache.Capture(idx)
		if err == nil {
			if _, err := fmt.Fprintf(c.Writer,
				"--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame.Image)); err != nil {
				return
			}
			if _, err := c.Writer.Write(frame.Image); err != nil {
				return
			}
			if _, err := c.Writer.Write([]byte("\r\n")); err != nil {
				return
			}
			c.Writer.Flush()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(h.streamInterval):
		}
	}
}

// Exec validates, audits, and executes one action. The audit record is
// appended before the executor runs, in dry-run and live-run alike.
// POST /exec
func (h *AgentHandler) Exec(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	var req dto.ExecRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	rec := audit.Record{
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		ClientIP:  c.ClientIP(),
		TokenID:   tokenID(c),
		Payload:   raw,
	}
	if err := h.audit.Append(rec); err != nil {
		slog.Error("Audit append failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "audit append failed"})
		return
	}

	act := action.Action{
		Kind:     action.Kind(req.Action),
		X:        req.Coordinates[0],
		Y:        req.Coordinates[1],
		Screen:   req.Screen,
		Relative: req.IsRelative(),
		Text:     req.Text,
		Dy:       req.Dy,
	}
	if err := act.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.executor.Execute(act); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	message := "action executed (live-run)"
	if h.executor.Mode() == action.DryRun {
		message = "action logged (dry-run)"
	}
	c.JSON(http.StatusOK, dto.ExecResponse{Status: "ok", Message: message})
}

// tokenID extracts the bearer token for the audit trail, or "none".
func tokenID(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "none"
	}
	parts := strings.Fields(header)
	if len(parts) == 0 {
		return "none"
	}
	return parts[len(parts)-1]
}
