package dto

import (
	"time"

	"github.com/screenfleet/screenfleet/internal/screen"
)

// AgentView is the serializable projection of one registered agent. It is
// what the registry copies out under its lock; the live client handle never
// leaves the registry.
type AgentView struct {
	ID           string          `json:"id"`
	URL          string          `json:"url"`
	Name         string          `json:"name"`
	Status       string          `json:"status"`
	LastSeen     *time.Time      `json:"last_seen"`
	Error        string          `json:"error,omitempty"`
	ResponseTime *float64        `json:"response_time"` // milliseconds
	LastUpdate   *time.Time      `json:"last_update"`
	CreatedAt    time.Time       `json:"created_at"`
	Screens      []screen.Screen `json:"screens"`
	Screenshot   string          `json:"screenshot,omitempty"` // base64 JPEG, primary screen
}

type AddAgentRequest struct {
	ID    string `json:"id"`
	URL   string `json:"url" binding:"required"`
	Token string `json:"token"`
	Name  string `json:"name"`
}

type AddAgentResponse struct {
	Success bool   `json:"success"`
	AgentID string `json:"agent_id"`
}

// SnapshotEvent is one websocket push of the full registry state. Emitted
// on subscriber connect, after every poll sweep, and on every registry
// mutation.
type SnapshotEvent struct {
	Event  string               `json:"event"`
	Agents map[string]AgentView `json:"agents"`
}

const SnapshotEventName = "agent_update"
