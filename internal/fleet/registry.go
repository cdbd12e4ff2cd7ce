package fleet

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/screenfleet/screenfleet/internal/api/http/dto"
	"github.com/screenfleet/screenfleet/internal/screen"
)

// Agent statuses. An agent's status transitions only through its own poll
// results.
const (
	StatusUnknown = "unknown"
	StatusOnline  = "online"
	StatusError   = "error"
)

var ErrAgentNotFound = errors.New("agent not found")

// Agent is one registered agent's record. All fields are guarded by the
// registry lock; only the client handle is safe to use outside it, since a
// Client is internally synchronized and never replaced after registration.
type Agent struct {
	ID    string
	URL   string
	Token string
	Name  string

	Status       string
	LastSeen     *time.Time
	LastError    string
	ResponseTime *float64 // milliseconds
	LastUpdate   *time.Time
	CreatedAt    time.Time

	Screens    []screen.Screen
	Screenshot []byte // last primary-screen JPEG

	client *Client
}

// Registry is the concurrency-safe map of agent id to agent record. One
// mutex serializes registration, removal, and every field update.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
}

func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]*Agent)}
}

// Add registers an agent. An existing record with the same id is replaced.
func (r *Registry) Add(id, url, token, name string, client *Client) {
	if name == "" {
		name = "Agent " + id
	}

	r.mu.Lock()
	r.agents[id] = &Agent{
		ID:        id,
		URL:       url,
		Token:     token,
		Name:      name,
		Status:    StatusUnknown,
		CreatedAt: time.Now(),
		client:    client,
	}
	total := len(r.agents)
	r.mu.Unlock()

	slog.Info("Agent registered", "agent_id", id, "url", url, "total_agents", total)
}

// Remove deletes an agent. Removing an unknown id is a safe no-op.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	_, ok := r.agents[id]
	delete(r.agents, id)
	total := len(r.agents)
	r.mu.Unlock()

	if ok {
		slog.Info("Agent removed", "agent_id", id, "total_agents", total)
	}
	return ok
}

// IDs returns the current agent ids. The poll loop snapshots this once per
// cycle; agents added mid-cycle are picked up next cycle.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	return ids
}

// Client returns the live handle for an agent. The handle must never be
// held under the registry lock across a network call; this accessor copies
// it out and releases.
func (r *Registry) Client(id string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[id]
	if !ok {
		return nil, false
	}
	return a.client, true
}

// Snapshot copies out the serializable view of every agent.
func (r *Registry) Snapshot() map[string]dto.AgentView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	views := make(map[string]dto.AgentView, len(r.agents))
	for id, a := range r.agents {
		views[id] = viewOf(a)
	}
	return views
}

// View copies out one agent's serializable view.
func (r *Registry) View(id string) (dto.AgentView, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.agents[id]
	if !ok {
		return dto.AgentView{}, false
	}
	return viewOf(a), true
}

// PollResult carries one sweep's findings for one agent.
type PollResult struct {
	Online       bool
	Err          string
	Screens      []screen.Screen
	Screenshot   []byte
	ResponseTime float64
	Timestamp    time.Time
}

// ApplyPoll writes a poll result back under the lock. Results for an agent
// removed mid-cycle are dropped silently.
func (r *Registry) ApplyPoll(id string, res PollResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[id]
	if !ok {
		return
	}

	if res.Online {
		a.Status = StatusOnline
		seen := res.Timestamp
		a.LastSeen = &seen
		rt := res.ResponseTime
		a.ResponseTime = &rt
	} else {
		a.Status = StatusError
		a.ResponseTime = nil
	}
	a.LastError = res.Err

	if res.Screens != nil {
		a.Screens = res.Screens
	}
	if res.Screenshot != nil {
		a.Screenshot = res.Screenshot
	}
	update := res.Timestamp
	a.LastUpdate = &update
}

func viewOf(a *Agent) dto.AgentView {
	view := dto.AgentView{
		ID:           a.ID,
		URL:          a.URL,
		Name:         a.Name,
		Status:       a.Status,
		LastSeen:     a.LastSeen,
		Error:        a.LastError,
		ResponseTime: a.ResponseTime,
		LastUpdate:   a.LastUpdate,
		CreatedAt:    a.CreatedAt,
		Screens:      append([]screen.Screen(nil), a.Screens...),
	}
	if len(a.Screenshot) > 0 {
		view.Screenshot = base64.StdEncoding.EncodeToString(a.Screenshot)
	}
	return view
}
