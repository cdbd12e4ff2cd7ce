package fleet

import (
	"context"
	"log/slog"
	"time"

	"github.com/screenfleet/screenfleet/internal/screen"
)

const (
	// DefaultCycleInterval is the pause after a full sweep.
	DefaultCycleInterval = 5 * time.Second
	// DefaultStagger is the pause between agents within a sweep, bounding
	// the load spike across the fleet.
	DefaultStagger = 500 * time.Millisecond
)

// Poller sweeps all registered agents on a fixed cadence, writing results
// back through the registry and publishing one aggregated snapshot per
// sweep. Agents are polled sequentially; one agent's failure marks only
// that agent and never halts the sweep.
type Poller struct {
	registry    *Registry
	broadcaster *Broadcaster
	cycle       time.Duration
	stagger     time.Duration

	now func() time.Time
}

func NewPoller(registry *Registry, broadcaster *Broadcaster, cycle, stagger time.Duration) *Poller {
	if cycle <= 0 {
		cycle = DefaultCycleInterval
	}
	if stagger < 0 {
		stagger = DefaultStagger
	}
	return &Poller{
		registry:    registry,
		broadcaster: broadcaster,
		cycle:       cycle,
		stagger:     stagger,
		now:         time.Now,
	}
}

// Run sweeps until ctx is cancelled. A failed poll is reflected as agent
// status and naturally retried next cycle; there is no backoff.
func (p *Poller) Run(ctx context.Context) {
	slog.Info("Poll loop started", "cycle", p.cycle, "stagger", p.stagger)
	for {
		ids := p.registry.IDs()
		for i, id := range ids {
			p.PollOne(id)
			// Stagger between agents only; the snapshot publish must not
			// trail the sweep by one pause.
			if i < len(ids)-1 {
				if !sleepCtx(ctx, p.stagger) {
					slog.Info("Poll loop stopped")
					return
				}
			}
		}

		p.broadcaster.Publish(p.registry.Snapshot())

		if !sleepCtx(ctx, p.cycle) {
			slog.Info("Poll loop stopped")
			return
		}
	}
}

// Refresh polls one agent immediately and pushes a fresh snapshot.
func (p *Poller) Refresh(id string) error {
	if _, ok := p.registry.Client(id); !ok {
		return ErrAgentNotFound
	}
	p.PollOne(id)
	p.broadcaster.Publish(p.registry.Snapshot())
	return nil
}

// PollOne calls status, screens, and a primary-screen screenshot for one
// agent, then writes the result back under the registry lock. No lock is
// held across the network calls.
func (p *Poller) PollOne(id string) {
	client, ok := p.registry.Client(id)
	if !ok {
		// Removed mid-cycle; skip.
		return
	}

	start := p.now()
	result := PollResult{Timestamp: start}

	if _, err := client.Status(); err != nil {
		result.Online = false
		result.Err = err.Error()
		p.registry.ApplyPoll(id, result)
		slog.Debug("Agent poll failed", "agent_id", id, "error", err)
		return
	}
	result.Online = true

	if screens, err := client.Screens(); err == nil {
		result.Screens = screens
	} else {
		result.Screens = []screen.Screen{}
	}

	if shot, err := client.Screenshot(0); err == nil {
		result.Screenshot = shot.Image
	} else {
		result.Err = err.Error()
	}

	result.ResponseTime = float64(p.now().Sub(start).Microseconds()) / 1000
	p.registry.ApplyPoll(id, result)
}

// sleepCtx sleeps for d unless ctx is cancelled first. Returns false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
