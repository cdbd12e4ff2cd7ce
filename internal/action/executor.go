package action

import (
	"fmt"
	"log/slog"

	"github.com/screenfleet/screenfleet/internal/screen"
)

// Mode gates whether actions have physical effect. It is fixed at startup
// for the whole service.
type Mode int

const (
	// DryRun records actions without touching the driver.
	DryRun Mode = iota
	// LiveRun performs the physical effect.
	LiveRun
)

func (m Mode) String() string {
	if m == LiveRun {
		return "live-run"
	}
	return "dry-run"
}

// Executor resolves an action's coordinates against the current screen
// layout and dispatches it to the driver.
type Executor struct {
	source screen.Source
	driver Driver
	mode   Mode
}

func NewExecutor(source screen.Source, driver Driver, mode Mode) *Executor {
	return &Executor{source: source, driver: driver, mode: mode}
}

func (e *Executor) Mode() Mode {
	return e.mode
}

// Execute performs the action, or in dry-run mode only resolves and logs it.
// The caller is responsible for auditing before calling Execute.
func (e *Executor) Execute(a Action) error {
	if err := a.Validate(); err != nil {
		return err
	}

	x, y := e.resolve(a)

	if e.mode == DryRun {
		slog.Info("Action resolved (dry-run)",
			"kind", a.Kind,
			"x", x,
			"y", y,
			"screen", a.Screen)
		return nil
	}

	var err error
	switch a.Kind {
	case KindClick:
		err = e.driver.Click(x, y)
	case KindType:
		// Click first to establish focus, then emit the text.
		if err = e.driver.Click(x, y); err == nil {
			err = e.driver.TypeText(a.Text)
		}
	case KindScroll:
		if err = e.driver.MoveMouse(x, y); err == nil {
			err = e.driver.Scroll(a.Dy)
		}
	}
	if err != nil {
		return fmt.Errorf("execution failed: %w", err)
	}
	return nil
}

// resolve maps the action's coordinates to global pixels. An out-of-range
// screen index is not an error: the coordinates are then taken as already
// global, so a caller with stale screen info still lands somewhere sane.
func (e *Executor) resolve(a Action) (int, int) {
	screens := e.source.Screens()
	if a.Screen < 0 || a.Screen >= len(screens) {
		return int(a.X), int(a.Y)
	}

	target := screens[a.Screen]
	if !a.Relative {
		return int(a.X), int(a.Y)
	}
	x := target.Left + int(a.X*float64(target.Width))
	y := target.Top + int(a.Y*float64(target.Height))
	return x, y
}
