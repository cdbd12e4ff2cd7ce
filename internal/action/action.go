package action

import (
	"errors"
	"fmt"
)

// Kind discriminates the action variants the agent can perform.
type Kind string

const (
	KindClick  Kind = "click"
	KindType   Kind = "type"
	KindScroll Kind = "scroll"
)

var ErrUnknownKind = errors.New("unknown action kind")

// Action is one pointer/keyboard operation targeted at a screen.
//
// When Relative is set, X and Y are fractions in [0, 1] of the target
// screen's width and height; the executor maps them to global pixels as
// left + x*width (and top + y*height). When Relative is false, X and Y are
// already global pixel coordinates.
type Action struct {
	Kind     Kind
	X, Y     float64
	Screen   int
	Relative bool
	Text     string // KindType payload
	Dy       int    // KindScroll signed delta, positive scrolls down
}

// Validate checks the variant once at the boundary so downstream code can
// trust the payload.
func (a Action) Validate() error {
	switch a.Kind {
	case KindClick, KindType, KindScroll:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, a.Kind)
	}
	if a.Relative {
		if a.X < 0 || a.X > 1 || a.Y < 0 || a.Y > 1 {
			return fmt.Errorf("relative coordinates must be in [0,1], got (%g, %g)", a.X, a.Y)
		}
	}
	return nil
}
