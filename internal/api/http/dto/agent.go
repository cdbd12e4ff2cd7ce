package dto

import "github.com/screenfleet/screenfleet/internal/screen"

// Wire shapes for the agent HTTP surface. The orchestrator's client decodes
// the same structs, so both sides stay on one contract.

type StatusResponse struct {
	Status   string          `json:"status"`
	Hostname string          `json:"hostname"`
	Time     float64         `json:"time"`
	Screens  []screen.Screen `json:"screens"`
}

type ScreensResponse struct {
	Screens []screen.Screen `json:"screens"`
	Count   int             `json:"count"`
}

// ScreenshotResponse carries either image bytes or the no-change sentinel
// telling the caller to reuse its last received frame.
type ScreenshotResponse struct {
	Image            string         `json:"image,omitempty"`
	Screen           *screen.Screen `json:"screen,omitempty"`
	ScreensAvailable int            `json:"screens_available,omitempty"`
	NoChange         bool           `json:"no_change,omitempty"`
}

type ExecRequest struct {
	Action      string     `json:"action"`
	Coordinates [2]float64 `json:"coordinates"`
	Screen      int        `json:"screen"`
	Relative    *bool      `json:"relative,omitempty"`
	Text        string     `json:"text,omitempty"`
	Dy          int        `json:"dy,omitempty"`
}

// IsRelative defaults to true when the field is absent, matching the agent
// protocol's historical behavior.
func (r ExecRequest) IsRelative() bool {
	return r.Relative == nil || *r.Relative
}

type ExecResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
