package screen

import (
	"errors"
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

var (
	// ErrNoDisplays is returned when the platform reports zero active displays.
	ErrNoDisplays = errors.New("no active displays")
	// ErrOutOfRange is returned for a capture request addressing a screen
	// index the source does not have.
	ErrOutOfRange = errors.New("invalid screen index")
)

// Source abstracts monitor enumeration and raw capture so the HTTP layer and
// the frame cache can be tested against a stub.
type Source interface {
	// Screens returns all displays in stable index order.
	Screens() []Screen
	// Capture grabs the given display, or the union of all displays when
	// idx is CompositeIndex. The returned Screen identifies what was
	// actually captured, which may be the primary display after a fallback.
	Capture(idx Index) (*image.RGBA, Screen, error)
}

// DisplaySource captures real displays via the platform screenshot API.
// Display 0 is treated as primary, matching the enumeration order of the
// underlying library.
type DisplaySource struct{}

func NewDisplaySource() *DisplaySource {
	return &DisplaySource{}
}

func (s *DisplaySource) Screens() []Screen {
	n := screenshot.NumActiveDisplays()
	screens := make([]Screen, 0, n)
	for i := 0; i < n; i++ {
		bounds := screenshot.GetDisplayBounds(i)
		screens = append(screens, Screen{
			Index:   Index(i),
			Primary: i == 0,
			Left:    bounds.Min.X,
			Top:     bounds.Min.Y,
			Width:   bounds.Dx(),
			Height:  bounds.Dy(),
			Name:    fmt.Sprintf("Display %d", i+1),
		})
	}
	return screens
}

func (s *DisplaySource) Capture(idx Index) (*image.RGBA, Screen, error) {
	screens := s.Screens()
	if len(screens) == 0 {
		return nil, Screen{}, ErrNoDisplays
	}

	if idx == CompositeIndex {
		return s.captureComposite(screens)
	}

	if int(idx) < 0 || int(idx) >= len(screens) {
		return nil, Screen{}, fmt.Errorf("%w: %d (%d available)", ErrOutOfRange, idx, len(screens))
	}

	target := screens[idx]
	img, err := screenshot.CaptureRect(boundsOf(target))
	if err != nil {
		// Keep the monitoring loop alive: retry against the primary
		// display before giving up.
		return s.capturePrimary(screens, err)
	}
	return img, target, nil
}

// captureComposite grabs one image spanning the union of all display
// bounding boxes. Composite frames are never cached or diffed.
func (s *DisplaySource) captureComposite(screens []Screen) (*image.RGBA, Screen, error) {
	union := boundsOf(screens[0])
	for _, sc := range screens[1:] {
		union = union.Union(boundsOf(sc))
	}

	img, err := screenshot.CaptureRect(union)
	if err != nil {
		return s.capturePrimary(screens, err)
	}

	composite := Screen{
		Index:  CompositeIndex,
		Left:   union.Min.X,
		Top:    union.Min.Y,
		Width:  union.Dx(),
		Height: union.Dy(),
		Name:   "All Screens",
	}
	return img, composite, nil
}

func (s *DisplaySource) capturePrimary(screens []Screen, cause error) (*image.RGBA, Screen, error) {
	primary := screens[0]
	img, err := screenshot.CaptureRect(boundsOf(primary))
	if err != nil {
		return nil, Screen{}, fmt.Errorf("capture failed: %w", cause)
	}
	return img, primary, nil
}

func boundsOf(s Screen) image.Rectangle {
	return image.Rect(s.Left, s.Top, s.Left+s.Width, s.Top+s.Height)
}
