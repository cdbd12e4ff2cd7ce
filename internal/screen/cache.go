package screen

import (
	"bytes"
	"fmt"
	"hash/fnv"
	"image"
	"image/jpeg"
	"sync"
	"time"
)

const DefaultJPEGQuality = 80

// Frame is one captured, encoded image for a screen at a point in time.
// A frame is superseded by the next capture of the same index, never merged.
type Frame struct {
	Screen     Screen
	Image      []byte // JPEG bytes
	Hash       uint64
	CapturedAt time.Time
}

// FrameCache wraps a Source with per-screen change detection. When a capture
// hashes identically to the previous one for the same index, the cache skips
// the JPEG encode and signals no-change so the transport can skip the
// transfer too. The hash is FNV-1a over raw pixel bytes; it detects change,
// it is not a security primitive, and a collision only yields a briefly
// stale frame.
type FrameCache struct {
	source  Source
	quality int

	mu     sync.Mutex
	hashes map[Index]uint64

	now func() time.Time
}

func NewFrameCache(source Source, quality int) *FrameCache {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &FrameCache{
		source:  source,
		quality: quality,
		hashes:  make(map[Index]uint64),
		now:     time.Now,
	}
}

// GetOrCapture captures the given screen and reports whether its content is
// unchanged since the last capture of the same index. Composite captures
// bypass the cache entirely: they are always encoded fresh and never diffed.
func (c *FrameCache) GetOrCapture(idx Index) (*Frame, bool, error) {
	img, captured, err := c.source.Capture(idx)
	if err != nil {
		return nil, false, err
	}

	hash := hashPixels(img)

	if idx != CompositeIndex {
		c.mu.Lock()
		prev, ok := c.hashes[idx]
		if ok && prev == hash {
			c.mu.Unlock()
			return &Frame{Screen: captured, Hash: hash, CapturedAt: c.now()}, true, nil
		}
		c.hashes[idx] = hash
		c.mu.Unlock()
	}

	encoded, err := encodeJPEG(img, c.quality)
	if err != nil {
		return nil, false, fmt.Errorf("encode frame: %w", err)
	}

	return &Frame{
		Screen:     captured,
		Image:      encoded,
		Hash:       hash,
		CapturedAt: c.now(),
	}, false, nil
}

// Capture grabs and encodes a frame without consulting or updating the
// change-detection table. The streaming endpoint uses this.
func (c *FrameCache) Capture(idx Index) (*Frame, error) {
	img, captured, err := c.source.Capture(idx)
	if err != nil {
		return nil, err
	}
	encoded, err := encodeJPEG(img, c.quality)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	return &Frame{
		Screen:     captured,
		Image:      encoded,
		Hash:       hashPixels(img),
		CapturedAt: c.now(),
	}, nil
}

// Screens exposes the underlying source's enumeration.
func (c *FrameCache) Screens() []Screen {
	return c.source.Screens()
}

func hashPixels(img *image.RGBA) uint64 {
	h := fnv.New64a()
	h.Write(img.Pix)
	return h.Sum64()
}

func encodeJPEG(img *image.RGBA, quality int) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
