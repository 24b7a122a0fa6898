// Package screenshot captures screen rectangles for failure diagnostics.
package screenshot

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/kbinani/screenshot"
)

// Region is a rectangle in virtual-screen coordinates.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

func (r Region) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

func (r Region) rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// VirtualBounds is the union of all active displays.
func VirtualBounds() (image.Rectangle, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays found")
	}
	union := screenshot.GetDisplayBounds(0)
	for i := 1; i < n; i++ {
		union = union.Union(screenshot.GetDisplayBounds(i))
	}
	return union, nil
}

// GetDisplayBounds returns the bounds of the primary display
func GetDisplayBounds() (image.Rectangle, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return image.Rectangle{}, fmt.Errorf("no active displays found")
	}
	return screenshot.GetDisplayBounds(0), nil
}

// clip limits region to screen. A region entirely off screen comes back empty.
func clip(region Region, screen image.Rectangle) Region {
	r := region.rect().Intersect(screen)
	if r.Empty() {
		return Region{}
	}
	return Region{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// CaptureRegion captures a specific region of the screen as PNG bytes.
func CaptureRegion(region Region) ([]byte, error) {
	if region.Empty() {
		return nil, fmt.Errorf("invalid region dimensions: width=%d, height=%d", region.Width, region.Height)
	}
	if screen, err := VirtualBounds(); err == nil {
		region = clip(region, screen)
		if region.Empty() {
			return nil, fmt.Errorf("region lies outside every display")
		}
	}

	img, err := screenshot.CaptureRect(region.rect())
	if err != nil {
		return nil, fmt.Errorf("failed to capture region: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image as PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName is the diagnostics file name for a capture taken at t.
func FileName(t time.Time) string {
	return "bypass-failure-" + t.Format("20060102-150405") + ".png"
}

// SaveDiagnostic writes a PNG of region into dir, or of the primary display
// when region is empty, and returns the file path.
func SaveDiagnostic(dir string, region Region) (string, error) {
	if region.Empty() {
		b, err := GetDisplayBounds()
		if err != nil {
			return "", err
		}
		region = Region{X: b.Min.X, Y: b.Min.Y, Width: b.Dx(), Height: b.Dy()}
	}
	data, err := CaptureRegion(region)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName(time.Now()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
