package screenshot

import (
	"image"
	"testing"
	"time"
)

func TestClip(t *testing.T) {
	screen := image.Rect(0, 0, 1920, 1080)
	tests := []struct {
		name string
		in   Region
		want Region
	}{
		{"inside", Region{X: 10, Y: 20, Width: 100, Height: 50}, Region{X: 10, Y: 20, Width: 100, Height: 50}},
		{"overhang", Region{X: 1900, Y: -10, Width: 100, Height: 50}, Region{X: 1900, Y: 0, Width: 20, Height: 40}},
		{"offscreen", Region{X: 3000, Y: 0, Width: 100, Height: 100}, Region{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clip(tt.in, screen); got != tt.want {
				t.Errorf("clip = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCaptureRegionRejectsEmpty(t *testing.T) {
	if _, err := CaptureRegion(Region{Width: 0, Height: 10}); err == nil {
		t.Error("Expected error for invalid region dimensions")
	}
}

func TestFileName(t *testing.T) {
	got := FileName(time.Date(2025, 3, 1, 14, 5, 9, 0, time.UTC))
	if got != "bypass-failure-20250301-140509.png" {
		t.Errorf("FileName = %q", got)
	}
}

func TestSaveDiagnostic(t *testing.T) {
	path, err := SaveDiagnostic(t.TempDir(), Region{})
	if err != nil {
		t.Skipf("no display available: %v", err)
	}
	if path == "" {
		t.Error("empty path")
	}
}
