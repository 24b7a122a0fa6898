// Package window finds and focuses the editor's main window.
//
// Candidate discovery goes through the Desktop interface so the ranking and
// focus logic can run against synthetic window lists in tests.
package window

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrNotRunning means no process with the target executable name exists.
	ErrNotRunning = errors.New("target application is not running")
	// ErrNotFound means the process exists but shows no qualifying window.
	ErrNotFound = errors.New("target application window not found")
)

// Handle is an opaque top-level window handle (HWND on Windows).
type Handle uintptr

// Rect is a window bounding rectangle in screen coordinates.
type Rect struct {
	Left, Top, Right, Bottom int32
}

func (r Rect) Width() int32  { return r.Right - r.Left }
func (r Rect) Height() int32 { return r.Bottom - r.Top }

// Area returns zero for degenerate rectangles.
func (r Rect) Area() int64 {
	w, h := int64(r.Width()), int64(r.Height())
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Candidate describes one visible top-level window.
type Candidate struct {
	PID    int32
	Handle Handle
	Title  string
	Rect   Rect
}

// Criteria controls which titles qualify as the editor's main window.
type Criteria struct {
	// TitleKeyword must appear in the title (case-insensitive).
	TitleKeyword string
	// ExcludeKeyword disqualifies a title (case-insensitive), e.g. our own branding.
	ExcludeKeyword string
}

// Qualifies reports whether a single title passes the criteria.
func (c Criteria) Qualifies(title string) bool {
	t := strings.ToLower(title)
	if ex := strings.ToLower(strings.TrimSpace(c.ExcludeKeyword)); ex != "" && strings.Contains(t, ex) {
		return false
	}
	if kw := strings.ToLower(strings.TrimSpace(c.TitleKeyword)); kw != "" && !strings.Contains(t, kw) {
		return false
	}
	return true
}

// Rank filters candidates by criteria and orders the survivors by descending
// rectangle area. Ties keep enumeration order.
func Rank(cands []Candidate, c Criteria) []Candidate {
	out := make([]Candidate, 0, len(cands))
	for _, cand := range cands {
		if c.Qualifies(cand.Title) {
			out = append(out, cand)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Rect.Area() > out[j].Rect.Area()
	})
	return out
}

// Best returns the top-ranked candidate.
func Best(cands []Candidate, c Criteria) (Candidate, bool) {
	ranked := Rank(cands, c)
	if len(ranked) == 0 {
		return Candidate{}, false
	}
	return ranked[0], true
}

// Desktop is the OS window system seen by the locator and the macro driver.
type Desktop interface {
	// TopLevelWindows lists visible top-level windows owned by pid.
	TopLevelWindows(pid int32) ([]Candidate, error)
	// Foreground brings h to the foreground and gives it keyboard focus.
	Foreground(h Handle) error
	// Bounds returns the current rectangle of h.
	Bounds(h Handle) (Rect, error)
}

// Dialogs is implemented by desktops that can drive the OS file picker.
type Dialogs interface {
	// FindFileDialog returns a visible file dialog that has an editable
	// filename field.
	FindFileDialog() (Handle, bool)
	// SetFileName writes path into the dialog's filename field.
	SetFileName(dlg Handle, path string) error
	// Submit presses the dialog's default button.
	Submit(dlg Handle) error
}
