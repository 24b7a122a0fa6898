package window

import (
	"context"
	"fmt"
	"log"
	"time"

	"capcut-bypass/src/process"
)

const defaultPollInterval = 200 * time.Millisecond

// Processes lists running instances of the target, largest resident memory first.
type Processes interface {
	Find(ctx context.Context) ([]process.Info, error)
}

// Locator finds the target's main window and brings it to the foreground.
type Locator struct {
	procs    Processes
	desktop  Desktop
	criteria Criteria
	poll     time.Duration
}

func NewLocator(procs Processes, desktop Desktop, criteria Criteria) *Locator {
	return &Locator{procs: procs, desktop: desktop, criteria: criteria, poll: defaultPollInterval}
}

// Focus locates and foregrounds the main window. It fails with ErrNotRunning
// right away when no process exists, and with ErrNotFound when no qualifying
// window shows up within timeout.
func (l *Locator) Focus(ctx context.Context, timeout time.Duration) (Handle, error) {
	procs, err := l.procs.Find(ctx)
	if err != nil {
		return 0, err
	}
	if len(procs) == 0 {
		log.Printf("Locator: no running process")
		return 0, ErrNotRunning
	}
	return l.focusLoop(ctx, procs, time.Now().Add(timeout))
}

// WaitFocus is Focus for a freshly launched editor: it also waits for the
// process itself to appear.
func (l *Locator) WaitFocus(ctx context.Context, timeout time.Duration) (Handle, error) {
	deadline := time.Now().Add(timeout)
	for {
		procs, err := l.procs.Find(ctx)
		if err != nil {
			return 0, err
		}
		if len(procs) > 0 {
			return l.focusLoop(ctx, procs, deadline)
		}
		if time.Now().After(deadline) {
			return 0, ErrNotRunning
		}
		if err := sleep(ctx, l.poll); err != nil {
			return 0, err
		}
	}
}

func (l *Locator) focusLoop(ctx context.Context, procs []process.Info, deadline time.Time) (Handle, error) {
	for attempt := 1; ; attempt++ {
		if cand, ok := l.pick(procs); ok {
			if err := l.desktop.Foreground(cand.Handle); err != nil {
				log.Printf("Locator: foreground %q failed: %v", cand.Title, err)
			}
			log.Printf("Locator: focused %q (pid %d, %dx%d) after %d attempt(s)",
				cand.Title, cand.PID, cand.Rect.Width(), cand.Rect.Height(), attempt)
			return cand.Handle, nil
		}
		if time.Now().After(deadline) {
			return 0, fmt.Errorf("%w after %d attempt(s)", ErrNotFound, attempt)
		}
		if err := sleep(ctx, l.poll); err != nil {
			return 0, err
		}
		if fresh, err := l.procs.Find(ctx); err == nil && len(fresh) > 0 {
			procs = fresh
		}
	}
}

// pick walks processes in preference order and returns the best window of
// the first one that has any qualifying window.
func (l *Locator) pick(procs []process.Info) (Candidate, bool) {
	for _, p := range procs {
		wins, err := l.desktop.TopLevelWindows(p.PID)
		if err != nil {
			log.Printf("Locator: enumerate windows of pid %d: %v", p.PID, err)
			continue
		}
		if best, ok := Best(wins, l.criteria); ok {
			return best, true
		}
	}
	return Candidate{}, false
}

// Refocus brings a remembered handle back to the foreground. Failure is
// logged and reported as false; stale handles are expected.
func (l *Locator) Refocus(h Handle) bool {
	if h == 0 {
		return false
	}
	if err := l.desktop.Foreground(h); err != nil {
		log.Printf("Locator: refocus failed: %v", err)
		return false
	}
	return true
}

// Bounds returns the rectangle of h, used for failure screenshots.
func (l *Locator) Bounds(h Handle) (Rect, error) {
	return l.desktop.Bounds(h)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
