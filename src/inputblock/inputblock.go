// Package inputblock suspends physical keyboard and mouse input for the
// duration of a scripted UI sequence.
//
// Every scope is released exactly once: by its owner, by the watchdog when
// the ceiling elapses, or by ReleaseAll from an exit hook. The OS block is
// reference counted so nested scopes keep input suspended until the
// outermost one ends. Block, Unblock and Inject all execute on one locked
// OS thread, whichever goroutine asks.
package inputblock

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// DefaultCeiling bounds how long input can stay blocked.
const DefaultCeiling = 10 * time.Second

// System toggles the OS-level input block.
type System interface {
	Block() error
	Unblock() error
}

// Overlay is the visible banner shown while input is blocked.
type Overlay interface {
	Show(reason string)
	Hide()
}

type noOverlay struct{}

func (noOverlay) Show(string) {}
func (noOverlay) Hide()       {}

// Blocker hands out input-blocking scopes.
type Blocker struct {
	sys     System
	overlay Overlay
	ceiling time.Duration
	thread  *inputThread

	mu      sync.Mutex
	active  int
	blocked bool
}

// New returns a Blocker. A nil overlay shows nothing; a non-positive ceiling
// uses DefaultCeiling.
func New(sys System, overlay Overlay, ceiling time.Duration) *Blocker {
	if overlay == nil {
		overlay = noOverlay{}
	}
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Blocker{sys: sys, overlay: overlay, ceiling: ceiling, thread: newInputThread()}
}

// Scope is one acquisition of the blocker.
type Scope struct {
	b      *Blocker
	id     uint64
	reason string
	start  time.Time
	once   sync.Once
	timer  *time.Timer
}

// Acquire shows the overlay and blocks input. Failing to block (typically a
// missing privilege) is logged and the scope is still returned.
func (b *Blocker) Acquire(reason string) *Scope {
	s := &Scope{b: b, reason: reason, start: time.Now()}

	b.mu.Lock()
	b.active++
	first := b.active == 1
	b.mu.Unlock()

	b.overlay.Show(reason)
	if first {
		if err := b.thread.run(b.sys.Block); err != nil {
			log.Printf("Blocker: could not block input for %q (continuing unblocked): %v", reason, err)
		} else {
			b.mu.Lock()
			b.blocked = true
			b.mu.Unlock()
		}
	}

	s.id = track(s)
	s.timer = time.AfterFunc(b.ceiling, func() {
		log.Printf("Blocker: watchdog fired after %v for %q, forcing release", b.ceiling, reason)
		s.Release()
	})
	log.Printf("Blocker: acquired for %q", reason)
	return s
}

// Release ends the scope. It is idempotent and safe from any goroutine.
func (s *Scope) Release() {
	s.once.Do(func() {
		if s.timer != nil {
			s.timer.Stop()
		}
		untrack(s.id)
		s.b.leave()
		log.Printf("Blocker: released %q after %v", s.reason, time.Since(s.start).Round(time.Millisecond))
	})
}

func (b *Blocker) leave() {
	b.mu.Lock()
	b.active--
	last := b.active <= 0
	if last {
		b.active = 0
	}
	unblock := last && b.blocked
	if unblock {
		b.blocked = false
	}
	b.mu.Unlock()

	if unblock {
		if err := b.thread.run(b.sys.Unblock); err != nil {
			log.Printf("Blocker: unblock failed: %v", err)
		}
	}
	if last {
		b.overlay.Hide()
	}
}

// Do runs fn inside a scope. The scope is released on every exit path; a
// panic in fn is recovered and returned as an error.
func (b *Blocker) Do(reason string, fn func() error) (err error) {
	s := b.Acquire(reason)
	defer s.Release()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Blocker: panic during %q: %v", reason, r)
			err = fmt.Errorf("%s: panic: %v", reason, r)
		}
	}()
	return fn()
}

// Inject runs fn, typically a synthetic keystroke, on the thread that holds
// the block so it is not swallowed by it.
func (b *Blocker) Inject(fn func() error) error {
	return b.thread.run(fn)
}

// Active reports the number of scopes not yet released.
func (b *Blocker) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

var (
	registryMu sync.Mutex
	nextID     uint64
	registry   = map[uint64]*Scope{}
)

func track(s *Scope) uint64 {
	registryMu.Lock()
	defer registryMu.Unlock()
	nextID++
	registry[nextID] = s
	return nextID
}

func untrack(id uint64) {
	registryMu.Lock()
	delete(registry, id)
	registryMu.Unlock()
}

// ReleaseAll force-releases every live scope of every Blocker. Entry points
// call it from signal handlers, exit paths and recovered panics.
func ReleaseAll() {
	registryMu.Lock()
	scopes := make([]*Scope, 0, len(registry))
	for _, s := range registry {
		scopes = append(scopes, s)
	}
	registryMu.Unlock()

	if len(scopes) > 0 {
		log.Printf("Blocker: force-releasing %d scope(s)", len(scopes))
	}
	for _, s := range scopes {
		s.Release()
	}
}
