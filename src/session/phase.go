package session

import (
	"errors"
	"fmt"
	"sync"
)

// Phase is the step a bypass run is in.
type Phase int

const (
	Idle Phase = iota
	Focusing
	Compounding
	Snapshotting
	Triggering
	Watching
	Resolving
	Replacing
	Exporting
	Done
	Failed
)

var phaseNames = [...]string{
	Idle:         "idle",
	Focusing:     "focusing",
	Compounding:  "compounding",
	Snapshotting: "snapshotting",
	Triggering:   "triggering",
	Watching:     "watching",
	Resolving:    "resolving",
	Replacing:    "replacing",
	Exporting:    "exporting",
	Done:         "done",
	Failed:       "failed",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Terminal reports whether no further step follows.
func (p Phase) Terminal() bool { return p == Done || p == Failed }

var ErrInvalidTransition = errors.New("invalid phase transition")

var transitions = map[Phase][]Phase{
	Idle:         {Focusing},
	Focusing:     {Compounding},
	Compounding:  {Snapshotting},
	Snapshotting: {Triggering},
	Triggering:   {Watching},
	// Watching goes back to Triggering on a retry.
	Watching:  {Triggering, Resolving},
	Resolving: {Replacing},
	Replacing: {Exporting},
	Exporting: {Done},
	Done:      {Idle, Focusing},
	Failed:    {Idle, Focusing},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Phase) bool {
	if to == Failed && !from.Terminal() {
		return true
	}
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// Machine tracks the phase of one run.
type Machine struct {
	mu     sync.Mutex
	phase  Phase
	onMove func(from, to Phase)
}

func NewMachine(onMove func(from, to Phase)) *Machine {
	return &Machine{onMove: onMove}
}

func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Advance moves to the next phase or fails with ErrInvalidTransition.
func (m *Machine) Advance(to Phase) error {
	m.mu.Lock()
	from := m.phase
	if !CanTransition(from, to) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	m.phase = to
	m.mu.Unlock()
	if m.onMove != nil {
		m.onMove(from, to)
	}
	return nil
}
