package inputblock

import (
	"fmt"
	"runtime"
)

// inputThread runs every call on one goroutine locked to its OS thread.
// Win32 BlockInput belongs to the calling thread: only that thread can lift
// the block, and only its synthetic input passes while the block is on.
type inputThread struct {
	reqs chan func()
}

func newInputThread() *inputThread {
	t := &inputThread{reqs: make(chan func())}
	go t.loop()
	return t
}

func (t *inputThread) loop() {
	runtime.LockOSThread()
	for fn := range t.reqs {
		fn()
	}
}

// run executes fn on the input thread and waits for it. A panic in fn is
// returned as an error so the thread survives.
func (t *inputThread) run(fn func() error) error {
	done := make(chan error, 1)
	t.reqs <- func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic on input thread: %v", r)
			}
		}()
		done <- fn()
	}
	return <-done
}
