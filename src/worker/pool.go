package worker

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"sync"

	"capcut-bypass/src/inputblock"
)

// Job is one unit of automation work. text is its result payload.
type Job func(ctx context.Context) (text string, err error)

// ResultCallback is invoked on job completion (from a worker goroutine).
// The event loop should pass a closure that posts back into the event loop safely.
type ResultCallback func(text string, err error)

// Pool is a fixed-size worker pool with a 1-slot input queue (strict back-pressure).
type Pool struct {
	jobs chan job
	wg   sync.WaitGroup
}

type job struct {
	ctx  context.Context
	name string
	run  Job
	cb   ResultCallback
}

// New creates a worker pool. Size defaults to 1 when size<=0: editor
// automation must never run twice at once. Queue is 1 slot.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	p := &Pool{jobs: make(chan job, 1)}
	p.start(size)
	return p
}

func (p *Pool) start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.jobs {
				log.Printf("Worker: starting %s", j.name)
				text, err := runSafely(j)
				log.Printf("Worker: %s completed, err=%v", j.name, err)
				if j.cb != nil {
					j.cb(text, err)
				}
			}
		}()
	}
}

// runSafely converts a panic into an error and drops any input block the
// job left behind.
func runSafely(j job) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Worker: PANIC in %s: %v\n%s", j.name, r, debug.Stack())
			inputblock.ReleaseAll()
			text, err = "", fmt.Errorf("%s: internal error: %v", j.name, r)
		}
	}()
	return j.run(j.ctx)
}

// Submit enqueues a job if the single-slot queue is free. Returns false if dropped.
func (p *Pool) Submit(ctx context.Context, name string, run Job, cb ResultCallback) bool {
	select {
	case p.jobs <- job{ctx: ctx, name: name, run: run, cb: cb}:
		return true
	default:
		return false
	}
}

// Close stops the pool after draining current work.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}
