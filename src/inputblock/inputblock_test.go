package inputblock

import (
	"bytes"
	"errors"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"
)

type fakeSystem struct {
	mu       sync.Mutex
	blocks   int
	unblocks int
	blockErr error
}

func (f *fakeSystem) Block() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blockErr != nil {
		return f.blockErr
	}
	f.blocks++
	return nil
}

func (f *fakeSystem) Unblock() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unblocks++
	return nil
}

func (f *fakeSystem) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blocks, f.unblocks
}

type fakeOverlay struct {
	mu     sync.Mutex
	shown  []string
	hidden int
}

func (f *fakeOverlay) Show(reason string) {
	f.mu.Lock()
	f.shown = append(f.shown, reason)
	f.mu.Unlock()
}

func (f *fakeOverlay) Hide() {
	f.mu.Lock()
	f.hidden++
	f.mu.Unlock()
}

func TestDoBalancesOnEveryExitPath(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		fn      func() error
		wantErr bool
	}{
		{name: "normal", fn: func() error { return nil }},
		{name: "error", fn: func() error { return boom }, wantErr: true},
		{name: "panic", fn: func() error { panic("kaboom") }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := &fakeSystem{}
			ov := &fakeOverlay{}
			b := New(sys, ov, time.Minute)

			err := b.Do("test "+tt.name, tt.fn)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Do error = %v, wantErr %v", err, tt.wantErr)
			}
			blocks, unblocks := sys.counts()
			if blocks != 1 || unblocks != 1 {
				t.Errorf("blocks=%d unblocks=%d, want 1/1", blocks, unblocks)
			}
			if ov.hidden != 1 || len(ov.shown) != 1 {
				t.Errorf("overlay shown=%v hidden=%d", ov.shown, ov.hidden)
			}
			if b.Active() != 0 {
				t.Errorf("Active = %d after Do", b.Active())
			}
		})
	}
}

func TestDoReturnsFnError(t *testing.T) {
	boom := errors.New("boom")
	b := New(&fakeSystem{}, nil, time.Minute)
	if err := b.Do("x", func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected fn error to pass through, got %v", err)
	}
}

func TestWatchdogForcesRelease(t *testing.T) {
	sys := &fakeSystem{}
	ov := &fakeOverlay{}
	b := New(sys, ov, 50*time.Millisecond)

	s := b.Acquire("stuck step")
	deadline := time.Now().Add(2 * time.Second)
	for b.Active() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("watchdog did not release the scope")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, unblocks := sys.counts(); unblocks != 1 {
		t.Errorf("unblocks = %d, want 1", unblocks)
	}

	// The late owner release must not unblock twice.
	s.Release()
	if _, unblocks := sys.counts(); unblocks != 1 {
		t.Errorf("unblocks after late release = %d, want 1", unblocks)
	}
}

func TestReleaseStopsWatchdog(t *testing.T) {
	sys := &fakeSystem{}
	b := New(sys, nil, 30*time.Millisecond)

	s := b.Acquire("quick")
	s.Release()
	time.Sleep(80 * time.Millisecond)
	if _, unblocks := sys.counts(); unblocks != 1 {
		t.Errorf("unblocks = %d, want exactly 1", unblocks)
	}
}

func TestAcquireFailureIsNonFatal(t *testing.T) {
	sys := &fakeSystem{blockErr: errors.New("access denied")}
	ov := &fakeOverlay{}
	b := New(sys, ov, time.Minute)

	ran := false
	if err := b.Do("unprivileged", func() error { ran = true; return nil }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !ran {
		t.Fatal("fn did not run after block failure")
	}
	if _, unblocks := sys.counts(); unblocks != 0 {
		t.Errorf("unblock called %d times for a scope that never blocked", unblocks)
	}
	if ov.hidden != 1 {
		t.Errorf("overlay hidden %d times, want 1", ov.hidden)
	}
}

func TestNestedScopesKeepInputBlocked(t *testing.T) {
	sys := &fakeSystem{}
	b := New(sys, nil, time.Minute)

	outer := b.Acquire("outer")
	inner := b.Acquire("inner")
	inner.Release()
	if _, unblocks := sys.counts(); unblocks != 0 {
		t.Fatalf("inner release unblocked input")
	}
	outer.Release()
	blocks, unblocks := sys.counts()
	if blocks != 1 || unblocks != 1 {
		t.Errorf("blocks=%d unblocks=%d, want 1/1", blocks, unblocks)
	}
}

func TestReleaseAll(t *testing.T) {
	sys := &fakeSystem{}
	b := New(sys, nil, time.Minute)
	b.Acquire("a")
	b.Acquire("b")

	ReleaseAll()

	if b.Active() != 0 {
		t.Errorf("Active = %d after ReleaseAll", b.Active())
	}
	if _, unblocks := sys.counts(); unblocks != 1 {
		t.Errorf("unblocks = %d, want 1", unblocks)
	}
}

func goroutineID() uint64 {
	buf := make([]byte, 64)
	buf = buf[:runtime.Stack(buf, false)]
	buf = bytes.TrimPrefix(buf, []byte("goroutine "))
	id, _ := strconv.ParseUint(string(buf[:bytes.IndexByte(buf, ' ')]), 10, 64)
	return id
}

// threadSystem records the goroutine of every OS call.
type threadSystem struct {
	mu  sync.Mutex
	ids []uint64
}

func (s *threadSystem) record() error {
	s.mu.Lock()
	s.ids = append(s.ids, goroutineID())
	s.mu.Unlock()
	return nil
}

func (s *threadSystem) Block() error   { return s.record() }
func (s *threadSystem) Unblock() error { return s.record() }

func (s *threadSystem) distinct() map[uint64]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[uint64]bool{}
	for _, id := range s.ids {
		out[id] = true
	}
	return out
}

func TestBlockUnblockAndInjectShareOneThread(t *testing.T) {
	sys := &threadSystem{}
	b := New(sys, nil, 20*time.Millisecond)

	// The watchdog fires while fn still runs and injects keystrokes.
	err := b.Do("slow step", func() error {
		for i := 0; i < 5; i++ {
			if err := b.Inject(sys.record); err != nil {
				return err
			}
			time.Sleep(20 * time.Millisecond)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	// ReleaseAll from yet another goroutine.
	b.Acquire("exit hook")
	done := make(chan struct{})
	go func() {
		ReleaseAll()
		close(done)
	}()
	<-done

	ids := sys.distinct()
	if len(sys.ids) < 9 {
		t.Fatalf("recorded %d calls, want block+5 injects+unblock+block+unblock", len(sys.ids))
	}
	if len(ids) != 1 {
		t.Errorf("input calls ran on %d goroutines, want 1: %v", len(ids), sys.ids)
	}
	if ids[goroutineID()] {
		t.Error("input calls ran on the caller's goroutine")
	}
}

func TestInjectRecoversPanic(t *testing.T) {
	b := New(&fakeSystem{}, nil, time.Minute)
	if err := b.Inject(func() error { panic("bad key") }); err == nil {
		t.Fatal("expected error from panicking inject")
	}
	if err := b.Inject(func() error { return nil }); err != nil {
		t.Fatalf("input thread did not survive the panic: %v", err)
	}
}
