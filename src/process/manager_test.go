package process

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gops "github.com/shirou/gopsutil/v4/process"
)

func fakeManager(procs *[]Info, mu *sync.Mutex) *Manager {
	m := NewManager("CapCut.exe", nil)
	m.list = func(ctx context.Context, name string) ([]Info, error) {
		mu.Lock()
		defer mu.Unlock()
		return append([]Info(nil), (*procs)...), nil
	}
	return m
}

func TestFindFiltersAndOrdersByRSS(t *testing.T) {
	var mu sync.Mutex
	procs := []Info{
		{PID: 1, Name: "explorer.exe", RSS: 900},
		{PID: 2, Name: "CapCut.exe", RSS: 100, Exe: `C:\small\CapCut.exe`},
		{PID: 3, Name: "capcut.exe", RSS: 500, Exe: `C:\big\CapCut.exe`},
	}
	m := fakeManager(&procs, &mu)

	got, err := m.Find(context.Background())
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].PID != 3 {
		t.Errorf("expected largest RSS first, got pid %d", got[0].PID)
	}
	if m.LastExe() != `C:\big\CapCut.exe` {
		t.Errorf("LastExe = %q", m.LastExe())
	}
}

func TestFindListError(t *testing.T) {
	m := NewManager("capcut.exe", nil)
	m.list = func(ctx context.Context, name string) ([]Info, error) { return nil, errors.New("denied") }
	if _, err := m.Find(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestStopWaitsForExit(t *testing.T) {
	var mu sync.Mutex
	procs := []Info{{PID: 7, Name: "capcut.exe"}}
	m := fakeManager(&procs, &mu)

	var terminated []int32
	m.terminate = func(ctx context.Context, pid int32) error {
		terminated = append(terminated, pid)
		go func() {
			time.Sleep(100 * time.Millisecond)
			mu.Lock()
			procs = nil
			mu.Unlock()
		}()
		return nil
	}

	if err := m.Stop(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(terminated) != 1 || terminated[0] != 7 {
		t.Errorf("unexpected terminate calls: %v", terminated)
	}
}

func TestStopTimesOut(t *testing.T) {
	var mu sync.Mutex
	procs := []Info{{PID: 7, Name: "capcut.exe"}}
	m := fakeManager(&procs, &mu)
	m.terminate = func(ctx context.Context, pid int32) error { return errors.New("access denied") }

	if err := m.Stop(context.Background(), 300*time.Millisecond); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestRelaunchOrder(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "missing.exe")
	second := filepath.Join(dir, "CapCut.exe")
	if err := os.WriteFile(second, []byte("x"), 0o755); err != nil {
		t.Fatal(err)
	}

	m := NewManager("capcut-test-does-not-exist.exe", []string{first, second})
	var started []string
	m.start = func(path string) error {
		started = append(started, path)
		return nil
	}

	got, err := m.Relaunch()
	if err != nil {
		t.Fatalf("Relaunch: %v", err)
	}
	if got != second || len(started) != 1 {
		t.Errorf("Relaunch started %v, returned %q", started, got)
	}
}

func TestRelaunchNoCandidate(t *testing.T) {
	m := NewManager("capcut-test-does-not-exist.exe", []string{filepath.Join(t.TempDir(), "nope.exe")})
	m.start = func(path string) error { return nil }
	if _, err := m.Relaunch(); !errors.Is(err, ErrNoExecutable) {
		t.Fatalf("expected ErrNoExecutable, got %v", err)
	}
}

type fakeHandle struct {
	name    string
	queried *int
}

func (f fakeHandle) NameWithContext(context.Context) (string, error) { return f.name, nil }
func (f fakeHandle) MemoryInfoWithContext(context.Context) (*gops.MemoryInfoStat, error) {
	*f.queried++
	return &gops.MemoryInfoStat{RSS: 42}, nil
}
func (f fakeHandle) ExeWithContext(context.Context) (string, error) {
	*f.queried++
	return `C:\Apps\` + f.name, nil
}

func TestCollectQueriesOnlyMatchingProcesses(t *testing.T) {
	var queried int
	procs := []sysProc{
		{pid: 1, handle: fakeHandle{name: "explorer.exe", queried: &queried}},
		{pid: 2, handle: fakeHandle{name: "CapCut.exe", queried: &queried}},
		{pid: 3, handle: fakeHandle{name: "svchost.exe", queried: &queried}},
	}
	got := collect(context.Background(), procs, "capcut.exe")
	if len(got) != 1 || got[0].PID != 2 || got[0].RSS != 42 || got[0].Exe != `C:\Apps\CapCut.exe` {
		t.Fatalf("collect = %+v", got)
	}
	if queried != 2 {
		t.Errorf("memory/exe queried %d times, want 2 (matching process only)", queried)
	}
}
