// Package process discovers, stops and relaunches the target editor process.
package process

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"time"

	gops "github.com/shirou/gopsutil/v4/process"
)

// Info is a snapshot of one running instance of the target executable.
type Info struct {
	PID  int32
	Name string
	RSS  uint64
	Exe  string
}

// ErrNoExecutable is returned by Relaunch when no install candidate exists.
var ErrNoExecutable = errors.New("no editor executable found")

// Lister enumerates running processes named name (case-insensitive). The
// default uses gopsutil.
type Lister func(ctx context.Context, name string) ([]Info, error)

// Manager controls the lifecycle of the target application by executable name.
type Manager struct {
	exe        string
	candidates []string
	pathName   string

	list      Lister
	terminate func(ctx context.Context, pid int32) error
	start     func(path string) error

	mu      sync.Mutex
	lastExe string
}

// NewManager creates a manager for exe (matched case-insensitively).
// candidates are well-known install paths tried by Relaunch.
func NewManager(exe string, candidates []string) *Manager {
	return &Manager{
		exe:        strings.ToLower(exe),
		candidates: candidates,
		pathName:   strings.TrimSuffix(exe, ".exe"),
		list:       listSystem,
		terminate:  terminatePID,
		start:      startDetached,
	}
}

// Find returns running instances ordered by descending resident memory.
func (m *Manager) Find(ctx context.Context) ([]Info, error) {
	all, err := m.list(ctx, m.exe)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	var out []Info
	for _, p := range all {
		if strings.EqualFold(p.Name, m.exe) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RSS > out[j].RSS })

	for _, p := range out {
		if p.Exe != "" {
			m.mu.Lock()
			m.lastExe = p.Exe
			m.mu.Unlock()
			break
		}
	}
	return out, nil
}

// Running reports whether at least one instance exists.
func (m *Manager) Running(ctx context.Context) bool {
	procs, err := m.Find(ctx)
	return err == nil && len(procs) > 0
}

// LastExe is the executable path of the most recently seen instance.
func (m *Manager) LastExe() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastExe
}

// Stop terminates every instance and waits up to wait for all of them to exit.
// Per-process termination failures are logged and skipped.
func (m *Manager) Stop(ctx context.Context, wait time.Duration) error {
	procs, err := m.Find(ctx)
	if err != nil {
		return err
	}
	if len(procs) == 0 {
		return nil
	}
	for _, p := range procs {
		if err := m.terminate(ctx, p.PID); err != nil {
			log.Printf("Process: terminate pid %d failed: %v", p.PID, err)
		}
	}

	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if !m.Running(ctx) {
			log.Printf("Process: %s stopped", m.exe)
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s still running after %v", m.exe, wait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Relaunch starts the editor from the last seen executable path, then the
// install candidates, then the name on PATH. It returns the launched path.
func (m *Manager) Relaunch() (string, error) {
	for _, path := range m.launchCandidates() {
		if err := m.start(path); err != nil {
			log.Printf("Process: launch %s failed: %v", path, err)
			continue
		}
		log.Printf("Process: launched %s", path)
		return path, nil
	}
	return "", ErrNoExecutable
}

func (m *Manager) launchCandidates() []string {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		p = strings.TrimSpace(p)
		if p == "" || seen[strings.ToLower(p)] {
			return
		}
		if st, err := os.Stat(p); err != nil || st.IsDir() {
			return
		}
		seen[strings.ToLower(p)] = true
		out = append(out, p)
	}
	add(m.LastExe())
	for _, c := range m.candidates {
		add(c)
	}
	if p, err := exec.LookPath(m.pathName); err == nil {
		add(p)
	}
	return out
}

func listSystem(ctx context.Context, name string) ([]Info, error) {
	procs, err := gops.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	sys := make([]sysProc, len(procs))
	for i, p := range procs {
		sys[i] = sysProc{pid: p.Pid, handle: p}
	}
	return collect(ctx, sys, name), nil
}

// procHandle is the part of *gopsutil.Process that collect reads.
type procHandle interface {
	NameWithContext(ctx context.Context) (string, error)
	MemoryInfoWithContext(ctx context.Context) (*gops.MemoryInfoStat, error)
	ExeWithContext(ctx context.Context) (string, error)
}

type sysProc struct {
	pid    int32
	handle procHandle
}

// collect reads the name of every process but queries memory and exe path
// only for the ones named name; those calls open a handle per process.
func collect(ctx context.Context, procs []sysProc, name string) []Info {
	var out []Info
	for _, p := range procs {
		n, err := p.handle.NameWithContext(ctx)
		if err != nil || !strings.EqualFold(n, name) {
			continue
		}
		info := Info{PID: p.pid, Name: n}
		if mem, err := p.handle.MemoryInfoWithContext(ctx); err == nil && mem != nil {
			info.RSS = mem.RSS
		}
		if exe, err := p.handle.ExeWithContext(ctx); err == nil {
			info.Exe = exe
		}
		out = append(out, info)
	}
	return out
}

func terminatePID(ctx context.Context, pid int32) error {
	p, err := gops.NewProcessWithContext(ctx, pid)
	if err != nil {
		return err
	}
	if err := p.TerminateWithContext(ctx); err != nil {
		return p.KillWithContext(ctx)
	}
	return nil
}

func startDetached(path string) error {
	cmd := exec.Command(path)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
