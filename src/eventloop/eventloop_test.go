package eventloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"capcut-bypass/src/session"
	"capcut-bypass/src/singleinstance"
)

type fakeServer struct {
	conns chan singleinstance.Conn
}

func newFakeServer() *fakeServer { return &fakeServer{conns: make(chan singleinstance.Conn, 4)} }

func (s *fakeServer) Start(ctx context.Context) error { return nil }
func (s *fakeServer) Port() int                       { return 49560 }
func (s *fakeServer) Close() error                    { return nil }
func (s *fakeServer) Next(ctx context.Context) (singleinstance.Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case c := <-s.conns:
		return c, nil
	}
}

type fakeConn struct {
	action singleinstance.Action
	reply  chan string
}

func newFakeConn(a singleinstance.Action) *fakeConn {
	return &fakeConn{action: a, reply: make(chan string, 2)}
}

func (c *fakeConn) Request() singleinstance.Request  { return singleinstance.Request{Action: c.action} }
func (c *fakeConn) RespondSuccess(text string) error { c.reply <- "SUCCESS " + text; return nil }
func (c *fakeConn) RespondError(msg string) error    { c.reply <- "ERROR " + msg; return nil }
func (c *fakeConn) Close() error                     { return nil }

type fakeRunner struct {
	release  chan struct{}
	started  chan string
	restored error
}

func (r *fakeRunner) Run(ctx context.Context, opts session.RunOptions) (session.Result, error) {
	r.started <- "run"
	<-r.release
	return session.Result{FinalPath: `C:\drafts\clip.mp4`}, nil
}

func (r *fakeRunner) Restore(ctx context.Context, hooks session.Hooks) error {
	r.started <- "restore"
	return r.restored
}

func (r *fakeRunner) Install(ctx context.Context, hooks session.Hooks, confirmed bool) (int, error) {
	r.started <- "install"
	return 3, nil
}

func waitReply(t *testing.T, c *fakeConn) string {
	t.Helper()
	select {
	case r := <-c.reply:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no reply")
		return ""
	}
}

func TestDelegatedRunAndBusy(t *testing.T) {
	srv := newFakeServer()
	runner := &fakeRunner{release: make(chan struct{}), started: make(chan string, 4)}
	var mu sync.Mutex
	var statuses []string
	var busyStates []bool

	l := New(Options{
		Runner: runner,
		Server: srv,
		Hooks: session.Hooks{OnStatus: func(s string) {
			mu.Lock()
			statuses = append(statuses, s)
			mu.Unlock()
		}},
		OnBusy: func(b bool) {
			mu.Lock()
			busyStates = append(busyStates, b)
			mu.Unlock()
		},
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	first := newFakeConn(singleinstance.ActionRun)
	srv.conns <- first
	if got := <-runner.started; got != "run" {
		t.Fatalf("started %q", got)
	}

	second := newFakeConn(singleinstance.ActionRestore)
	srv.conns <- second
	if got := waitReply(t, second); got != "ERROR "+ErrBusy.Error() {
		t.Errorf("second reply = %q", got)
	}

	// A local trigger while busy is reported through the status hook.
	l.Trigger(KindInstall)
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(statuses)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	mu.Lock()
	if len(statuses) != 1 || statuses[0] != ErrBusy.Error() {
		t.Errorf("statuses = %q", statuses)
	}
	mu.Unlock()

	close(runner.release)
	if got := waitReply(t, first); got != `SUCCESS C:\drafts\clip.mp4` {
		t.Errorf("first reply = %q", got)
	}

	// Idle again: restore goes through and reports its error.
	runner.restored = errors.New("no backup was captured this session")
	third := newFakeConn(singleinstance.ActionRestore)
	srv.conns <- third
	if got := <-runner.started; got != "restore" {
		t.Fatalf("started %q", got)
	}
	if got := waitReply(t, third); got != "ERROR no backup was captured this session" {
		t.Errorf("third reply = %q", got)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(busyStates) < 4 || !busyStates[0] || busyStates[1] {
		t.Errorf("busy states = %v", busyStates)
	}
}

func TestKindString(t *testing.T) {
	for k, want := range map[Kind]string{KindRun: "run", KindRestore: "restore", KindInstall: "install", Kind(9): "kind(9)"} {
		if got := k.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(k), got, want)
		}
	}
}
