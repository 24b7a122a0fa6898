package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log"

	"capcut-bypass/src/session"
	"capcut-bypass/src/singleinstance"
	"capcut-bypass/src/worker"
)

// ErrBusy is returned to requests that arrive while a job is running.
var ErrBusy = errors.New("Busy, a bypass is already running")

// Kind is the job a request asks for.
type Kind int

const (
	KindRun Kind = iota
	KindRestore
	KindInstall
)

func (k Kind) String() string {
	switch k {
	case KindRun:
		return "run"
	case KindRestore:
		return "restore"
	case KindInstall:
		return "install"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Runner is the automation session the loop drives.
type Runner interface {
	Run(ctx context.Context, opts session.RunOptions) (session.Result, error)
	Restore(ctx context.Context, hooks session.Hooks) error
	Install(ctx context.Context, hooks session.Hooks, confirmed bool) (int, error)
}

type Options struct {
	Runner Runner
	Hooks  session.Hooks
	// Server is created with singleinstance.NewServer when nil.
	Server singleinstance.Server
	// OnBusy reports busy state changes (tray tooltip).
	OnBusy func(busy bool)
}

// Loop is the single-threaded coordinator for IPC, hotkey and tray requests.
type Loop struct {
	runner   Runner
	hooks    session.Hooks
	pool     *worker.Pool
	srv      singleinstance.Server
	onBusy   func(bool)
	busy     bool
	results  chan result
	triggers chan Kind
}

type result struct {
	kind Kind
	text string
	err  error
	conn singleinstance.Conn
}

func New(opts Options) *Loop {
	srv := opts.Server
	if srv == nil {
		srv = singleinstance.NewServer()
	}
	return &Loop{
		runner:   opts.Runner,
		hooks:    opts.Hooks,
		pool:     worker.New(1),
		srv:      srv,
		onBusy:   opts.OnBusy,
		results:  make(chan result, 1),
		triggers: make(chan Kind, 4),
	}
}

// Trigger queues a local request (hotkey or tray). Safe from any goroutine.
func (l *Loop) Trigger(k Kind) {
	select {
	case l.triggers <- k:
	default:
		log.Printf("Loop: trigger queue full, dropping %s", k)
	}
}

func (l *Loop) setBusy(b bool) {
	l.busy = b
	if l.onBusy != nil {
		l.onBusy(b)
	}
}

// Port is the bound IPC port, 0 before Run.
func (l *Loop) Port() int { return l.srv.Port() }

// Run starts the singleinstance server and processes requests until ctx is
// cancelled. The job in flight, if any, is waited for before returning.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.srv.Start(ctx); err != nil {
		return err
	}
	defer l.srv.Close()
	defer l.pool.Close()

	reqCh := make(chan singleinstance.Conn, 4)
	go func() {
		defer close(reqCh)
		for {
			conn, err := l.srv.Next(ctx)
			if err != nil {
				return
			}
			reqCh <- conn
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case k := <-l.triggers:
			l.start(ctx, k, nil)
		case conn, ok := <-reqCh:
			if !ok {
				return nil
			}
			l.handleConn(ctx, conn)
		case res := <-l.results:
			l.handleResult(res)
		}
	}
}

func (l *Loop) handleConn(ctx context.Context, conn singleinstance.Conn) {
	switch conn.Request().Action {
	case singleinstance.ActionRun:
		l.start(ctx, KindRun, conn)
	case singleinstance.ActionRestore:
		l.start(ctx, KindRestore, conn)
	default:
		_ = conn.RespondError("unknown request")
		_ = conn.Close()
	}
}

func (l *Loop) start(ctx context.Context, k Kind, conn singleinstance.Conn) {
	if l.busy {
		log.Printf("Loop: %s rejected, busy", k)
		l.reject(conn)
		return
	}
	l.setBusy(true)
	submitted := l.pool.Submit(ctx, k.String(), l.job(k), func(text string, err error) {
		l.results <- result{kind: k, text: text, err: err, conn: conn}
	})
	if !submitted {
		l.setBusy(false)
		l.reject(conn)
	}
}

func (l *Loop) reject(conn singleinstance.Conn) {
	if conn == nil {
		l.hooks.Status(ErrBusy.Error())
		return
	}
	_ = conn.RespondError(ErrBusy.Error())
	_ = conn.Close()
}

func (l *Loop) job(k Kind) worker.Job {
	return func(ctx context.Context) (string, error) {
		switch k {
		case KindRestore:
			return "", l.runner.Restore(ctx, l.hooks)
		case KindInstall:
			n, err := l.runner.Install(ctx, l.hooks, false)
			return fmt.Sprintf("%d", n), err
		default:
			res, err := l.runner.Run(ctx, session.RunOptions{Hooks: l.hooks})
			return res.FinalPath, err
		}
	}
}

func (l *Loop) handleResult(res result) {
	l.setBusy(false)
	if res.err != nil {
		log.Printf("Loop: %s failed: %v", res.kind, res.err)
	} else {
		log.Printf("Loop: %s finished", res.kind)
	}
	if res.conn == nil {
		return
	}
	defer res.conn.Close()
	if res.err != nil {
		_ = res.conn.RespondError(res.err.Error())
		return
	}
	_ = res.conn.RespondSuccess(res.text)
}
