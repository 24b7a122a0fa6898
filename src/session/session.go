// Package session sequences one bypass run against the editor: backup, focus,
// compound, pre-process, watch, replace and export.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"capcut-bypass/src/backup"
	"capcut-bypass/src/logutil"
	"capcut-bypass/src/watch"
	"capcut-bypass/src/window"
)

// Hooks connect a run to its front-end. Both are optional.
type Hooks struct {
	// OnStatus receives one-line progress and the final error text.
	OnStatus func(string)
	// OnConfirm asks a yes/no question; nil declines.
	OnConfirm func(string) bool
}

// Status delivers msg to OnStatus, swallowing a panicking hook.
func (h Hooks) Status(msg string) { h.status(msg) }

// Confirm asks OnConfirm; nil or panicking hooks decline.
func (h Hooks) Confirm(prompt string) bool { return h.confirm(prompt) }

func (h Hooks) status(msg string) {
	if h.OnStatus == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Session: status hook panic: %v", r)
		}
	}()
	h.OnStatus(msg)
}

func (h Hooks) confirm(prompt string) (ok bool) {
	if h.OnConfirm == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Session: confirm hook panic: %v", r)
			ok = false
		}
	}()
	return h.OnConfirm(prompt)
}

// Locator finds and focuses the editor window.
type Locator interface {
	Focus(ctx context.Context, timeout time.Duration) (window.Handle, error)
}

// Macros are the input scripts a run sends to the editor.
type Macros interface {
	CompoundAndSave(h window.Handle) error
	TriggerPreprocess(h window.Handle) (time.Time, error)
	ReplaceClip(h window.Handle, path string) error
	OpenExport(h window.Handle) error
}

// Watcher finds the render output on disk.
type Watcher interface {
	FastPath(ctx context.Context, trigger watch.Trigger) (watch.Detection, watch.Snapshot, error)
	LongPoll(ctx context.Context, snap watch.Snapshot, triggeredAt time.Time) (string, error)
	Resolve(ctx context.Context, path string) (string, error)
}

// Journal records run outcomes.
type Journal interface {
	Start(ctx context.Context, backup bool) (string, error)
	Finish(ctx context.Context, id, finalPath string, runErr error) error
}

// Diagnostics captures evidence of a failed run.
type Diagnostics interface {
	Capture(h window.Handle) (string, error)
}

type Options struct {
	Locator      Locator
	Macros       Macros
	Watcher      Watcher
	FocusTimeout time.Duration

	// Backup copies the active project aside before any input is sent.
	Backup       bool
	ProjectRoots []string
	Keeper       *backup.Keeper

	Journal     Journal
	Diagnostics Diagnostics
	Hooks       Hooks
	// OnPhase observes every phase change.
	OnPhase func(from, to Phase)
}

type Result struct {
	FinalPath string
	Backup    *backup.Record
	RunID     string
}

const defaultFocusTimeout = 30 * time.Second

// Execute runs one bypass. Failures are reported through OnStatus verbatim
// and returned.
func Execute(ctx context.Context, opts Options) (Result, error) {
	if opts.Locator == nil || opts.Macros == nil || opts.Watcher == nil {
		return Result{}, errors.New("Locator, Macros and Watcher are required")
	}
	timeout := opts.FocusTimeout
	if timeout <= 0 {
		timeout = defaultFocusTimeout
	}

	r := &run{opts: opts, hooks: opts.Hooks, machine: NewMachine(opts.OnPhase)}
	if opts.Journal != nil {
		id, err := opts.Journal.Start(ctx, opts.Backup)
		if err != nil {
			log.Printf("Session: journal start failed: %v", err)
		}
		r.res.RunID = id
	}

	err := r.execute(ctx, timeout)
	if err != nil {
		r.fail(err)
	}
	if opts.Journal != nil && r.res.RunID != "" {
		// The run context may already be cancelled; the journal entry is still wanted.
		if jerr := opts.Journal.Finish(context.WithoutCancel(ctx), r.res.RunID, r.res.FinalPath, err); jerr != nil {
			log.Printf("Session: journal finish failed: %v", jerr)
		}
	}
	return r.res, err
}

type run struct {
	opts    Options
	hooks   Hooks
	machine *Machine
	handle  window.Handle
	res     Result
}

func (r *run) advance(to Phase) error {
	if err := r.machine.Advance(to); err != nil {
		return err
	}
	log.Printf("Session: phase %s", to)
	return nil
}

func (r *run) execute(ctx context.Context, timeout time.Duration) error {
	if r.opts.Backup {
		if err := r.backup(); err != nil {
			return err
		}
	}

	if err := r.advance(Focusing); err != nil {
		return err
	}
	r.hooks.status("Looking for CapCut…")
	h, err := r.opts.Locator.Focus(ctx, timeout)
	if err != nil {
		return err
	}
	r.handle = h

	if err := r.advance(Compounding); err != nil {
		return err
	}
	r.hooks.status("Creating compound clip…")
	if err := r.opts.Macros.CompoundAndSave(h); err != nil {
		return fmt.Errorf("compound clip: %w", err)
	}

	if err := r.advance(Snapshotting); err != nil {
		return err
	}
	trigger := func(ctx context.Context, attempt int) error {
		if err := r.advance(Triggering); err != nil {
			return err
		}
		if attempt > 1 {
			r.hooks.status(fmt.Sprintf("No output yet, retrying pre-process (%d)…", attempt))
		}
		if _, err := r.opts.Macros.TriggerPreprocess(h); err != nil {
			return fmt.Errorf("pre-process: %w", err)
		}
		return r.advance(Watching)
	}
	det, snap, err := r.opts.Watcher.FastPath(ctx, trigger)
	if err != nil {
		return err
	}
	found := det.Path
	if found == "" {
		r.hooks.status("Waiting for pre-process to finish…")
		if found, err = r.opts.Watcher.LongPoll(ctx, snap, det.TriggeredAt); err != nil {
			return err
		}
	}

	if err := r.advance(Resolving); err != nil {
		return err
	}
	final, err := r.opts.Watcher.Resolve(ctx, found)
	if err != nil {
		return err
	}
	r.res.FinalPath = final

	if err := r.advance(Replacing); err != nil {
		return err
	}
	r.hooks.status("Replacing clip…")
	if err := r.opts.Macros.ReplaceClip(h, final); err != nil {
		return fmt.Errorf("replace clip: %w", err)
	}

	if err := r.advance(Exporting); err != nil {
		return err
	}
	if err := r.opts.Macros.OpenExport(h); err != nil {
		return fmt.Errorf("open export: %w", err)
	}

	if err := r.advance(Done); err != nil {
		return err
	}
	r.hooks.status("Done. Export dialog is open.")
	log.Printf("Session: finished with %s", logutil.SanitizePath(final))
	return nil
}

func (r *run) backup() error {
	project, err := backup.ActiveProject(r.opts.ProjectRoots)
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	r.hooks.status("Backing up project…")
	rec, err := backup.Create(project)
	if err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	if r.opts.Keeper != nil {
		r.opts.Keeper.Set(rec)
	}
	r.res.Backup = rec
	return nil
}

func (r *run) fail(err error) {
	from := r.machine.Phase()
	if perr := r.machine.Advance(Failed); perr != nil {
		log.Printf("Session: %v", perr)
	}
	log.Printf("Session: run failed while %s: %v", from, err)
	r.hooks.status(err.Error())
	if r.opts.Diagnostics == nil {
		return
	}
	if path, derr := r.opts.Diagnostics.Capture(r.handle); derr != nil {
		log.Printf("Session: diagnostics capture failed: %v", derr)
	} else {
		log.Printf("Session: diagnostics saved to %s", logutil.SanitizePath(path))
	}
}
