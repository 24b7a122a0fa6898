package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"capcut-bypass/src/backup"
	"capcut-bypass/src/shortcuts"
	"capcut-bypass/src/state"
	"capcut-bypass/src/window"
)

var (
	// ErrConfigRequired means the shortcut install was declined before a first run.
	ErrConfigRequired = errors.New("shortcut config is not installed; run Install shortcuts and try again")
	// ErrInstallDeclined means the user answered no to the install warning.
	ErrInstallDeclined = errors.New("shortcut install declined")
)

const (
	restoreStopWait = 10 * time.Second
	installStopWait = 8 * time.Second
	installFocus    = 3 * time.Second
)

// Editor controls the editor process.
type Editor interface {
	Stop(ctx context.Context, wait time.Duration) error
	Relaunch() (string, error)
}

// Saver is implemented by macro sets that can save the open project.
type Saver interface {
	Save(h window.Handle) error
}

// Deps are the parts a Session drives. NewMacros and NewWatcher are called
// once per run so the run's hooks reach their status lines.
type Deps struct {
	Locator    Locator
	Editor     Editor
	NewMacros  func(Hooks) Macros
	NewWatcher func(Hooks) (Watcher, func())

	State       *state.Store
	Journal     Journal
	Diagnostics Diagnostics
	Patcher     *shortcuts.Patcher
}

// Settings are the per-session knobs taken from configuration.
type Settings struct {
	FocusTimeout    time.Duration
	BackupBeforeRun bool
	ProjectRoots    []string
	ShortcutDir     string
}

// Session owns the state shared between runs: the backup record, the state
// file and the run journal.
type Session struct {
	deps     Deps
	settings Settings
	keeper   backup.Keeper
	onPhase  func(from, to Phase)
}

func New(settings Settings, deps Deps) *Session {
	if deps.Patcher == nil {
		deps.Patcher = shortcuts.NewPatcher(shortcuts.Required)
	}
	return &Session{deps: deps, settings: settings}
}

// OnPhase registers an observer for phase changes of later runs.
func (s *Session) OnPhase(fn func(from, to Phase)) { s.onPhase = fn }

// RunOptions tune one run.
type RunOptions struct {
	// Backup overrides the configured BackupBeforeRun when non-nil.
	Backup *bool
	Hooks  Hooks
}

// Run executes one bypass, offering the shortcut install first when it has
// never completed.
func (s *Session) Run(ctx context.Context, opts RunOptions) (Result, error) {
	hooks := opts.Hooks
	if err := s.ensureConfig(ctx, hooks); err != nil {
		hooks.status(err.Error())
		return Result{}, err
	}

	doBackup := s.settings.BackupBeforeRun
	if opts.Backup != nil {
		doBackup = *opts.Backup
	}

	watcher, cleanup := s.deps.NewWatcher(hooks)
	if cleanup != nil {
		defer cleanup()
	}
	res, err := Execute(ctx, Options{
		Locator:      s.deps.Locator,
		Macros:       s.deps.NewMacros(hooks),
		Watcher:      watcher,
		FocusTimeout: s.settings.FocusTimeout,
		Backup:       doBackup,
		ProjectRoots: s.settings.ProjectRoots,
		Keeper:       &s.keeper,
		Journal:      s.deps.Journal,
		Diagnostics:  s.deps.Diagnostics,
		Hooks:        hooks,
		OnPhase:      s.onPhase,
	})
	if res.Backup != nil && s.deps.State != nil {
		if serr := s.deps.State.Set(state.KeyLastBackup, res.Backup); serr != nil {
			log.Printf("Session: failed to persist backup record: %v", serr)
		}
	}
	return res, err
}

func (s *Session) ensureConfig(ctx context.Context, hooks Hooks) error {
	if s.deps.State == nil || s.deps.State.ConfigInstalled() {
		return nil
	}
	if !hooks.confirm(InstallWarning(s.settings.ShortcutDir)) {
		return ErrConfigRequired
	}
	_, err := s.Install(ctx, hooks, true)
	return err
}

// BackupRecord returns the record a Restore would use, if any.
func (s *Session) BackupRecord() *backup.Record {
	if rec := s.keeper.Peek(); rec != nil {
		return rec
	}
	if s.deps.State == nil {
		return nil
	}
	var rec backup.Record
	if !s.deps.State.Decode(state.KeyLastBackup, &rec) || rec.BackupDir == "" {
		return nil
	}
	return &rec
}

// Restore stops the editor, puts the last backup in place of the project
// and relaunches the editor. The record is consumed only on success.
func (s *Session) Restore(ctx context.Context, hooks Hooks) error {
	rec := s.BackupRecord()
	if rec == nil {
		hooks.status(backup.ErrNoBackup.Error())
		return backup.ErrNoBackup
	}
	hooks.status("Closing CapCut to restore the backup…")
	err := backup.Restore(ctx, rec, func(ctx context.Context) error {
		if s.deps.Editor == nil {
			return nil
		}
		return s.deps.Editor.Stop(ctx, restoreStopWait)
	})
	if err != nil {
		hooks.status(err.Error())
		return err
	}
	_, _ = s.keeper.Take()
	if s.deps.State != nil {
		if err := s.deps.State.Delete(state.KeyLastBackup); err != nil {
			log.Printf("Session: failed to clear backup record: %v", err)
		}
	}
	hooks.status("Backup restored.")
	s.relaunch()
	return nil
}

// InstallWarning is the question asked before shortcut files are rewritten.
func InstallWarning(dir string) string {
	return "Warning: clicking Yes will automatically edit your CapCut shortcuts to make the bypass work.\n\n" +
		"If you have custom keybinds you want to keep, set the following manually instead:\n\n" +
		"Required custom hotkeys:\n" +
		"  Ctrl+L = Replace Clip\n" +
		"  Ctrl+P = Preprocess Clip\n\n" +
		"Required default hotkeys:\n" +
		"  Alt+G  = Create Compound Clip\n" +
		"  Ctrl+A = Select All\n\n" +
		"The installer will patch all *.json in: " + dir + "\n\n" +
		"Note: this will save your project, close CapCut, apply changes, then relaunch CapCut."
}

// Install saves and closes the editor, patches its shortcut files, records
// the install and relaunches the editor. confirmed skips the warning prompt.
func (s *Session) Install(ctx context.Context, hooks Hooks, confirmed bool) (int, error) {
	dir := s.settings.ShortcutDir
	if !confirmed && !hooks.confirm(InstallWarning(dir)) {
		return 0, ErrInstallDeclined
	}

	if s.deps.Locator != nil && s.deps.NewMacros != nil {
		if h, err := s.deps.Locator.Focus(ctx, installFocus); err == nil {
			if saver, ok := s.deps.NewMacros(hooks).(Saver); ok {
				if err := saver.Save(h); err != nil {
					log.Printf("Session: save before install failed: %v", err)
				}
			}
		} else {
			log.Printf("Session: no editor window to save before install: %v", err)
		}
	}
	if s.deps.Editor != nil {
		if err := s.deps.Editor.Stop(ctx, installStopWait); err != nil {
			log.Printf("Session: %v", err)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		err = fmt.Errorf("failed to install config: %w", err)
		hooks.status(err.Error())
		return 0, err
	}
	rep, err := s.deps.Patcher.PatchFolder(dir)
	if err != nil {
		err = fmt.Errorf("failed to install config: %w", err)
		hooks.status(err.Error())
		return 0, err
	}
	if rep.Changes == 0 && len(rep.Files) == 0 {
		hooks.status("No existing CapCut shortcut JSONs were found to patch. Open CapCut once to generate them, then rerun Install.")
	}
	if s.deps.State != nil {
		if err := s.deps.State.MarkConfigInstalled(); err != nil {
			log.Printf("Session: failed to record install: %v", err)
		}
	}
	hooks.status(fmt.Sprintf("Shortcut config updated. Changes applied: %d\nRelaunching CapCut to load new shortcuts…", rep.Changes))
	s.relaunch()
	return rep.Changes, nil
}

func (s *Session) relaunch() {
	if s.deps.Editor == nil {
		return
	}
	if path, err := s.deps.Editor.Relaunch(); err != nil {
		log.Printf("Session: relaunch failed: %v", err)
	} else {
		log.Printf("Session: relaunched %s", path)
	}
}
