package session

import (
	"log"

	"capcut-bypass/src/clipboard"
	"capcut-bypass/src/config"
	"capcut-bypass/src/history"
	"capcut-bypass/src/inputblock"
	"capcut-bypass/src/macro"
	"capcut-bypass/src/notification"
	"capcut-bypass/src/process"
	"capcut-bypass/src/screenshot"
	"capcut-bypass/src/shortcuts"
	"capcut-bypass/src/state"
	"capcut-bypass/src/watch"
	"capcut-bypass/src/window"
)

// NewFromConfig wires the real OS-backed components. The returned close
// function releases the run journal.
func NewFromConfig(cfg *config.Config) (*Session, func()) {
	procs := process.NewManager(cfg.TargetExe, cfg.InstallCandidates)
	desktop := window.NewDesktop()
	locator := window.NewLocator(procs, desktop, window.Criteria{
		TitleKeyword:   cfg.TargetTitle,
		ExcludeKeyword: cfg.SelfBrand,
	})
	blocker := inputblock.New(inputblock.NewSystem(), notification.Overlay{}, cfg.BlockCeiling)

	if err := clipboard.Init(); err != nil {
		log.Printf("Session: clipboard unavailable, path paste fallback disabled: %v", err)
	}

	var journal Journal
	db, err := history.Open(cfg.HistoryPath())
	if err != nil {
		log.Printf("Session: run journal disabled: %v", err)
	} else {
		journal = db
	}

	var diag Diagnostics
	if cfg.DiagnosticsDir != "" {
		diag = screenDiagnostics{dir: cfg.DiagnosticsDir, desktop: desktop}
	}

	watchCfg := watch.DefaultConfig()
	watchCfg.Roots = cfg.DraftRoots
	watchCfg.ExtraRoots = cfg.ExtraSearchDirs
	watchCfg.PollInterval = cfg.PollInterval
	watchCfg.AttemptWindow = cfg.AttemptWindow
	watchCfg.MaxRetries = cfg.MaxRetries
	watchCfg.SearchTimeout = cfg.SearchTimeout
	watchCfg.StuckAfter = cfg.StuckAfter
	watchCfg.ResolveTimeout = cfg.ResolveTimeout

	s := New(Settings{
		FocusTimeout:    cfg.FocusTimeout,
		BackupBeforeRun: cfg.BackupBeforeRun,
		ProjectRoots:    cfg.DraftRoots,
		ShortcutDir:     cfg.ShortcutDir,
	}, Deps{
		Locator: locator,
		Editor:  procs,
		NewMacros: func(h Hooks) Macros {
			return macro.NewDriver(macro.Options{
				Focuser: locator,
				Blocker: blocker,
				Dialogs: desktop,
				Paster:  clipboard.System{},
				Status:  h.status,
			})
		},
		NewWatcher: func(h Hooks) (Watcher, func()) {
			roots := append(append([]string{}, watchCfg.Roots...), watchCfg.ExtraRoots...)
			n, err := watch.NewFSNotifier(roots)
			if err != nil {
				log.Printf("Session: fsnotify unavailable, polling only: %v", err)
				return watch.New(watch.Options{Config: watchCfg, Status: h.status, Confirm: h.confirm}), nil
			}
			w := watch.New(watch.Options{Config: watchCfg, Notifier: n, Status: h.status, Confirm: h.confirm})
			return w, func() { _ = n.Close() }
		},
		State:       state.NewStore(cfg.StatePath()),
		Journal:     journal,
		Diagnostics: diag,
		Patcher:     shortcuts.NewPatcher(shortcuts.Required),
	})

	closeFn := func() {
		if db != nil {
			_ = db.Close()
		}
	}
	return s, closeFn
}

// History exposes the run journal when it opened.
func (s *Session) History() *history.DB {
	db, _ := s.deps.Journal.(*history.DB)
	return db
}

type screenDiagnostics struct {
	dir     string
	desktop window.Desktop
}

func (d screenDiagnostics) Capture(h window.Handle) (string, error) {
	var region screenshot.Region
	if h != 0 {
		if r, err := d.desktop.Bounds(h); err == nil && r.Area() > 0 {
			region = screenshot.Region{X: int(r.Left), Y: int(r.Top), Width: int(r.Width()), Height: int(r.Height())}
		}
	}
	return screenshot.SaveDiagnostic(d.dir, region)
}
