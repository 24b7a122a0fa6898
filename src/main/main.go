package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"capcut-bypass/src/config"
	"capcut-bypass/src/eventloop"
	"capcut-bypass/src/hotkey"
	"capcut-bypass/src/inputblock"
	"capcut-bypass/src/notification"
	"capcut-bypass/src/runtimeinit"
	"capcut-bypass/src/session"
	"capcut-bypass/src/singleinstance"
	"capcut-bypass/src/tray"
)

const appTitle = "CapCut Bypass"

type mainOptions struct {
	runOnce bool
	restore bool
	envPath string
}

type delegator interface {
	Delegate(ctx context.Context, action singleinstance.Action) (bool, string, error)
}

func main() {
	// systray and the Win32 message loops want the main thread.
	runtime.LockOSThread()

	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(normalizeLegacyArgs(os.Args)[1:])
	if err := cmd.Execute(); err != nil {
		inputblock.ReleaseAll()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(opts *mainOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "capcut-bypass",
		Short:         "Tray app that replaces a CapCut clip with its pre-processed render",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			loadOpts := config.LoadOptions{EnvPathOverride: opts.envPath}
			switch {
			case opts.runOnce:
				return runOnce(cmd.Context(), loadOpts, singleinstance.ActionRun)
			case opts.restore:
				return runOnce(cmd.Context(), loadOpts, singleinstance.ActionRestore)
			}
			return runResident(loadOpts)
		},
	}
	cmd.Flags().BoolVar(&opts.runOnce, "run-once", false, "Run one bypass (delegated to the resident instance when one is running) and exit")
	cmd.Flags().BoolVar(&opts.restore, "restore", false, "Restore the last backup (delegated when possible) and exit")
	cmd.Flags().StringVar(&opts.envPath, "env", "", "Path to a .env file (highest precedence)")
	cmd.MarkFlagsMutuallyExclusive("run-once", "restore")
	return cmd
}

// normalizeLegacyArgs maps single-dash long flags to the GNU form cobra expects.
func normalizeLegacyArgs(args []string) []string {
	normalized := make([]string, len(args))
	copy(normalized, args)
	for i := 1; i < len(normalized); i++ {
		arg := normalized[i]
		for _, name := range []string{"run-once", "restore", "env"} {
			single := "-" + name
			switch {
			case arg == single:
				normalized[i] = "-" + single
			case strings.HasPrefix(arg, single+"="):
				normalized[i] = "-" + arg
			}
		}
	}
	return normalized
}

func residentHooks() session.Hooks {
	return session.Hooks{
		OnStatus: func(msg string) {
			notification.ShowStatus(msg)
			tray.UpdateTooltip(tooltipFor(msg))
		},
		OnConfirm: func(prompt string) bool {
			return notification.AskYesNo(appTitle, prompt)
		},
	}
}

// tooltipFor keeps the first line of a status; the tray caps tooltips at 127 chars.
func tooltipFor(msg string) string {
	line, _, _ := strings.Cut(msg, "\n")
	line = appTitle + ": " + strings.TrimSpace(line)
	if r := []rune(line); len(r) > 120 {
		line = string(r[:119]) + "…"
	}
	return line
}

// runOnce hands the action to a running resident, or performs it in-process
// when none answers.
func runOnce(ctx context.Context, loadOpts config.LoadOptions, action singleinstance.Action) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// Load .env early so BYPASS_PORT_* apply to the delegation scan.
	_, _ = config.LoadWithOptions(loadOpts)
	return handleRunOnceWithDelegation(ctx, action, singleinstance.NewClient(), func() error {
		return runStandalone(ctx, loadOpts, action)
	})
}

func handleRunOnceWithDelegation(ctx context.Context, action singleinstance.Action, client delegator, fallback func() error) error {
	delegated, text, err := client.Delegate(ctx, action)
	if !delegated {
		if err != nil {
			log.Printf("Delegation error: %v; running standalone", err)
		} else {
			log.Printf("No resident detected, running standalone")
		}
		return fallback()
	}
	// The resident already reported the outcome through its own status popup.
	if err != nil {
		log.Printf("Resident rejected %s: %v", action, err)
		return err
	}
	log.Printf("Delegated %s to resident: %s", action, text)
	if text != "" {
		fmt.Println(text)
	}
	return nil
}

func runStandalone(ctx context.Context, loadOpts config.LoadOptions, action singleinstance.Action) error {
	cfg, err := runtimeinit.Bootstrap(runtimeinit.Options{LoadOptions: loadOpts})
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer inputblock.ReleaseAll()

	sess, closeSess := session.NewFromConfig(cfg)
	defer closeSess()
	hooks := residentHooks()

	if action == singleinstance.ActionRestore {
		return sess.Restore(ctx, hooks)
	}
	res, err := sess.Run(ctx, session.RunOptions{Hooks: hooks})
	if err != nil {
		return err
	}
	fmt.Println(res.FinalPath)
	return nil
}

func runResident(loadOpts config.LoadOptions) error {
	enableDPIAwareness()

	cfg, err := runtimeinit.Bootstrap(runtimeinit.Options{LoadOptions: loadOpts})
	if err != nil {
		notification.ShowBlockingError(appTitle, err.Error())
		return err
	}

	if port, ok := singleinstance.DetectResidentPort(context.Background()); ok {
		log.Printf("Pre-flight: resident already answers on port %d", port)
		return fmt.Errorf("already running on port %d", port)
	}
	logMonitorConfiguration()

	sess, closeSess := session.NewFromConfig(cfg)
	defer closeSess()
	sess.OnPhase(func(from, to session.Phase) {
		log.Printf("Session: %s -> %s", from, to)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer inputblock.ReleaseAll()

	idleTooltip := fmt.Sprintf("%s - press %s on a selected clip", appTitle, cfg.Hotkey)
	hooks := residentHooks()
	loop := eventloop.New(eventloop.Options{
		Runner: sess,
		Hooks:  hooks,
		OnBusy: func(busy bool) {
			if busy {
				tray.UpdateTooltip(appTitle + ": working…")
				return
			}
			tray.UpdateTooltip(idleTooltip)
		},
	})

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		<-ch
		log.Printf("Signal received, shutting down")
		inputblock.ReleaseAll()
		cancel()
		tray.Quit()
	}()

	loopDone := make(chan error, 1)
	go func() {
		err := loop.Run(ctx)
		loopDone <- err
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Event loop stopped: %v", err)
			notification.ShowBlockingError(appTitle, fmt.Sprintf("Could not start: %v", err))
		}
		tray.Quit()
	}()

	stopHotkey, err := hotkey.Listen(cfg.Hotkey, func() { loop.Trigger(eventloop.KindRun) })
	if err != nil {
		log.Printf("Hotkey disabled: %v", err)
		hooks.Status(fmt.Sprintf("Hotkey %s unavailable: %v\nUse the tray menu instead.", cfg.Hotkey, err))
	} else {
		defer stopHotkey()
	}

	tray.SetAboutExtra(fmt.Sprintf("Hotkey: %s", cfg.Hotkey))
	tray.Run(idleTooltip, tray.Menu{
		OnRun:     func() { loop.Trigger(eventloop.KindRun) },
		OnRestore: func() { loop.Trigger(eventloop.KindRestore) },
		OnInstall: func() { loop.Trigger(eventloop.KindInstall) },
		OnAbout:   func() { notification.ShowInfo(appTitle, aboutText()) },
		OnQuit:    cancel,
	}, func() {
		log.Printf("Tray ready")
	}, cancel)

	cancel()
	if err := <-loopDone; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Printf("Resident exited")
	return nil
}

func aboutText() string {
	text := appTitle + "\n\nCompounds the selected clip, waits for CapCut's pre-processed render and swaps it in."
	if extra := tray.AboutExtra(); extra != "" {
		text += "\n\n" + extra
	}
	return text
}
