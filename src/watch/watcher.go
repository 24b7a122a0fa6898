package watch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"capcut-bypass/src/logutil"
)

// ErrResolutionTimeout means no usable output file showed up in time, either
// during the search or while waiting for a temp file's final name.
var ErrResolutionTimeout = errors.New("no processed clip found in time")

const motionBlurPrompt = "We noticed no Pre-processing activity. Does your compound clip show 'Waiting to preprocess'?\n\n" +
	"This typically means the workflow is corrupted. The best workaround is to select the clip and apply a 1% Motion Blur.\n\n" +
	"To continue, select the clip, open the \"Video\" tab and then \"Basic\", scroll down to Motion blur, enable it and set it to 1%. " +
	"It starts applying immediately.\n\n" +
	"Click Yes once Motion Blur is applied and the automation will continue."

// Config holds the search roots and every timing knob of a watch.
type Config struct {
	// Roots are the editor's draft directories.
	Roots []string
	// ExtraRoots are searched too; after the Motion Blur workaround only they are.
	ExtraRoots []string

	PollInterval  time.Duration
	AttemptWindow time.Duration
	MaxRetries    int
	RetrySettle   time.Duration

	SearchTimeout time.Duration
	StuckAfter    time.Duration
	ProbeDuration time.Duration

	ResolveTimeout time.Duration
	ResolvePoll    time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:   400 * time.Millisecond,
		AttemptWindow:  10 * time.Second,
		MaxRetries:     2,
		RetrySettle:    500 * time.Millisecond,
		SearchTimeout:  900 * time.Second,
		StuckAfter:     120 * time.Second,
		ProbeDuration:  10 * time.Second,
		ResolveTimeout: 600 * time.Second,
		ResolvePoll:    500 * time.Millisecond,
	}
}

// Trigger starts the render. attempt is 1 for the first trigger.
type Trigger func(ctx context.Context, attempt int) error

type Options struct {
	Config   Config
	Scanner  Scanner
	Notifier Notifier
	Status   func(string)
	Confirm  func(string) bool
}

// Watcher runs the baseline, trigger, poll, retry and resolve sequence.
type Watcher struct {
	cfg     Config
	scan    Scanner
	notify  Notifier
	status  func(string)
	confirm func(string) bool
}

func New(opts Options) *Watcher {
	w := &Watcher{
		cfg:     opts.Config,
		scan:    opts.Scanner,
		notify:  opts.Notifier,
		status:  opts.Status,
		confirm: opts.Confirm,
	}
	if w.scan.Ext == "" {
		w.scan = DefaultScanner()
	}
	if w.notify == nil {
		w.notify = nopNotifier{}
	}
	if w.cfg.PollInterval <= 0 {
		w.cfg.PollInterval = 400 * time.Millisecond
	}
	if w.cfg.ResolvePoll <= 0 {
		w.cfg.ResolvePoll = 500 * time.Millisecond
	}
	return w
}

// Detection describes how the fast path ended.
type Detection struct {
	// Path is empty when every attempt ran out without output.
	Path        string
	Attempts    int
	TriggeredAt time.Time
}

func (w *Watcher) say(msg string) {
	log.Printf("Watch: %s", msg)
	if w.status != nil {
		w.status(msg)
	}
}

func (w *Watcher) allRoots() []string {
	roots := make([]string, 0, len(w.cfg.Roots)+len(w.cfg.ExtraRoots))
	roots = append(roots, w.cfg.Roots...)
	return append(roots, w.cfg.ExtraRoots...)
}

// Run detects the render output and resolves it to its final path.
func (w *Watcher) Run(ctx context.Context, trigger Trigger) (string, error) {
	det, snap, err := w.FastPath(ctx, trigger)
	if err != nil {
		return "", err
	}
	found := det.Path
	if found == "" {
		w.say("No output yet, waiting for the pre-process to finish…")
		if found, err = w.LongPoll(ctx, snap, det.TriggeredAt); err != nil {
			return "", err
		}
	}
	w.say("Found processed clip: " + logutil.SanitizePath(found))
	return w.Resolve(ctx, found)
}

// FastPath baselines, triggers and polls for up to MaxRetries attempts of
// AttemptWindow each, re-baselining and re-triggering between attempts with
// RetrySettle of extra settle time per retry. It returns the snapshot of the
// last attempt so the long poll can continue against it.
func (w *Watcher) FastPath(ctx context.Context, trigger Trigger) (Detection, Snapshot, error) {
	attempts := w.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	roots := w.allRoots()

	var det Detection
	var snap Snapshot
	for attempt := 1; attempt <= attempts; attempt++ {
		det.Attempts = attempt
		if attempt > 1 {
			w.say(fmt.Sprintf("Nothing yet, re-triggering pre-process (attempt %d/%d)…", attempt, attempts))
			if err := sleepCtx(ctx, w.cfg.RetrySettle*time.Duration(attempt-1)); err != nil {
				return det, snap, err
			}
		}

		snap = w.scan.Snapshot(roots)
		log.Printf("Watch: baseline has %d file(s) across %d root(s)", len(snap), len(roots))
		if err := trigger(ctx, attempt); err != nil {
			return det, snap, fmt.Errorf("trigger pre-process: %w", err)
		}
		det.TriggeredAt = time.Now()

		path, err := w.pollUntil(ctx, func() []string { return roots }, snap, det.TriggeredAt.Add(w.cfg.AttemptWindow))
		if err != nil {
			return det, snap, err
		}
		if path != "" {
			det.Path = path
			return det, snap, nil
		}
	}
	return det, snap, nil
}

// pollUntil rescans until a new file appears or deadline passes. It returns
// "" with a nil error on deadline.
func (w *Watcher) pollUntil(ctx context.Context, roots func() []string, snap Snapshot, deadline time.Time) (string, error) {
	for {
		if path, ok := w.scan.FirstNew(roots(), snap); ok {
			return path, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", nil
		}
		if err := w.wait(ctx, min(remaining, w.cfg.PollInterval)); err != nil {
			return "", err
		}
	}
}

// wait sleeps for d, returning early on a filesystem wake-up.
func (w *Watcher) wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	case <-w.notify.Wake():
	}
	return nil
}

// LongPoll keeps scanning until SearchTimeout after triggeredAt. Once, after
// StuckAfter without output, it checks for a stuck render and may offer the
// Motion Blur workaround, which narrows the search to the extra roots.
func (w *Watcher) LongPoll(ctx context.Context, snap Snapshot, triggeredAt time.Time) (string, error) {
	deadline := triggeredAt.Add(w.cfg.SearchTimeout)
	restricted := false
	stuckChecked := false
	roots := func() []string {
		if restricted {
			return w.cfg.ExtraRoots
		}
		return w.allRoots()
	}

	for {
		if !stuckChecked && time.Since(triggeredAt) >= w.cfg.StuckAfter {
			stuckChecked = true
			found, restrict, err := w.stuckCheck(ctx, snap)
			if err != nil {
				return "", err
			}
			if found != "" {
				return found, nil
			}
			restricted = restrict
		}

		next := deadline
		if !stuckChecked {
			next = triggeredAt.Add(w.cfg.StuckAfter)
			if next.After(deadline) {
				next = deadline
			}
		}
		path, err := w.pollUntil(ctx, roots, snap, next)
		if err != nil {
			return "", err
		}
		if path != "" {
			return path, nil
		}
		if !time.Now().Before(deadline) {
			return "", fmt.Errorf("%w: nothing new under %d root(s) after %v", ErrResolutionTimeout, len(roots()), w.cfg.SearchTimeout)
		}
	}
}

// stuckCheck decides whether a quiet render is progressing. It returns a
// path when output appeared during the probe, and restrict=true when the
// user accepted the Motion Blur workaround.
func (w *Watcher) stuckCheck(ctx context.Context, snap Snapshot) (string, bool, error) {
	if w.scan.HasTemp(w.cfg.Roots) {
		w.say("Pre-processing in progress (temp file present)…")
		return "", false, nil
	}

	all := w.allRoots()
	tempPath, size0, hadTemp := w.scan.NewestTemp(all)
	if err := sleepCtx(ctx, w.cfg.ProbeDuration); err != nil {
		return "", false, err
	}
	if path, ok := w.scan.FirstNew(all, snap); ok {
		return path, false, nil
	}
	if hadTemp {
		if st, err := os.Stat(tempPath); err == nil && st.Size() > size0 {
			w.say("Pre-processing in progress (temp file is growing)…")
			return "", false, nil
		}
	}

	w.say(fmt.Sprintf("Still waiting (>%v) and no temp file growth.", w.cfg.StuckAfter.Round(time.Second)))
	if w.confirm != nil && w.confirm(motionBlurPrompt) {
		w.say("Motion Blur acknowledged. Monitoring the Motion Blur cache for output…")
		return "", true, nil
	}
	return "", false, nil
}

// Resolve maps a temp render file to its final name, waiting up to
// ResolveTimeout for it to exist. Final names are returned unchanged.
func (w *Watcher) Resolve(ctx context.Context, path string) (string, error) {
	final := w.scan.FinalName(path)
	if final == path {
		return path, nil
	}
	w.say("Waiting for final file " + filepath.Base(final) + "…")

	deadline := time.Now().Add(w.cfg.ResolveTimeout)
	for {
		if _, err := os.Stat(final); err == nil {
			log.Printf("Watch: final ready %s", logutil.SanitizePath(final))
			return final, nil
		}
		if !time.Now().Before(deadline) {
			return "", fmt.Errorf("%w: final file for %s never appeared", ErrResolutionTimeout, filepath.Base(path))
		}
		if err := sleepCtx(ctx, min(w.cfg.ResolvePoll, time.Until(deadline))); err != nil {
			return "", err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
