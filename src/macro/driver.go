// Package macro drives the editor through fixed keystroke scripts.
//
// Steps are blind: each one refocuses the remembered window (best effort),
// sends a chord and waits a fixed settle delay. Nothing is read back from
// the UI apart from locating the file picker.
package macro

import (
	"fmt"
	"log"
	"time"

	"capcut-bypass/src/window"
)

const (
	defaultSettle     = 200 * time.Millisecond
	defaultDialogWait = 2 * time.Second
	dialogPoll        = 150 * time.Millisecond
	importSettle      = time.Second
)

// Keyboard sends one chord to whatever window has focus.
type Keyboard interface {
	Tap(c Chord) error
}

// Focuser restores focus to a remembered window and reports success.
type Focuser interface {
	Refocus(h window.Handle) bool
}

// Blocker runs fn with physical input suspended. While input is blocked only
// synthetic input sent through Inject reaches the editor.
type Blocker interface {
	Do(reason string, fn func() error) error
	Inject(fn func() error) error
}

// Paster makes text available to a paste keystroke for the duration of fn.
type Paster interface {
	WithText(text string, fn func() error) error
}

type Options struct {
	Keyboard Keyboard
	Focuser  Focuser
	Blocker  Blocker
	// Dialogs drives the file picker directly; nil falls back to pasting.
	Dialogs window.Dialogs
	Paster  Paster
	Keys    Keys

	Settle     time.Duration
	DialogWait time.Duration
	// Status receives short progress lines; may be nil.
	Status func(string)
}

// Driver runs the editor scripts.
type Driver struct {
	kb         Keyboard
	focus      Focuser
	block      Blocker
	dialogs    window.Dialogs
	paste      Paster
	keys       Keys
	settle     time.Duration
	dialogWait time.Duration
	status     func(string)
	sleep      func(time.Duration)
}

func NewDriver(opts Options) *Driver {
	d := &Driver{
		kb:         opts.Keyboard,
		focus:      opts.Focuser,
		block:      opts.Blocker,
		dialogs:    opts.Dialogs,
		paste:      opts.Paster,
		keys:       opts.Keys,
		settle:     opts.Settle,
		dialogWait: opts.DialogWait,
		status:     opts.Status,
		sleep:      time.Sleep,
	}
	if d.kb == nil {
		d.kb = RobotKeyboard{}
	}
	if d.keys.Save.Key == "" {
		d.keys = DefaultKeys()
	}
	if d.settle <= 0 {
		d.settle = defaultSettle
	}
	if d.dialogWait <= 0 {
		d.dialogWait = defaultDialogWait
	}
	if d.block == nil {
		d.block = unblocked{}
	}
	return d
}

type unblocked struct{}

func (unblocked) Do(_ string, fn func() error) error { return fn() }
func (unblocked) Inject(fn func() error) error       { return fn() }

func (d *Driver) tap(c Chord) error {
	return d.block.Inject(func() error { return d.kb.Tap(c) })
}

func (d *Driver) say(msg string) {
	if d.status != nil {
		d.status(msg)
	}
}

// step refocuses h and taps c, then settles.
func (d *Driver) step(h window.Handle, c Chord) error {
	if d.focus != nil && h != 0 && !d.focus.Refocus(h) {
		log.Printf("Macro: refocus failed before %s, sending anyway", c)
	}
	if err := d.tap(c); err != nil {
		return fmt.Errorf("send %s: %w", c, err)
	}
	d.sleep(d.settle)
	return nil
}

func (d *Driver) steps(h window.Handle, chords ...Chord) error {
	for _, c := range chords {
		if err := d.step(h, c); err != nil {
			return err
		}
	}
	return nil
}

// CompoundAndSave selects every clip, merges them into one compound clip and
// saves the project.
func (d *Driver) CompoundAndSave(h window.Handle) error {
	return d.block.Do("compound and save", func() error {
		d.say("Selecting all clips…")
		if err := d.step(h, d.keys.SelectAll); err != nil {
			return err
		}
		d.say("Compounding all clips…")
		return d.steps(h, d.keys.Compound, d.keys.Save)
	})
}

// TriggerPreprocess starts the editor's pre-process of the selected compound
// clip and saves. It returns the time the pre-process chord was sent.
func (d *Driver) TriggerPreprocess(h window.Handle) (time.Time, error) {
	var sent time.Time
	err := d.block.Do("pre-process", func() error {
		d.say("Pre-processing, please wait…")
		if err := d.step(h, d.keys.Preprocess); err != nil {
			return err
		}
		sent = time.Now()
		return d.step(h, d.keys.Save)
	})
	return sent, err
}

// ReplaceClip swaps the selected clip's media for path through the editor's
// replace dialog, confirms and saves.
func (d *Driver) ReplaceClip(h window.Handle, path string) error {
	return d.block.Do("replace clip", func() error {
		d.say("Selecting clip…")
		if err := d.step(h, d.keys.SelectAll); err != nil {
			return err
		}
		d.say("Opening Replace dialog…")
		if err := d.step(h, d.keys.ReplaceClip); err != nil {
			return err
		}

		d.say("Pasting path…")
		if err := d.submitPath(path); err != nil {
			return err
		}

		d.sleep(importSettle)
		d.say("Saving…")
		if err := d.step(h, d.keys.Confirm); err != nil {
			return err
		}
		return d.step(h, d.keys.Save)
	})
}

// submitPath fills the file picker. The dialog's own filename field is
// preferred; otherwise the path is pasted into whatever has focus.
func (d *Driver) submitPath(path string) error {
	if dlg, ok := d.waitDialog(); ok {
		err := d.dialogs.SetFileName(dlg, path)
		if err == nil {
			err = d.dialogs.Submit(dlg)
		}
		if err == nil {
			log.Printf("Macro: path submitted through file dialog")
			return nil
		}
		log.Printf("Macro: file dialog fill failed, falling back to paste: %v", err)
	}
	return d.pastePath(path)
}

func (d *Driver) waitDialog() (window.Handle, bool) {
	if d.dialogs == nil {
		return 0, false
	}
	for waited := time.Duration(0); ; waited += dialogPoll {
		if dlg, ok := d.dialogs.FindFileDialog(); ok {
			return dlg, true
		}
		if waited >= d.dialogWait {
			log.Printf("Macro: no file dialog after %v", d.dialogWait)
			return 0, false
		}
		d.sleep(dialogPoll)
	}
}

func (d *Driver) pastePath(path string) error {
	send := func() error {
		if err := d.tap(d.keys.Paste); err != nil {
			return fmt.Errorf("paste path: %w", err)
		}
		d.sleep(100 * time.Millisecond)
		if err := d.tap(d.keys.Confirm); err != nil {
			return fmt.Errorf("submit path: %w", err)
		}
		return nil
	}
	if d.paste == nil {
		return fmt.Errorf("no way to enter path %q: file dialog unavailable and clipboard disabled", path)
	}
	return d.paste.WithText(path, send)
}

// OpenExport opens the editor's export dialog for the user to finish.
func (d *Driver) OpenExport(h window.Handle) error {
	return d.block.Do("open export", func() error {
		d.say("Opening export…")
		return d.step(h, d.keys.Export)
	})
}

// Save saves the current project.
func (d *Driver) Save(h window.Handle) error {
	return d.block.Do("save", func() error {
		return d.step(h, d.keys.Save)
	})
}
