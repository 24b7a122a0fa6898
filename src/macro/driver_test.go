package macro

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"capcut-bypass/src/window"
)

// fakeUI records every event in order so scripts can be compared as text.
type fakeUI struct {
	events    []string
	refocusOK bool
	tapErr    map[string]error

	dialog      window.Handle
	setNameErr  error
	dialogPaths []string
	injected    int
}

func (f *fakeUI) Tap(c Chord) error {
	f.events = append(f.events, "tap "+c.String())
	return f.tapErr[c.String()]
}

func (f *fakeUI) Refocus(h window.Handle) bool {
	f.events = append(f.events, "focus")
	return f.refocusOK
}

func (f *fakeUI) Do(reason string, fn func() error) error {
	f.events = append(f.events, "block "+reason)
	err := fn()
	f.events = append(f.events, "unblock")
	return err
}

func (f *fakeUI) Inject(fn func() error) error {
	f.injected++
	return fn()
}

func (f *fakeUI) WithText(text string, fn func() error) error {
	f.events = append(f.events, "clip "+text)
	err := fn()
	f.events = append(f.events, "clip restore")
	return err
}

func (f *fakeUI) FindFileDialog() (window.Handle, bool) { return f.dialog, f.dialog != 0 }

func (f *fakeUI) SetFileName(dlg window.Handle, path string) error {
	f.dialogPaths = append(f.dialogPaths, path)
	f.events = append(f.events, "dialog set")
	return f.setNameErr
}

func (f *fakeUI) Submit(dlg window.Handle) error {
	f.events = append(f.events, "dialog submit")
	return nil
}

func newTestDriver(ui *fakeUI, withDialogs bool) *Driver {
	opts := Options{Keyboard: ui, Focuser: ui, Blocker: ui, Paster: ui}
	if withDialogs {
		opts.Dialogs = ui
	}
	d := NewDriver(opts)
	d.sleep = func(time.Duration) {}
	return d
}

func TestCompoundAndSaveSequence(t *testing.T) {
	ui := &fakeUI{refocusOK: true}
	if err := newTestDriver(ui, false).CompoundAndSave(42); err != nil {
		t.Fatalf("CompoundAndSave: %v", err)
	}
	want := []string{
		"block compound and save",
		"focus", "tap Ctrl+A",
		"focus", "tap Alt+G",
		"focus", "tap Ctrl+S",
		"unblock",
	}
	if !reflect.DeepEqual(ui.events, want) {
		t.Errorf("events:\n got %v\nwant %v", ui.events, want)
	}
}

func TestRefocusFailureDoesNotStopInput(t *testing.T) {
	ui := &fakeUI{refocusOK: false}
	if _, err := newTestDriver(ui, false).TriggerPreprocess(42); err != nil {
		t.Fatalf("TriggerPreprocess: %v", err)
	}
	want := []string{"block pre-process", "focus", "tap Ctrl+P", "focus", "tap Ctrl+S", "unblock"}
	if !reflect.DeepEqual(ui.events, want) {
		t.Errorf("events:\n got %v\nwant %v", ui.events, want)
	}
}

func TestZeroHandleSkipsRefocus(t *testing.T) {
	ui := &fakeUI{}
	if err := newTestDriver(ui, false).OpenExport(0); err != nil {
		t.Fatalf("OpenExport: %v", err)
	}
	want := []string{"block open export", "tap Ctrl+E", "unblock"}
	if !reflect.DeepEqual(ui.events, want) {
		t.Errorf("events:\n got %v\nwant %v", ui.events, want)
	}
}

func TestReplaceClipThroughDialog(t *testing.T) {
	ui := &fakeUI{refocusOK: true, dialog: 7}
	path := `C:\drafts\p1\combination.mp4`
	if err := newTestDriver(ui, true).ReplaceClip(42, path); err != nil {
		t.Fatalf("ReplaceClip: %v", err)
	}
	want := []string{
		"block replace clip",
		"focus", "tap Ctrl+A",
		"focus", "tap Ctrl+L",
		"dialog set", "dialog submit",
		"focus", "tap Enter",
		"focus", "tap Ctrl+S",
		"unblock",
	}
	if !reflect.DeepEqual(ui.events, want) {
		t.Errorf("events:\n got %v\nwant %v", ui.events, want)
	}
	if len(ui.dialogPaths) != 1 || ui.dialogPaths[0] != path {
		t.Errorf("dialog received %v", ui.dialogPaths)
	}
}

func TestReplaceClipFallsBackToPaste(t *testing.T) {
	tests := []struct {
		name        string
		dialog      window.Handle
		setNameErr  error
		withDialogs bool
	}{
		{name: "no dialog support", withDialogs: false},
		{name: "dialog never appears", withDialogs: true},
		{name: "dialog rejects text", withDialogs: true, dialog: 7, setNameErr: errors.New("no edit")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ui := &fakeUI{refocusOK: true, dialog: tt.dialog, setNameErr: tt.setNameErr}
			if err := newTestDriver(ui, tt.withDialogs).ReplaceClip(42, `C:\x.mp4`); err != nil {
				t.Fatalf("ReplaceClip: %v", err)
			}
			joined := strings.Join(ui.events, "|")
			if !strings.Contains(joined, `clip C:\x.mp4|tap Ctrl+V|tap Enter|clip restore`) {
				t.Errorf("paste fallback missing from %v", ui.events)
			}
			if !strings.HasSuffix(joined, "focus|tap Ctrl+S|unblock") {
				t.Errorf("replace did not end with save: %v", ui.events)
			}
		})
	}
}

func TestTapErrorAbortsScriptButUnblocks(t *testing.T) {
	ui := &fakeUI{refocusOK: true, tapErr: map[string]error{"Alt+G": errors.New("denied")}}
	err := newTestDriver(ui, false).CompoundAndSave(42)
	if err == nil {
		t.Fatal("expected error")
	}
	if ui.events[len(ui.events)-1] != "unblock" {
		t.Errorf("script did not unblock: %v", ui.events)
	}
	for _, e := range ui.events {
		if e == "tap Ctrl+S" {
			t.Error("save was sent after a failed step")
		}
	}
}

func TestTapsGoThroughInjector(t *testing.T) {
	ui := &fakeUI{refocusOK: true}
	d := newTestDriver(ui, false)
	if err := d.ReplaceClip(42, `C:\drafts\clip.mp4`); err != nil {
		t.Fatalf("ReplaceClip: %v", err)
	}
	taps := 0
	for _, e := range ui.events {
		if strings.HasPrefix(e, "tap ") {
			taps++
		}
	}
	if taps == 0 || ui.injected != taps {
		t.Errorf("injected %d of %d taps", ui.injected, taps)
	}
}

func TestParseChord(t *testing.T) {
	tests := []struct {
		in      string
		want    Chord
		wantErr bool
	}{
		{in: "Ctrl+L", want: Chord{Key: "l", Modifiers: []string{"ctrl"}}},
		{in: "alt + g", want: Chord{Key: "g", Modifiers: []string{"alt"}}},
		{in: "Ctrl+Shift+Return", want: Chord{Key: "enter", Modifiers: []string{"ctrl", "shift"}}},
		{in: "Enter", want: Chord{Key: "enter"}},
		{in: "Hyper+X", wantErr: true},
		{in: "Ctrl+", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseChord(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseChord(%q) err = %v", tt.in, err)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseChord(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}
