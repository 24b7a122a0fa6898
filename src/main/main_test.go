package main

import (
	"context"
	"errors"
	"strings"
	"testing"

	"capcut-bypass/src/singleinstance"
)

func TestNormalizeLegacyArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		out  []string
	}{
		{
			name: "Normalizes long single dash flags",
			in:   []string{"capcut-bypass", "-run-once", "-env", "/tmp/.env"},
			out:  []string{"capcut-bypass", "--run-once", "--env", "/tmp/.env"},
		},
		{
			name: "Normalizes equals form",
			in:   []string{"capcut-bypass", "-restore=true", "-env=/tmp/.env"},
			out:  []string{"capcut-bypass", "--restore=true", "--env=/tmp/.env"},
		},
		{
			name: "Leaves other flags unchanged",
			in:   []string{"capcut-bypass", "--run-once", "--other", "-environment"},
			out:  []string{"capcut-bypass", "--run-once", "--other", "-environment"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeLegacyArgs(tt.in)
			if len(got) != len(tt.out) {
				t.Fatalf("Expected len=%d, got %d", len(tt.out), len(got))
			}
			for i := range got {
				if got[i] != tt.out[i] {
					t.Fatalf("Expected arg[%d]=%q, got %q", i, tt.out[i], got[i])
				}
			}
		})
	}
}

func TestNewRootCmdParsesFlags(t *testing.T) {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--run-once", "--env", "/tmp/.env"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if !opts.runOnce || opts.restore {
		t.Fatalf("Expected runOnce only, got %+v", opts)
	}
	if opts.envPath != "/tmp/.env" {
		t.Fatalf("Expected envPath=/tmp/.env, got %q", opts.envPath)
	}
}

type fakeClient struct {
	delegated bool
	text      string
	err       error
	action    singleinstance.Action
}

func (f *fakeClient) Delegate(ctx context.Context, action singleinstance.Action) (bool, string, error) {
	f.action = action
	return f.delegated, f.text, f.err
}

func TestHandleRunOnceWithDelegation(t *testing.T) {
	busy := errors.New("Busy, a bypass is already running")
	tests := []struct {
		name         string
		client       *fakeClient
		wantFallback bool
		wantErr      error
	}{
		{"delegated", &fakeClient{delegated: true, text: `C:\drafts\clip.mp4`}, false, nil},
		{"no resident", &fakeClient{}, true, nil},
		{"dial error falls back", &fakeClient{err: errors.New("refused")}, true, nil},
		{"resident busy is reported, not retried", &fakeClient{delegated: true, err: busy}, false, busy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fallbackCalled := false
			err := handleRunOnceWithDelegation(context.Background(), singleinstance.ActionRestore, tt.client, func() error {
				fallbackCalled = true
				return nil
			})
			if tt.client.action != singleinstance.ActionRestore {
				t.Errorf("delegated action = %q", tt.client.action)
			}
			if fallbackCalled != tt.wantFallback {
				t.Errorf("fallback called = %v, want %v", fallbackCalled, tt.wantFallback)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTooltipFor(t *testing.T) {
	got := tooltipFor("Shortcut config updated. Changes applied: 4\nRelaunching CapCut")
	if got != "CapCut Bypass: Shortcut config updated. Changes applied: 4" {
		t.Errorf("tooltip = %q", got)
	}
	long := tooltipFor(strings.Repeat("x", 300))
	if n := len([]rune(long)); n != 120 {
		t.Errorf("long tooltip has %d runes", n)
	}
}
