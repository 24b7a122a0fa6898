package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"capcut-bypass/src/singleinstance"
)

func TestNewRootCmdDefaults(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.n != 50 {
		t.Fatalf("Expected default n=50, got %d", opts.n)
	}
	if opts.mode != "restore" {
		t.Fatalf("Expected default mode=restore, got %q", opts.mode)
	}
	if opts.deadline != 5*time.Second {
		t.Fatalf("Expected default deadline=5s, got %v", opts.deadline)
	}
}

func TestNewRootCmdCustomFlags(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--n", "3", "--mode", "run", "--deadline", "7s"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.n != 3 || opts.mode != "run" || opts.deadline != 7*time.Second {
		t.Fatalf("opts = %+v", opts)
	}
}

func TestActionFor(t *testing.T) {
	if a, err := actionFor("RUN"); err != nil || a != singleinstance.ActionRun {
		t.Errorf("run -> %q, %v", a, err)
	}
	if _, err := actionFor("std"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

// oneSlot accepts the first request and answers Busy to the rest.
type oneSlot struct {
	taken atomic.Bool
}

func (o *oneSlot) Delegate(ctx context.Context, action singleinstance.Action) (bool, string, error) {
	if o.taken.CompareAndSwap(false, true) {
		return true, "", nil
	}
	return true, "", errors.New("Busy, a bypass is already running")
}

type nobody struct{}

func (nobody) Delegate(context.Context, singleinstance.Action) (bool, string, error) {
	return false, "", nil
}

func TestFireTallies(t *testing.T) {
	got := fire(&oneSlot{}, singleinstance.ActionRestore, 10, time.Second)
	if got.ok != 1 || got.busy != 9 || got.failed != 0 || got.absent != 0 {
		t.Errorf("tally = %s", got)
	}
	got = fire(nobody{}, singleinstance.ActionRun, 3, time.Second)
	if got.absent != 3 {
		t.Errorf("tally = %s", got)
	}
}
