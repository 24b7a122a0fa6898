package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"capcut-bypass/src/singleinstance"
)

type stressOptions struct {
	n        int
	mode     string
	deadline time.Duration
}

type delegator interface {
	Delegate(ctx context.Context, action singleinstance.Action) (bool, string, error)
}

type tally struct {
	ok, busy, failed, absent int32
}

func (t *tally) String() string {
	return fmt.Sprintf("ok=%d busy=%d err=%d no-resident=%d", t.ok, t.busy, t.failed, t.absent)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-runonce",
		Short:         "Fire concurrent delegated requests at the resident; all but one must come back Busy",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := actionFor(opts.mode)
			if err != nil {
				return err
			}
			start := time.Now()
			t := fire(singleinstance.NewClient(), action, opts.n, opts.deadline)
			fmt.Fprintf(cmd.OutOrStdout(), "launched=%d %s elapsed=%s\n", opts.n, t, time.Since(start))
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of clients to launch")
	cmd.Flags().StringVar(&opts.mode, "mode", "restore", "restore|run: request sent by every client")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")

	return cmd
}

func actionFor(mode string) (singleinstance.Action, error) {
	switch strings.ToLower(mode) {
	case "run":
		return singleinstance.ActionRun, nil
	case "restore":
		return singleinstance.ActionRestore, nil
	}
	return "", fmt.Errorf("unknown mode %q (want run or restore)", mode)
}

func fire(client delegator, action singleinstance.Action, n int, deadline time.Duration) *tally {
	var wg sync.WaitGroup
	t := &tally{}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), deadline)
			defer cancel()
			delegated, _, err := client.Delegate(ctx, action)
			switch {
			case !delegated:
				atomic.AddInt32(&t.absent, 1)
			case err == nil:
				atomic.AddInt32(&t.ok, 1)
			case strings.Contains(strings.ToLower(err.Error()), "busy"):
				atomic.AddInt32(&t.busy, 1)
			default:
				atomic.AddInt32(&t.failed, 1)
			}
		}()
	}
	wg.Wait()
	return t
}
