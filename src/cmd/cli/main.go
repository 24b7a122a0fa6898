package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"capcut-bypass/src/config"
	"capcut-bypass/src/history"
	"capcut-bypass/src/inputblock"
	"capcut-bypass/src/logutil"
	"capcut-bypass/src/runtimeinit"
	"capcut-bypass/src/session"
	"capcut-bypass/src/singleinstance"
)

var (
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

type cliOptions struct {
	verbose bool
	envPath string
	backup  bool
	yes     bool
	limit   int
	json    bool
}

func main() {
	if err := run(os.Args); err != nil {
		inputblock.ReleaseAll()
		fmt.Fprintln(os.Stderr, errStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		args = []string{"capcut-bypass"}
	}
	opts := &cliOptions{}
	cmd := newRootCmd(opts)
	cmd.SetArgs(args[1:])
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return cmd.ExecuteContext(ctx)
}

func newRootCmd(opts *cliOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "capcut-bypass",
		Short:         "Replace a selected CapCut clip with its pre-processed render",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output to stderr")
	root.PersistentFlags().StringVar(&opts.envPath, "env", "", "Path to a .env file (highest precedence)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one bypass on the clip selected in CapCut",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBypass(cmd, opts)
		},
	}
	runCmd.Flags().BoolVar(&opts.backup, "backup", false, "Copy the active project to <project>-backup first")

	restoreCmd := &cobra.Command{
		Use:   "restore",
		Short: "Put the project back from the last backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(cmd, opts)
		},
	}

	installCmd := &cobra.Command{
		Use:   "install-config",
		Short: "Patch CapCut's shortcut files with the keys the bypass sends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInstall(cmd, opts)
		},
	}
	installCmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Do not ask for confirmation")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List journalled runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts)
		},
	}
	historyCmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Maximum runs to show (0 for all)")
	historyCmd.Flags().BoolVar(&opts.json, "json", false, "Output runs as JSON")

	root.AddCommand(runCmd, restoreCmd, installCmd, historyCmd)
	return root
}

func bootstrap(opts *cliOptions) (*config.Config, error) {
	loadOpts := config.LoadOptions{EnvPathOverride: opts.envPath}
	if opts.backup {
		b := true
		loadOpts.BackupOverride = &b
	}
	return runtimeinit.Bootstrap(runtimeinit.Options{
		LoadOptions: loadOpts,
		SetupLogging: func(*config.Config) {
			// Configure logging BEFORE any other operations.
			if opts.verbose {
				logutil.SetupVerbose()
				return
			}
			log.SetOutput(io.Discard)
		},
	})
}

func cliHooks(cmd *cobra.Command, assumeYes bool) session.Hooks {
	in := bufio.NewReader(cmd.InOrStdin())
	errOut := cmd.ErrOrStderr()
	return session.Hooks{
		OnStatus: func(msg string) {
			fmt.Fprintln(errOut, statusStyle.Render(msg))
		},
		OnConfirm: func(prompt string) bool {
			if assumeYes {
				return true
			}
			return askYesNo(in, errOut, prompt)
		},
	}
}

// askYesNo defaults to no on EOF or anything but y/yes.
func askYesNo(in *bufio.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s\n[y/N]: ", prompt)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// delegate hands the action to a running tray instance so two runs never
// drive the editor at once.
func delegate(cmd *cobra.Command, action singleinstance.Action) (bool, error) {
	delegated, text, err := singleinstance.NewClient().Delegate(cmd.Context(), action)
	if !delegated {
		return false, nil
	}
	if err != nil {
		return true, err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), statusStyle.Render("Handled by the running tray instance."))
	if text != "" {
		fmt.Fprintln(cmd.OutOrStdout(), text)
	}
	return true, nil
}

func runBypass(cmd *cobra.Command, opts *cliOptions) error {
	cfg, err := bootstrap(opts)
	if err != nil {
		return err
	}
	if handled, err := delegate(cmd, singleinstance.ActionRun); handled {
		if opts.backup && !cfg.BackupBeforeRun {
			log.Printf("--backup is not forwarded to the resident instance")
		}
		return err
	}
	defer inputblock.ReleaseAll()

	sess, closeSess := session.NewFromConfig(cfg)
	defer closeSess()
	if opts.verbose {
		sess.OnPhase(func(from, to session.Phase) {
			fmt.Fprintf(cmd.ErrOrStderr(), "[verbose] %s -> %s\n", from, to)
		})
	}
	backup := cfg.BackupBeforeRun
	res, err := sess.Run(cmd.Context(), session.RunOptions{
		Backup: &backup,
		Hooks:  cliHooks(cmd, false),
	})
	if err != nil {
		return err
	}
	if res.Backup != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), statusStyle.Render("Backup: "+res.Backup.BackupDir))
	}
	fmt.Fprintln(cmd.ErrOrStderr(), okStyle.Render("Replaced with pre-processed render"))
	fmt.Fprintln(cmd.OutOrStdout(), res.FinalPath)
	return nil
}

func runRestore(cmd *cobra.Command, opts *cliOptions) error {
	cfg, err := bootstrap(opts)
	if err != nil {
		return err
	}
	if handled, err := delegate(cmd, singleinstance.ActionRestore); handled {
		return err
	}
	sess, closeSess := session.NewFromConfig(cfg)
	defer closeSess()
	if err := sess.Restore(cmd.Context(), cliHooks(cmd, false)); err != nil {
		return err
	}
	fmt.Fprintln(cmd.ErrOrStderr(), okStyle.Render("Restored"))
	return nil
}

func runInstall(cmd *cobra.Command, opts *cliOptions) error {
	cfg, err := bootstrap(opts)
	if err != nil {
		return err
	}
	defer inputblock.ReleaseAll()
	sess, closeSess := session.NewFromConfig(cfg)
	defer closeSess()
	n, err := sess.Install(cmd.Context(), cliHooks(cmd, opts.yes), opts.yes)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), n)
	return nil
}

type runJSON struct {
	ID        string  `json:"id"`
	StartedAt string  `json:"started_at"`
	Status    string  `json:"status"`
	Backup    bool    `json:"backup"`
	Duration  float64 `json:"duration_seconds"`
	FinalPath string  `json:"final_path,omitempty"`
	Error     string  `json:"error,omitempty"`
}

func runHistory(cmd *cobra.Command, opts *cliOptions) error {
	cfg, err := bootstrap(opts)
	if err != nil {
		return err
	}
	db, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return fmt.Errorf("failed to open run journal: %w", err)
	}
	defer db.Close()

	runs, err := db.List(cmd.Context(), opts.limit)
	if err != nil {
		return err
	}
	if opts.json {
		out := make([]runJSON, 0, len(runs))
		for _, r := range runs {
			out = append(out, runJSON{
				ID:        r.ID,
				StartedAt: r.StartedAt.Format(time.RFC3339),
				Status:    r.Status,
				Backup:    r.Backup,
				Duration:  r.Duration().Seconds(),
				FinalPath: r.FinalPath,
				Error:     r.Error,
			})
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(out); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
		return nil
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.ErrOrStderr(), statusStyle.Render("No runs recorded yet."))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderHistory(runs))
	return nil
}

func renderHistory(runs []history.Run) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("STARTED", "STATUS", "TOOK", "RESULT").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, r := range runs {
		took := "-"
		if d := r.Duration(); d > 0 {
			took = d.Round(time.Second).String()
		}
		result := logutil.SanitizePath(r.FinalPath)
		if r.Error != "" {
			result = r.Error
		}
		t.Row(r.StartedAt.Local().Format("2006-01-02 15:04:05"), statusText(r.Status), took, result)
	}
	return t.Render()
}

func statusText(status string) string {
	switch status {
	case history.StatusDone:
		return okStyle.Render(status)
	case history.StatusFailed, history.StatusInterrupted:
		return errStyle.Render(status)
	}
	return status
}
