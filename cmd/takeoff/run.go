package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/observability"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/progress"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/runner"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Enter the proposal and project described by a form",
		Long: `run opens Chrome on the configured NetSuite page, fills in the proposal and
project, and writes the job directory and quote log entry.

Send SIGUSR1 to pause or resume between steps; Ctrl-C stops the run.`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}
	addFormFlags(cmd)
	cmd.Flags().BoolVar(&withTrace, "trace", false, "Record the run as a GIF in trace.dir")
	return cmd
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer observability.Sync()

	form, err := loadForm(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gate := &progress.Gate{}
	stopPause := watchPause(ctx, gate, cmd.OutOrStdout())
	defer stopPause()

	out := cmd.OutOrStdout()
	printer := progress.NewPrinter(out, logger)
	result, err := runner.New(cfg, printer, gate, logger).Run(ctx, form, withTrace)
	if result != nil {
		if result.TracePath != "" {
			fmt.Fprintf(out, "  trace: %s (%d frames)\n", result.TracePath, result.Frames)
		}
		if result.FailurePath != "" {
			fmt.Fprintf(out, "  failure snapshot: %s\n", result.FailurePath)
		}
	}
	if err != nil {
		fmt.Fprintln(out, "✗ Run failed")
		return err
	}

	p := result.Project
	fmt.Fprintf(out, "✓ Project %s (%s) created from %d captured values\n", p.ID, p.Name, result.Captures)
	fmt.Fprintf(out, "  job directory: %s\n", result.Artifacts.JobDir)
	if p.URL != "" {
		fmt.Fprintf(out, "  proposal: %s\n", p.URL)
	}
	return nil
}
