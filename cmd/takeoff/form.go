package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/inputs"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/observability"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/runner"
)

func newFormCmd() *cobra.Command {
	formCmd := &cobra.Command{
		Use:   "form",
		Short: "Create, check and split input forms",
	}

	initCmd := &cobra.Command{
		Use:   "init FILE",
		Short: "Write an empty form with every field the template needs",
		Args:  cobra.ExactArgs(1),
		RunE:  runFormInit,
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite FILE if it exists")

	checkCmd := &cobra.Command{
		Use:   "check FILE",
		Short: "Report missing or empty fields",
		Args:  cobra.ExactArgs(1),
		RunE:  runFormCheck,
	}
	checkCmd.Flags().StringVar(&loginPath, "login", "", "Separate form file holding the login and security answers")

	splitCmd := &cobra.Command{
		Use:   "split FILE LOGIN DETAILS",
		Short: "Move the login and security answers of FILE into their own form",
		Args:  cobra.ExactArgs(3),
		RunE:  runFormSplit,
	}

	formCmd.AddCommand(initCmd, checkCmd, splitCmd)
	return formCmd
}

func runFormInit(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer observability.Sync()

	path := args[0]
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	required, err := runner.New(cfg, nil, nil, logger).RequiredFields()
	if err != nil {
		return err
	}
	if err := inputs.Save(path, inputs.Skeleton(required)); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Wrote %s (%d fields)\n", path, len(required)+len(inputs.LoginLabels()))
	return nil
}

func runFormCheck(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer observability.Sync()

	formPath = args[0]
	form, err := loadForm(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printForm(out, form)
	fmt.Fprintf(out, "→ Checking %s... ", formPath)
	_, _, err = runner.New(cfg, nil, nil, logger).Prepare(form)
	var verr *inputs.ValidationError
	if errors.As(err, &verr) {
		fmt.Fprintln(out, "incomplete")
		for _, label := range verr.Missing {
			fmt.Fprintf(out, "  missing: %s\n", label)
		}
		return err
	}
	if err != nil {
		fmt.Fprintln(out, "failed")
		return err
	}
	fmt.Fprintln(out, "done")
	return nil
}

// printForm lists the form's fields in label order with secrets masked.
func printForm(w io.Writer, form *inputs.Form) {
	values := form.Masked()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, label := range form.SortedLabels() {
		fmt.Fprintf(tw, "  %s\t%s\n", label, values[label])
	}
	tw.Flush()
}

func runFormSplit(cmd *cobra.Command, args []string) error {
	form, err := inputs.Load(args[0])
	if err != nil {
		return err
	}
	login, details := form.Split()
	if err := inputs.Save(args[1], login); err != nil {
		return err
	}
	if err := inputs.Save(args[2], details); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Login fields saved to %s, details to %s\n", args[1], args[2])
	return nil
}
