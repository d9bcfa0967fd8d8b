package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/observability"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/runner"
	"github.com/primeeng-adil/netsuite-takeoff-integration/internal/script"
)

func newBindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bind",
		Short: "Print the bound step table without opening a browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer observability.Sync()

			form, err := loadForm(cfg)
			if err != nil {
				return err
			}
			table, creds, err := runner.New(cfg, nil, nil, logger).Prepare(form)
			if err != nil {
				return err
			}
			printTable(cmd.OutOrStdout(), table)
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %d steps bound, %d security answers loaded\n", len(table), creds.Questions())
			return nil
		},
	}
	addFormFlags(cmd)
	return cmd
}

func printTable(w io.Writer, table script.Table) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tWIN\tSTEP\tTARGET\tDOES")
	for i, st := range table {
		b := st.Common()
		target, does := describe(st)
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n", i, b.Window, b.Name, target, does)
	}
	tw.Flush()
}

// describe renders a step for display. Credentials never reach a bound table
// so keys are printed as-is; hook-supplied values are shown as placeholders.
func describe(st script.Step) (target, does string) {
	switch s := st.(type) {
	case *script.ActStep:
		acts := make([]string, len(s.Actions))
		for i, a := range s.Actions {
			acts[i] = string(a)
		}
		does = strings.Join(acts, "+")
		switch {
		case s.Injected:
			does += " <from previous step>"
		case s.NeedsKeys():
			does += " " + fmt.Sprintf("%q", s.Keys)
		}
		return s.Locator.String(), does
	case *script.HookStep:
		does = "hook " + string(s.Hook)
		if s.Credential != "" {
			does += " <" + string(s.Credential) + ">"
		}
		if s.Retrieve != "" {
			does += " -> " + string(s.Retrieve)
		}
		return s.Locator.String(), does
	case *script.RetrieveStep:
		does = "retrieve " + string(s.Kind)
		if s.Attribute != "" {
			does += " @" + s.Attribute
		}
		return s.Locator.String(), does
	}
	return "", "?"
}
