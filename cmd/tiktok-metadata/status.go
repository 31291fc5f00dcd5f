// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/tiktok-metadata/internal/ledger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show lookup outcomes and recent runs from the ledger",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().Int("runs", 10, "number of recent runs to show (0 for all)")
	statusCmd.Flags().Bool("yaml", false, "print as YAML")

	rootCmd.AddCommand(statusCmd)
}

// statusReport is the YAML form of the status output.
type statusReport struct {
	Ledger  string                `yaml:"ledger"`
	Lookups map[ledger.Status]int `yaml:"lookups"`
	Runs    []ledger.Run          `yaml:"runs"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	if cfg.Ledger.Path == "" {
		return errors.New("no ledger configured (set --ledger or ledger.path)")
	}
	limit, _ := cmd.Flags().GetInt("runs")
	asYAML, _ := cmd.Flags().GetBool("yaml")

	ctx := cmd.Context()
	l, err := ledger.Open(ctx, cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer l.Close()

	summary, err := l.Summary(ctx)
	if err != nil {
		return err
	}
	runs, err := l.Runs(ctx, limit)
	if err != nil {
		return err
	}

	report := statusReport{Ledger: cfg.Ledger.Path, Lookups: summary, Runs: runs}
	if asYAML {
		data, err := yaml.Marshal(report)
		if err != nil {
			return fmt.Errorf("marshaling status: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(data))
		return nil
	}
	printStatus(cmd.OutOrStdout(), report)
	return nil
}

func printStatus(w io.Writer, r statusReport) {
	fmt.Fprintf(w, "Ledger: %s\n\n", r.Ledger)

	statuses := make([]string, 0, len(r.Lookups))
	total := 0
	for s, n := range r.Lookups {
		statuses = append(statuses, string(s))
		total += n
	}
	sort.Strings(statuses)
	fmt.Fprintf(w, "Lookups (%d identifiers):\n", total)
	for _, s := range statuses {
		fmt.Fprintf(w, "  %-10s %d\n", s, r.Lookups[ledger.Status(s)])
	}

	if len(r.Runs) == 0 {
		fmt.Fprintln(w, "\nNo runs recorded.")
		return
	}
	fmt.Fprintln(w, "\nRecent runs:")
	for _, run := range r.Runs {
		finished := "running"
		if run.FinishedAt != nil {
			finished = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "  #%d %s %s %s (%s): %d resolved, %d skipped, %d not found, %d failed, %d rejected\n",
			run.ID, run.StartedAt.Local().Format("2006-01-02 15:04"), run.Command, run.Input, finished,
			run.Resolved, run.Skipped, run.NotFound, run.Failed, run.Rejected)
	}
}
