// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pdiddy/tiktok-metadata/internal/identifiers"
	"github.com/pdiddy/tiktok-metadata/internal/ledger"
	"github.com/pdiddy/tiktok-metadata/internal/logging"
	"github.com/pdiddy/tiktok-metadata/internal/lookup"
	"github.com/pdiddy/tiktok-metadata/internal/output"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <identifiers.csv>",
	Short: "Resolve video identifiers into metadata records",
	Long: `Lookup reads a CSV of TikTok video identifiers (bare ids or video URLs),
drops malformed and duplicate entries, and queries the Research API in batches
grouped by creation date. Each resolved video is appended to the output file
once; identifiers already present in the output are skipped.

The first row is treated as a header when it names the identifier column
(id, video_id, or tiktokurl, or the name given with --column).`,
	Args: cobra.ExactArgs(1),
	RunE: runLookup,
}

func init() {
	f := lookupCmd.Flags()
	f.StringP("output", "o", "output/metadata.csv", "output file (.csv or .jsonl)")
	f.String("format", "", "output format: csv or jsonl (default: from the output extension)")
	f.String("column", "", "identifier column name in the input header")
	f.Int("batch-size", 100, "maximum identifiers per query (1-100)")
	f.Int("window-days", 30, "maximum creation-date span per query (1-30)")
	f.String("on-error", "skip", "on a failed batch: skip (log and continue) or stop")
	f.Bool("recheck-missing", false, "query identifiers the ledger already marked not found")
	f.Duration("delay", 0, "pause between batches")

	bindFlag("lookup.batch_size", f.Lookup("batch-size"))
	bindFlag("lookup.window_days", f.Lookup("window-days"))
	bindFlag("lookup.on_error", f.Lookup("on-error"))
	bindFlag("lookup.recheck_missing", f.Lookup("recheck-missing"))
	bindFlag("lookup.delay", f.Lookup("delay"))

	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	input := args[0]
	outPath, _ := cmd.Flags().GetString("output")
	formatName, _ := cmd.Flags().GetString("format")
	column, _ := cmd.Flags().GetString("column")

	format, err := output.FormatFor(formatName, outPath)
	if err != nil {
		return err
	}

	// Identifiers are validated before any credential or network use.
	ids, err := identifiers.LoadFile(input, column)
	if err != nil {
		return err
	}
	if len(ids.IDs) == 0 {
		return fmt.Errorf("%s has no valid identifiers (%d rejected)", input, len(ids.Rejected))
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}

	sink, err := logging.AddFileSink(logging.ProcessLogPath(filepath.Dir(outPath), input))
	if err != nil {
		return err
	}
	defer sink.Close()

	store, err := output.Open(outPath, format)
	if err != nil {
		return err
	}
	defer store.Close()

	l, err := ledger.Open(ctx, cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer l.Close()

	runID, err := l.StartRun(ctx, "lookup", input)
	if err != nil {
		return err
	}

	sum, runErr := lookup.Run(ctx, client, ids, store, l, cfg.Lookup, os.Stdout)
	if err := l.FinishRun(ctx, runID, sum.Counts()); err != nil {
		log.WithError(err).Warn("could not record run")
	}
	if runErr != nil {
		return runErr
	}

	fmt.Printf("Output: %s (%d records)\n", store.Path(), store.Len())
	if sum.HasFailures() {
		return fmt.Errorf("%d identifier(s) failed lookup", sum.Failed)
	}
	return nil
}
