// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/tiktok-metadata/internal/collect"
	"github.com/pdiddy/tiktok-metadata/internal/logging"
	"github.com/pdiddy/tiktok-metadata/internal/tiktok"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect videos matching keywords and hashtags, one day at a time",
	Long: `Collect queries the Research API for videos whose description contains any
keyword from the keywords file or that carry any of them as a hashtag. The
range [--from, --to) is walked one UTC day at a time. Each day's results are
saved as <start>_<end>_metadata.json and merged into metadata_<date>.csv and
the combined CSV, deduplicated on video id.`,
	Args: cobra.NoArgs,
	RunE: runCollect,
}

func init() {
	f := collectCmd.Flags()
	f.String("keywords", "", "file with one keyword or hashtag per line (required)")
	f.String("from", "", "first day to collect, YYYYMMDD (required)")
	f.String("to", "", "day after the last one to collect, YYYYMMDD (required)")
	f.String("out-dir", "output/collect", "directory for raw JSON and per-date CSV files")
	f.String("combined", "output/combined_metadata.csv", "CSV accumulating every collected video")
	f.String("on-error", "skip", "on a failed day: skip (log and continue) or stop")
	collectCmd.MarkFlagRequired("keywords")
	collectCmd.MarkFlagRequired("from")
	collectCmd.MarkFlagRequired("to")

	bindFlag("collect.out_dir", f.Lookup("out-dir"))
	bindFlag("collect.combined_path", f.Lookup("combined"))
	bindFlag("collect.on_error", f.Lookup("on-error"))

	rootCmd.AddCommand(collectCmd)
}

func runCollect(cmd *cobra.Command, args []string) error {
	keywordsPath, _ := cmd.Flags().GetString("keywords")
	from, err := parseDay(cmd, "from")
	if err != nil {
		return err
	}
	to, err := parseDay(cmd, "to")
	if err != nil {
		return err
	}

	keywords, err := collect.LoadKeywords(keywordsPath)
	if err != nil {
		return err
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}

	sink, err := logging.AddFileSink(logging.ProcessLogPath(cfg.Collect.OutDir, keywordsPath))
	if err != nil {
		return err
	}
	defer sink.Close()

	c := cfg.Collect
	c.From, c.To, c.Keywords = from, to, keywords

	sum, err := collect.Run(cmd.Context(), client, c, os.Stdout)
	if err != nil {
		return err
	}
	if sum.HasFailures() {
		return fmt.Errorf("%d day(s) failed collection", sum.Failed)
	}
	return nil
}

func parseDay(cmd *cobra.Command, name string) (time.Time, error) {
	s, _ := cmd.Flags().GetString(name)
	t, err := time.ParseInLocation(tiktok.DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: want YYYYMMDD, got %q", name, s)
	}
	return t, nil
}
