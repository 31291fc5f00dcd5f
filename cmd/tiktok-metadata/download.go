// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/tiktok-metadata/internal/download"
	"github.com/pdiddy/tiktok-metadata/internal/logging"
)

var downloadCmd = &cobra.Command{
	Use:   "download <metadata.csv>",
	Short: "Check availability and download collected videos",
	Long: `Download reads a metadata CSV with id and username columns, checks each
video's public page, and saves public videos as
<video-dir>/<stem>/@<username>_video_<id>.mp4. Existing valid files are kept.
The input rows are written to <out-dir>/<stem>_processed.csv with two added
columns: isPublic and mp4_isValid.`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	f := downloadCmd.Flags()
	f.String("out-dir", "output", "directory for the processed CSV")
	f.String("video-dir", "videos", "parent directory for downloaded videos")
	f.Int("attempts", 5, "tries per page check or download")
	f.Duration("retry-delay", 0, "pause between attempts (default 100s)")
	f.Duration("delay", 0, "minimum spacing between rows (default 10s)")

	bindFlag("download.out_dir", f.Lookup("out-dir"))
	bindFlag("download.video_dir", f.Lookup("video-dir"))
	bindFlag("download.attempts", f.Lookup("attempts"))
	bindFlag("download.retry_delay", f.Lookup("retry-delay"))
	bindFlag("download.delay", f.Lookup("delay"))

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	input := args[0]
	if err := os.MkdirAll(cfg.Download.OutDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	sink, err := logging.AddFileSink(logging.ProcessLogPath(cfg.Download.OutDir, input))
	if err != nil {
		return err
	}
	defer sink.Close()

	d := download.New(cfg.Download)
	sum, err := d.ProcessFile(cmd.Context(), input, os.Stdout)
	if err != nil {
		return err
	}
	if sum.HasFailures() {
		return fmt.Errorf("%d video(s) failed", sum.Failed)
	}
	return nil
}
