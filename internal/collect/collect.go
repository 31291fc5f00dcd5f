// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package collect gathers videos matching a keyword list, one UTC day at a
// time. Each day's raw results are dumped as JSON and merged into per-date
// CSV files and a combined CSV, all deduplicated on video id.
package collect

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pdiddy/tiktok-metadata/internal/identifiers"
	"github.com/pdiddy/tiktok-metadata/internal/output"
	"github.com/pdiddy/tiktok-metadata/internal/tiktok"
	"github.com/pdiddy/tiktok-metadata/pkg/types"
)

// Querier runs a paginated video query. *tiktok.Client implements it.
type Querier interface {
	QueryAll(ctx context.Context, q tiktok.VideoQuery, fn func(tiktok.Page) error) error
}

// Window is one collection day, [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) String() string {
	return w.Start.Format(tiktok.DateLayout) + "_" + w.End.Format(tiktok.DateLayout)
}

// RawWindow is the JSON dump written for each window.
type RawWindow struct {
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	TotalCount int    `json:"total_count"`
	Data       struct {
		Videos []types.MetadataRecord `json:"videos"`
	} `json:"data"`
}

// Summary tallies a collection run.
type Summary struct {
	Windows  int
	Failed   int
	Videos   int
	Combined int
}

// HasFailures reports whether any window failed.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// LoadKeywords reads one keyword per line, ignoring blank lines.
func LoadKeywords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening keywords file: %w", err)
	}
	defer f.Close()

	var keywords []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if kw := strings.TrimSpace(sc.Text()); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading keywords file: %w", err)
	}
	if len(keywords) == 0 {
		return nil, fmt.Errorf("keywords file %s is empty", path)
	}
	return keywords, nil
}

// Windows splits [from, to) into UTC days.
func Windows(from, to time.Time) []Window {
	var out []Window
	for d := identifiers.Day(from); d.Before(to); d = d.AddDate(0, 0, 1) {
		out = append(out, Window{Start: d, End: d.AddDate(0, 0, 1)})
	}
	return out
}

// Run collects every window between cfg.From and cfg.To.
func Run(ctx context.Context, q Querier, cfg types.CollectConfig, w io.Writer) (Summary, error) {
	var sum Summary
	if len(cfg.Keywords) == 0 {
		return sum, errors.New("no keywords to collect")
	}
	if !cfg.To.After(cfg.From) {
		return sum, fmt.Errorf("end date %s is not after start date %s",
			cfg.To.Format(time.DateOnly), cfg.From.Format(time.DateOnly))
	}
	if cfg.OnError == "" {
		cfg.OnError = types.OnErrorSkip
	}
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return sum, fmt.Errorf("creating output directory: %w", err)
	}

	query := tiktok.KeywordQuery(cfg.Keywords)
	for _, win := range Windows(cfg.From, cfg.To) {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Windows++
		fmt.Fprintf(w, "window: %s to %s\n", win.Start.Format(tiktok.DateLayout), win.End.Format(tiktok.DateLayout))

		n, combined, err := collectWindow(ctx, q, query, win, cfg)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return sum, ctxErr
			}
			sum.Failed++
			fmt.Fprintf(w, "failed:  %s (%v)\n", win, err)
			log.WithError(err).WithField("window", win.String()).Error("collection window failed")
			if errors.Is(err, tiktok.ErrAuth) {
				return sum, fmt.Errorf("authentication failed: %w", err)
			}
			if cfg.OnError == types.OnErrorStop {
				return sum, fmt.Errorf("collection stopped at %s: %w", win, err)
			}
			continue
		}
		sum.Videos += n
		if combined > 0 {
			sum.Combined = combined
		}
		fmt.Fprintf(w, "  fetched %d videos\n", n)
	}

	fmt.Fprintf(w, "\nCollection summary: %d windows, %d failed, %d videos fetched (combined total: %d)\n",
		sum.Windows, sum.Failed, sum.Videos, sum.Combined)
	return sum, nil
}

// collectWindow returns the number of videos fetched and the size of the
// combined file after merging them.
func collectWindow(ctx context.Context, q Querier, query tiktok.Query, win Window, cfg types.CollectConfig) (fetched, combined int, err error) {
	raw := RawWindow{
		StartDate: win.Start.Format(tiktok.DateLayout),
		EndDate:   win.End.Format(tiktok.DateLayout),
	}
	vq := tiktok.NewVideoQuery(query, win.Start, win.End)
	err = q.QueryAll(ctx, vq, func(p tiktok.Page) error {
		raw.Data.Videos = append(raw.Data.Videos, p.Videos...)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	raw.TotalCount = len(raw.Data.Videos)
	if raw.TotalCount == 0 {
		return 0, 0, nil
	}

	rawPath := filepath.Join(cfg.OutDir, win.String()+"_metadata.json")
	if err := output.WriteRawJSON(rawPath, raw); err != nil {
		return 0, 0, err
	}

	byDate := make(map[string][]types.MetadataRecord)
	for _, r := range raw.Data.Videos {
		d := output.DateString(r)
		byDate[d] = append(byDate[d], r)
	}
	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	for _, d := range dates {
		path := filepath.Join(cfg.OutDir, "metadata_"+d+".csv")
		added, total, err := output.MergeCSV(path, byDate[d])
		if err != nil {
			return 0, 0, fmt.Errorf("merging %s: %w", path, err)
		}
		log.WithFields(log.Fields{"file": path, "added": added, "total": total}).Debug("merged per-date file")
	}

	if cfg.CombinedPath != "" {
		if _, combined, err = output.MergeCSV(cfg.CombinedPath, raw.Data.Videos); err != nil {
			return 0, 0, fmt.Errorf("merging %s: %w", cfg.CombinedPath, err)
		}
	}
	return raw.TotalCount, combined, nil
}
