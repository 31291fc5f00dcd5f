// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package lookup resolves a list of video identifiers into metadata records.
// Identifiers already present in the output, or known to be missing from the
// API, are skipped; the rest are grouped into windowed batches and queried one
// batch at a time.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pdiddy/tiktok-metadata/internal/identifiers"
	"github.com/pdiddy/tiktok-metadata/internal/ledger"
	"github.com/pdiddy/tiktok-metadata/internal/output"
	"github.com/pdiddy/tiktok-metadata/internal/tiktok"
	"github.com/pdiddy/tiktok-metadata/pkg/types"
)

// Resolver fetches the records of one batch. *tiktok.Client implements it.
type Resolver interface {
	LookupIDs(ctx context.Context, b identifiers.Batch) ([]types.MetadataRecord, error)
}

// Summary tallies the outcome of a run.
type Summary struct {
	Resolved   int
	Skipped    int
	NotFound   int
	Failed     int
	Rejected   int
	Duplicates int
}

// Total is the number of distinct valid identifiers the run considered.
func (s Summary) Total() int {
	return s.Resolved + s.Skipped + s.NotFound + s.Failed
}

// HasFailures reports whether any lookup failed.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// Counts converts the summary to the ledger's run counts.
func (s Summary) Counts() ledger.Counts {
	return ledger.Counts{
		Resolved: s.Resolved,
		Skipped:  s.Skipped,
		NotFound: s.NotFound,
		Failed:   s.Failed,
		Rejected: s.Rejected,
	}
}

type runner struct {
	resolver Resolver
	store    output.Store
	ledger   *ledger.Ledger
	cfg      types.LookupConfig
	w        io.Writer
	sum      Summary
}

// Run looks up every identifier in ids and appends the records to store.
// Progress lines and a final summary are written to w.
//
// A failed batch is recorded and, with the skip policy, the run moves on to
// the next batch. Authentication failures and output write errors always
// stop the run. The returned Summary is valid even when err is non-nil.
func Run(ctx context.Context, r Resolver, ids identifiers.LoadResult, store output.Store, l *ledger.Ledger, cfg types.LookupConfig, w io.Writer) (Summary, error) {
	if cfg.OnError == "" {
		cfg.OnError = types.OnErrorSkip
	}
	if !cfg.OnError.Valid() {
		return Summary{}, fmt.Errorf("unknown error policy %q", cfg.OnError)
	}

	p := &runner{resolver: r, store: store, ledger: l, cfg: cfg, w: w}
	p.sum.Rejected = len(ids.Rejected)
	p.sum.Duplicates = ids.Duplicates

	for _, rj := range ids.Rejected {
		fmt.Fprintf(w, "rejected: line %d %q (%s)\n", rj.Line, rj.Raw, rj.Reason)
	}
	if ids.Duplicates > 0 {
		fmt.Fprintf(w, "dropped %d duplicate identifiers\n", ids.Duplicates)
	}

	pending, err := p.pending(ctx, ids.IDs)
	if err != nil {
		return p.sum, err
	}

	batches := identifiers.Batches(pending, cfg.BatchSize, cfg.WindowDays)
	log.WithFields(log.Fields{
		"pending": len(pending),
		"batches": len(batches),
		"skipped": p.sum.Skipped,
	}).Info("starting lookup")

	for i, b := range batches {
		if i > 0 && cfg.Delay > 0 {
			if err := sleep(ctx, cfg.Delay); err != nil {
				p.printSummary()
				return p.sum, err
			}
		}
		if err := ctx.Err(); err != nil {
			p.printSummary()
			return p.sum, err
		}
		if err := p.lookupBatch(ctx, b, i+1); err != nil {
			p.printSummary()
			return p.sum, err
		}
	}

	p.printSummary()
	return p.sum, nil
}

// pending drops ids already in the output and, unless RecheckMissing is set,
// ids the ledger knows the API does not return.
func (p *runner) pending(ctx context.Context, ids []types.VideoID) ([]types.VideoID, error) {
	missing := map[types.VideoID]struct{}{}
	if !p.cfg.RecheckMissing {
		var err error
		if missing, err = p.ledger.WithStatus(ctx, ledger.StatusNotFound); err != nil {
			return nil, err
		}
	}

	var out []types.VideoID
	for _, id := range ids {
		if p.store.Has(id) {
			fmt.Fprintf(p.w, "skipped: %s (already in output)\n", id)
			p.sum.Skipped++
			continue
		}
		if _, ok := missing[id]; ok {
			fmt.Fprintf(p.w, "skipped: %s (previously not found)\n", id)
			p.sum.Skipped++
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func (p *runner) lookupBatch(ctx context.Context, b identifiers.Batch, n int) error {
	entry := log.WithFields(log.Fields{
		"batch": n,
		"ids":   len(b.IDs),
		"start": b.StartDate.Format(time.DateOnly),
		"end":   b.EndDate.Format(time.DateOnly),
	})
	entry.Debug("querying batch")

	records, err := p.resolver.LookupIDs(ctx, b)
	if errors.Is(err, tiktok.ErrInvalidParams) && len(b.IDs) > 1 {
		entry.WithError(err).Warn("batch rejected, retrying identifiers one at a time")
		for _, id := range b.IDs {
			day := identifiers.Day(identifiers.CreatedAt(id))
			single := identifiers.Batch{
				IDs:       []types.VideoID{id},
				StartDate: day,
				EndDate:   day.AddDate(0, 0, 1),
			}
			if err := p.lookupBatch(ctx, single, n); err != nil {
				return err
			}
		}
		return nil
	}
	if err != nil {
		return p.fail(ctx, b, err)
	}
	return p.save(ctx, b, records)
}

func (p *runner) save(ctx context.Context, b identifiers.Batch, records []types.MetadataRecord) error {
	written, err := p.store.Append(records)
	if err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	p.sum.Resolved += written

	found := make(map[types.VideoID]bool, len(records))
	resolved := make([]types.VideoID, 0, len(records))
	for _, r := range records {
		found[r.ID] = true
		resolved = append(resolved, r.ID)
		fmt.Fprintf(p.w, "resolved: %s (@%s)\n", r.ID, r.Username)
	}

	var missing []types.VideoID
	for _, id := range b.IDs {
		if !found[id] {
			missing = append(missing, id)
			fmt.Fprintf(p.w, "not found: %s\n", id)
		}
	}
	p.sum.NotFound += len(missing)

	if err := p.ledger.Record(ctx, ledger.StatusResolved, "", resolved...); err != nil {
		return err
	}
	return p.ledger.Record(ctx, ledger.StatusNotFound, "", missing...)
}

// fail records a failed batch and decides whether the run continues.
func (p *runner) fail(ctx context.Context, b identifiers.Batch, cause error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	p.sum.Failed += len(b.IDs)
	for _, id := range b.IDs {
		fmt.Fprintf(p.w, "failed:  %s (%v)\n", id, cause)
	}
	log.WithError(cause).WithField("ids", len(b.IDs)).Error("batch lookup failed")

	if err := p.ledger.Record(ctx, ledger.StatusFailed, cause.Error(), b.IDs...); err != nil {
		log.WithError(err).Warn("could not record failure in ledger")
	}

	if errors.Is(cause, tiktok.ErrAuth) {
		return fmt.Errorf("authentication failed: %w", cause)
	}
	if p.cfg.OnError == types.OnErrorStop {
		return fmt.Errorf("lookup stopped: %w", cause)
	}
	return nil
}

func (p *runner) printSummary() {
	s := p.sum
	fmt.Fprintf(p.w, "\nLookup summary: %d resolved, %d skipped, %d not found, %d failed, %d rejected, %d duplicates (total: %d)\n",
		s.Resolved, s.Skipped, s.NotFound, s.Failed, s.Rejected, s.Duplicates, s.Total())
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
