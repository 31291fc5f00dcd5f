// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package collect

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/tiktok-metadata/internal/tiktok"
	"github.com/pdiddy/tiktok-metadata/pkg/types"
)

var may1 = time.Date(2023, time.May, 1, 0, 0, 0, 0, time.UTC)

type fakeQuerier struct {
	pages   map[string][]tiktok.Page // keyed by start date
	errs    map[string]error
	queries []tiktok.VideoQuery
}

func (f *fakeQuerier) QueryAll(_ context.Context, q tiktok.VideoQuery, fn func(tiktok.Page) error) error {
	f.queries = append(f.queries, q)
	if err := f.errs[q.StartDate]; err != nil {
		return err
	}
	for _, p := range f.pages[q.StartDate] {
		if err := fn(p); err != nil {
			return err
		}
	}
	return nil
}

func rec(id string, at time.Time) types.MetadataRecord {
	return types.MetadataRecord{ID: types.VideoID(id), Username: "u" + id, CreateTime: at.Unix()}
}

func csvRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestLoadKeywords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.txt")
	require.NoError(t, os.WriteFile(path, []byte("cats\n\n  #dogs  \n"), 0o644))

	got, err := LoadKeywords(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"cats", "#dogs"}, got)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("\n \n"), 0o644))
	_, err = LoadKeywords(empty)
	assert.ErrorContains(t, err, "empty")

	_, err = LoadKeywords(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestWindows(t *testing.T) {
	got := Windows(may1.Add(5*time.Hour), may1.AddDate(0, 0, 3))
	require.Len(t, got, 3)
	assert.Equal(t, may1, got[0].Start)
	assert.Equal(t, may1.AddDate(0, 0, 1), got[0].End)
	assert.Equal(t, "20230503_20230504", got[2].String())

	assert.Empty(t, Windows(may1, may1))
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	combined := filepath.Join(dir, "combined.csv")
	q := &fakeQuerier{pages: map[string][]tiktok.Page{
		"20230501": {
			{Videos: []types.MetadataRecord{rec("1", may1.Add(time.Hour)), rec("2", may1.Add(2*time.Hour))}, HasMore: true},
			{Videos: []types.MetadataRecord{rec("1", may1.Add(time.Hour))}},
		},
		"20230502": {
			{Videos: []types.MetadataRecord{rec("3", may1.AddDate(0, 0, 1).Add(time.Hour)), rec("2", may1.Add(2*time.Hour))}},
		},
	}}
	cfg := types.CollectConfig{
		From:         may1,
		To:           may1.AddDate(0, 0, 3),
		Keywords:     []string{"cats"},
		OutDir:       filepath.Join(dir, "out"),
		CombinedPath: combined,
	}
	var buf bytes.Buffer

	sum, err := Run(context.Background(), q, cfg, &buf)
	require.NoError(t, err)
	assert.Equal(t, Summary{Windows: 3, Videos: 5, Combined: 3}, sum)

	require.Len(t, q.queries, 3)
	assert.Equal(t, "20230502", q.queries[0].EndDate)
	assert.Equal(t, []string{"cats"}, q.queries[0].Query.Or[0].FieldValues)

	var raw RawWindow
	data, err := os.ReadFile(filepath.Join(cfg.OutDir, "20230501_20230502_metadata.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, 3, raw.TotalCount)
	assert.Len(t, raw.Data.Videos, 3)

	// Record 2 came back again in the second window but belongs to May 1.
	assert.Len(t, csvRows(t, filepath.Join(cfg.OutDir, "metadata_2023-05-01.csv")), 3)
	assert.Len(t, csvRows(t, filepath.Join(cfg.OutDir, "metadata_2023-05-02.csv")), 2)
	assert.Len(t, csvRows(t, combined), 4)

	_, err = os.Stat(filepath.Join(cfg.OutDir, "20230503_20230504_metadata.json"))
	assert.True(t, os.IsNotExist(err), "empty window must not be dumped")
	assert.Contains(t, buf.String(), "combined total: 3")
}

func TestRunWindowFailure(t *testing.T) {
	base := types.CollectConfig{
		From:     may1,
		To:       may1.AddDate(0, 0, 2),
		Keywords: []string{"cats"},
		OutDir:   t.TempDir(),
	}

	t.Run("skip continues", func(t *testing.T) {
		q := &fakeQuerier{errs: map[string]error{"20230501": tiktok.ErrServer}}
		sum, err := Run(context.Background(), q, base, &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, 1, sum.Failed)
		assert.True(t, sum.HasFailures())
		assert.Len(t, q.queries, 2)
	})

	t.Run("stop returns", func(t *testing.T) {
		cfg := base
		cfg.OnError = types.OnErrorStop
		q := &fakeQuerier{errs: map[string]error{"20230501": tiktok.ErrServer}}
		_, err := Run(context.Background(), q, cfg, &bytes.Buffer{})
		assert.ErrorIs(t, err, tiktok.ErrServer)
		assert.Len(t, q.queries, 1)
	})

	t.Run("auth always stops", func(t *testing.T) {
		q := &fakeQuerier{errs: map[string]error{"20230501": &tiktok.APIError{Status: 401}}}
		_, err := Run(context.Background(), q, base, &bytes.Buffer{})
		assert.ErrorIs(t, err, tiktok.ErrAuth)
		assert.Len(t, q.queries, 1)
	})
}

func TestRunValidatesInput(t *testing.T) {
	_, err := Run(context.Background(), &fakeQuerier{}, types.CollectConfig{From: may1, To: may1.AddDate(0, 0, 1)}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "no keywords")

	_, err = Run(context.Background(), &fakeQuerier{}, types.CollectConfig{From: may1, To: may1, Keywords: []string{"x"}}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "not after")
}
