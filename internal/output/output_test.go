// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package output

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/tiktok-metadata/pkg/types"
)

func record(id, username string) types.MetadataRecord {
	return types.MetadataRecord{
		ID:           types.VideoID(id),
		Username:     username,
		CreateTime:   1682942400, // 2023-05-01 12:00:00 UTC
		ViewCount:    42,
		HashtagNames: []string{"cats", "fyp"},
		EffectIDs:    []types.NumericString{"123"},
		MusicID:      "7227000000000000999",
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestFields(t *testing.T) {
	got := Fields(record("7227000000000000001", "alice"))

	assert.Equal(t, "7227000000000000001", got["id"])
	assert.Equal(t, "42", got["view_count"])
	assert.Equal(t, `["cats","fyp"]`, got["hashtag_names"])
	assert.Equal(t, `["123"]`, got["effect_ids"])
	assert.Equal(t, "https://www.tiktok.com/@alice/video/7227000000000000001", got["tiktokurl"])
	assert.Equal(t, "2023", got["utc_year"])
	assert.Equal(t, "5", got["utc_month"])
	assert.Equal(t, "1", got["utc_day"])
	assert.Equal(t, "12", got["utc_hour"])
	assert.Equal(t, "2023-05-01", got["utc_date_string"])
	assert.Equal(t, "12:00:00", got["utc_time_string"])

	for _, col := range Columns {
		_, ok := got[col]
		assert.True(t, ok, "column %s has no value", col)
	}
}

func TestRowFollowsHeader(t *testing.T) {
	row := Row(record("7227000000000000001", "alice"), []string{"username", "unknown", "id"})
	assert.Equal(t, []string{"alice", "", "7227000000000000001"}, row)
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		name, path string
		want       Format
		wantErr    bool
	}{
		{"", "out.csv", FormatCSV, false},
		{"", "out.jsonl", FormatJSONL, false},
		{"", "out.json", FormatJSONL, false},
		{"", "out", FormatCSV, false},
		{"CSV", "out.jsonl", FormatCSV, false},
		{"jsonl", "out.csv", FormatJSONL, false},
		{"xml", "out.csv", "", true},
	}
	for _, tt := range tests {
		got, err := FormatFor(tt.name, tt.path)
		if tt.wantErr {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %s", tt.name, tt.path)
	}
}

func TestCSVStoreNewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")

	s, err := Open(path, FormatCSV)
	require.NoError(t, err)
	n, err := s.Append([]types.MetadataRecord{
		record("7227000000000000001", "alice"),
		record("7227000000000000002", "bob"),
		record("7227000000000000001", "alice"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has("7227000000000000002"))
	require.NoError(t, s.Close())

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, "7227000000000000001", rows[1][0])
	assert.Equal(t, "bob", rows[2][1])
}

func TestCSVStoreReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	batch := []types.MetadataRecord{
		record("7227000000000000001", "alice"),
		record("7227000000000000002", "bob"),
	}

	for run := 0; run < 3; run++ {
		s, err := OpenCSV(path)
		require.NoError(t, err)
		n, err := s.Append(batch)
		require.NoError(t, err)
		if run == 0 {
			assert.Equal(t, 2, n)
		} else {
			assert.Zero(t, n, "run %d wrote rows", run)
		}
		require.NoError(t, s.Close())
	}

	assert.Len(t, readCSV(t, path), 3)
}

func TestCSVStoreKeepsExistingHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	// No trailing newline on purpose.
	require.NoError(t, os.WriteFile(path, []byte("username,id\nzed,7000000000000000001"), 0o644))

	s, err := OpenCSV(path)
	require.NoError(t, err)
	assert.True(t, s.Has("7000000000000000001"))
	_, err = s.Append([]types.MetadataRecord{record("7227000000000000001", "alice")})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Equal(t, [][]string{
		{"username", "id"},
		{"zed", "7000000000000000001"},
		{"alice", "7227000000000000001"},
	}, readCSV(t, path))
}

func TestCSVStoreRejectsHeaderWithoutID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("username,views\nzed,1\n"), 0o644))

	_, err := OpenCSV(path)
	assert.ErrorContains(t, err, `no "id" column`)
}

func TestCSVStoreEmptyFileGetsHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	s, err := OpenCSV(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	assert.Equal(t, [][]string{Columns}, readCSV(t, path))
}

func TestJSONLStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")

	s, err := Open(path, FormatJSONL)
	require.NoError(t, err)
	n, err := s.Append([]types.MetadataRecord{
		record("7227000000000000001", "alice"),
		record("7227000000000000001", "alice"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, s.Close())

	s, err = OpenJSONL(path)
	require.NoError(t, err)
	assert.True(t, s.Has("7227000000000000001"))
	n, err = s.Append([]types.MetadataRecord{
		record("7227000000000000001", "alice"),
		record("7227000000000000002", "bob"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "7227000000000000001", first["id"])
	assert.Equal(t, "https://www.tiktok.com/@alice/video/7227000000000000001", first["tiktokurl"])
	assert.Equal(t, "2023-05-01", first["utc_date_string"])

	var back types.MetadataRecord
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &back))
	assert.Equal(t, types.VideoID("7227000000000000002"), back.ID)
	assert.Equal(t, []string{"cats", "fyp"}, back.HashtagNames)
}

func TestJSONLStoreRejectsCorruptLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"1"}`+"\n{oops\n"), 0o644))

	_, err := OpenJSONL(path)
	assert.ErrorContains(t, err, "line 2")
}

func TestMergeCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "combined.csv")

	added, total, err := MergeCSV(path, []types.MetadataRecord{record("7227000000000000001", "alice")})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 1, total)

	added, total, err = MergeCSV(path, []types.MetadataRecord{
		record("7227000000000000001", "changed"),
		record("7227000000000000002", "bob"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 2, total)

	rows := readCSV(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, "alice", rows[1][1])
}

func TestWriteRawJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw", "20230501_20230502_metadata.json")
	require.NoError(t, WriteRawJSON(path, map[string]int{"videos": 3}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"videos":3}`, string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}
