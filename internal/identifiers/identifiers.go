// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package identifiers loads TikTok video ids from CSV files, rejects
// malformed rows, removes duplicates, and groups ids into query batches.
// Nothing in this package touches the network.
package identifiers

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pdiddy/tiktok-metadata/pkg/types"
)

// maxDigits is the length of the largest uint64 value.
const maxDigits = 20

// earliest is the lower bound for the timestamp embedded in a video id.
var earliest = time.Date(2016, time.September, 1, 0, 0, 0, 0, time.UTC)

// now is replaced in tests.
var now = time.Now

var (
	ErrEmpty     = errors.New("empty identifier")
	ErrNotNumber = errors.New("identifier is not a decimal video id")
	ErrTooLong   = errors.New("identifier has too many digits")
	ErrZero      = errors.New("identifier is zero")
	ErrTimestamp = errors.New("identifier timestamp out of range")
)

// urlPattern matches https://www.tiktok.com/@user/video/<id> with optional
// scheme, host prefix, and query string.
var urlPattern = regexp.MustCompile(`^(?:https?://)?(?:[a-z]+\.)?tiktok\.com/@[^/]+/video/(\d+)`)

// Parse normalizes a raw cell into a VideoID. It accepts a bare decimal id or
// a TikTok video URL.
func Parse(raw string) (types.VideoID, error) {
	s := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
	if s == "" {
		return "", ErrEmpty
	}
	if m := urlPattern.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", ErrNotNumber
		}
	}
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "", ErrZero
	}
	if len(s) > maxDigits {
		return "", ErrTooLong
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return "", ErrTooLong
	}
	created := timestampOf(v)
	if created.Before(earliest) || created.After(now().Add(24*time.Hour)) {
		return "", ErrTimestamp
	}
	return types.VideoID(s), nil
}

// CreatedAt returns the creation time encoded in the upper 32 bits of the id.
// It returns the zero time for an id that does not parse.
func CreatedAt(id types.VideoID) time.Time {
	v, err := id.Uint64()
	if err != nil {
		return time.Time{}
	}
	return timestampOf(v)
}

func timestampOf(v uint64) time.Time {
	return time.Unix(int64(v>>32), 0).UTC()
}

// Rejected describes an input row that did not yield an identifier.
type Rejected struct {
	Line   int
	Raw    string
	Reason string
}

// LoadResult is the deduplicated identifier list read from one input.
type LoadResult struct {
	IDs        []types.VideoID
	Rejected   []Rejected
	Duplicates int
}

// headerNames are recognised as the identifier column when no explicit
// column is requested.
var headerNames = []string{"id", "video_id", "tiktokurl"}

// Load reads identifiers from CSV. When the first row names column (or one
// of the default header names when column is empty) that column is used;
// otherwise the first row is data and the first column holds the id.
// Duplicates keep their first occurrence.
func Load(r io.Reader, column string) (LoadResult, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var result LoadResult
	seen := make(map[types.VideoID]struct{})
	col := 0
	row := 0

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return result, fmt.Errorf("reading CSV: %w", err)
		}
		row++
		line, _ := cr.FieldPos(0)

		if row == 1 {
			if idx, ok := headerIndex(rec, column); ok {
				col = idx
				continue
			}
			if column != "" {
				return result, fmt.Errorf("column %q not found in header", column)
			}
		}

		if col >= len(rec) {
			result.Rejected = append(result.Rejected, Rejected{Line: line, Reason: "missing identifier column"})
			continue
		}
		raw := rec[col]
		id, err := Parse(raw)
		if err != nil {
			if errors.Is(err, ErrEmpty) && isBlank(rec) {
				continue
			}
			result.Rejected = append(result.Rejected, Rejected{Line: line, Raw: raw, Reason: err.Error()})
			continue
		}
		if _, dup := seen[id]; dup {
			result.Duplicates++
			continue
		}
		seen[id] = struct{}{}
		result.IDs = append(result.IDs, id)
	}
	return result, nil
}

// LoadFile opens path and calls Load.
func LoadFile(path, column string) (LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return LoadResult{}, fmt.Errorf("opening identifier file: %w", err)
	}
	defer f.Close()
	return Load(f, column)
}

func headerIndex(rec []string, column string) (int, bool) {
	names := headerNames
	if column != "" {
		names = []string{column}
	}
	for _, name := range names {
		for i, cell := range rec {
			cell = strings.TrimSpace(strings.TrimPrefix(cell, "\ufeff"))
			if strings.EqualFold(cell, name) {
				return i, true
			}
		}
	}
	return 0, false
}

func isBlank(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
