// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package output

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pdiddy/tiktok-metadata/pkg/types"
)

// CSVStore appends records to a CSV file. An existing file keeps its own
// header; new rows are laid out in that column order.
type CSVStore struct {
	path   string
	f      *os.File
	w      *csv.Writer
	header []string
	ids    map[types.VideoID]struct{}
}

var _ Store = (*CSVStore)(nil)

// OpenCSV opens path for appending, creating it with the canonical header if
// it does not exist or is empty. The ids of an existing file are loaded so
// Append never writes an id twice.
func OpenCSV(path string) (*CSVStore, error) {
	s := &CSVStore{path: path, ids: make(map[types.VideoID]struct{})}

	header, err := s.load()
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	s.f = f
	s.w = csv.NewWriter(f)

	if header == nil {
		s.header = Columns
		if err := s.w.Write(s.header); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing header to %s: %w", path, err)
		}
		s.w.Flush()
		if err := s.w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing header to %s: %w", path, err)
		}
		return s, nil
	}

	s.header = header
	missing, err := needsNewline(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("inspecting %s: %w", path, err)
	}
	if missing {
		if _, err := f.WriteString("\n"); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return s, nil
}

// load reads the header and ids of an existing file. A missing or empty file
// yields a nil header.
func (s *CSVStore) load() ([]string, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", s.path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", s.path, err)
	}

	col := -1
	for i, name := range header {
		if name == IDColumn {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("%s has no %q column", s.path, IDColumn)
	}

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", s.path, err)
		}
		if col < len(rec) && rec[col] != "" {
			s.ids[types.VideoID(rec[col])] = struct{}{}
		}
	}
	return header, nil
}

func (s *CSVStore) Has(id types.VideoID) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *CSVStore) Append(records []types.MetadataRecord) (int, error) {
	n := 0
	for _, r := range records {
		if s.Has(r.ID) {
			continue
		}
		if err := s.w.Write(Row(r, s.header)); err != nil {
			return n, fmt.Errorf("writing %s: %w", s.path, err)
		}
		s.ids[r.ID] = struct{}{}
		n++
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return n, fmt.Errorf("writing %s: %w", s.path, err)
	}
	return n, nil
}

func (s *CSVStore) Len() int     { return len(s.ids) }
func (s *CSVStore) Path() string { return s.path }

func (s *CSVStore) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}
