// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package output

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pdiddy/tiktok-metadata/pkg/types"
)

// jsonRecord is the JSON Lines form of a record: the vendor fields plus the
// derived URL and UTC date/time.
type jsonRecord struct {
	types.MetadataRecord
	TikTokURL string `json:"tiktokurl"`
	UTCDate   string `json:"utc_date_string"`
	UTCTime   string `json:"utc_time_string"`
}

// JSONLStore appends one JSON object per line.
type JSONLStore struct {
	path string
	f    *os.File
	w    *bufio.Writer
	ids  map[types.VideoID]struct{}
}

var _ Store = (*JSONLStore)(nil)

// OpenJSONL opens path for appending and loads the ids of existing lines.
// Lines that do not decode are an error rather than silently ignored.
func OpenJSONL(path string) (*JSONLStore, error) {
	s := &JSONLStore{path: path, ids: make(map[types.VideoID]struct{})}
	if err := s.load(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
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
	s.f = f
	s.w = bufio.NewWriter(f)
	return s, nil
}

func (s *JSONLStore) load() error {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening %s: %w", s.path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var rec struct {
			ID types.VideoID `json:"id"`
		}
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return fmt.Errorf("%s line %d: %w", s.path, line, err)
		}
		if rec.ID != "" {
			s.ids[rec.ID] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", s.path, err)
	}
	return nil
}

func (s *JSONLStore) Has(id types.VideoID) bool {
	_, ok := s.ids[id]
	return ok
}

func (s *JSONLStore) Append(records []types.MetadataRecord) (int, error) {
	n := 0
	for _, r := range records {
		if s.Has(r.ID) {
			continue
		}
		data, err := json.Marshal(jsonRecord{
			MetadataRecord: r,
			TikTokURL:      r.URL(),
			UTCDate:        DateString(r),
			UTCTime:        r.Created().Format("15:04:05"),
		})
		if err != nil {
			return n, fmt.Errorf("encoding record %s: %w", r.ID, err)
		}
		data = append(data, '\n')
		if _, err := s.w.Write(data); err != nil {
			return n, fmt.Errorf("writing %s: %w", s.path, err)
		}
		s.ids[r.ID] = struct{}{}
		n++
	}
	if err := s.w.Flush(); err != nil {
		return n, fmt.Errorf("writing %s: %w", s.path, err)
	}
	return n, nil
}

func (s *JSONLStore) Len() int     { return len(s.ids) }
func (s *JSONLStore) Path() string { return s.path }

func (s *JSONLStore) Close() error {
	if err := s.w.Flush(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}
