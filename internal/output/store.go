// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package output persists MetadataRecords. Every store is keyed on the video
// id: opening an existing file loads the ids already written, and Append
// silently drops records whose id is present, so re-running a collection
// against a complete output adds nothing.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/tiktok-metadata/pkg/types"
)

// Format names an output encoding.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
)

// Store is an append-only, id-deduplicated record sink.
type Store interface {
	// Has reports whether id is already stored.
	Has(id types.VideoID) bool
	// Append writes the records whose ids are not yet stored and returns how
	// many were written.
	Append(records []types.MetadataRecord) (int, error)
	// Len is the number of distinct ids stored.
	Len() int
	// Path is the backing file.
	Path() string
	Close() error
}

// FormatFor picks the format from an explicit name or, when name is empty,
// from the file extension (defaulting to CSV).
func FormatFor(name, path string) (Format, error) {
	switch strings.ToLower(name) {
	case "csv":
		return FormatCSV, nil
	case "jsonl", "json", "ndjson":
		return FormatJSONL, nil
	case "":
		switch strings.ToLower(filepath.Ext(path)) {
		case ".jsonl", ".json", ".ndjson":
			return FormatJSONL, nil
		}
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unknown output format %q (want csv or jsonl)", name)
}

// Open opens or creates the store at path in the given format.
func Open(path string, format Format) (Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory %s: %w", dir, err)
		}
	}
	switch format {
	case FormatJSONL:
		return OpenJSONL(path)
	default:
		return OpenCSV(path)
	}
}

// WriteRawJSON writes v as indented JSON via a temporary file and rename.
func WriteRawJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return WriteFile(path, data)
}

// WriteFile writes data to path through a temporary file in the same
// directory, so readers never see a partial file.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".output-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// needsNewline reports whether a non-empty file lacks a trailing newline.
func needsNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	buf := make([]byte, 1)
	if _, err := f.ReadAt(buf, info.Size()-1); err != nil {
		return false, err
	}
	return buf[0] != '\n', nil
}

// MergeCSV adds records to the CSV at path, keeping the first row seen for
// each id. It returns how many rows were added and the total id count.
func MergeCSV(path string, records []types.MetadataRecord) (added, total int, err error) {
	s, err := Open(path, FormatCSV)
	if err != nil {
		return 0, 0, err
	}
	added, err = s.Append(records)
	if cerr := s.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing %s: %w", path, cerr)
	}
	return added, s.Len(), err
}
