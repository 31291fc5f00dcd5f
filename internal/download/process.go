// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/pdiddy/tiktok-metadata/internal/identifiers"
	"github.com/pdiddy/tiktok-metadata/internal/output"
)

const (
	colPublic = "isPublic"
	colValid  = "mp4_isValid"
)

// Summary tallies a processed file.
type Summary struct {
	Rows       int
	Public     int
	Downloaded int
	Failed     int
}

// HasFailures reports whether any row could not be checked or downloaded.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// Stem is the input file name without its extension; it names the video
// folder, the processed CSV, and the process log.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// VideoPath is where the video of row (username, id) is saved.
func VideoPath(videoDir, stem, username, id string) string {
	return filepath.Join(videoDir, stem, fmt.Sprintf("@%s_video_%s.mp4", username, id))
}

// ProcessFile checks and downloads every row of the CSV at path and writes
// <OutDir>/<stem>_processed.csv with the input columns plus isPublic and
// mp4_isValid. A failed row is marked false and processing continues.
func (d *Downloader) ProcessFile(ctx context.Context, path string, w io.Writer) (Summary, error) {
	var sum Summary

	header, rows, err := readRows(path)
	if err != nil {
		return sum, err
	}
	idCol, userCol := indexOf(header, output.IDColumn), indexOf(header, "username")
	if idCol < 0 || userCol < 0 {
		return sum, fmt.Errorf("%s needs %q and %q columns", path, output.IDColumn, "username")
	}

	publicCol, validCol := indexOf(header, colPublic), indexOf(header, colValid)
	if publicCol < 0 {
		header = append(header, colPublic)
		publicCol = len(header) - 1
	}
	if validCol < 0 {
		header = append(header, colValid)
		validCol = len(header) - 1
	}

	stem := Stem(path)
	for i, row := range rows {
		for len(row) < len(header) {
			row = append(row, "")
		}
		rows[i] = row

		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if err := d.pacer.Wait(ctx); err != nil {
			return sum, err
		}
		sum.Rows++

		public, valid := d.processRow(ctx, stem, row[userCol], row[idCol], w, &sum)
		row[publicCol] = strconv.FormatBool(public)
		row[validCol] = strconv.FormatBool(valid)
	}

	outPath := filepath.Join(d.cfg.OutDir, stem+"_processed.csv")
	if err := writeRows(outPath, header, rows); err != nil {
		return sum, err
	}
	fmt.Fprintf(w, "\nDownload summary: %d rows, %d public, %d downloaded, %d failed (wrote %s)\n",
		sum.Rows, sum.Public, sum.Downloaded, sum.Failed, outPath)
	return sum, nil
}

func (d *Downloader) processRow(ctx context.Context, stem, username, rawID string, w io.Writer, sum *Summary) (public, valid bool) {
	entry := log.WithField("video_id", rawID)

	id, err := identifiers.Parse(rawID)
	if err != nil {
		sum.Failed++
		fmt.Fprintf(w, "failed:  %s (%v)\n", rawID, err)
		entry.WithError(err).Error("invalid video id")
		return false, false
	}

	info, err := d.Check(ctx, username, id)
	if err != nil {
		sum.Failed++
		fmt.Fprintf(w, "failed:  %s (%v)\n", id, err)
		entry.WithError(err).Error("availability check failed")
		return false, false
	}
	if !info.Public() {
		fmt.Fprintf(w, "unavailable: %s\n", id)
		return false, false
	}
	sum.Public++

	dest := VideoPath(d.cfg.VideoDir, stem, username, id.String())
	valid, err = d.Download(ctx, info, PageURL(username, id), dest)
	if err != nil {
		sum.Failed++
		fmt.Fprintf(w, "failed:  %s (%v)\n", id, err)
		entry.WithError(err).WithField("url", info.PlayAddr).Error("failed to download video")
		return true, false
	}
	if valid {
		sum.Downloaded++
		fmt.Fprintf(w, "downloaded: %s\n", dest)
	} else {
		fmt.Fprintf(w, "invalid mp4: %s\n", dest)
	}
	return true, valid
}

func readRows(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s is empty", path)
	}
	header := records[0]
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	return header, records[1:], nil
}

func writeRows(path string, header []string, rows [][]string) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return output.WriteFile(path, buf.Bytes())
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	return -1
}
