// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download checks whether collected videos are still publicly
// available and saves the public ones as mp4 files.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pdiddy/tiktok-metadata/internal/httputil"
	"github.com/pdiddy/tiktok-metadata/internal/output"
	"github.com/pdiddy/tiktok-metadata/pkg/types"
)

// pageBase is the web host serving video pages. Tests point it at a fake.
var pageBase = "https://www.tiktok.com"

// Downloader fetches video pages and files with one cookie-carrying client,
// since the video CDN expects the cookies set by the page.
type Downloader struct {
	client *http.Client
	cfg    types.DownloadConfig
	pacer  *httputil.Pacer
}

// New returns a Downloader with its own cookie jar.
func New(cfg types.DownloadConfig) *Downloader {
	jar, _ := cookiejar.New(nil)
	return NewWithClient(&http.Client{Timeout: cfg.Timeout, Jar: jar}, cfg)
}

// NewWithClient returns a Downloader using client.
func NewWithClient(client *http.Client, cfg types.DownloadConfig) *Downloader {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	return &Downloader{
		client: client,
		cfg:    cfg,
		pacer:  httputil.NewIntervalPacer(cfg.Delay),
	}
}

// PageURL is the public web page of a video.
func PageURL(username string, id types.VideoID) string {
	return fmt.Sprintf("%s/@%s/video/%s?is_copy_url=1&is_from_webapp=v1", pageBase, username, id)
}

// Check fetches and parses the video page, retrying failed fetches up to
// the configured number of attempts. A page without video detail is not an
// error: it yields an unavailable PageInfo.
func (d *Downloader) Check(ctx context.Context, username string, id types.VideoID) (PageInfo, error) {
	pageURL := PageURL(username, id)
	var lastErr error
	for attempt := 1; attempt <= d.cfg.Attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, d.cfg.RetryDelay); err != nil {
				return PageInfo{}, err
			}
		}
		info, err := d.checkOnce(ctx, pageURL)
		if err == nil {
			return info, nil
		}
		if ctx.Err() != nil {
			return PageInfo{}, ctx.Err()
		}
		lastErr = err
		log.WithError(err).WithFields(log.Fields{
			"video_id": id,
			"attempt":  attempt,
			"max":      d.cfg.Attempts,
		}).Warn("video page check failed")
	}
	return PageInfo{}, fmt.Errorf("checking %s: %w", id, lastErr)
}

func (d *Downloader) checkOnce(ctx context.Context, pageURL string) (PageInfo, error) {
	body, err := d.get(ctx, pageURL, "")
	if err != nil {
		return PageInfo{}, err
	}
	return ParsePage(body)
}

func (d *Downloader) get(ctx context.Context, url, referer string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if d.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.cfg.UserAgent)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := httputil.DoWithRetry(ctx, d.client, req, 1)
	if err != nil {
		return nil, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, req.URL.Redacted())
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return data, nil
}

// Download saves the video at info.PlayAddr to dest and reports whether the
// result is a valid mp4. A valid file already at dest is kept as is.
func (d *Downloader) Download(ctx context.Context, info PageInfo, pageURL, dest string) (bool, error) {
	if ValidMP4(dest) {
		return true, nil
	}
	if info.PlayAddr == "" {
		return false, errors.New("no play address on video page")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return false, fmt.Errorf("creating video directory: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= d.cfg.Attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, d.cfg.RetryDelay); err != nil {
				return false, err
			}
		}
		lastErr = d.downloadOnce(ctx, info.PlayAddr, pageURL, dest)
		if lastErr == nil {
			return ValidMP4(dest), nil
		}
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		log.WithError(lastErr).WithFields(log.Fields{
			"file":    filepath.Base(dest),
			"attempt": attempt,
			"max":     d.cfg.Attempts,
		}).Warn("video download failed")
	}
	return false, lastErr
}

func (d *Downloader) downloadOnce(ctx context.Context, url, referer, dest string) error {
	data, err := d.get(ctx, url, referer)
	if err != nil {
		return err
	}
	if !isMP4(data) {
		return fmt.Errorf("response from %s is not an mp4", url)
	}

	return output.WriteFile(dest, data)
}

// ValidMP4 reports whether path holds an ISO media file: the four bytes at
// offset 4 must be "ftyp".
func ValidMP4(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	header := make([]byte, 12)
	n, _ := io.ReadFull(f, header)
	return isMP4(header[:n])
}

func isMP4(data []byte) bool {
	return len(data) >= 8 && string(data[4:8]) == "ftyp"
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
