// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/pdiddy/tiktok-metadata/pkg/types"
)

// Setup applies the level and format from cfg to the standard logger, which
// writes to w.
func Setup(cfg types.LogConfig, w io.Writer) error {
	level := cfg.Level
	if level == "" {
		level = "info"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(lvl)
	log.SetOutput(w)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", cfg.Format)
	}
	return nil
}

// ProcessLogPath names the log file for an input: <dir>/<stem>_process_log.log.
func ProcessLogPath(dir, input string) string {
	base := filepath.Base(input)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+"_process_log.log")
}

// FileSink tees the standard logger into a file until Close is called.
type FileSink struct {
	f    *os.File
	prev io.Writer
}

// AddFileSink appends log output to path in addition to the current output.
func AddFileSink(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	prev := log.StandardLogger().Out
	log.SetOutput(io.MultiWriter(prev, f))
	return &FileSink{f: f, prev: prev}, nil
}

// Close restores the previous output and closes the file.
func (s *FileSink) Close() error {
	if s == nil {
		return nil
	}
	log.SetOutput(s.prev)
	return s.f.Close()
}
