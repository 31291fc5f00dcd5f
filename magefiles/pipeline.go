// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var bin = filepath.Join(binDir, binName)

// Lookup builds the CLI and resolves the identifiers in input into output/metadata.csv.
func Lookup(input string) error {
	mg.Deps(Build)
	return sh.RunV(bin, "lookup", input)
}

// Collect builds the CLI and collects keyword matches for [from, to) (YYYYMMDD).
func Collect(keywords, from, to string) error {
	mg.Deps(Build)
	return sh.RunV(bin, "collect", "--keywords", keywords, "--from", from, "--to", to)
}

// Download builds the CLI and checks and downloads the videos listed in input.
func Download(input string) error {
	mg.Deps(Build)
	return sh.RunV(bin, "download", input)
}

// Status prints the run ledger.
func Status() error {
	mg.Deps(Build)
	return sh.RunV(bin, "status")
}
