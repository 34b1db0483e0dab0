//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Pipeline groups targets that run the built CLI against local data.
type Pipeline mg.Namespace

func bin() string {
	return filepath.Join(binDir, binName)
}

// Ingest loads every record file under data/baseline and data/updates into
// medline.db. Set MEDLINE2SQL_INGEST_FORCE=true to re-ingest unchanged files.
func (Pipeline) Ingest() error {
	mg.Deps(Build, Init)
	for _, dir := range []string{"data/baseline", "data/updates"} {
		if err := sh.RunV(bin(), "ingest", dir); err != nil {
			return err
		}
	}
	return nil
}

// Affiliations rebuilds affiliations_parsed from the stored affiliations.
func (Pipeline) Affiliations() error {
	mg.Deps(Build)
	return sh.RunV(bin(), "affiliations", "parse")
}

// Export writes the publications table to output/publications.yaml.
func (Pipeline) Export() error {
	mg.Deps(Build, Init)
	return sh.RunV(bin(), "export", "publications", "-o", "output/publications.yaml")
}
