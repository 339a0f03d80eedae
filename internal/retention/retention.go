// Package retention enforces the local keep-at-most-N window over packaged
// backup artifacts.
package retention

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ashevtsov/bitrix-backup/internal/logging"
)

// ArtifactPrefix and ArtifactSuffix form the packaged backup naming
// convention: bitrix24_backup_<YYYYMMDD_HHMMSS>.tar.gz.
const (
	ArtifactPrefix = "bitrix24_backup_"
	ArtifactSuffix = ".tar.gz"
)

// Artifact is one rotatable backup file in the backup directory.
type Artifact struct {
	Path    string
	ModTime time.Time
	Size    int64
}

// Rotator deletes the oldest artifacts beyond the retention window.
type Rotator struct {
	dir  string
	keep int
	log  logging.Logger
}

func New(dir string, keep int, log logging.Logger) *Rotator {
	return &Rotator{dir: dir, keep: keep, log: log}
}

// Rotate lists matching artifacts, sorts them oldest first by modification
// time and removes exactly the excess. Artifacts inside the window are
// never touched or reordered; timestamp ties keep the listing's order.
func (r *Rotator) Rotate() (int, error) {
	artifacts, err := Scan(r.dir)
	if err != nil {
		return 0, err
	}

	if len(artifacts) <= r.keep {
		r.log.Info("local backups: %d (maximum: %d)", len(artifacts), r.keep)
		return 0, nil
	}

	sort.SliceStable(artifacts, func(i, j int) bool {
		return artifacts[i].ModTime.Before(artifacts[j].ModTime)
	})

	excess := len(artifacts) - r.keep
	r.log.Info("found %d local backups, removing %d oldest", len(artifacts), excess)

	removed := 0
	for _, a := range artifacts[:excess] {
		if err := os.Remove(a.Path); err != nil {
			return removed, fmt.Errorf("removing %s: %w", a.Path, err)
		}
		removed++
		r.log.Info("removed old backup: %s", filepath.Base(a.Path))
	}
	return removed, nil
}

// Scan returns the artifacts in dir matching the naming convention, in
// directory listing order.
func Scan(dir string) ([]Artifact, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading backup dir: %w", err)
	}

	var artifacts []Artifact
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, ArtifactPrefix) || !strings.HasSuffix(name, ArtifactSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, Artifact{
			Path:    filepath.Join(dir, name),
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	return artifacts, nil
}
