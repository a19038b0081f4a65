// Package persistence implements the binary on-disk format and
// load/save protocol from spec §4.5: a users file, a state header, and
// one event-log file per rotated day.
//
// No repository in the example pack implements a custom binary
// persistence format (the closest analogues — redisclient's Redis
// connection and analytics' ClickHouse sink — delegate storage to an
// external service entirely, which spec §4.5 rules out: the format here
// is specified down to the byte layout). This package is therefore
// built on the standard library (os, encoding/binary), with the
// atomic-write-then-rename idiom spec §4.5 calls for; see DESIGN.md for
// why no third-party library fits.
package persistence

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	usersMagic = int32(0x55534552) // "USER"
	usersVersion = int32(1)

	stateMagic   = int32(0x53544154) // "STAT"
	stateVersion = int32(1)

	dayMagic   = int32(0x44415920) // "DAY "
	dayVersion = int32(1)
)

// ErrCorrupt is returned when a file's magic/version header doesn't
// match what this package writes (spec §4.5: "Magic/version mismatch →
// fail with corrupt_file").
var ErrCorrupt = fmt.Errorf("persistence: corrupt file")

// Store is the persistence layer rooted at a data directory. It
// implements timeseries.DiskStore.
type Store struct {
	dataDir string
	tsDir   string
}

// New returns a Store rooted at dataDir (default "data/" per spec §4.5).
// It does not touch the filesystem; call EnsureDirs before first use.
func New(dataDir string) *Store {
	return &Store{dataDir: dataDir, tsDir: filepath.Join(dataDir, "timeseries")}
}

// EnsureDirs creates the data directory layout if it doesn't exist.
func (s *Store) EnsureDirs() error {
	if err := os.MkdirAll(s.tsDir, 0o755); err != nil {
		return fmt.Errorf("persistence: create data dirs: %w", err)
	}
	return nil
}

func (s *Store) usersPath() string { return filepath.Join(s.dataDir, "users.dat") }
func (s *Store) statePath() string { return filepath.Join(s.tsDir, "state") }
func (s *Store) dayPath(id int32) string {
	return filepath.Join(s.tsDir, fmt.Sprintf("day-%d.dat", id))
}

// atomicWrite writes data to path via a sibling .tmp file and rename,
// per spec §4.5's "write to *.tmp then rename over the destination".
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("persistence: write temp file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("persistence: rename %s to %s: %w", tmp, path, err)
	}
	return nil
}

func readAll(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("persistence: read %s: %w", path, err)
	}
	return data, true, nil
}
