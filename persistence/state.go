package persistence

import (
	"bytes"
	"fmt"
)

// SaveState writes the time-series state header per spec §4.5:
// int32 magic | int32 version | int32 currentDayId.
func (s *Store) SaveState(currentDayID int32) error {
	var buf bytes.Buffer
	writeInt32(&buf, stateMagic)
	writeInt32(&buf, stateVersion)
	writeInt32(&buf, currentDayID)
	return atomicWrite(s.statePath(), buf.Bytes())
}

// LoadState reads the state header. A missing file yields currentDayID
// 0 and ok=false (spec §4.5: "missing file → empty state").
func (s *Store) LoadState() (currentDayID int32, ok bool, err error) {
	data, exists, err := readAll(s.statePath())
	if err != nil || !exists {
		return 0, false, err
	}

	r := bytes.NewReader(data)
	magic, err := readInt32(r)
	if err != nil {
		return 0, false, fmt.Errorf("persistence: read state magic: %w", err)
	}
	version, err := readInt32(r)
	if err != nil {
		return 0, false, fmt.Errorf("persistence: read state version: %w", err)
	}
	if magic != stateMagic || version != stateVersion {
		return 0, false, fmt.Errorf("%w: state magic=0x%x version=%d", ErrCorrupt, magic, version)
	}
	id, err := readInt32(r)
	if err != nil {
		return 0, false, fmt.Errorf("persistence: read state currentDayId: %w", err)
	}
	return id, true, nil
}
