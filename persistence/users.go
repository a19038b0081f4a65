package persistence

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/sbar/dailysales/auth"
)

// SaveUsers writes the full user table per spec §4.5:
// int32 magic | int32 version | int32 count | count * (unameLen, uname, hashLen, hash).
func (s *Store) SaveUsers(users []auth.User) error {
	var buf bytes.Buffer
	writeInt32(&buf, usersMagic)
	writeInt32(&buf, usersVersion)
	writeInt32(&buf, int32(len(users)))
	for _, u := range users {
		writeInt32(&buf, int32(len(u.Username)))
		buf.WriteString(u.Username)
		writeInt32(&buf, int32(len(u.PasswordHash)))
		buf.Write(u.PasswordHash)
	}
	return atomicWrite(s.usersPath(), buf.Bytes())
}

// LoadUsers reads the user table. A missing file yields an empty slice
// (spec §4.5: "missing file → empty state").
func (s *Store) LoadUsers() ([]auth.User, error) {
	data, ok, err := readAll(s.usersPath())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	r := bytes.NewReader(data)
	magic, err := readInt32(r)
	if err != nil {
		return nil, fmt.Errorf("persistence: read users magic: %w", err)
	}
	version, err := readInt32(r)
	if err != nil {
		return nil, fmt.Errorf("persistence: read users version: %w", err)
	}
	if magic != usersMagic || version != usersVersion {
		return nil, fmt.Errorf("%w: users.dat magic=0x%x version=%d", ErrCorrupt, magic, version)
	}

	count, err := readInt32(r)
	if err != nil {
		return nil, fmt.Errorf("persistence: read users count: %w", err)
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative user count %d", ErrCorrupt, count)
	}

	users := make([]auth.User, 0, count)
	for i := int32(0); i < count; i++ {
		unameLen, err := readInt32(r)
		if err != nil {
			return nil, fmt.Errorf("%w: read username length: %v", ErrCorrupt, err)
		}
		uname := make([]byte, unameLen)
		if _, err := io.ReadFull(r, uname); err != nil {
			return nil, fmt.Errorf("%w: read username: %v", ErrCorrupt, err)
		}
		hashLen, err := readInt32(r)
		if err != nil {
			return nil, fmt.Errorf("%w: read hash length: %v", ErrCorrupt, err)
		}
		hash := make([]byte, hashLen)
		if _, err := io.ReadFull(r, hash); err != nil {
			return nil, fmt.Errorf("%w: read hash: %v", ErrCorrupt, err)
		}
		users = append(users, auth.User{Username: string(uname), PasswordHash: hash})
	}
	return users, nil
}

func writeInt32(buf *bytes.Buffer, v int32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(v))
	buf.Write(tmp[:])
}

func readInt32(r io.Reader) (int32, error) {
	var tmp [4]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(tmp[:])), nil
}
