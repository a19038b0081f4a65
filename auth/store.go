// Package auth implements the username/password-hash store from spec §4.2.
//
// Grounded on the RWMutex-guarded, map-backed caches in
// security/security.go (BYOKEncryptor's dekCache) and
// caching/caching.go: many concurrent readers, exclusive writers, one
// mutex per store instance.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"strings"
	"sync"
)

// RegisterResult is the outcome of Register.
type RegisterResult int

const (
	RegisterCreated RegisterResult = iota
	RegisterAlreadyExists
	RegisterInvalid
)

// User is a single registered account. PasswordHash is the SHA-256 digest
// of the UTF-8 password bytes (spec §3); password hashing algorithm
// selection itself is explicitly out of scope (spec §1).
type User struct {
	Username     string
	PasswordHash []byte
}

// Store is a concurrency-safe username -> User map.
type Store struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{users: make(map[string]User)}
}

func hashPassword(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return sum[:]
}

func normalize(username string) string {
	return strings.TrimSpace(username)
}

// Register creates a new user if the trimmed username is non-empty, the
// password is non-empty, and the username isn't already taken (spec
// §4.2).
func (s *Store) Register(username, password string) RegisterResult {
	username = normalize(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return RegisterInvalid
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[username]; exists {
		return RegisterAlreadyExists
	}
	s.users[username] = User{Username: username, PasswordHash: hashPassword(password)}
	return RegisterCreated
}

// RegisterPrehashed installs a user whose password hash was already
// computed — used by persistence on load/replay (spec §4.2, §4.5). It
// overwrites any existing entry for the same username, since recovery
// replays the on-disk state of record.
func (s *Store) RegisterPrehashed(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Username] = u
}

// Authenticate checks a username/password pair using constant-time
// comparison over the hash bytes (spec §4.2).
func (s *Store) Authenticate(username, password string) (User, bool) {
	username = normalize(username)

	s.mu.RLock()
	u, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return User{}, false
	}

	candidate := hashPassword(password)
	if subtle.ConstantTimeCompare(candidate, u.PasswordHash) != 1 {
		return User{}, false
	}
	return u, true
}

// All returns a defensive copy of every registered user, used by
// persistence on save (spec §4.2, §4.5).
func (s *Store) All() []User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		cp := User{Username: u.Username, PasswordHash: append([]byte(nil), u.PasswordHash...)}
		out = append(out, cp)
	}
	return out
}

// Exists reports whether a username is already registered.
func (s *Store) Exists(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[normalize(username)]
	return ok
}

func (r RegisterResult) String() string {
	switch r {
	case RegisterCreated:
		return "created"
	case RegisterAlreadyExists:
		return "already_exists"
	case RegisterInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}
