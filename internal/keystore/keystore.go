// Package keystore implements the versioned, persisted set of HMAC signing
// keys the token engine and the leader/follower coherence layer share. The
// store is append-only: rotation never deletes a key outright, only marks
// it deprecated, so tokens signed under a retired key keep verifying until
// Prune's retention window passes.
package keystore

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	dserrors "github.com/systmms/agentcred/internal/errors"
	"github.com/systmms/agentcred/internal/persist"
	"github.com/systmms/agentcred/internal/secure"
)

const keyFileName = "signing_keys.json"

// keySize is the width of a signing key in raw bytes (spec.md §3).
const keySize = 32

// Key is a single versioned signing key as held in memory and round-tripped
// through persistence. Raw carries the live key material in ordinary memory
// for as long as the Store holds the key; the Store additionally keeps a
// copy of the current key in a SecureBuffer-backed enclave, which is
// refreshed on every change of current key but never read back.
type Key struct {
	Version      int        `json:"version"`
	Raw          []byte     `json:"-"`
	KeyB64       string     `json:"key"`
	CreatedAt    time.Time  `json:"created_at"`
	DeprecatedAt *time.Time `json:"deprecated_at,omitempty"`
}

type fileFormat struct {
	CurrentVersion int   `json:"current_version"`
	Keys           []Key `json:"keys"`
}

// Store is the versioned, persisted signing-key set. The zero value is not
// usable; construct with New.
type Store struct {
	mu             sync.Mutex
	path           string
	currentVersion int
	keys           map[int]*Key
	enclave        *secure.SecureBuffer
}

// New constructs a Store persisted under dir/signing_keys.json, loading any
// existing state. A missing file is not an error; the store starts empty
// and mints version 1 lazily on first GetCurrent.
func New(dir string) (*Store, error) {
	s := &Store{
		path: filepath.Join(dir, keyFileName),
		keys: make(map[int]*Key),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	var ff fileFormat
	loaded, err := persist.ReadJSON(s.path, &ff)
	if err != nil {
		return dserrors.PersistenceError{Path: s.path, Err: err}
	}
	if !loaded {
		return nil
	}
	s.currentVersion = ff.CurrentVersion
	for i := range ff.Keys {
		k := ff.Keys[i]
		raw, err := base64.StdEncoding.DecodeString(k.KeyB64)
		if err != nil {
			return dserrors.PersistenceError{Path: s.path, Err: err}
		}
		k.Raw = raw
		s.keys[k.Version] = &k
	}
	if cur, ok := s.keys[s.currentVersion]; ok {
		s.refreshEnclave(cur.Raw)
	}
	return nil
}

func (s *Store) refreshEnclave(raw []byte) {
	if s.enclave != nil {
		s.enclave.Destroy()
	}
	enc, err := secure.NewSecureBuffer(raw)
	if err == nil {
		s.enclave = enc
	}
}

func (s *Store) saveLocked() error {
	ff := fileFormat{CurrentVersion: s.currentVersion}
	for _, k := range s.keys {
		ff.Keys = append(ff.Keys, Key{
			Version:      k.Version,
			KeyB64:       base64.StdEncoding.EncodeToString(k.Raw),
			CreatedAt:    k.CreatedAt,
			DeprecatedAt: k.DeprecatedAt,
		})
	}
	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return dserrors.PersistenceError{Path: s.path, Err: err}
	}
	if err := persist.WriteFileAtomic(s.path, data); err != nil {
		return dserrors.PersistenceError{Path: s.path, Err: err}
	}
	return nil
}

func generateKey() ([]byte, error) {
	buf := make([]byte, keySize)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("keystore: generate key: %w", err)
	}
	return buf, nil
}

// GetCurrent returns the current key and its version, minting version 1 on
// first access if the store is empty.
func (s *Store) GetCurrent() ([]byte, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.keys) == 0 {
		raw, err := generateKey()
		if err != nil {
			return nil, 0, err
		}
		k := &Key{Version: 1, Raw: raw, CreatedAt: time.Now()}
		s.keys[1] = k
		s.currentVersion = 1
		s.refreshEnclave(raw)
		if err := s.saveLocked(); err != nil {
			return nil, 0, err
		}
	}

	cur := s.keys[s.currentVersion]
	return cur.Raw, cur.Version, nil
}

// Get returns the key at version, for verifying tokens signed under a
// deprecated key. ok is false if version was never issued.
func (s *Store) Get(version int) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[version]
	if !ok {
		return nil, false, nil
	}
	return k.Raw, true, nil
}

// Rotate generates a fresh 32-byte key, marks the prior current key
// deprecated, and persists both the new key and the deprecation.
func (s *Store) Rotate() ([]byte, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// An empty store first mints version 1, exactly as GetCurrent would, so
	// the first rotation always moves from version 1 to version 2.
	if len(s.keys) == 0 {
		raw, err := generateKey()
		if err != nil {
			return nil, 0, err
		}
		s.keys[1] = &Key{Version: 1, Raw: raw, CreatedAt: time.Now()}
		s.currentVersion = 1
	}

	if prior, ok := s.keys[s.currentVersion]; ok && prior.DeprecatedAt == nil {
		now := time.Now()
		prior.DeprecatedAt = &now
	}

	raw, err := generateKey()
	if err != nil {
		return nil, 0, err
	}
	newVersion := s.currentVersion + 1
	k := &Key{Version: newVersion, Raw: raw, CreatedAt: time.Now()}
	s.keys[newVersion] = k
	s.currentVersion = newVersion
	s.refreshEnclave(raw)

	if err := s.saveLocked(); err != nil {
		return nil, 0, err
	}
	return raw, newVersion, nil
}

// ExportCurrent returns the current key base64-encoded, for the leader to
// ship in a sync response.
func (s *Store) ExportCurrent() (string, error) {
	raw, _, err := s.GetCurrent()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Import installs a key received from a sync response. It never overwrites
// an existing version (idempotent against redelivery); current_version is
// advanced to version only if version is strictly newer than what is
// already known.
func (s *Store) Import(keyB64 string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keys[version]; !exists {
		raw, err := base64.StdEncoding.DecodeString(keyB64)
		if err != nil {
			return fmt.Errorf("keystore: import: invalid base64: %w", err)
		}
		s.keys[version] = &Key{Version: version, Raw: raw, CreatedAt: time.Now()}
	}

	if version > s.currentVersion {
		s.currentVersion = version
		s.refreshEnclave(s.keys[version].Raw)
	}

	return s.saveLocked()
}

// Prune removes non-current keys whose CreatedAt is older than
// retentionDays, returning the number removed.
func (s *Store) Prune(retentionDays int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for version, k := range s.keys {
		if version == s.currentVersion {
			continue
		}
		if k.CreatedAt.Before(cutoff) {
			delete(s.keys, version)
			removed++
		}
	}
	if removed > 0 {
		if err := s.saveLocked(); err != nil {
			return 0, err
		}
	}
	return removed, nil
}

// KeysSince returns every key with version strictly greater than version,
// ordered by version ascending, for delta sync.
func (s *Store) KeysSince(version int) []Key {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Key
	for v, k := range s.keys {
		if v > version {
			out = append(out, Key{
				Version:      k.Version,
				KeyB64:       base64.StdEncoding.EncodeToString(k.Raw),
				CreatedAt:    k.CreatedAt,
				DeprecatedAt: k.DeprecatedAt,
			})
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Version > out[j].Version; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// CurrentVersion returns the current key's version without touching the
// enclave, for health/status reporting.
func (s *Store) CurrentVersion() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentVersion
}

// HasKey reports whether the store already holds at least one key, without
// minting one if it doesn't. Unlike GetCurrent, this never has the
// side effect of generating key material — it exists for callers (the
// follower's can-operate check) that need to distinguish "a key is
// available" from "a key would be available if I asked for one."
func (s *Store) HasKey() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys) > 0
}
