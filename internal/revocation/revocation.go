// Package revocation implements the versioned set of revoked token ids the
// leader owns and followers mirror via delta sync. Revocation here is
// scoped to spec.md's stated non-goal: a per-agent denylist, not a general
// authorization-policy engine.
package revocation

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"time"

	dserrors "github.com/systmms/agentcred/internal/errors"
	"github.com/systmms/agentcred/internal/persist"
)

const revocationFileName = "revocations.json"

// Entry is a single revocation record.
type Entry struct {
	TokenID        string     `json:"token_id"`
	AgentID        string     `json:"agent_id,omitempty"`
	RevokedAt      time.Time  `json:"revoked_at"`
	Reason         string     `json:"reason,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	AddedAtVersion int        `json:"added_at_version"`
}

// RevokeParams describes a new revocation.
type RevokeParams struct {
	TokenID   string
	AgentID   string
	Reason    string
	ExpiresAt *time.Time
}

type fileFormat struct {
	Version     int     `json:"version"`
	Revocations []Entry `json:"revocations"`
}

// Set is the versioned, persisted revocation set. The zero value is not
// usable; construct with New.
type Set struct {
	mu      sync.Mutex
	path    string
	version int
	entries map[string]Entry
}

// New constructs a Set persisted under dir/revocations.json, loading any
// existing state.
func New(dir string) (*Set, error) {
	s := &Set{
		path:    filepath.Join(dir, revocationFileName),
		entries: make(map[string]Entry),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Set) load() error {
	var ff fileFormat
	loaded, err := persist.ReadJSON(s.path, &ff)
	if err != nil {
		return dserrors.PersistenceError{Path: s.path, Err: err}
	}
	if !loaded {
		return nil
	}
	s.version = ff.Version
	for _, e := range ff.Revocations {
		s.entries[e.TokenID] = e
	}
	return nil
}

func (s *Set) saveLocked() error {
	ff := fileFormat{Version: s.version}
	for _, e := range s.entries {
		ff.Revocations = append(ff.Revocations, e)
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

// IsRevoked reports whether tokenID is currently revoked. An entry with a
// past ExpiresAt is lazily dropped on read and reported as not revoked; an
// entry with no ExpiresAt, or one still in the future, is revoked.
func (s *Set) IsRevoked(tokenID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[tokenID]
	if !ok {
		return false
	}
	if entry.ExpiresAt != nil && !entry.ExpiresAt.After(time.Now()) {
		delete(s.entries, tokenID)
		_ = s.saveLocked()
		return false
	}
	return true
}

// Revoke inserts a new revocation, bumping the set's version.
func (s *Set) Revoke(params RevokeParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.version++
	s.entries[params.TokenID] = Entry{
		TokenID:        params.TokenID,
		AgentID:        params.AgentID,
		RevokedAt:      time.Now(),
		Reason:         params.Reason,
		ExpiresAt:      params.ExpiresAt,
		AddedAtVersion: s.version,
	}
	return s.saveLocked()
}

// Unrevoke removes tokenID's revocation, if present, bumping the version.
// ok is false if tokenID was not revoked.
func (s *Set) Unrevoke(tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[tokenID]; !ok {
		return false, nil
	}
	s.version++
	delete(s.entries, tokenID)
	if err := s.saveLocked(); err != nil {
		return false, err
	}
	return true, nil
}

// RevocationsSince returns every token id added at a version strictly
// greater than version, for delta sync.
func (s *Set) RevocationsSince(version int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, e := range s.entries {
		if e.AddedAtVersion > version {
			ids = append(ids, id)
		}
	}
	return ids
}

// ApplyDelta is the follower path: it installs minimal placeholder entries
// for each token id the leader reported, and advances the local version to
// newVersion. Placeholder entries carry no AgentID, Reason, or ExpiresAt —
// IsRevoked still treats them as permanently revoked, which is all a
// follower needs to enforce the leader's denylist.
func (s *Set) ApplyDelta(tokenIDs []string, newVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, id := range tokenIDs {
		if _, exists := s.entries[id]; exists {
			continue
		}
		s.entries[id] = Entry{TokenID: id, RevokedAt: now, AddedAtVersion: newVersion}
	}
	s.version = newVersion
	return s.saveLocked()
}

// Prune removes entries whose ExpiresAt has passed, returning the count
// removed.
func (s *Set) Prune() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for id, e := range s.entries {
		if e.ExpiresAt != nil && !e.ExpiresAt.After(now) {
			delete(s.entries, id)
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

// Version returns the set's current monotonic version.
func (s *Set) Version() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Count returns the number of currently tracked entries (revoked or not
// yet lazily expired), for status reporting.
func (s *Set) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
