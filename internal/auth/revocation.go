package auth

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/velotype/velotype/internal/model"
)

// RevocationStore is the small on-disk JSON revocation set from spec
// §4.8/§5: writes flush the whole snapshot, and every mutation prunes
// expired entries in place.
type RevocationStore struct {
	mu   sync.RWMutex
	path string
	now  func() time.Time

	entries map[string]time.Time // tokenHash -> expiry
}

// NewRevocationStore loads an existing snapshot from path, or starts empty
// if the file does not exist yet.
func NewRevocationStore(path string) (*RevocationStore, error) {
	s := &RevocationStore{path: path, now: time.Now, entries: make(map[string]time.Time)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	var rows []model.RevokedToken
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	for _, r := range rows {
		s.entries[r.TokenHash] = r.Expiry
	}
	s.prune()
	return s, nil
}

// Revoke adds token to the store with the given expiry (normally the
// token's own exp claim, so the entry can be pruned once it would have
// expired naturally anyway) and flushes the snapshot to disk.
func (s *RevocationStore) Revoke(token string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[TokenHash(token)] = expiry
	s.pruneLocked()
	return s.flushLocked()
}

// IsRevoked reports whether token is currently revoked (i.e. present and
// not yet past its recorded expiry).
func (s *RevocationStore) IsRevoked(token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiry, ok := s.entries[TokenHash(token)]
	if !ok {
		return false
	}
	return s.now().Before(expiry)
}

func (s *RevocationStore) prune() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
}

func (s *RevocationStore) pruneLocked() {
	now := s.now()
	for hash, expiry := range s.entries {
		if !now.Before(expiry) {
			delete(s.entries, hash)
		}
	}
}

func (s *RevocationStore) flushLocked() error {
	rows := make([]model.RevokedToken, 0, len(s.entries))
	for hash, expiry := range s.entries {
		rows = append(rows, model.RevokedToken{TokenHash: hash, Expiry: expiry})
	}

	data, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}
