package store

import (
	"encoding/json"
	"path/filepath"
	"sync"

	"bons/internal/domain"
	"bons/internal/errors"
	"bons/internal/util/memzero"
)

const idFilename = "issuer.json.enc"

// IdentityFileStore persists the issuer identity to disk.
type IdentityFileStore struct {
	dir string
	kdf scryptParams
	mu  sync.Mutex
}

// NewIdentityFileStore returns an IdentityFileStore rooted at dir.
func NewIdentityFileStore(dir string) *IdentityFileStore {
	return &IdentityFileStore{dir: dir, kdf: scryptParamsDefault()}
}

// SaveIdentity writes the encrypted identity to disk.
func (s *IdentityFileStore) SaveIdentity(passphrase string, id domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	defer memzero.Zero(raw)
	ct, err := encrypt(passphrase, raw, s.kdf)
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(s.dir, idFilename), ct, 0o600)
}

// LoadIdentity reads and decrypts the identity.
func (s *IdentityFileStore) LoadIdentity(passphrase string) (domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(filepath.Join(s.dir, idFilename))
	if err != nil {
		return domain.Identity{}, err
	}
	if b == nil {
		return domain.Identity{}, errors.ErrNotFound.New("no issuer identity; run init")
	}
	pt, err := decrypt(passphrase, b)
	if err != nil {
		return domain.Identity{}, err
	}
	defer memzero.Zero(pt)
	var id domain.Identity
	if err := json.Unmarshal(pt, &id); err != nil {
		return domain.Identity{}, err
	}
	return id, nil
}

// HasIdentity reports whether an identity file exists.
func (s *IdentityFileStore) HasIdentity() bool {
	return exists(filepath.Join(s.dir, idFilename))
}

// Compile-time assertion that IdentityFileStore implements domain.IdentityStore.
var _ domain.IdentityStore = (*IdentityFileStore)(nil)
