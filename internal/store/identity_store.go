package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"pairchat/internal/domain"
	"pairchat/internal/util/memzero"
)

const idFilename = "identity.json.enc"

// ErrNoIdentity is returned by LoadIdentity before an identity was saved.
var ErrNoIdentity = errors.New("no identity; run init first")

// IdentityFileStore persists the local key pair to disk, sealed with the
// passphrase.
type IdentityFileStore struct {
	dir    string
	params ScryptParams
	mu     sync.Mutex
}

// NewIdentityFileStore returns an IdentityFileStore rooted at dir.
func NewIdentityFileStore(dir string) *IdentityFileStore {
	return &IdentityFileStore{dir: dir, params: DefaultScryptParams}
}

// WithScryptParams returns s using params for future saves. Files already
// on disk keep the parameters they were written with.
func (s *IdentityFileStore) WithScryptParams(params ScryptParams) *IdentityFileStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = params
	return s
}

// SaveIdentity writes the encrypted key pair to disk.
func (s *IdentityFileStore) SaveIdentity(passphrase string, keys domain.KeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	defer memzero.Zero(raw)

	ct, err := seal(passphrase, raw, s.params)
	if err != nil {
		return err
	}
	if err := writeFile(filepath.Join(s.dir, idFilename), ct, 0o600); err != nil {
		return fmt.Errorf("write identity: %w", err)
	}
	return nil
}

// LoadIdentity reads and decrypts the key pair.
func (s *IdentityFileStore) LoadIdentity(passphrase string) (domain.KeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := readFile(filepath.Join(s.dir, idFilename))
	if err != nil {
		return domain.KeyPair{}, fmt.Errorf("read identity: %w", err)
	}
	if b == nil {
		return domain.KeyPair{}, ErrNoIdentity
	}
	pt, err := open(passphrase, b)
	if err != nil {
		return domain.KeyPair{}, err
	}
	defer memzero.Zero(pt)

	var keys domain.KeyPair
	if err := json.Unmarshal(pt, &keys); err != nil {
		return domain.KeyPair{}, fmt.Errorf("decode identity: %w", err)
	}
	return keys, nil
}

// Exists reports whether an identity file is present.
func (s *IdentityFileStore) Exists() bool {
	_, err := os.Stat(filepath.Join(s.dir, idFilename))
	return err == nil
}

// Compile-time assertion that IdentityFileStore implements domain.IdentityStore.
var _ domain.IdentityStore = (*IdentityFileStore)(nil)
