package store

import (
	"errors"
	"path/filepath"
	"strings"
	"sync"

	"pairchat/internal/domain"
)

const aliasesFile = "aliases.json"

// ErrEmptyAlias is returned for blank alias names.
var ErrEmptyAlias = errors.New("alias name is empty")

// AliasFileStore persists local nicknames for contacts.
type AliasFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewAliasFileStore returns an AliasFileStore rooted at dir.
func NewAliasFileStore(dir string) *AliasFileStore {
	return &AliasFileStore{dir: dir}
}

// SaveAlias stores or replaces the identity behind name.
func (s *AliasFileStore) SaveAlias(name string, id domain.Identity) error {
	name = aliasKey(name)
	if name == "" {
		return ErrEmptyAlias
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, aliasesFile)
	aliases := make(map[string]domain.Identity)
	if err := readJSON(path, &aliases); err != nil {
		return err
	}
	aliases[name] = id
	return writeJSON(path, aliases, 0o600)
}

// ResolveAlias looks name up. Names are case-insensitive.
func (s *AliasFileStore) ResolveAlias(name string) (domain.Identity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	aliases := make(map[string]domain.Identity)
	if err := readJSON(filepath.Join(s.dir, aliasesFile), &aliases); err != nil {
		return "", false, err
	}
	id, ok := aliases[aliasKey(name)]
	return id, ok, nil
}

// ListAliases returns every alias.
func (s *AliasFileStore) ListAliases() (map[string]domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	aliases := make(map[string]domain.Identity)
	if err := readJSON(filepath.Join(s.dir, aliasesFile), &aliases); err != nil {
		return nil, err
	}
	return aliases, nil
}

func aliasKey(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// Compile-time assertion that AliasFileStore implements domain.AliasStore.
var _ domain.AliasStore = (*AliasFileStore)(nil)
