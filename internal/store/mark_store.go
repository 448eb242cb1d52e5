package store

import (
	"path/filepath"
	"sync"
	"time"

	"pairchat/internal/domain"
)

const marksFile = "notified.json"

// MarkFileStore remembers the newest message time shown to the user, per
// pair. Marks only move forward.
type MarkFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewMarkFileStore returns a MarkFileStore rooted at dir.
func NewMarkFileStore(dir string) *MarkFileStore {
	return &MarkFileStore{dir: dir}
}

// LastNotified returns the mark of pair, if any.
func (s *MarkFileStore) LastNotified(pair domain.PairID) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	marks, err := s.load()
	if err != nil {
		return time.Time{}, false, err
	}
	ms, ok := marks[pair.String()]
	if !ok {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

// MarkNotified advances the mark of pair to at. Earlier times are ignored.
func (s *MarkFileStore) MarkNotified(pair domain.PairID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	marks, err := s.load()
	if err != nil {
		return err
	}
	ms := at.UnixMilli()
	if prev, ok := marks[pair.String()]; ok && prev >= ms {
		return nil
	}
	marks[pair.String()] = ms
	return writeJSON(filepath.Join(s.dir, marksFile), marks, 0o600)
}

func (s *MarkFileStore) load() (map[string]int64, error) {
	marks := make(map[string]int64)
	if err := readJSON(filepath.Join(s.dir, marksFile), &marks); err != nil {
		return nil, err
	}
	return marks, nil
}

// Compile-time assertion that MarkFileStore implements domain.MarkStore.
var _ domain.MarkStore = (*MarkFileStore)(nil)
