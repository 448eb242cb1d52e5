package graph

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"pairchat/internal/domain"
)

var bucketNodes = []byte("graph_nodes")

// BoltJournal stores graph nodes in a bbolt file, one key per node path.
type BoltJournal struct {
	db *bolt.DB
}

// OpenBoltJournal opens (creating if needed) the journal at path.
func OpenBoltJournal(path string) (*BoltJournal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("journal path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketNodes)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltJournal{db: db}, nil
}

// SaveNode replaces the stored node at path.
func (j *BoltJournal) SaveNode(path []string, node domain.Record) error {
	data, err := json.Marshal(node)
	if err != nil {
		return err
	}
	return j.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).Put([]byte(pathKey(path)), data)
	})
}

// LoadNodes calls fn for every stored node.
func (j *BoltJournal) LoadNodes(fn func(path []string, node domain.Record)) error {
	return j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).ForEach(func(k, v []byte) error {
			var node domain.Record
			if err := json.Unmarshal(v, &node); err != nil {
				return err
			}
			fn(splitPathKey(string(k)), node)
			return nil
		})
	})
}

// Close releases the database file.
func (j *BoltJournal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

var _ Journal = (*BoltJournal)(nil)
