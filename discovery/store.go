package discovery

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/boltdb/bolt"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

var peersBucketName = []byte("peers")

// ErrNotOwner is returned when an entry is removed by an instance that did not register it.
var ErrNotOwner = errors.New("entry registered by another instance")

// Entry is a registered name.
type Entry struct {
	Address string `json:"address"`
	// Instance identifies the process that registered the entry.
	Instance   uuid.UUID `json:"instance"`
	Registered time.Time `json:"registered"`
}

// Store keeps the registered names in a bolt database.
type Store struct {
	db *bolt.DB
}

func NewStore(dataBaseFilePath string) (*Store, error) {
	db, err := bolt.Open(dataBaseFilePath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(peersBucketName)
		return err
	})
	if err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	return &Store{db: db}, nil
}

// Put registers name, replacing any previous entry.
func (s *Store) Put(name string, entry Entry) error {
	value, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(peersBucketName).Put([]byte(name), value)
	})
}

// Delete removes name if it was registered by instance. Removing a name that
// is not registered is not an error.
func (s *Store) Delete(name string, instance uuid.UUID) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(peersBucketName)
		value := bucket.Get([]byte(name))
		if value == nil {
			return nil
		}
		var entry Entry
		if err := json.Unmarshal(value, &entry); err != nil {
			return fmt.Errorf("entry %s: %w", name, err)
		}
		if entry.Instance != instance {
			return fmt.Errorf("%s: %w", name, ErrNotOwner)
		}
		return bucket.Delete([]byte(name))
	})
}

// List returns the entries whose name starts with prefix.
func (s *Store) List(prefix string) (map[string]Entry, error) {
	entries := map[string]Entry{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(peersBucketName).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			var entry Entry
			if err := json.Unmarshal(v, &entry); err != nil {
				return fmt.Errorf("entry %s: %w", k, err)
			}
			entries[string(k)] = entry
		}
		return nil
	})
	return entries, err
}

func (s *Store) Close() error {
	return s.db.Close()
}
