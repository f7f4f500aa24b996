// Package duidstore is the reference client.DUIDStore implementation: a
// single DUID persisted in a BoltDB file so the same client identity
// survives process restarts.
package duidstore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/krisarmstrong/dhcp6c/pkg/dhcp6/duid"
)

const bucket = "duid"

var key = []byte("duid")

// Store wraps a BoltDB instance holding exactly one DUID.
type Store struct {
	db       *bbolt.DB
	hwType   uint16
	linkAddr []byte
}

// Open opens (or creates) the DUID database at path. hwType and linkAddr
// are used only the first time a DUID must be generated (DUID-LLT/LL
// need a link-layer address).
func Open(path string, hwType uint16, linkAddr []byte) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("dhcp6net/duidstore: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("dhcp6net/duidstore: %w", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucket))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("dhcp6net/duidstore: %w", err)
	}
	return &Store{db: db, hwType: hwType, linkAddr: linkAddr}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DUID returns the persisted DUID, generating and storing one of type t
// on first use.
func (s *Store) DUID(t duid.Type) ([]byte, error) {
	var stored []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucket)).Get(key)
		if v != nil {
			stored = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dhcp6net/duidstore: %w", err)
	}
	if stored != nil {
		return stored, nil
	}

	d, err := duid.Generate(t, s.hwType, s.linkAddr, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("dhcp6net/duidstore: %w", err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucket)).Put(key, d)
	})
	if err != nil {
		return nil, fmt.Errorf("dhcp6net/duidstore: %w", err)
	}
	return d, nil
}
