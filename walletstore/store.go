// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package walletstore persists devices in a walletdb database.  Each device
// is kept as its exported JSON under its device id; private material stays
// sealed when the device was encrypted before it was stored.
package walletstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb" // Register the bolt driver.
	"github.com/btcsuite/mswallet/identity"
)

const (
	// DBName is the database filename inside the data directory.
	DBName = "devices.db"

	// DefaultDBTimeout is the default timeout for opening the database.
	DefaultDBTimeout = 60 * time.Second
)

var (
	// ErrExists describes an attempt to create a store where one
	// already exists.
	ErrExists = errors.New("device store already exists")

	// ErrNotExist describes an attempt to open a missing store.
	ErrNotExist = errors.New("device store does not exist")

	// ErrNotFound is returned when no device is stored under an id.
	ErrNotFound = errors.New("device not found")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("device store is closed")
)

// devicesBucketKey is the top level bucket holding the devices.
var devicesBucketKey = []byte("devices")

// Store is a device store.  It is safe for concurrent access.
type Store struct {
	db walletdb.DB
	mu sync.Mutex
}

// Exists reports whether a store exists in dbDir.
func Exists(dbDir string) (bool, error) {
	_, err := os.Stat(filepath.Join(dbDir, DBName))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Create creates a new store in dbDir, which is created if needed.
func Create(dbDir string, noFreelistSync bool,
	timeout time.Duration) (*Store, error) {

	exists, err := Exists(dbDir)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrExists
	}
	if err := os.MkdirAll(dbDir, 0700); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(dbDir, DBName)
	db, err := walletdb.Create("bdb", dbPath, noFreelistSync, timeout)
	if err != nil {
		return nil, err
	}
	err = walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		_, err := tx.CreateTopLevelBucket(devicesBucketKey)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	log.Infof("Created device store at %s", dbPath)
	return &Store{db: db}, nil
}

// Open opens the existing store in dbDir.
func Open(dbDir string, noFreelistSync bool,
	timeout time.Duration) (*Store, error) {

	exists, err := Exists(dbDir)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotExist
	}

	dbPath := filepath.Join(dbDir, DBName)
	db, err := walletdb.Open("bdb", dbPath, noFreelistSync, timeout)
	if err != nil {
		log.Errorf("Failed to open database: %v", err)
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.  Closing twice returns ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return ErrClosed
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) database() (walletdb.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}

// Put stores d under its device id, replacing any earlier version.
func (s *Store) Put(d *identity.Device) error {
	if d.DeviceID == "" {
		return errors.New("device has no id")
	}
	b, err := d.Export()
	if err != nil {
		return err
	}
	db, err := s.database()
	if err != nil {
		return err
	}

	return walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		ns := tx.ReadWriteBucket(devicesBucketKey)
		return ns.Put([]byte(d.DeviceID), b)
	})
}

// Get loads the device stored under deviceID.
func (s *Store) Get(deviceID string) (*identity.Device, error) {
	db, err := s.database()
	if err != nil {
		return nil, err
	}

	var b []byte
	err = walletdb.View(db, func(tx walletdb.ReadTx) error {
		ns := tx.ReadBucket(devicesBucketKey)
		v := ns.Get([]byte(deviceID))
		if v == nil {
			return ErrNotFound
		}
		// The value is only valid during the transaction.
		b = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return identity.Import(b)
}

// Delete removes the device stored under deviceID.
func (s *Store) Delete(deviceID string) error {
	db, err := s.database()
	if err != nil {
		return err
	}

	return walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		ns := tx.ReadWriteBucket(devicesBucketKey)
		if ns.Get([]byte(deviceID)) == nil {
			return ErrNotFound
		}
		return ns.Delete([]byte(deviceID))
	})
}

// DeviceIDs returns the ids of every stored device in key order.
func (s *Store) DeviceIDs() ([]string, error) {
	db, err := s.database()
	if err != nil {
		return nil, err
	}

	var ids []string
	err = walletdb.View(db, func(tx walletdb.ReadTx) error {
		ns := tx.ReadBucket(devicesBucketKey)
		return ns.ForEach(func(k, _ []byte) error {
			ids = append(ids, string(k))
			return nil
		})
	})
	return ids, err
}

// ForEach loads every stored device and calls fn with it.  Iteration stops
// at the first error.
func (s *Store) ForEach(fn func(*identity.Device) error) error {
	ids, err := s.DeviceIDs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		d, err := s.Get(id)
		if err != nil {
			return fmt.Errorf("device %s: %w", id, err)
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}
