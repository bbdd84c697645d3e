package objectstore

import (
	"encoding"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/ldsec/bindlib/pkg/utils"
)

// badgerObjectStore is a type implementing the objectstore.ObjectStore interface with a permanent storage backend
// based on BadgerDB.
type badgerObjectStore struct {
	db          *badger.DB
	bytesStored atomic.Int64
}

// NewBadgerObjectStore creates a new ObjectStore instance persisting to the directory conf.DBPath.
func NewBadgerObjectStore(conf Config) (*badgerObjectStore, error) {
	if len(conf.DBPath) == 0 {
		return nil, fmt.Errorf("could not instantiate BadgerDB: no DBPath in config")
	}
	// SyncWrites writes any change to disk immediately.
	// Maximum size of a single log file = 10MB
	// Maximum size of memtable table = 5MB
	// Value Threshold for an entry to be stored in the log file = 0.5MB
	opt := badger.DefaultOptions(conf.DBPath).
		WithSyncWrites(true).
		WithValueLogFileSize(10 * (1 << 20)).
		WithMemTableSize(5 * (1 << 20)).
		WithValueThreshold(1 << 19)
	opt.Logger = nil
	db, err := badger.Open(opt)
	if err != nil {
		return nil, fmt.Errorf("could not instantiate BadgerDB: %w", err)
	}

	return &badgerObjectStore{db: db}, nil
}

func (objstore *badgerObjectStore) Store(objectID string, object encoding.BinaryMarshaler) error {
	encodedObject, err := object.MarshalBinary()
	if err != nil {
		return err
	}
	err = objstore.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(objectID), encodedObject)
	})
	if err != nil {
		return fmt.Errorf("could not store %s in BadgerDB: %w", objectID, err)
	}
	objstore.bytesStored.Add(int64(len(encodedObject)))
	return nil
}

func (objstore *badgerObjectStore) Load(objectID string, object encoding.BinaryUnmarshaler) error {
	var encodedObject []byte
	err := objstore.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(objectID))
		if err != nil {
			return err
		}
		encodedObject, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("no value found for key string %s in BadgerDB: %w", objectID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("could not load %s from BadgerDB: %w", objectID, err)
	}
	return object.UnmarshalBinary(encodedObject)
}

func (objstore *badgerObjectStore) IsPresent(objectID string) (bool, error) {
	present := false
	err := objstore.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(objectID))

		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}

		if err != nil {
			return err
		}

		present = true
		return nil
	})
	return present, err
}

func (objstore *badgerObjectStore) Delete(objectID string) error {
	err := objstore.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(objectID))
	})
	if err != nil {
		return fmt.Errorf("could not delete %s from BadgerDB: %w", objectID, err)
	}
	return nil
}

func (objstore *badgerObjectStore) Close() error {
	slog.Debug("closing BadgerDB object store", "bytes_stored", utils.ByteCountSI(uint64(objstore.bytesStored.Load())))
	return objstore.db.Close()
}
