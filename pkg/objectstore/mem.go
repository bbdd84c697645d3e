package objectstore

import (
	"encoding"
	"fmt"
	"sync"
)

// memObjectStore is a type implementing the objectstore.ObjectStore interface with a main memory backend.
// Objects are kept in their encoded form so that loaded objects never alias stored ones.
type memObjectStore struct {
	objstore map[string][]byte
	mtx      sync.RWMutex
}

// NewMemObjectStore creates a new ObjectStore instance.
func NewMemObjectStore() *memObjectStore {
	return &memObjectStore{objstore: make(map[string][]byte)}
}

func (objstore *memObjectStore) Store(objectID string, object encoding.BinaryMarshaler) error {
	encodedObject, err := object.MarshalBinary()
	if err != nil {
		return err
	}
	stored := make([]byte, len(encodedObject))
	copy(stored, encodedObject)

	objstore.mtx.Lock()
	defer objstore.mtx.Unlock()
	objstore.objstore[objectID] = stored
	return nil
}

func (objstore *memObjectStore) Load(objectID string, object encoding.BinaryUnmarshaler) error {
	objstore.mtx.RLock()
	encodedObject, isPresent := objstore.objstore[objectID]
	objstore.mtx.RUnlock()

	if !isPresent {
		return fmt.Errorf("no value found for key string %s in in-memory ObjectStore: %w", objectID, ErrNotFound)
	}
	return object.UnmarshalBinary(encodedObject)
}

func (objstore *memObjectStore) IsPresent(objectID string) (bool, error) {
	objstore.mtx.RLock()
	defer objstore.mtx.RUnlock()

	_, ok := objstore.objstore[objectID]

	return ok, nil
}

func (objstore *memObjectStore) Delete(objectID string) error {
	objstore.mtx.Lock()
	defer objstore.mtx.Unlock()
	delete(objstore.objstore, objectID)
	return nil
}

func (objstore *memObjectStore) Close() error { return nil }
