package objectstore

import (
	"bytes"
	"encoding"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultCacheTTL is the time an encoded object stays in the hybrid cache when Config.CacheTTL is not set.
const DefaultCacheTTL = 10 * time.Minute

// hybridObjectStore is a type implementing the objectstore.ObjectStore interface with a hybrid storage backend.
// It combines a bounded in-memory cache and a persistent backend.
type hybridObjectStore struct {
	badgerObjectStore *badgerObjectStore
	cache             *ttlcache.Cache[string, []byte]
}

// NewHybridObjectStore creates a new ObjectStore instance.
func NewHybridObjectStore(conf Config) (*hybridObjectStore, error) {
	badgerObjectStore, err := NewBadgerObjectStore(conf)
	if err != nil {
		return nil, fmt.Errorf("error while creating BadgerDB ObjectStore in hybrid ObjectStore: %w", err)
	}

	ttl := conf.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	opts := []ttlcache.Option[string, []byte]{ttlcache.WithTTL[string, []byte](ttl)}
	if conf.CacheCapacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, []byte](conf.CacheCapacity))
	}

	objstore := &hybridObjectStore{
		badgerObjectStore: badgerObjectStore,
		cache:             ttlcache.New(opts...),
	}

	return objstore, nil
}

func (objstore *hybridObjectStore) Store(objectID string, object encoding.BinaryMarshaler) error {
	encodedObject, err := object.MarshalBinary()
	if err != nil {
		return err
	}

	// the persistent store is written first so that the cache never holds a value the disk does not
	if err := objstore.badgerObjectStore.Store(objectID, blob(encodedObject)); err != nil {
		objstore.cache.Delete(objectID)
		return fmt.Errorf("error while storing in Hybrid ObjectStore: %w", err)
	}

	objstore.cache.Set(objectID, bytes.Clone(encodedObject), ttlcache.DefaultTTL)
	return nil
}

func (objstore *hybridObjectStore) Load(objectID string, object encoding.BinaryUnmarshaler) error {
	// attempt to load the object from the cache
	if item := objstore.cache.Get(objectID); item != nil {
		return object.UnmarshalBinary(bytes.Clone(item.Value()))
	}

	// cache miss, attempt to load the object from the persistent ObjectStore
	var encodedObject blob
	if err := objstore.badgerObjectStore.Load(objectID, &encodedObject); err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("could not load object from persistent ObjectStore", "object", objectID, "error", err)
		}
		return err
	}

	objstore.cache.Set(objectID, encodedObject, ttlcache.DefaultTTL)

	return object.UnmarshalBinary(encodedObject)
}

func (objstore *hybridObjectStore) IsPresent(objectID string) (bool, error) {
	if objstore.cache.Has(objectID) {
		return true, nil
	}

	return objstore.badgerObjectStore.IsPresent(objectID)
}

func (objstore *hybridObjectStore) Delete(objectID string) error {
	objstore.cache.Delete(objectID)
	return objstore.badgerObjectStore.Delete(objectID)
}

// Close releases the persistent backend and drops the cached objects.
func (objstore *hybridObjectStore) Close() error {
	objstore.cache.DeleteAll()
	return objstore.badgerObjectStore.Close()
}
