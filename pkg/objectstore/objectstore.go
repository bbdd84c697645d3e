// Package objectstore defines the key-value medium behind secure-store binding
// libraries. Values are binary-serializable objects indexed by string ids; the
// store never interprets them.
package objectstore

import (
	"encoding"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is wrapped by every backend when no value is indexed by the requested id.
var ErrNotFound = errors.New("object not found")

// Config represents the ObjectStore configuration.
type Config struct {
	BackendName string `json:"backend_name" yaml:"backend_name"` // BackendName is a string defining the ObjectStore implementation to use.
	DBPath      string `json:"db_path" yaml:"db_path"`
	SealKey     string `json:"seal_key,omitempty" yaml:"seal_key,omitempty"` // hex-encoded 32-byte key; when set, values are encrypted at rest.

	// hybrid backend only
	CacheTTL      time.Duration `json:"cache_ttl,omitempty" yaml:"cache_ttl,omitempty"`
	CacheCapacity uint64        `json:"cache_capacity,omitempty" yaml:"cache_capacity,omitempty"`
}

// ObjectStore is an interface to store and retrieve binding library data.
type ObjectStore interface {
	// Store stores the binary-serializable `object` into the ObjectStore indexing it with the string `objectID`.
	// Any previous value for `objectID` is overwritten.
	Store(objectID string, object encoding.BinaryMarshaler) error

	// Load loads the binary-deserializable `object` from the ObjectStore indexing it with the string `objectID`.
	// the result is loaded directly into `object`. It returns an error wrapping ErrNotFound if there is no such object.
	Load(objectID string, object encoding.BinaryUnmarshaler) error

	// IsPresent checks if the object indexed with the string `objectID` is present in the ObjectStore.
	IsPresent(objectID string) (bool, error)

	// Delete removes the object indexed with the string `objectID`. Deleting a missing object is not an error.
	Delete(objectID string) error

	// Close releases the resources allocated by the ObjectStore.
	Close() error
}

// NewObjectStoreFromConfig creates the ObjectStore described by config.
func NewObjectStoreFromConfig(config Config) (objs ObjectStore, err error) {
	switch config.BackendName {
	case "null":
		objs = NewNullObjectStore()
	case "mem":
		objs = NewMemObjectStore()
	case "badgerdb":
		if objs, err = NewBadgerObjectStore(config); err != nil {
			return nil, err
		}
	case "sqlite":
		if objs, err = NewSQLiteObjectStore(config); err != nil {
			return nil, err
		}
	case "hybrid":
		if objs, err = NewHybridObjectStore(config); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown object store backend %q", config.BackendName)
	}

	if len(config.SealKey) > 0 {
		key, err := ParseSealKey(config.SealKey)
		if err != nil {
			objs.Close()
			return nil, err
		}
		if objs, err = NewSealedObjectStore(objs, key); err != nil {
			return nil, err
		}
	}
	return objs, nil
}

// ValidateConfig checks that the configuration is valid.
func ValidateConfig(config Config) error {
	switch config.BackendName {
	case "null", "mem":
	case "badgerdb", "sqlite", "hybrid":
		if len(config.DBPath) == 0 {
			return fmt.Errorf("object store backend %q requires a DBPath", config.BackendName)
		}
	default:
		return fmt.Errorf("unknown object store backend %q", config.BackendName)
	}
	if config.CacheTTL < 0 {
		return fmt.Errorf("cache TTL must be positive, got %s", config.CacheTTL)
	}
	if len(config.SealKey) > 0 {
		if _, err := ParseSealKey(config.SealKey); err != nil {
			return err
		}
	}
	return nil
}

// ParseSealKey decodes a hex-encoded seal key.
func ParseSealKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid seal key: %w", err)
	}
	if len(key) != SealKeySize {
		return nil, fmt.Errorf("invalid seal key: expected %d bytes, got %d", SealKeySize, len(key))
	}
	return key, nil
}

// blob is an already encoded object.
type blob []byte

func (b blob) MarshalBinary() ([]byte, error) {
	return b, nil
}

func (b *blob) UnmarshalBinary(data []byte) error {
	*b = append((*b)[:0], data...)
	return nil
}
