package objectstore

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// SealKeySize is the size in bytes of the key of a sealed ObjectStore.
const SealKeySize = chacha20poly1305.KeySize

// ErrUnsealFailed is returned when a stored value cannot be authenticated with the store key.
var ErrUnsealFailed = errors.New("could not unseal object")

// sealedObjectStore is a type implementing the objectstore.ObjectStore interface by encrypting the objects
// of another ObjectStore with XChaCha20-Poly1305. The object id is authenticated along with the value, so
// a sealed value copied under another id does not open.
type sealedObjectStore struct {
	ObjectStore
	aead cipher.AEAD
}

// NewSealedObjectStore wraps objs so that every value reaching it is encrypted under key.
func NewSealedObjectStore(objs ObjectStore, key []byte) (*sealedObjectStore, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("could not create sealed ObjectStore: %w", err)
	}
	return &sealedObjectStore{ObjectStore: objs, aead: aead}, nil
}

func (objstore *sealedObjectStore) Store(objectID string, object encoding.BinaryMarshaler) error {
	plaintext, err := object.MarshalBinary()
	if err != nil {
		return err
	}

	nonceSize := objstore.aead.NonceSize()
	sealed := make([]byte, nonceSize, nonceSize+len(plaintext)+objstore.aead.Overhead())
	if _, err := rand.Read(sealed); err != nil {
		return fmt.Errorf("could not generate nonce: %w", err)
	}
	sealed = objstore.aead.Seal(sealed, sealed[:nonceSize], plaintext, []byte(objectID))

	return objstore.ObjectStore.Store(objectID, blob(sealed))
}

func (objstore *sealedObjectStore) Load(objectID string, object encoding.BinaryUnmarshaler) error {
	var sealed blob
	if err := objstore.ObjectStore.Load(objectID, &sealed); err != nil {
		return err
	}

	nonceSize := objstore.aead.NonceSize()
	if len(sealed) < nonceSize+objstore.aead.Overhead() {
		return fmt.Errorf("%w %s: value too short", ErrUnsealFailed, objectID)
	}
	plaintext, err := objstore.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], []byte(objectID))
	if err != nil {
		return fmt.Errorf("%w %s: %v", ErrUnsealFailed, objectID, err)
	}
	return object.UnmarshalBinary(plaintext)
}
