package library

import (
	"errors"

	"github.com/ldsec/bindlib/pkg/objectstore"
)

// DefaultNamespace prefixes the storage key of secure-store libraries.
const DefaultNamespace = "BindingLibrary"

// SecureStoreLibrary is a Library stored as one value of an
// objectstore.ObjectStore, under the key "<namespace>/<id>".
type SecureStoreLibrary struct {
	dictionary
	store     objectstore.ObjectStore
	namespace string
}

var _ Library = (*SecureStoreLibrary)(nil)

// NewSecureStoreLibrary creates an empty library stored in store. A nil store
// behaves as the null object store: nothing is ever found nor kept.
func NewSecureStoreLibrary(id string, persistOnShutdown bool, store objectstore.ObjectStore, opts ...Option) (*SecureStoreLibrary, error) {
	o := newOptions(opts)
	if store == nil {
		store = objectstore.NewNullObjectStore()
	}
	if len(o.namespace) == 0 {
		o.namespace = DefaultNamespace
	}

	l := &SecureStoreLibrary{store: store, namespace: o.namespace}
	if err := l.init(id, o); err != nil {
		return nil, err
	}
	l.flush = l.Save
	l.SetPersistOnShutdown(persistOnShutdown)
	return l, nil
}

// StorageKey returns the key of the library in the object store.
func (l *SecureStoreLibrary) StorageKey() string {
	return l.namespace + "/" + l.id
}

func (l *SecureStoreLibrary) Load() bool {
	key := l.StorageKey()

	var s snapshot
	if err := l.store.Load(key, &s); err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			l.logger.Info("couldn't load library data from secure store", "key", key, "result", err)
		} else {
			l.logger.Error("error while trying to load library", "key", key, "error", err)
		}
		return false
	}
	points, scenes := len(s.points), len(s.scenes)
	l.restore(&s)

	l.logger.Info("library data successfully loaded",
		"point_bindings", points, "scene_bindings", scenes)
	return true
}

func (l *SecureStoreLibrary) Save() {
	key := l.StorageKey()

	if err := l.store.Store(key, l.snapshot()); err != nil {
		l.logger.Error("couldn't save library data to secure store", "key", key, "error", err)
		return
	}
	l.logger.Info("library data saved successfully", "key", key)
}

func (l *SecureStoreLibrary) Delete() {
	l.Clear()
	key := l.StorageKey()

	if err := l.store.Delete(key); err != nil {
		l.logger.Error("couldn't delete library data from secure store", "key", key, "error", err)
		return
	}
	l.logger.Info("library deleted", "key", key)
}
