package library

import (
	"fmt"
	"log/slog"

	"github.com/ldsec/bindlib/pkg/lifecycle"
	"github.com/ldsec/bindlib/pkg/objectstore"
)

// Factory creates the Library instance for id. It is called by a Registry
// whenever a library that is not live is requested.
type Factory func(id string, persistOnShutdown bool) (Library, error)

// NewFileFactory returns a Factory of FileLibrary instances stored in dir
// (DefaultDirectory() if empty) and saved on shutdown through hook.
func NewFileFactory(dir string, hook *lifecycle.Hook, logger *slog.Logger) Factory {
	return func(id string, persistOnShutdown bool) (Library, error) {
		l, err := NewFileLibrary(id, persistOnShutdown, WithDirectory(dir), WithShutdownHook(hook), WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return l, nil
	}
}

// NewSecureStoreFactory returns a Factory of SecureStoreLibrary instances
// stored in store under namespace and saved on shutdown through hook.
func NewSecureStoreFactory(store objectstore.ObjectStore, namespace string, hook *lifecycle.Hook, logger *slog.Logger) Factory {
	return func(id string, persistOnShutdown bool) (Library, error) {
		l, err := NewSecureStoreLibrary(id, persistOnShutdown, store, WithNamespace(namespace), WithShutdownHook(hook), WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return l, nil
	}
}

// newFactoryFromConfig returns the factory selected by conf.Backend.
func newFactoryFromConfig(conf Config, store objectstore.ObjectStore, hook *lifecycle.Hook, logger *slog.Logger) (Factory, error) {
	switch conf.Backend {
	case BackendFile:
		return NewFileFactory(conf.Directory, hook, logger), nil
	case BackendSecureStore, "":
		return NewSecureStoreFactory(store, conf.Namespace, hook, logger), nil
	default:
		return nil, fmt.Errorf("unknown library backend %q", conf.Backend)
	}
}
