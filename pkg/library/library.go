// Package library persists binding libraries: named collections of point and
// scene bindings that re-associate application objects with a recognized
// physical space across process restarts.
//
// A Library is obtained from a Registry, which guarantees a single live
// instance per identifier and creates new instances through a pluggable
// Factory. Two backends are provided: FileLibrary stores each library in its
// own file, SecureStoreLibrary stores it under a namespaced key of an
// objectstore.ObjectStore. Both encode the whole library state as a single
// versioned blob.
//
// Persistence failures never reach the caller of a Library method: Load
// reports them as false, Save and Delete log them.
package library

import (
	"log/slog"

	"github.com/ldsec/bindlib/pkg/binding"
	"github.com/ldsec/bindlib/pkg/lifecycle"
)

// Library is a set of point and scene bindings persisted as one unit.
type Library interface {
	// ID returns the unique identifier of the library.
	ID() string

	// TryGetPoint returns the point binding stored under key, if any.
	TryGetPoint(key string) (binding.PointRecord, bool)
	// TryGetScene returns the scene binding stored under key, if any.
	TryGetScene(key string) (binding.SceneRecord, bool)

	// SetPoint stores rec under key, replacing any previous point binding for key.
	SetPoint(key string, rec binding.PointRecord)
	// SetScene stores rec under key, replacing any previous scene binding for key.
	SetScene(key string, rec binding.SceneRecord)

	// RemovePoint removes the point binding stored under key, if any.
	RemovePoint(key string)
	// RemoveScene removes the scene binding stored under key, if any.
	RemoveScene(key string)

	PointCount() int
	SceneCount() int

	// PointKeys returns the sorted keys of the point bindings.
	PointKeys() []string
	// SceneKeys returns the sorted keys of the scene bindings.
	SceneKeys() []string

	// Clear drops all bindings from memory. Stored data is left untouched.
	Clear()

	// Load replaces the in-memory bindings with the stored ones. It returns
	// false, leaving the library unchanged, if there is no stored data or it
	// cannot be read.
	Load() bool

	// Save overwrites the stored data with the in-memory bindings.
	Save()

	// Delete clears the library and removes its stored data.
	Delete()

	// PersistOnShutdown reports whether the library is saved when the
	// application terminates.
	PersistOnShutdown() bool
	// SetPersistOnShutdown subscribes or unsubscribes the library's Save to
	// the shutdown hook it was created with.
	SetPersistOnShutdown(bool)
}

// Option configures a library backend.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	hook      *lifecycle.Hook
	directory string
	namespace string
}

// WithLogger sets the logger of the library. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithShutdownHook sets the hook the library subscribes to when it must be saved on shutdown.
func WithShutdownHook(hook *lifecycle.Hook) Option {
	return func(o *options) { o.hook = hook }
}

// WithDirectory sets the directory of a FileLibrary. Defaults to DefaultDirectory().
func WithDirectory(dir string) Option {
	return func(o *options) { o.directory = dir }
}

// WithNamespace sets the storage key namespace of a SecureStoreLibrary. Defaults to DefaultNamespace.
func WithNamespace(namespace string) Option {
	return func(o *options) { o.namespace = namespace }
}

func newOptions(opts []Option) *options {
	o := new(options)
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
