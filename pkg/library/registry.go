package library

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"

	"github.com/ldsec/bindlib/pkg/lifecycle"
	"github.com/ldsec/bindlib/pkg/objectstore"
)

// Registry manages the live libraries of a process: it holds at most one
// instance per identifier, creates missing ones through its Factory and keeps
// track of a current library.
//
// Libraries created by the registry's default factories subscribe to the
// registry's shutdown hook; the host calls Shutdown once when terminating so
// that every library with PersistOnShutdown set is saved.
type Registry struct {
	conf    Config
	logger  *slog.Logger
	hook    *lifecycle.Hook
	metrics *Metrics

	store     objectstore.ObjectStore
	ownsStore bool

	mu             sync.RWMutex
	loaded         map[string]Library
	current        Library
	factory        Factory
	defaultFactory Factory

	group singleflight.Group
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithObjectStore makes the registry store secure-store libraries in objs
// instead of opening the store described by Config.ObjectStore. The registry
// does not close an injected store.
func WithObjectStore(objs objectstore.ObjectStore) RegistryOption {
	return func(r *Registry) { r.store = objs }
}

// WithRegistryLogger sets the logger of the registry and of the libraries
// created by its default factory.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// WithMetrics makes the registry record its activity in m.
func WithMetrics(m *Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry creates a registry with no live library.
func NewRegistry(conf Config, opts ...RegistryOption) (*Registry, error) {
	conf = conf.withDefaults()
	if err := ValidateConfig(conf); err != nil {
		return nil, err
	}

	r := &Registry{
		conf:   conf,
		loaded: make(map[string]Library),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.hook = lifecycle.NewHook(r.logger)

	if conf.Backend == BackendSecureStore && r.store == nil {
		objs, err := objectstore.NewObjectStoreFromConfig(conf.ObjectStore)
		if err != nil {
			return nil, fmt.Errorf("could not create object store: %w", err)
		}
		r.store, r.ownsStore = objs, true
	}

	var err error
	if r.defaultFactory, err = newFactoryFromConfig(conf, r.store, r.hook, r.logger); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

// NormalizeID returns the canonical (NFC) form of a library identifier.
func NormalizeID(id string) string {
	return norm.NFC.String(id)
}

// ShutdownHook returns the hook libraries subscribe to for saving on shutdown.
// Custom factories should pass it to the libraries they create.
func (r *Registry) ShutdownHook() *lifecycle.Hook {
	return r.hook
}

// ObjectStore returns the object store of secure-store libraries, nil for a file registry.
func (r *Registry) ObjectStore() objectstore.ObjectStore {
	return r.store
}

// Config returns the configuration of the registry, with defaults applied.
func (r *Registry) Config() Config {
	return r.conf
}

// SetFactory replaces the factory used to create libraries. A nil factory
// restores the default one selected by Config.Backend.
func (r *Registry) SetFactory(f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factory = f
}

// Factory returns the factory currently used to create libraries.
func (r *Registry) Factory() Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.factory != nil {
		return r.factory
	}
	return r.defaultFactory
}

// GetLibrary returns the live library for id, or creates it with the factory
// and loads its stored data. If forceReload is set, a new instance is always
// created and replaces the live one, discarding its unsaved changes.
// persistOnShutdown is applied to the returned library while it is live; an
// instance removed concurrently is returned detached.
// It returns ErrEmptyID, with no other effect, for an empty id.
func (r *Registry) GetLibrary(id string, persistOnShutdown, forceReload bool) (Library, error) {
	id = NormalizeID(id)
	if len(id) == 0 {
		return nil, ErrEmptyID
	}

	if !forceReload {
		if lib, ok := r.lookupAndApply(id, persistOnShutdown); ok {
			return lib, nil
		}
	}

	v, err, _ := r.group.Do(id, func() (any, error) {
		if !forceReload {
			if lib, ok := r.lookup(id); ok {
				return lib, nil
			}
		}
		return r.loadLibrary(id, persistOnShutdown)
	})
	if err != nil {
		return nil, err
	}

	lib := v.(Library)
	r.applyPersist(id, lib, persistOnShutdown)
	return lib, nil
}

func (r *Registry) loadLibrary(id string, persistOnShutdown bool) (Library, error) {
	lib, err := r.Factory()(id, persistOnShutdown)
	if err == nil && lib == nil {
		err = errors.New("factory returned no library")
	}
	if err != nil {
		r.metrics.recordLoad(loadResultFailed)
		return nil, fmt.Errorf("could not create library %s: %w", id, err)
	}

	if lib.Load() {
		r.metrics.recordLoad(loadResultFound)
		r.logger.Info("library loaded", "library", id)
	} else {
		r.metrics.recordLoad(loadResultCreated)
		r.logger.Info("library was not found, new instance created", "library", id)
	}

	r.mu.Lock()
	prev := r.loaded[id]
	r.loaded[id] = lib
	if prev != nil && r.current == prev {
		r.current = lib
	}
	r.metrics.setLoaded(len(r.loaded))
	r.mu.Unlock()

	if prev != nil && prev != lib {
		detach(prev)
	}
	return lib, nil
}

// SetCurrentLibrary makes the library id the current one, as returned by
// GetLibrary. An empty id clears the current library.
func (r *Registry) SetCurrentLibrary(id string, persistOnShutdown, forceReload bool) (Library, error) {
	lib, err := r.GetLibrary(id, persistOnShutdown, forceReload)
	if err != nil && !errors.Is(err, ErrEmptyID) {
		return nil, err
	}

	r.mu.Lock()
	r.current = lib
	r.mu.Unlock()
	return lib, err
}

// Current returns the current library. If none was set, the library
// Config.DefaultLibraryID becomes current and is saved on shutdown.
func (r *Registry) Current() (Library, error) {
	r.mu.RLock()
	cur := r.current
	r.mu.RUnlock()

	if cur != nil {
		return cur, nil
	}
	return r.SetCurrentLibrary(r.conf.DefaultLibraryID, true, false)
}

// SaveCurrentLibrary saves the current library, if any.
func (r *Registry) SaveCurrentLibrary() {
	r.mu.RLock()
	cur := r.current
	r.mu.RUnlock()

	if cur != nil {
		cur.Save()
		r.metrics.recordSaves(1)
	}
}

// LoadedLibraries returns the live libraries sorted by id. The returned slice
// is a copy.
func (r *Registry) LoadedLibraries() []Library {
	r.mu.RLock()
	libs := make([]Library, 0, len(r.loaded))
	for _, lib := range r.loaded {
		libs = append(libs, lib)
	}
	r.mu.RUnlock()

	sort.Slice(libs, func(i, j int) bool { return libs[i].ID() < libs[j].ID() })
	return libs
}

// IsLoaded reports whether the library id is live.
func (r *Registry) IsLoaded(id string) bool {
	_, ok := r.lookup(NormalizeID(id))
	return ok
}

// SaveLibrary saves the library id if it is live, and unloads it if unload is set.
func (r *Registry) SaveLibrary(id string, unload bool) {
	id = NormalizeID(id)
	lib, ok := r.lookup(id)
	if !ok {
		return
	}
	lib.Save()
	r.metrics.recordSaves(1)
	if unload {
		r.remove(id, lib)
	}
}

// UnloadLibrary removes the library id from the live set, saving it first if save is set.
func (r *Registry) UnloadLibrary(id string, save bool) {
	id = NormalizeID(id)
	lib, ok := r.lookup(id)
	if !ok {
		return
	}
	if save {
		lib.Save()
		r.metrics.recordSaves(1)
	}
	r.remove(id, lib)
}

// DeleteLibrary deletes the stored data of the library id and unloads it.
func (r *Registry) DeleteLibrary(id string) error {
	lib, err := r.GetLibrary(id, false, false)
	if err != nil {
		return err
	}
	lib.Delete()
	r.metrics.recordDelete()
	r.remove(NormalizeID(id), lib)
	return nil
}

// SaveAllLibraries saves every live library, at most Config.SaveConcurrency
// at a time, and unloads them if unload is set.
func (r *Registry) SaveAllLibraries(unload bool) {
	libs := r.LoadedLibraries()

	var g errgroup.Group
	g.SetLimit(r.conf.SaveConcurrency)
	for _, lib := range libs {
		lib := lib
		g.Go(func() error {
			lib.Save()
			return nil
		})
	}
	_ = g.Wait()
	r.metrics.recordSaves(len(libs))

	if unload {
		for _, lib := range libs {
			r.remove(lib.ID(), lib)
		}
	}
}

// UnloadAllLibraries empties the live set, saving every library first if save is set.
func (r *Registry) UnloadAllLibraries(save bool) {
	if save {
		r.SaveAllLibraries(true)
		return
	}

	r.mu.Lock()
	libs := r.loaded
	r.loaded = make(map[string]Library)
	r.metrics.setLoaded(0)
	r.mu.Unlock()

	for _, lib := range libs {
		detach(lib)
	}
}

// Shutdown saves every library subscribed to the shutdown hook and returns
// their number. The host calls it once, when the application terminates.
func (r *Registry) Shutdown() int {
	n := r.hook.Fire()
	r.metrics.recordShutdownSaves(n)
	r.logger.Info("shutdown saves completed", "libraries", n)
	return n
}

// Close releases the object store opened by the registry.
func (r *Registry) Close() error {
	if r.ownsStore && r.store != nil {
		return r.store.Close()
	}
	return nil
}

func (r *Registry) lookup(id string) (Library, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lib, ok := r.loaded[id]
	return lib, ok
}

// lookupAndApply returns the live library for id with its shutdown flag set
// to persist. The flag is applied under the read lock so that a concurrent
// remove, which detaches only after taking the write lock, always wins.
func (r *Registry) lookupAndApply(id string, persist bool) (Library, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lib, ok := r.loaded[id]
	if ok {
		lib.SetPersistOnShutdown(persist)
	}
	return lib, ok
}

// applyPersist sets the shutdown flag of lib only while it is still the live
// instance for id. A library that already left the live set stays detached.
func (r *Registry) applyPersist(id string, lib Library, persist bool) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.loaded[id] != lib {
		return false
	}
	lib.SetPersistOnShutdown(persist)
	return true
}

// remove drops lib from the live set if it is still the instance for id.
func (r *Registry) remove(id string, lib Library) {
	r.mu.Lock()
	if r.loaded[id] == lib {
		delete(r.loaded, id)
		r.metrics.setLoaded(len(r.loaded))
	}
	r.mu.Unlock()
	detach(lib)
}

// detach stops a library that left the live set from being saved on shutdown.
func detach(lib Library) {
	lib.SetPersistOnShutdown(false)
}
