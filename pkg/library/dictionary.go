package library

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/ldsec/bindlib/pkg/binding"
	"github.com/ldsec/bindlib/pkg/lifecycle"
)

const (
	pointEstimateBytes = 64                     // typical encoded point entry
	sceneEstimateBytes = 4 * pointEstimateBytes // a scene is usually bound through about four anchors
)

// dictionary holds the in-memory state shared by every backend and implements
// the part of Library that does not touch the storage medium. Backends embed
// it and set flush to their Save method before enabling persistOnShutdown.
type dictionary struct {
	id     string
	logger *slog.Logger
	hook   *lifecycle.Hook
	flush  func()

	mu     sync.RWMutex
	points map[string]binding.PointRecord
	scenes map[string]binding.SceneRecord

	subMu   sync.Mutex
	persist bool
	sub     *lifecycle.Subscription
}

func (d *dictionary) init(id string, o *options) error {
	if len(id) == 0 {
		return ErrEmptyID
	}
	d.id = id
	d.logger = o.logger.With("library", id)
	d.hook = o.hook
	d.points = make(map[string]binding.PointRecord)
	d.scenes = make(map[string]binding.SceneRecord)
	return nil
}

func (d *dictionary) ID() string {
	return d.id
}

func (d *dictionary) TryGetPoint(key string) (binding.PointRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.points[key]
	return rec, ok
}

func (d *dictionary) TryGetScene(key string) (binding.SceneRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rec, ok := d.scenes[key]
	if !ok {
		return binding.SceneRecord{}, false
	}
	return rec.Clone(), true
}

func (d *dictionary) SetPoint(key string, rec binding.PointRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.points, key)
	d.points[key] = rec
}

func (d *dictionary) SetScene(key string, rec binding.SceneRecord) {
	rec = rec.Clone()
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.scenes, key)
	d.scenes[key] = rec
}

func (d *dictionary) RemovePoint(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.points, key)
}

func (d *dictionary) RemoveScene(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.scenes, key)
}

func (d *dictionary) PointCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.points)
}

func (d *dictionary) SceneCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.scenes)
}

func (d *dictionary) PointKeys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sortedKeys(d.points)
}

func (d *dictionary) SceneKeys() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return sortedKeys(d.scenes)
}

func (d *dictionary) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.points)
	clear(d.scenes)
}

func (d *dictionary) PersistOnShutdown() bool {
	d.subMu.Lock()
	defer d.subMu.Unlock()
	return d.persist
}

func (d *dictionary) SetPersistOnShutdown(persist bool) {
	d.subMu.Lock()
	defer d.subMu.Unlock()

	if d.persist == persist {
		return
	}
	if persist {
		if d.hook != nil && d.flush != nil {
			d.sub = d.hook.Subscribe(d.flush)
		}
	} else {
		d.sub.Cancel()
		d.sub = nil
	}
	d.persist = persist
}

// estimatedSizeBytes is a hint used to pre-size the encoding buffer.
func (d *dictionary) estimatedSizeBytes() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.estimateLocked()
}

func (d *dictionary) estimateLocked() int {
	return pointEstimateBytes*len(d.points) + sceneEstimateBytes*len(d.scenes)
}

// snapshot returns a copy of the current bindings.
func (d *dictionary) snapshot() *snapshot {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s := &snapshot{
		points:   make(map[string]binding.PointRecord, len(d.points)),
		scenes:   make(map[string]binding.SceneRecord, len(d.scenes)),
		sizeHint: d.estimateLocked(),
	}
	for k, v := range d.points {
		s.points[k] = v
	}
	// stored scenes are never mutated in place, sharing their points is safe
	for k, v := range d.scenes {
		s.scenes[k] = v
	}
	return s
}

// restore replaces the current bindings with the ones of s. s must not be used afterwards.
func (d *dictionary) restore(s *snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.points = s.points
	d.scenes = s.scenes
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
