package library

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ldsec/bindlib/pkg/binding"
	"github.com/ldsec/bindlib/pkg/objectstore"
)

var (
	pointRecordA = binding.PointRecord{
		AnchorID:    "pcf-a",
		Position:    [3]float32{0.25, 1.5, -2},
		Orientation: [4]float32{0, 0, 0, 1},
	}
	pointRecordB = binding.PointRecord{
		AnchorID:    "pcf-b",
		Position:    [3]float32{-4, 0, 0.125},
		Orientation: [4]float32{0.5, 0.5, 0.5, 0.5},
	}
	sceneRecordA = binding.SceneRecord{Points: []binding.PointRecord{pointRecordA, pointRecordB}}
)

// syncBuffer is a log sink safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestLogger() (*slog.Logger, *syncBuffer) {
	buf := new(syncBuffer)
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}

func newLibraryID() string {
	return "lib-" + uuid.NewString()
}

// testBackend creates libraries of one backend type sharing one medium.
type testBackend struct {
	name string
	new  func(id string, opts ...Option) Library
	// exists reports whether the stored artifact of id is present on the medium
	exists func(id string) bool
}

func testBackends(t *testing.T) []testBackend {
	t.Helper()
	dir := t.TempDir()

	mem := objectstore.NewMemObjectStore()
	badger, err := objectstore.NewObjectStoreFromConfig(objectstore.Config{BackendName: "badgerdb", DBPath: filepath.Join(dir, "badger")})
	require.NoError(t, err)
	t.Cleanup(func() { badger.Close() })
	sealedSQLite, err := objectstore.NewObjectStoreFromConfig(objectstore.Config{
		BackendName: "sqlite",
		DBPath:      filepath.Join(dir, "store.db"),
		SealKey:     "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f",
	})
	require.NoError(t, err)
	t.Cleanup(func() { sealedSQLite.Close() })

	fileDir := filepath.Join(dir, "files")
	backends := []testBackend{{
		name: "file",
		new: func(id string, opts ...Option) Library {
			l, err := NewFileLibrary(id, false, append([]Option{WithDirectory(fileDir)}, opts...)...)
			require.NoError(t, err)
			return l
		},
		exists: func(id string) bool {
			return fileExists(filepath.Join(fileDir, id+FileExtension))
		},
	}}

	for _, s := range []struct {
		name  string
		store objectstore.ObjectStore
	}{{"securestore-mem", mem}, {"securestore-badger", badger}, {"securestore-sealed-sqlite", sealedSQLite}} {
		store := s.store
		backends = append(backends, testBackend{
			name: s.name,
			new: func(id string, opts ...Option) Library {
				l, err := NewSecureStoreLibrary(id, false, store, opts...)
				require.NoError(t, err)
				return l
			},
			exists: func(id string) bool {
				present, err := store.IsPresent(DefaultNamespace + "/" + id)
				require.NoError(t, err)
				return present
			},
		})
	}
	return backends
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
