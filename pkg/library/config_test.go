package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ldsec/bindlib/pkg/objectstore"
)

func writeConfigFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigFromFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "json",
			file: "bindlib.json",
			content: `{
	"backend": "file",
	"directory": "/var/lib/bindlib",
	"save_concurrency": 2,
	"object_store": {"backend_name": "sqlite", "db_path": "/var/lib/bindlib/store.db"}
}`,
		},
		{
			name: "yaml",
			file: "bindlib.yaml",
			content: `backend: file
directory: /var/lib/bindlib
save_concurrency: 2
object_store:
  backend_name: sqlite
  db_path: /var/lib/bindlib/store.db
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf, err := LoadConfigFromFile(writeConfigFile(t, tt.file, tt.content))
			require.NoError(t, err)
			require.NoError(t, ValidateConfig(conf))

			require.Equal(t, BackendFile, conf.Backend)
			require.Equal(t, "/var/lib/bindlib", conf.Directory)
			require.Equal(t, 2, conf.SaveConcurrency)
			require.Equal(t, "sqlite", conf.ObjectStore.BackendName)
			require.Equal(t, "/var/lib/bindlib/store.db", conf.ObjectStore.DBPath)

			// absent fields keep their default value
			require.Equal(t, DefaultNamespace, conf.Namespace)
			require.Equal(t, DefaultLibraryID, conf.DefaultLibraryID)
		})
	}
}

func TestLoadConfigFromFileErrors(t *testing.T) {
	_, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfigFromFile(writeConfigFile(t, "bad.json", "{backend"))
	require.Error(t, err)

	_, err = LoadConfigFromFile(writeConfigFile(t, "bad.yml", "backend: [file"))
	require.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	conf := DefaultConfig()
	require.NoError(t, ValidateConfig(conf))
	require.Equal(t, BackendSecureStore, conf.Backend)
	require.Equal(t, "badgerdb", conf.ObjectStore.BackendName)
	require.Equal(t, conf, conf.withDefaults())
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		conf    Config
		wantErr bool
	}{
		{name: "zero", conf: Config{}},
		{name: "file", conf: Config{Backend: BackendFile, Directory: "/tmp/libs"}},
		{name: "mem-store", conf: Config{ObjectStore: objectstore.Config{BackendName: "mem"}}},
		{name: "unknown-backend", conf: Config{Backend: "cloud"}, wantErr: true},
		{name: "negative-concurrency", conf: Config{SaveConcurrency: -1}, wantErr: true},
		{name: "namespace-separator", conf: Config{Namespace: "a/b"}, wantErr: true},
		{name: "store-without-path", conf: Config{ObjectStore: objectstore.Config{BackendName: "badgerdb"}}, wantErr: true},
		{name: "unknown-store", conf: Config{ObjectStore: objectstore.Config{BackendName: "etcd"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.conf)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
