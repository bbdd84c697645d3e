package library

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ldsec/bindlib/pkg/objectstore"
	"gopkg.in/yaml.v3"
)

// Library backends selectable in Config.Backend.
const (
	BackendSecureStore = "securestore"
	BackendFile        = "file"
)

// DefaultLibraryID is the identifier of the library Registry.Current resolves
// to when no library was selected.
const DefaultLibraryID = "DefaultLibrary"

const defaultSaveConcurrency = 4

// Config is the configuration of a Registry.
// The struct is meant to be encoded and decoded to JSON with the
// standard library's encoding/json package, or to YAML.
type Config struct {
	Backend          string             `json:"backend,omitempty" yaml:"backend,omitempty"`                       // securestore (default) or file
	Directory        string             `json:"directory,omitempty" yaml:"directory,omitempty"`                   // file backend directory, DefaultDirectory() if empty
	Namespace        string             `json:"namespace,omitempty" yaml:"namespace,omitempty"`                   // secure store key namespace
	DefaultLibraryID string             `json:"default_library_id,omitempty" yaml:"default_library_id,omitempty"` // library resolved by Registry.Current
	SaveConcurrency  int                `json:"save_concurrency,omitempty" yaml:"save_concurrency,omitempty"`     // maximum parallel saves in SaveAllLibraries
	ObjectStore      objectstore.Config `json:"object_store" yaml:"object_store"`
}

// DefaultConfig returns the configuration of a registry of secure-store
// libraries kept in a BadgerDB database next to the default file directory.
func DefaultConfig() Config {
	return Config{
		Backend:          BackendSecureStore,
		Namespace:        DefaultNamespace,
		DefaultLibraryID: DefaultLibraryID,
		SaveConcurrency:  defaultSaveConcurrency,
		ObjectStore: objectstore.Config{
			BackendName: "badgerdb",
			DBPath:      filepath.Join(filepath.Dir(DefaultDirectory()), "securestore"),
		},
	}
}

// withDefaults fills the unset fields of conf.
func (conf Config) withDefaults() Config {
	if len(conf.Backend) == 0 {
		conf.Backend = BackendSecureStore
	}
	if len(conf.Namespace) == 0 {
		conf.Namespace = DefaultNamespace
	}
	if len(conf.DefaultLibraryID) == 0 {
		conf.DefaultLibraryID = DefaultLibraryID
	}
	if conf.SaveConcurrency == 0 {
		conf.SaveConcurrency = defaultSaveConcurrency
	}
	return conf
}

// LoadConfigFromFile loads a registry configuration from a JSON file, or from
// a YAML file if its extension is .yaml or .yml. Fields absent from the file
// keep their DefaultConfig value.
func LoadConfigFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, err
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return Config{}, fmt.Errorf("could not decode config %s: %w", filename, err)
	}

	return config, nil
}

// ValidateConfig checks that the configuration is valid.
func ValidateConfig(config Config) error {
	switch config.Backend {
	case "", BackendSecureStore:
		if len(config.ObjectStore.BackendName) > 0 {
			if err := objectstore.ValidateConfig(config.ObjectStore); err != nil {
				return fmt.Errorf("invalid object store config: %w", err)
			}
		}
	case BackendFile:
	default:
		return fmt.Errorf("unknown library backend %q", config.Backend)
	}
	if config.SaveConcurrency < 0 {
		return fmt.Errorf("save concurrency must be positive, got %d", config.SaveConcurrency)
	}
	if strings.Contains(config.Namespace, "/") {
		return fmt.Errorf("namespace %q must not contain '/'", config.Namespace)
	}
	return nil
}
