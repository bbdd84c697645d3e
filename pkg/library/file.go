package library

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ldsec/bindlib/pkg/utils"
)

// FileExtension is the extension of library data files.
const FileExtension = ".bld"

// FileLibrary is a Library stored as a single file, <directory>/<id>.bld.
type FileLibrary struct {
	dictionary
	directory string
}

var _ Library = (*FileLibrary)(nil)

// DefaultDirectory returns the directory used by file libraries created
// without WithDirectory: BindingLibrary under the user's application data directory.
func DefaultDirectory() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "bindlib", "BindingLibrary")
}

// NewFileLibrary creates an empty file library. It does not read the file; call Load for that.
// It returns ErrInvalidID for an id containing a path separator, "." or "..".
func NewFileLibrary(id string, persistOnShutdown bool, opts ...Option) (*FileLibrary, error) {
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	o := newOptions(opts)
	l := &FileLibrary{directory: o.directory}
	if err := l.init(id, o); err != nil {
		return nil, err
	}
	l.flush = l.Save
	l.SetPersistOnShutdown(persistOnShutdown)
	return l, nil
}

// Directory returns the directory holding the library file.
func (l *FileLibrary) Directory() string {
	if len(l.directory) == 0 {
		return DefaultDirectory()
	}
	return l.directory
}

// FilePath returns the path of the library file.
func (l *FileLibrary) FilePath() string {
	return filepath.Join(l.Directory(), l.id+FileExtension)
}

func (l *FileLibrary) Load() bool {
	path := l.FilePath()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		l.logger.Info("couldn't load library data, file doesn't exist", "path", path)
		return false
	case err != nil:
		l.logger.Error("error while trying to load library", "path", path, "error", err)
		return false
	case len(data) == 0:
		l.logger.Info("couldn't load library data, file is empty", "path", path)
		return false
	}

	var s snapshot
	if err := s.UnmarshalBinary(data); err != nil {
		l.logger.Error("error while trying to load library", "path", path, "error", err)
		return false
	}
	points, scenes := len(s.points), len(s.scenes)
	l.restore(&s)

	l.logger.Info("library data successfully loaded",
		"point_bindings", points, "scene_bindings", scenes, "size", utils.ByteCountSI(uint64(len(data))))
	return true
}

func (l *FileLibrary) Save() {
	path := l.FilePath()

	data, err := l.snapshot().MarshalBinary()
	if err != nil {
		l.logger.Error("error while saving library", "path", path, "error", err)
		return
	}
	if err := writeFile(path, data); err != nil {
		l.logger.Error("error while saving library", "path", path, "error", err)
		return
	}
	l.logger.Info("library data saved successfully", "path", path, "size", utils.ByteCountSI(uint64(len(data))))
}

func (l *FileLibrary) Delete() {
	l.Clear()
	path := l.FilePath()

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		l.logger.Error("couldn't delete library file", "path", path, "error", err)
		return
	}
	l.logger.Info("library deleted", "path", path)
}

// writeFile replaces the content of path with data through a temporary file
// in the same directory, so that a failed write never truncates the previous data.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
