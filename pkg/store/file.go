package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/abworrall/longexpo/pkg/emath"
)

// FileStore keeps each raster in its own file under Dir.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (fs *FileStore) path(key string) string {
	return filepath.Join(fs.Dir, key+".mat")
}

func (fs *FileStore) Get(ctx context.Context, key string) (emath.Raster, bool, error) {
	f, err := os.Open(fs.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return emath.Raster{}, false, nil
	} else if err != nil {
		return emath.Raster{}, false, fmt.Errorf("filestore open '%s': %w: %v", fs.path(key), emath.ErrResource, err)
	}
	defer f.Close()

	r, err := Decode(f)
	if err != nil {
		return emath.Raster{}, false, fmt.Errorf("filestore '%s': %w", fs.path(key), err)
	}
	return r, true, nil
}

// Put writes via a temp file and a rename, so readers never see half a file.
func (fs *FileStore) Put(ctx context.Context, key string, r emath.Raster) error {
	if err := os.MkdirAll(fs.Dir, 0755); err != nil {
		return fmt.Errorf("filestore mkdir '%s': %w: %v", fs.Dir, emath.ErrResource, err)
	}

	tmp, err := os.CreateTemp(fs.Dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("filestore create '%s': %w: %v", key, emath.ErrResource, err)
	}
	defer os.Remove(tmp.Name())

	if err := Encode(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("filestore '%s': %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filestore close '%s': %w: %v", key, emath.ErrResource, err)
	}
	if err := os.Rename(tmp.Name(), fs.path(key)); err != nil {
		return fmt.Errorf("filestore rename '%s': %w: %v", key, emath.ErrResource, err)
	}
	return nil
}
