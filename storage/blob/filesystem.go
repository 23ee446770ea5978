package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/indieinfra/simmer/config"
	"github.com/indieinfra/simmer/storage/entity"
)

// FilesystemStore keeps entity media in a local directory tree, one
// directory per entity under <base>/<kind>/<id>.
type FilesystemStore struct {
	basePath string
}

func NewFilesystemStore(cfg *config.FilesystemMediaStrategy) (*FilesystemStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("filesystem media config is nil")
	}

	if err := os.MkdirAll(cfg.Path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &FilesystemStore{basePath: cfg.Path}, nil
}

func (fs *FilesystemStore) entityDir(ref entity.Ref) string {
	return filepath.Join(fs.basePath, string(ref.Kind), ref.ID)
}

func (fs *FilesystemStore) Write(ctx context.Context, ref entity.Ref, filename string, r io.Reader, size int64) error {
	if filepath.Base(filename) != filename {
		return fmt.Errorf("invalid media filename %q", filename)
	}

	dir := fs.entityDir(ref)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create entity directory: %w", err)
	}

	absPath := filepath.Join(dir, filename)

	outFile, err := os.Create(absPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer outFile.Close()

	if _, err := io.Copy(outFile, r); err != nil {
		// Attempt to clean up partial file
		_ = os.Remove(absPath)
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

func (fs *FilesystemStore) Remove(ctx context.Context, ref entity.Ref, filename string) error {
	if filepath.Base(filename) != filename {
		return fmt.Errorf("invalid media filename %q", filename)
	}

	absPath := filepath.Join(fs.entityDir(ref), filename)

	if _, err := os.Stat(absPath); err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist - consider this successful
			return nil
		}
		return fmt.Errorf("failed to stat file: %w", err)
	}

	if err := os.Remove(absPath); err != nil {
		return fmt.Errorf("failed to remove file: %w", err)
	}

	return nil
}

func (fs *FilesystemStore) RemoveAll(ctx context.Context, ref entity.Ref) error {
	if err := os.RemoveAll(fs.entityDir(ref)); err != nil {
		return fmt.Errorf("failed to remove entity directory: %w", err)
	}

	return nil
}

func (fs *FilesystemStore) List(ctx context.Context, ref entity.Ref) ([]string, error) {
	entries, err := os.ReadDir(fs.entityDir(ref))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list entity directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}

	return names, nil
}
