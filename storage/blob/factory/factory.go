package factory

import (
	"fmt"
	"sync"

	"github.com/indieinfra/simmer/config"
	"github.com/indieinfra/simmer/storage/blob"
)

// Factory builds a blob store for the provided media store config.
type Factory func(*config.MediaStore) (blob.Store, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register adds or replaces a blob store factory for the given strategy name.
func Register(strategy string, factory Factory) {
	mu.Lock()
	registry[strategy] = factory
	mu.Unlock()
}

// Get retrieves a factory for the given strategy.
func Get(strategy string) (Factory, bool) {
	mu.RLock()
	f, ok := registry[strategy]
	mu.RUnlock()
	return f, ok
}

// Create builds a blob store using the registered factory for the configured strategy.
func Create(cfg *config.MediaStore) (blob.Store, error) {
	f, ok := Get(cfg.Strategy)
	if !ok {
		return nil, fmt.Errorf("unknown media store strategy %q", cfg.Strategy)
	}
	return f(cfg)
}

func init() {
	Register("noop", func(cfg *config.MediaStore) (blob.Store, error) {
		return &blob.NoopStore{}, nil
	})

	Register("filesystem", func(cfg *config.MediaStore) (blob.Store, error) {
		return blob.NewFilesystemStore(cfg.Filesystem)
	})

	Register("s3", func(cfg *config.MediaStore) (blob.Store, error) {
		return blob.NewS3Store(cfg.S3)
	})
}
