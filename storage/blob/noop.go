package blob

import (
	"context"
	"io"
	"log"

	"github.com/indieinfra/simmer/storage/entity"
)

// NoopStore discards media bytes. Useful when wiring the server without a
// real media backend.
type NoopStore struct{}

func (ns *NoopStore) Write(ctx context.Context, ref entity.Ref, filename string, r io.Reader, size int64) error {
	log.Printf("noop media write: %s/%s (%d bytes)", ref, filename, size)
	_, err := io.Copy(io.Discard, r)
	return err
}

func (ns *NoopStore) Remove(ctx context.Context, ref entity.Ref, filename string) error {
	log.Printf("noop media remove: %s/%s", ref, filename)
	return nil
}

func (ns *NoopStore) RemoveAll(ctx context.Context, ref entity.Ref) error {
	log.Printf("noop media remove all: %s", ref)
	return nil
}

func (ns *NoopStore) List(ctx context.Context, ref entity.Ref) ([]string, error) {
	return []string{}, nil
}
