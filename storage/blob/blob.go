// Package blob stores the media file bytes attached to entities. Files live
// under a per-entity namespace derived from the entity kind and id; the
// record's media list in storage/entity stays authoritative for which files
// should exist here.
package blob

import (
	"context"
	"io"

	"github.com/indieinfra/simmer/storage/entity"
)

// Store writes, removes, and lists the media files of a single entity.
type Store interface {
	Write(ctx context.Context, ref entity.Ref, filename string, r io.Reader, size int64) error
	Remove(ctx context.Context, ref entity.Ref, filename string) error
	RemoveAll(ctx context.Context, ref entity.Ref) error
	List(ctx context.Context, ref entity.Ref) ([]string, error)
}
