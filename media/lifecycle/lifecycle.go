// Package lifecycle coordinates the media attachment protocol between the
// entity record (the authoritative media list) and the blob store (the file
// bytes). All mutations for one entity are serialized; entities never share
// a lock.
//
// Ordering: the record's media list is always updated before the blob store
// is touched, so a failed record write aborts before any irreversible disk
// mutation. The cost is a window where a record can reference files whose
// blob write then faulted; a later Replace or Remove converges disk with the
// record. There is no compensation log.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/indieinfra/simmer/media/sniff"
	"github.com/indieinfra/simmer/media/staging"
	"github.com/indieinfra/simmer/storage/blob"
	"github.com/indieinfra/simmer/storage/entity"
)

// ErrAttached indicates an Attach on an entity that already has media.
var ErrAttached = errors.New("media already attached")

// ErrNoMedia indicates a Replace or Remove on an entity without media.
var ErrNoMedia = errors.New("no media attached")

// ErrUnsupportedMedia indicates that no uploaded file survived content
// validation.
var ErrUnsupportedMedia = errors.New("no uploaded file has an allowed media type")

type Manager struct {
	entities  entity.Store
	blobs     blob.Store
	area      *staging.Area
	patterns  []sniff.Pattern
	opTimeout time.Duration
	locks     refLocks
}

func NewManager(entities entity.Store, blobs blob.Store, area *staging.Area, patterns []sniff.Pattern, opTimeout time.Duration) *Manager {
	return &Manager{
		entities:  entities,
		blobs:     blobs,
		area:      area,
		patterns:  patterns,
		opTimeout: opTimeout,
	}
}

// Attach stages, validates, records, and stores the uploaded files for an
// entity that has no media yet. Returns the surviving unique filenames, in
// the order the record now lists them.
func (m *Manager) Attach(ctx context.Context, ref entity.Ref, files []staging.Upload) ([]string, error) {
	unlock := m.locks.acquire(ref)
	defer unlock()

	ent, err := m.entities.Get(ctx, ref)
	if err != nil {
		return nil, err
	}

	if len(ent.Media) > 0 {
		return nil, ErrAttached
	}

	names, err := m.ingest(ref, files)
	if err != nil {
		return nil, err
	}

	if err := m.entities.SetMediaList(ctx, ref, names); err != nil {
		_ = m.area.Discard(ref)
		return nil, err
	}

	if err := m.promote(ctx, ref, names); err != nil {
		_ = m.area.Discard(ref)
		return nil, err
	}

	_ = m.area.Discard(ref)
	return names, nil
}

// Replace swaps an entity's existing media for the uploaded files. The new
// files are validated before the old ones are touched, so a rejected batch
// leaves the current media intact.
func (m *Manager) Replace(ctx context.Context, ref entity.Ref, files []staging.Upload) ([]string, error) {
	unlock := m.locks.acquire(ref)
	defer unlock()

	ent, err := m.entities.Get(ctx, ref)
	if err != nil {
		return nil, err
	}

	if len(ent.Media) == 0 {
		return nil, ErrNoMedia
	}

	names, err := m.ingest(ref, files)
	if err != nil {
		return nil, err
	}

	if err := m.entities.SetMediaList(ctx, ref, names); err != nil {
		_ = m.area.Discard(ref)
		return nil, err
	}

	for _, old := range ent.Media {
		if err := m.removeBlob(ctx, ref, old); err != nil {
			_ = m.area.Discard(ref)
			return nil, err
		}
	}

	if err := m.promote(ctx, ref, names); err != nil {
		_ = m.area.Discard(ref)
		return nil, err
	}

	_ = m.area.Discard(ref)
	return names, nil
}

// Remove clears an entity's media list and deletes its files.
func (m *Manager) Remove(ctx context.Context, ref entity.Ref) error {
	unlock := m.locks.acquire(ref)
	defer unlock()

	ent, err := m.entities.Get(ctx, ref)
	if err != nil {
		return err
	}

	if len(ent.Media) == 0 {
		return ErrNoMedia
	}

	if err := m.entities.SetMediaList(ctx, ref, []string{}); err != nil {
		return err
	}

	opCtx, cancel := m.bounded(ctx)
	defer cancel()

	if err := m.blobs.RemoveAll(opCtx, ref); err != nil {
		return fmt.Errorf("remove media files: %w", err)
	}

	return nil
}

// Purge drops every file and staged upload for an entity whose record is
// being deleted. The record itself is not touched.
func (m *Manager) Purge(ctx context.Context, ref entity.Ref) error {
	unlock := m.locks.acquire(ref)
	defer unlock()

	opCtx, cancel := m.bounded(ctx)
	defer cancel()

	if err := m.blobs.RemoveAll(opCtx, ref); err != nil {
		return fmt.Errorf("purge media files: %w", err)
	}

	return m.area.Discard(ref)
}

// ingest runs the staging and sanitization passes. On any failure the
// holding directory is discarded so no unvalidated file outlives the
// request.
func (m *Manager) ingest(ref entity.Ref, files []staging.Upload) ([]string, error) {
	if _, err := m.area.Stage(ref, files); err != nil {
		_ = m.area.Discard(ref)
		return nil, fmt.Errorf("stage uploads: %w", err)
	}

	names, err := m.area.Sanitize(ref, m.patterns)
	if err != nil {
		_ = m.area.Discard(ref)
		return nil, fmt.Errorf("sanitize uploads: %w", err)
	}

	if len(names) == 0 {
		_ = m.area.Discard(ref)
		return nil, ErrUnsupportedMedia
	}

	return names, nil
}

// promote copies sanitized staged files into the blob store.
func (m *Manager) promote(ctx context.Context, ref entity.Ref, names []string) error {
	for _, name := range names {
		f, size, err := m.area.Open(ref, name)
		if err != nil {
			return fmt.Errorf("promote %q: %w", name, err)
		}

		opCtx, cancel := m.bounded(ctx)
		writeErr := m.blobs.Write(opCtx, ref, name, f, size)
		cancel()
		_ = f.Close()

		if writeErr != nil {
			return fmt.Errorf("promote %q: %w", name, writeErr)
		}
	}

	return nil
}

func (m *Manager) removeBlob(ctx context.Context, ref entity.Ref, name string) error {
	opCtx, cancel := m.bounded(ctx)
	defer cancel()

	if err := m.blobs.Remove(opCtx, ref, name); err != nil {
		return fmt.Errorf("remove old media %q: %w", name, err)
	}

	return nil
}

func (m *Manager) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.opTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, m.opTimeout)
}
