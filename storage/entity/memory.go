package entity

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entity records in process memory. It backs tests and
// single-node deployments that do not need durable records.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[Ref]*Entity
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[Ref]*Entity)}
}

func (ms *MemoryStore) Get(ctx context.Context, ref Ref) (*Entity, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	e, ok := ms.records[ref]
	if !ok {
		return nil, ErrNotFound
	}

	return cloneEntity(e), nil
}

func (ms *MemoryStore) Create(ctx context.Context, e *Entity) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ref := Ref{Kind: e.Kind, ID: e.ID}
	if _, ok := ms.records[ref]; ok {
		return ErrAlreadyExists
	}

	stored := cloneEntity(e)
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	if stored.Media == nil {
		stored.Media = []string{}
	}

	ms.records[ref] = stored
	return nil
}

func (ms *MemoryStore) Update(ctx context.Context, ref Ref, fields map[string]any) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	e, ok := ms.records[ref]
	if !ok {
		return ErrNotFound
	}

	if e.Fields == nil {
		e.Fields = make(map[string]any)
	}
	for key, value := range fields {
		e.Fields[key] = value
	}
	e.UpdatedAt = time.Now()

	return nil
}

func (ms *MemoryStore) Delete(ctx context.Context, ref Ref) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, ok := ms.records[ref]; !ok {
		return ErrNotFound
	}

	delete(ms.records, ref)
	return nil
}

func (ms *MemoryStore) SetMediaList(ctx context.Context, ref Ref, filenames []string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	e, ok := ms.records[ref]
	if !ok {
		return ErrNotFound
	}

	e.Media = append([]string{}, filenames...)
	e.UpdatedAt = time.Now()

	return nil
}

func (ms *MemoryStore) Owner(ctx context.Context, ref Ref) (string, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	e, ok := ms.records[ref]
	if !ok {
		return "", ErrNotFound
	}

	return e.Owner, nil
}

func (ms *MemoryStore) Exists(ctx context.Context, ref Ref) (bool, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	_, ok := ms.records[ref]
	return ok, nil
}

func (ms *MemoryStore) Close() error {
	return nil
}

func cloneEntity(e *Entity) *Entity {
	out := *e
	out.Media = append([]string{}, e.Media...)
	if e.Fields != nil {
		out.Fields = make(map[string]any, len(e.Fields))
		for key, value := range e.Fields {
			out.Fields[key] = value
		}
	}
	return &out
}
