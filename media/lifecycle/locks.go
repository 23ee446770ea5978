package lifecycle

import (
	"sync"

	"github.com/indieinfra/simmer/storage/entity"
)

// refLocks hands out one mutex per entity reference. Entries are refcounted
// and dropped once the last holder releases, so the map does not grow with
// the number of entities ever touched.
type refLocks struct {
	mu      sync.Mutex
	entries map[entity.Ref]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

// acquire blocks until the entity's lock is held and returns the release
// function.
func (l *refLocks) acquire(ref entity.Ref) func() {
	l.mu.Lock()
	if l.entries == nil {
		l.entries = make(map[entity.Ref]*refLock)
	}

	e, ok := l.entries[ref]
	if !ok {
		e = &refLock{}
		l.entries[ref] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, ref)
		}
		l.mu.Unlock()
	}
}
