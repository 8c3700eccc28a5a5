package lock

import (
	"sync"
)

// Keyed provides an exclusive in-process mutex per string key. Every mutating
// operation on a property or rental acquires its key before the
// read-check-write sequence, so two operators acting on the same entity from
// different requests are serialized. Entries are reference counted and
// removed once the last holder releases, so the map does not grow with the
// number of entities ever touched.
type Keyed struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyed() *Keyed {
	return &Keyed{
		entries: map[string]*entry{},
	}
}

// Acquire blocks until the key's lock is held and returns the release
// function. The release function must be called exactly once.
func (k *Keyed) Acquire(key string) func() {
	k.mu.Lock()

	e, ok := k.entries[key]
	if !ok {
		e = &entry{}
		k.entries[key] = e
	}

	e.refs++

	k.mu.Unlock()

	e.mu.Lock()

	var once sync.Once

	return func() {
		once.Do(func() {
			e.mu.Unlock()

			k.mu.Lock()

			e.refs--
			if e.refs == 0 {
				delete(k.entries, key)
			}

			k.mu.Unlock()
		})
	}
}
