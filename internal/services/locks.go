package services

import "sync"

// lockTable hands out one mutex per key so that admissions for the same grove
// (or queue mutations for the same room) serialise without blocking unrelated
// entities. Entries are reference-counted and removed once the last holder
// releases, keeping the table bounded by the number of in-flight operations.
type lockTable struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[string]*keyedLock)}
}

// acquire blocks until the lock for key is held and returns the release func.
func (t *lockTable) acquire(key string) func() {
	t.mu.Lock()
	entry, ok := t.locks[key]
	if !ok {
		entry = &keyedLock{}
		t.locks[key] = entry
	}
	entry.refs++
	t.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		t.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(t.locks, key)
		}
		t.mu.Unlock()
	}
}
