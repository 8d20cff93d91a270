package store

import (
	"strings"
	"sync"
)

// nameLocks hands out a reader/writer lock per table name so that create and
// drop are exclusive against reads of the same table. Names are compared
// case-insensitively, as SQLite does.
type nameLocks struct {
	mu sync.Mutex
	m  map[string]*nameLock
}

type nameLock struct {
	rw   sync.RWMutex
	refs int
}

func newNameLocks() *nameLocks {
	return &nameLocks{m: map[string]*nameLock{}}
}

func lockKey(name string) string { return strings.ToLower(name) }

func (l *nameLocks) acquire(name string, write bool) (release func()) {
	key := lockKey(name)
	l.mu.Lock()
	nl := l.m[key]
	if nl == nil {
		nl = &nameLock{}
		l.m[key] = nl
	}
	nl.refs++
	l.mu.Unlock()

	if write {
		nl.rw.Lock()
	} else {
		nl.rw.RLock()
	}
	return func() {
		if write {
			nl.rw.Unlock()
		} else {
			nl.rw.RUnlock()
		}
		l.mu.Lock()
		nl.refs--
		if nl.refs == 0 {
			delete(l.m, key)
		}
		l.mu.Unlock()
	}
}
