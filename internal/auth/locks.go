package auth

import "sync"

// emailLocks hands out one mutex per key. Entries are dropped once no
// goroutine holds or waits on them.
type emailLocks struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newEmailLocks() *emailLocks {
	return &emailLocks{locks: make(map[string]*refMutex)}
}

// lock blocks until key is free and returns the matching unlock func
func (l *emailLocks) lock(key string) func() {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &refMutex{}
		l.locks[key] = m
	}
	m.refs++
	l.mu.Unlock()

	m.Lock()

	return func() {
		m.Unlock()

		l.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *emailLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
