package tabs

import "sync"

// urlLocks hands out one mutex per URL so creation of the same tab is
// serialized while different URLs proceed in parallel.
type urlLocks struct {
	mu    sync.Mutex
	locks map[string]*urlLock
}

type urlLock struct {
	mu   sync.Mutex
	refs int
}

func newURLLocks() *urlLocks {
	return &urlLocks{locks: make(map[string]*urlLock)}
}

// lock acquires the mutex for url and returns its release func.
func (l *urlLocks) lock(url string) func() {
	l.mu.Lock()
	entry, ok := l.locks[url]
	if !ok {
		entry = &urlLock{}
		l.locks[url] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, url)
		}
		l.mu.Unlock()
	}
}
