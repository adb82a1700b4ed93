package posting

import "sync"

// accountLocks hands out one mutex per account id so every read-modify-write
// of a balance runs serialized. Mutexes are retained for the life of the
// process; the map grows with the number of touched accounts only.
type accountLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *accountLocks) get(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// acquire locks a single account and returns its release function.
func (l *accountLocks) acquire(id string) func() {
	m := l.get(id)
	m.Lock()
	return m.Unlock
}

// acquirePair locks two accounts in a stable order (lower id first) so two
// opposing transfers can never deadlock.
func (l *accountLocks) acquirePair(a, b string) func() {
	if b < a {
		a, b = b, a
	}
	first, second := l.get(a), l.get(b)
	first.Lock()
	second.Lock()
	return func() {
		second.Unlock()
		first.Unlock()
	}
}
