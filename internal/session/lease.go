package session

import "sync"

// Leases serializes turns per session. Concurrent requests for the same
// session id queue behind one mutex for the duration of a state transition;
// different sessions proceed in parallel. The offline queue drains through
// the same leases as live turns.
type Leases struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLeases creates an empty lease table.
func NewLeases() *Leases {
	return &Leases{locks: make(map[string]*sync.Mutex)}
}

// Acquire blocks until the per-session lease is held and returns the
// release function. The caller must release before any long suspend that
// is not part of the current state transition.
func (l *Leases) Acquire(sessionID string) (release func()) {
	l.mu.Lock()
	lock, ok := l.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[sessionID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
